package executor

import "fmt"

// SnapshotUnavailableError 设备无法导出界面树
type SnapshotUnavailableError struct {
	Step int
	Err  error
}

func (e *SnapshotUnavailableError) Error() string {
	return fmt.Sprintf("snapshot %d unavailable: %v", e.Step, e.Err)
}

func (e *SnapshotUnavailableError) Unwrap() error {
	return e.Err
}

// ElementNotFoundError 快照中没有期望的元素
type ElementNotFoundError struct {
	Attr  string
	Value string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("element not found: %s=%q", e.Attr, e.Value)
}

// MalformedBoundsError bounds 属性不是 [x1,y1][x2,y2] 格式
type MalformedBoundsError struct {
	Bounds string
}

func (e *MalformedBoundsError) Error() string {
	return fmt.Sprintf("malformed bounds: %q", e.Bounds)
}
