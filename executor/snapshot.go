package executor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	contentDescPrefix = "content-desc: "
	textPrefix        = "text: "
)

// SnapshotReader 通过 Controller 获取最新的界面树
type SnapshotReader struct {
	ctrl  Controller
	dir   string
	steps *StepCounter
	now   func() time.Time
}

// NewSnapshotReader 创建快照读取器，xml 文件保存到 dir
func NewSnapshotReader(ctrl Controller, dir string, steps *StepCounter) *SnapshotReader {
	if steps == nil {
		steps = &StepCounter{}
	}
	return &SnapshotReader{ctrl: ctrl, dir: dir, steps: steps, now: time.Now}
}

// Capture 导出并解析一次界面树，文件名为 时间_步骤号
func (r *SnapshotReader) Capture(ctx context.Context) (*Snapshot, error) {
	step := r.steps.Next()
	capturedAt := r.now()
	prefix := fmt.Sprintf("%s_%03d", capturedAt.Format("2006-01-02_15-04-05"), step)

	path, err := r.ctrl.CaptureUITree(ctx, prefix, r.dir)
	if err != nil {
		return nil, &SnapshotUnavailableError{Step: step, Err: err}
	}
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, &SnapshotUnavailableError{Step: step, Err: err}
	}
	snap.Step = step
	snap.CapturedAt = capturedAt
	return snap, nil
}

// ReadVisibleText 读取快照中全部 content-desc 与 text，去重并保持顺序
func ReadVisibleText(snap *Snapshot) []string {
	var c TextCollector
	c.Add(snap)
	return c.Lines()
}

// TextCollector 跨多个快照累积可见文本，插入时去重
type TextCollector struct {
	lines []string
	seen  map[string]struct{}
}

// Add 加入快照中的文本，返回新增的行数
func (c *TextCollector) Add(snap *Snapshot) int {
	if snap == nil {
		return 0
	}
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	added := 0
	for _, el := range snap.Elements {
		if desc := el.Attrs["content-desc"]; desc != "" {
			if c.insert(contentDescPrefix + desc) {
				added++
			}
		}
		if text := el.Attrs["text"]; text != "" {
			if c.insert(textPrefix + text) {
				added++
			}
		}
	}
	return added
}

func (c *TextCollector) insert(line string) bool {
	if _, ok := c.seen[line]; ok {
		return false
	}
	c.seen[line] = struct{}{}
	c.lines = append(c.lines, line)
	return true
}

// Lines 已累积的文本行
func (c *TextCollector) Lines() []string {
	return append([]string(nil), c.lines...)
}

// Text 以换行连接的全部文本
func (c *TextCollector) Text() string {
	return strings.Join(c.lines, "\n")
}

// Len 行数
func (c *TextCollector) Len() int {
	return len(c.lines)
}
