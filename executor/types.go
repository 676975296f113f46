package executor

import (
	"context"
	"sync"
	"time"
)

// Direction 滑动方向
type Direction string

const (
	DirectionUp   Direction = "up"   // 手指上滑，显示下方内容
	DirectionDown Direction = "down" // 手指下滑，回到上方内容
)

// Distance 滑动距离
type Distance string

const (
	DistanceShort Distance = "short"
	DistanceLong  Distance = "long"
)

// Controller 设备操作能力（由 adb 等驱动实现）
type Controller interface {
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, x, y int, dir Direction, dist Distance, quick bool) error
	Back(ctx context.Context) error
	DeviceSize(ctx context.Context) (width, height int, err error)
	// CaptureUITree 导出界面树到 dir/prefix.xml 并返回本地路径
	CaptureUITree(ctx context.Context, prefix, dir string) (string, error)
	// CaptureScreenshot 截屏到 dir/prefix.png 并返回本地路径
	CaptureScreenshot(ctx context.Context, prefix, dir string) (string, error)
	// RestartApp 强制停止并重新启动目标应用
	RestartApp(ctx context.Context, pkg string) error
}

// Selector 按属性精确匹配元素
type Selector struct {
	Attr  string
	Value string
}

func (s Selector) String() string {
	return s.Attr + "=" + s.Value
}

// Rect 元素边界
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Element 界面树中的一个节点，只在产生它的快照内有效
type Element struct {
	Index int               // 文档顺序
	Tag   string            // 节点标签
	Attrs map[string]string // 所有属性
}

// Attr 获取属性值
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// Text 元素的 text 属性
func (e Element) Text() string {
	return e.Attrs["text"]
}

// Snapshot 一次界面树导出
type Snapshot struct {
	Step       int
	CapturedAt time.Time
	Path       string
	Elements   []Element
}

// StepCounter 单调递增的步骤计数器，贯穿整个探索运行
type StepCounter struct {
	mu sync.Mutex
	n  int
}

// Next 递增并返回新的步骤号
func (c *StepCounter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Current 当前步骤号
func (c *StepCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
