package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/browserwing/contactwing/pkg/logger"
)

// Selectors 导航过程中用到的界面元素
type Selectors struct {
	EntryMenu      Selector // 首页右上角快捷入口
	AddContact     Selector // 加好友/群
	AdvancedSearch Selector // 按条件查找页面入口
	SearchButton   Selector // 查找按钮
	FriendList     Selector // 结果列表中的昵称
	AvatarEntry    Selector // 资料页头像，点击查看大头像
	AvatarImage    Selector // 大头像图片
}

// Navigator 在 Controller 之上按顺序执行点击与滑动
type Navigator struct {
	ctrl     Controller
	reader   *SnapshotReader
	sel      Selectors
	pkg      string
	settle   time.Duration
	width    int
	height   int
	sleepFor func(ctx context.Context, d time.Duration) error
}

// NewNavigator 创建导航器，settle 为每次操作后的等待时间
func NewNavigator(ctrl Controller, reader *SnapshotReader, pkg string, sel Selectors, settle time.Duration) *Navigator {
	return &Navigator{
		ctrl:     ctrl,
		reader:   reader,
		sel:      sel,
		pkg:      pkg,
		settle:   settle,
		sleepFor: Sleep,
	}
}

// Sleep 可被 context 取消的等待
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Selectors 当前使用的选择器
func (n *Navigator) Selectors() Selectors {
	return n.sel
}

// Reader 快照读取器
func (n *Navigator) Reader() *SnapshotReader {
	return n.reader
}

// Settle 等待界面稳定
func (n *Navigator) Settle(ctx context.Context) error {
	return n.sleepFor(ctx, n.settle)
}

// TapElement 获取快照 → 查找元素 → 点击中心 → 等待
func (n *Navigator) TapElement(ctx context.Context, sel Selector) error {
	return n.TapWhere(ctx, sel, nil)
}

// TapWhere 与 TapElement 相同，但只点击满足 match 的第一个元素
func (n *Navigator) TapWhere(ctx context.Context, sel Selector, match func(Element) bool) error {
	_, err := n.tapWhere(ctx, sel, match)
	return err
}

// tapWhere 返回的 tapped 表示点击已经发出，此后即使等待失败界面也可能已经切换
func (n *Navigator) tapWhere(ctx context.Context, sel Selector, match func(Element) bool) (tapped bool, err error) {
	snap, err := n.reader.Capture(ctx)
	if err != nil {
		return false, err
	}
	var target *Element
	for _, el := range Find(snap, sel) {
		if match == nil || match(el) {
			target = &el
			break
		}
	}
	if target == nil {
		return false, &ElementNotFoundError{Attr: sel.Attr, Value: sel.Value}
	}

	x, y, err := target.Center()
	if err != nil {
		return false, err
	}
	logger.Info(ctx, "Tap %s at (%d, %d)", sel, x, y)
	if err := n.ctrl.Tap(ctx, x, y); err != nil {
		return false, fmt.Errorf("tap %s failed: %w", sel, err)
	}
	return true, n.Settle(ctx)
}

// Init 重启应用并进入按条件查找页面，任何一步失败都需要调用方从头重试
func (n *Navigator) Init(ctx context.Context) error {
	logger.Info(ctx, "Restarting %s", n.pkg)
	if err := n.ctrl.RestartApp(ctx, n.pkg); err != nil {
		return fmt.Errorf("restart app failed: %w", err)
	}
	// 应用冷启动较慢，多等一次
	if err := n.Settle(ctx); err != nil {
		return err
	}
	if err := n.Settle(ctx); err != nil {
		return err
	}

	steps := []struct {
		name string
		sel  Selector
	}{
		{"entry menu", n.sel.EntryMenu},
		{"add contact", n.sel.AddContact},
		{"advanced search", n.sel.AdvancedSearch},
	}
	for _, step := range steps {
		logger.Info(ctx, "Open %s", step.name)
		if err := n.TapElement(ctx, step.sel); err != nil {
			return fmt.Errorf("open %s: %w", step.name, err)
		}
	}
	logger.Info(ctx, "✓ Advanced search screen ready")
	return nil
}

// Search 点击查找按钮
func (n *Navigator) Search(ctx context.Context) error {
	return n.TapElement(ctx, n.sel.SearchButton)
}

// OpenCandidate 在新的快照中按昵称重新定位并打开联系人资料页；opened 为 true 时调用方需要返回列表
func (n *Navigator) OpenCandidate(ctx context.Context, name string) (opened bool, err error) {
	opened, err = n.tapWhere(ctx, n.sel.FriendList, func(el Element) bool {
		return el.Text() == name
	})
	var nf *ElementNotFoundError
	if errors.As(err, &nf) {
		nf.Value = fmt.Sprintf("%s (text=%s)", nf.Value, name)
	}
	return opened, err
}

// OpenAvatar 在资料页点击头像进入大头像页面；opened 为 true 时调用方需要返回资料页
func (n *Navigator) OpenAvatar(ctx context.Context) (opened bool, err error) {
	return n.tapWhere(ctx, n.sel.AvatarEntry, nil)
}

// Screenshot 截屏保存到 dir/name.png
func (n *Navigator) Screenshot(ctx context.Context, name, dir string) (string, error) {
	path, err := n.ctrl.CaptureScreenshot(ctx, name, dir)
	if err != nil {
		return "", fmt.Errorf("screenshot failed: %w", err)
	}
	return path, nil
}

// ScreenCenter 屏幕中心坐标
func (n *Navigator) ScreenCenter(ctx context.Context) (int, int, error) {
	if n.width == 0 || n.height == 0 {
		w, h, err := n.ctrl.DeviceSize(ctx)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get device size: %w", err)
		}
		n.width, n.height = w, h
	}
	return n.width / 2, n.height / 2, nil
}

func (n *Navigator) swipe(ctx context.Context, dir Direction) error {
	x, y, err := n.ScreenCenter(ctx)
	if err != nil {
		return err
	}
	if err := n.ctrl.Swipe(ctx, x, y, dir, DistanceLong, true); err != nil {
		return fmt.Errorf("swipe %s failed: %w", dir, err)
	}
	return n.Settle(ctx)
}

// ScrollDetail 资料页向下翻动
func (n *Navigator) ScrollDetail(ctx context.Context) error {
	return n.swipe(ctx, DirectionUp)
}

// ScrollToTop 回到资料页顶部，times 为之前向下翻动的次数，为 0 时不操作
func (n *Navigator) ScrollToTop(ctx context.Context, times int) error {
	for i := 0; i < times; i++ {
		if err := n.swipe(ctx, DirectionDown); err != nil {
			return err
		}
	}
	return nil
}

// NextWindow 结果列表翻到下一屏
func (n *Navigator) NextWindow(ctx context.Context) error {
	return n.swipe(ctx, DirectionUp)
}

// Back 返回上一页
func (n *Navigator) Back(ctx context.Context) error {
	if err := n.ctrl.Back(ctx); err != nil {
		return fmt.Errorf("back failed: %w", err)
	}
	return n.Settle(ctx)
}
