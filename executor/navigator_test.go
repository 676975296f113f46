package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedController 按顺序返回预设的界面树，记录所有操作
type scriptedController struct {
	screens   []string
	dumpErr   error
	actions   []string
	prefixes  []string
	restarted string
}

func (c *scriptedController) Tap(ctx context.Context, x, y int) error {
	c.actions = append(c.actions, fmt.Sprintf("tap %d,%d", x, y))
	return nil
}

func (c *scriptedController) Swipe(ctx context.Context, x, y int, dir Direction, dist Distance, quick bool) error {
	c.actions = append(c.actions, fmt.Sprintf("swipe %s %s", dir, dist))
	return nil
}

func (c *scriptedController) Back(ctx context.Context) error {
	c.actions = append(c.actions, "back")
	return nil
}

func (c *scriptedController) DeviceSize(ctx context.Context) (int, int, error) {
	return 1080, 2400, nil
}

func (c *scriptedController) CaptureUITree(ctx context.Context, prefix, dir string) (string, error) {
	c.prefixes = append(c.prefixes, prefix)
	if c.dumpErr != nil {
		return "", c.dumpErr
	}
	if len(c.screens) == 0 {
		return "", errors.New("no more screens")
	}
	xml := c.screens[0]
	c.screens = c.screens[1:]
	path := filepath.Join(dir, prefix+".xml")
	return path, os.WriteFile(path, []byte(xml), 0o644)
}

func (c *scriptedController) CaptureScreenshot(ctx context.Context, prefix, dir string) (string, error) {
	return "", errors.New("not supported")
}

func (c *scriptedController) RestartApp(ctx context.Context, pkg string) error {
	c.restarted = pkg
	c.actions = append(c.actions, "restart")
	return nil
}

func screen(nodes ...string) string {
	out := `<hierarchy rotation="0">`
	for _, n := range nodes {
		out += n
	}
	return out + `</hierarchy>`
}

func node(attr, value, bounds string) string {
	attrs := map[string]string{"text": "", "content-desc": "", "resource-id": ""}
	attrs[attr] = value
	return fmt.Sprintf(`<node text=%q content-desc=%q resource-id=%q bounds=%q />`,
		attrs["text"], attrs["content-desc"], attrs["resource-id"], bounds)
}

var testSelectors = Selectors{
	EntryMenu:      Selector{Attr: "content-desc", Value: "快捷入口"},
	AddContact:     Selector{Attr: "text", Value: "加好友/群"},
	AdvancedSearch: Selector{Attr: "text", Value: "按条件查找"},
	SearchButton:   Selector{Attr: "text", Value: "查找"},
	FriendList:     Selector{Attr: "resource-id", Value: "list"},
	AvatarEntry:    Selector{Attr: "resource-id", Value: "avatar"},
	AvatarImage:    Selector{Attr: "resource-id", Value: "image"},
}

func newTestNavigator(t *testing.T, ctrl *scriptedController) *Navigator {
	t.Helper()
	reader := NewSnapshotReader(ctrl, t.TempDir(), &StepCounter{})
	nav := NewNavigator(ctrl, reader, "com.tencent.mobileqq", testSelectors, 0)
	nav.sleepFor = func(ctx context.Context, d time.Duration) error { return nil }
	return nav
}

func TestCaptureNamesWithTimestampAndStep(t *testing.T) {
	ctrl := &scriptedController{screens: []string{screen(), screen()}}
	steps := &StepCounter{}
	reader := NewSnapshotReader(ctrl, t.TempDir(), steps)
	reader.now = func() time.Time { return time.Date(2024, 3, 1, 9, 5, 7, 0, time.Local) }

	first, err := reader.Capture(context.Background())
	require.NoError(t, err)
	second, err := reader.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.Step)
	assert.Equal(t, 2, second.Step)
	assert.Equal(t, []string{"2024-03-01_09-05-07_001", "2024-03-01_09-05-07_002"}, ctrl.prefixes)
	assert.Equal(t, 2, steps.Current())
	assert.Regexp(t, regexp.MustCompile(`_002\.xml$`), second.Path)
}

func TestCaptureSurfacesSnapshotUnavailable(t *testing.T) {
	ctrl := &scriptedController{dumpErr: errors.New("device offline")}
	reader := NewSnapshotReader(ctrl, t.TempDir(), nil)

	_, err := reader.Capture(context.Background())
	var su *SnapshotUnavailableError
	require.ErrorAs(t, err, &su)
	assert.Equal(t, 1, su.Step)
	assert.Len(t, ctrl.prefixes, 1, "no retry at this layer")
}

func TestCaptureUnparsableDump(t *testing.T) {
	ctrl := &scriptedController{screens: []string{"not xml <"}}
	reader := NewSnapshotReader(ctrl, t.TempDir(), nil)

	_, err := reader.Capture(context.Background())
	var su *SnapshotUnavailableError
	require.ErrorAs(t, err, &su)
}

func TestTapElementHitsCenter(t *testing.T) {
	ctrl := &scriptedController{screens: []string{
		screen(node("text", "查找", "[100,200][300,400]")),
	}}
	nav := newTestNavigator(t, ctrl)

	require.NoError(t, nav.Search(context.Background()))
	assert.Equal(t, []string{"tap 200,300"}, ctrl.actions)
}

func TestTapElementMissing(t *testing.T) {
	ctrl := &scriptedController{screens: []string{screen(node("text", "取消", "[0,0][10,10]"))}}
	nav := newTestNavigator(t, ctrl)

	err := nav.Search(context.Background())
	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "text", nf.Attr)
	assert.Equal(t, "查找", nf.Value)
	assert.Empty(t, ctrl.actions)
}

func TestOpenCandidateMatchesByName(t *testing.T) {
	ctrl := &scriptedController{screens: []string{
		screen(
			`<node text="小雨" resource-id="list" content-desc="" bounds="[0,100][100,200]" />`,
			`<node text="阿杰" resource-id="list" content-desc="" bounds="[0,300][100,400]" />`,
		),
		screen(),
	}}
	nav := newTestNavigator(t, ctrl)

	opened, err := nav.OpenCandidate(context.Background(), "阿杰")
	require.NoError(t, err)
	assert.True(t, opened)
	assert.Equal(t, []string{"tap 50,350"}, ctrl.actions)

	opened, err = nav.OpenCandidate(context.Background(), "阿杰")
	assert.False(t, opened)
	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Value, "阿杰")
}

func TestOpenAvatarReportsTapWhenSettleFails(t *testing.T) {
	ctrl := &scriptedController{screens: []string{
		screen(node("resource-id", "avatar", "[40,200][240,400]")),
	}}
	nav := newTestNavigator(t, ctrl)
	nav.sleepFor = Sleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opened, err := nav.OpenAvatar(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, opened, "tap already sent")
	assert.Equal(t, []string{"tap 140,300"}, ctrl.actions)
}

func TestInitRunsFixedSequence(t *testing.T) {
	ctrl := &scriptedController{screens: []string{
		screen(node("content-desc", "快捷入口", "[980,100][1060,180]")),
		screen(node("text", "加好友/群", "[600,300][1000,380]")),
		screen(node("text", "按条件查找", "[0,500][1080,600]")),
	}}
	nav := newTestNavigator(t, ctrl)

	require.NoError(t, nav.Init(context.Background()))
	assert.Equal(t, "com.tencent.mobileqq", ctrl.restarted)
	assert.Equal(t, []string{"restart", "tap 1020,140", "tap 800,340", "tap 540,550"}, ctrl.actions)
}

func TestInitAbortsOnMissingStep(t *testing.T) {
	ctrl := &scriptedController{screens: []string{
		screen(node("content-desc", "快捷入口", "[980,100][1060,180]")),
		screen(node("text", "扫一扫", "[600,300][1000,380]")),
	}}
	nav := newTestNavigator(t, ctrl)

	err := nav.Init(context.Background())
	var nf *ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "加好友/群", nf.Value)
	assert.Equal(t, []string{"restart", "tap 1020,140"}, ctrl.actions)
}

func TestSwipesUseScreenCenter(t *testing.T) {
	ctrl := &scriptedController{}
	nav := newTestNavigator(t, ctrl)
	ctx := context.Background()

	require.NoError(t, nav.ScrollDetail(ctx))
	require.NoError(t, nav.ScrollToTop(ctx, 2))
	require.NoError(t, nav.ScrollToTop(ctx, 0))
	require.NoError(t, nav.NextWindow(ctx))
	require.NoError(t, nav.Back(ctx))
	assert.Equal(t, []string{"swipe up long", "swipe down long", "swipe down long", "swipe up long", "back"}, ctrl.actions)

	x, y, err := nav.ScreenCenter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 540, x)
	assert.Equal(t, 1200, y)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
