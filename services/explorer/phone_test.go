package explorer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/browserwing/contactwing/executor"
	"github.com/browserwing/contactwing/models"
	"github.com/stretchr/testify/require"
)

// fakeContact 一个联系人资料页，每个元素为一屏的文本
type fakeContact struct {
	name  string
	pages [][]string
}

// fakePhone 模拟 QQ 的几个页面，按点击坐标和返回键切换
type fakePhone struct {
	screen     string
	windows    [][]fakeContact
	window     int
	current    *fakeContact
	page       int
	actions    []string
	restartErr []error
	shotErr    error
	afterTap   func(from string)
}

const (
	screenHome   = "home"
	screenMenu   = "menu"
	screenAdd    = "add"
	screenSearch = "search"
	screenList   = "list"
	screenDetail = "detail"
	screenAvatar = "avatar"
)

var testSelectors = executor.Selectors{
	EntryMenu:      executor.Selector{Attr: "content-desc", Value: "快捷入口"},
	AddContact:     executor.Selector{Attr: "text", Value: "加好友/群"},
	AdvancedSearch: executor.Selector{Attr: "text", Value: "按条件查找"},
	SearchButton:   executor.Selector{Attr: "text", Value: "查找"},
	FriendList:     executor.Selector{Attr: "resource-id", Value: "list"},
	AvatarEntry:    executor.Selector{Attr: "resource-id", Value: "avatar"},
	AvatarImage:    executor.Selector{Attr: "resource-id", Value: "image"},
}

var avatarImageRect = executor.Rect{X1: 0, Y1: 600, X2: 1080, Y2: 1680}

func node(attr, value, bounds string) string {
	attrs := map[string]string{"text": "", "content-desc": "", "resource-id": ""}
	attrs[attr] = value
	return fmt.Sprintf(`<node text="%s" content-desc="%s" resource-id="%s" bounds="%s" />`,
		html.EscapeString(attrs["text"]), html.EscapeString(attrs["content-desc"]),
		html.EscapeString(attrs["resource-id"]), bounds)
}

func (p *fakePhone) currentWindow() []fakeContact {
	if p.window < len(p.windows) {
		return p.windows[p.window]
	}
	return nil
}

func (p *fakePhone) dump() string {
	var nodes []string
	switch p.screen {
	case screenHome:
		nodes = append(nodes, node("content-desc", "快捷入口", "[980,100][1060,180]"))
	case screenMenu:
		nodes = append(nodes, node("text", "加好友/群", "[600,300][1000,380]"))
	case screenAdd:
		nodes = append(nodes, node("text", "按条件查找", "[0,500][1080,600]"))
	case screenSearch:
		nodes = append(nodes, node("text", "查找", "[400,2000][680,2100]"))
	case screenList:
		for i, c := range p.currentWindow() {
			nodes = append(nodes, fmt.Sprintf(`<node text="%s" content-desc="" resource-id="list" bounds="[0,%d][1080,%d]" />`,
				html.EscapeString(c.name), 200+i*200, 400+i*200))
		}
	case screenDetail:
		nodes = append(nodes, node("resource-id", "avatar", "[40,200][240,400]"))
		if len(p.current.pages) > 0 {
			page := p.page
			if page >= len(p.current.pages) {
				page = len(p.current.pages) - 1
			}
			for _, line := range p.current.pages[page] {
				nodes = append(nodes, node("text", line, "[0,500][1080,600]"))
			}
		}
	case screenAvatar:
		nodes = append(nodes, node("resource-id", "image", "[0,600][1080,1680]"))
	}
	return `<hierarchy rotation="0">` + strings.Join(nodes, "") + `</hierarchy>`
}

func (p *fakePhone) Tap(ctx context.Context, x, y int) error {
	p.actions = append(p.actions, fmt.Sprintf("tap %s %d,%d", p.screen, x, y))
	if p.afterTap != nil {
		defer p.afterTap(p.screen)
	}
	switch p.screen {
	case screenHome:
		p.screen = screenMenu
	case screenMenu:
		p.screen = screenAdd
	case screenAdd:
		p.screen = screenSearch
	case screenSearch:
		p.screen = screenList
	case screenList:
		idx := (y - 200) / 200
		win := p.currentWindow()
		if idx >= 0 && idx < len(win) {
			p.current = &win[idx]
			p.page = 0
			p.screen = screenDetail
		}
	case screenDetail:
		if x >= 40 && x <= 240 && y >= 200 && y <= 400 {
			p.screen = screenAvatar
		}
	}
	return nil
}

func (p *fakePhone) Swipe(ctx context.Context, x, y int, dir executor.Direction, dist executor.Distance, quick bool) error {
	p.actions = append(p.actions, fmt.Sprintf("swipe %s %s", p.screen, dir))
	switch p.screen {
	case screenDetail:
		if dir == executor.DirectionUp {
			p.page++
		} else if p.page > 0 {
			p.page--
		}
	case screenList:
		if dir == executor.DirectionUp {
			p.window++
		}
	}
	return nil
}

func (p *fakePhone) Back(ctx context.Context) error {
	p.actions = append(p.actions, "back "+p.screen)
	switch p.screen {
	case screenAvatar:
		p.screen = screenDetail
	case screenDetail:
		p.screen = screenList
		p.current = nil
	}
	return nil
}

func (p *fakePhone) DeviceSize(ctx context.Context) (int, int, error) {
	return 1080, 2400, nil
}

func (p *fakePhone) CaptureUITree(ctx context.Context, prefix, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, prefix+".xml")
	return path, os.WriteFile(path, []byte(p.dump()), 0o644)
}

func (p *fakePhone) CaptureScreenshot(ctx context.Context, prefix, dir string) (string, error) {
	if p.shotErr != nil {
		return "", p.shotErr
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, prefix+".png")
	return path, os.WriteFile(path, []byte("png"), 0o644)
}

func (p *fakePhone) RestartApp(ctx context.Context, pkg string) error {
	p.actions = append(p.actions, "restart")
	if len(p.restartErr) > 0 {
		err := p.restartErr[0]
		p.restartErr = p.restartErr[1:]
		if err != nil {
			return err
		}
	}
	p.screen = screenHome
	p.window = 0
	return nil
}

func (p *fakePhone) count(action string) int {
	n := 0
	for _, a := range p.actions {
		if a == action {
			n++
		}
	}
	return n
}

// memStore 内存中的联系人存储，记录写入次数
type memStore struct {
	mu          sync.Mutex
	summaries   map[string]*models.ContactSummary
	details     map[string]*models.ContactDetail
	inserts     int
	summaryErr  error
	detailErr   error
	existsCalls int
}

func newMemStore(existing ...string) *memStore {
	s := &memStore{
		summaries: make(map[string]*models.ContactSummary),
		details:   make(map[string]*models.ContactDetail),
	}
	for _, id := range existing {
		s.summaries[id] = &models.ContactSummary{ExternalID: id}
	}
	return s
}

func (s *memStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.existsCalls++
	_, ok := s.summaries[id]
	return ok, nil
}

func (s *memStore) InsertSummary(ctx context.Context, summary *models.ContactSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.summaryErr != nil {
		return s.summaryErr
	}
	if _, ok := s.summaries[summary.ExternalID]; ok {
		return errors.New("duplicate")
	}
	s.summaries[summary.ExternalID] = summary
	return nil
}

func (s *memStore) InsertDetail(ctx context.Context, id string, detail *models.ContactDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.detailErr != nil {
		return s.detailErr
	}
	if _, ok := s.summaries[id]; !ok {
		return errors.New("no summary")
	}
	s.details[id] = detail
	return nil
}

type cropCall struct {
	path string
	rect executor.Rect
}

type harness struct {
	phone    *fakePhone
	store    *memStore
	session  *Session
	nav      *executor.Navigator
	explorer *Explorer
	pngDir   string
	crops    []cropCall
}

func newHarness(t *testing.T, phone *fakePhone, store *memStore, budget RetryBudget) *harness {
	t.Helper()
	h := &harness{phone: phone, store: store}
	dir := t.TempDir()
	h.pngDir = filepath.Join(dir, "png")

	extractor, err := NewExtractor(EnglishRules)
	require.NoError(t, err)

	h.session = NewSession("female 18-22", store)
	reader := executor.NewSnapshotReader(phone, filepath.Join(dir, "xml"), h.session.Steps)
	h.nav = executor.NewNavigator(phone, reader, "com.tencent.mobileqq", testSelectors, 0)
	h.explorer = New(h.nav, h.session, store, extractor, Options{
		PNGDir: h.pngDir,
		Budget: budget,
		Crop: func(path string, rect executor.Rect) error {
			h.crops = append(h.crops, cropCall{path: path, rect: rect})
			return nil
		},
	})
	return h
}

func contact(name string, pages ...[]string) fakeContact {
	return fakeContact{name: name, pages: pages}
}

func lines(l ...string) []string {
	return l
}
