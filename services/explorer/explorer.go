package explorer

import (
	"context"
	"time"

	"github.com/browserwing/contactwing/executor"
	"github.com/browserwing/contactwing/models"
	"github.com/browserwing/contactwing/pkg/logger"
)

// ImageCropper 将截图裁剪到 rect 区域
type ImageCropper func(path string, rect executor.Rect) error

// RetryBudget 运行的重试与翻页上限
type RetryBudget struct {
	MaxPasses      int           // 最大轮数，重复次数超过该值时停止
	MaxReadCycles  int           // 资料页翻动次数
	MaxPageScrolls int           // 每轮结果列表最多翻页次数
	Backoff        time.Duration // 每轮之间以及初始化失败后的等待
}

// DefaultRetryBudget 默认预算
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{
		MaxPasses:      1000,
		MaxReadCycles:  3,
		MaxPageScrolls: 100,
		Backoff:        10 * time.Second,
	}
}

// Exhausted 重复次数超过轮数上限，认为已没有新联系人
func (b RetryBudget) Exhausted(repetitions int) bool {
	return b.MaxPasses > 0 && repetitions > b.MaxPasses
}

// Options 探索器参数
type Options struct {
	PNGDir string // 头像保存目录
	Budget RetryBudget
	Crop   ImageCropper // 为空时不裁剪
}

// PassResult 一轮探索的统计
type PassResult struct {
	Windows    int
	Persisted  int
	Duplicates int
	Failures   int
	Exhausted  bool
}

// Explorer 单轮探索的状态机
type Explorer struct {
	nav       *executor.Navigator
	session   *Session
	store     ContactStore
	extractor *Extractor
	budget    RetryBudget
	pngDir    string
	crop      ImageCropper
}

// New 创建探索器
func New(nav *executor.Navigator, session *Session, store ContactStore, extractor *Extractor, opts Options) *Explorer {
	budget := opts.Budget
	defaults := DefaultRetryBudget()
	if budget.MaxReadCycles <= 0 {
		budget.MaxReadCycles = defaults.MaxReadCycles
	}
	if budget.MaxPageScrolls <= 0 {
		budget.MaxPageScrolls = defaults.MaxPageScrolls
	}
	return &Explorer{
		nav:       nav,
		session:   session,
		store:     store,
		extractor: extractor,
		budget:    budget,
		pngDir:    opts.PNGDir,
		crop:      opts.Crop,
	}
}

// Session 运行会话
func (e *Explorer) Session() *Session {
	return e.session
}

// RunPass 执行一轮：查找 → 读取列表 → 逐个处理 → 翻页，直到列表没有新联系人
func (e *Explorer) RunPass(ctx context.Context) (PassResult, error) {
	var result PassResult

	e.session.setState(StateSearching)
	logger.Info(ctx, "Searching with filter %q", e.session.Filter())
	if err := e.nav.Search(ctx); err != nil {
		return result, err
	}

	for {
		e.session.setState(StateListing)
		candidates, err := e.ListCandidates(ctx)
		if err != nil {
			return result, err
		}
		result.Windows++
		if len(candidates) == 0 {
			logger.Info(ctx, "No new candidates in window %d, pass done", result.Windows)
			e.session.setState(StateDone)
			return result, nil
		}
		logger.Info(ctx, "Window %d: %d candidates", result.Windows, len(candidates))

		handled := 0
		for _, c := range candidates {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			out := e.ProcessCandidate(ctx, c)
			switch e.handleOutcome(ctx, c, out) {
			case OutcomeSuccess:
				handled++
				result.Persisted++
			case OutcomeDuplicate:
				result.Duplicates++
			case OutcomeFailure:
				handled++
				result.Failures++
			}
			if e.budget.Exhausted(e.session.Dedup.RepetitionCount()) {
				result.Exhausted = true
				e.session.setState(StateDone)
				return result, nil
			}
		}

		// 本屏全部已存在时不再翻页，失败的候选人仍算作新处理
		if handled == 0 {
			logger.Info(ctx, "Window %d yielded only known contacts, pass done", result.Windows)
			e.session.setState(StateDone)
			return result, nil
		}
		if result.Windows >= e.budget.MaxPageScrolls {
			logger.Warn(ctx, "Reached page scroll limit (%d), pass done", e.budget.MaxPageScrolls)
			e.session.setState(StateDone)
			return result, nil
		}

		e.session.setState(StateAdvancing)
		if err := e.nav.NextWindow(ctx); err != nil {
			return result, err
		}
	}
}

// ListCandidates 读取当前屏幕的联系人昵称，过滤本轮已访问的和屏内重复的
func (e *Explorer) ListCandidates(ctx context.Context) ([]Candidate, error) {
	snap, err := e.nav.Reader().Capture(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var candidates []Candidate
	for _, el := range executor.Find(snap, e.nav.Selectors().FriendList) {
		name := el.Text()
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if e.session.Dedup.IsExplored(name) {
			logger.Debug(ctx, "Skip explored candidate %q", name)
			continue
		}
		candidates = append(candidates, Candidate{Name: name})
	}
	return candidates, nil
}

func (e *Explorer) handleOutcome(ctx context.Context, c Candidate, out Outcome) OutcomeKind {
	switch out.Kind {
	case OutcomeSuccess:
		e.session.recordPersisted()
		logger.Info(ctx, "✓ Contact %q (%s) saved", c.Name, out.ExternalID)
	case OutcomeDuplicate:
		n := e.session.Dedup.RecordRepetition()
		logger.Info(ctx, "Contact %q (%s) already exists, repetitions: %d", c.Name, out.ExternalID, n)
	case OutcomeFailure:
		e.session.recordFailure(out.Err)
		logger.Error(ctx, "Failed to explore %q (%s): %v", c.Name, out.Failure, out.Err)
	}
	return out.Kind
}

// ProcessCandidate 打开资料页，读取、截取头像并保存；资料页打开后总会返回列表
func (e *Explorer) ProcessCandidate(ctx context.Context, c Candidate) Outcome {
	e.session.Dedup.MarkExplored(c.Name)

	e.session.setState(StateOpening)
	logger.Info(ctx, "Opening %q", c.Name)
	opened, err := e.nav.OpenCandidate(ctx, c.Name)
	if opened {
		defer func() {
			e.session.setState(StateClosing)
			if err := e.nav.Back(ctx); err != nil {
				logger.Warn(ctx, "Failed to return to list: %v", err)
			}
		}()
	}
	if err != nil {
		return Failure(FailureNavigation, err)
	}

	e.session.setState(StateReading)
	profile, out, ok := e.readProfile(ctx, c)
	if !ok {
		return out
	}

	e.session.setState(StateAvatar)
	if err := e.captureAvatar(ctx, profile); err != nil {
		logger.Warn(ctx, "%v, saving without avatar", err)
	}

	e.session.setState(StatePersisting)
	return e.persist(ctx, profile)
}

// readProfile 逐屏读取资料页文本，一旦得到新的 QQ 号立即查重
func (e *Explorer) readProfile(ctx context.Context, c Candidate) (*Profile, Outcome, bool) {
	var text executor.TextCollector
	var id string
	labeled := false
	scrolled := 0

	for cycle := 1; cycle <= e.budget.MaxReadCycles; cycle++ {
		snap, err := e.nav.Reader().Capture(ctx)
		if err != nil {
			return nil, Failure(FailureSnapshot, err), false
		}
		text.Add(snap)

		// 带标签的号码出现后不再被裸数字覆盖
		found, isLabeled := e.extractor.ExternalID(text.Text())
		if found != "" && found != id && (isLabeled || !labeled) {
			id, labeled = found, isLabeled
			logger.Info(ctx, "Resolved external id %s for %q (labeled: %v)", id, c.Name, labeled)
			exists, err := e.session.Dedup.ExistsInStore(ctx, id)
			if err != nil {
				return nil, Failure(FailurePersistence, &PersistenceFailure{ExternalID: id, Op: "exists", Err: err}), false
			}
			if exists {
				return nil, Duplicate(id), false
			}
		}

		// 最后一屏读完后不再下滑
		if cycle == e.budget.MaxReadCycles {
			break
		}
		if err := e.nav.ScrollDetail(ctx); err != nil {
			logger.Warn(ctx, "Scroll cycle %d failed: %v", cycle, err)
			continue
		}
		scrolled++
	}

	if scrolled > 0 {
		if err := e.nav.ScrollToTop(ctx, scrolled); err != nil {
			logger.Warn(ctx, "Failed to scroll back to top: %v", err)
		}
	}

	if id == "" {
		return nil, Failure(FailureExtraction, &ExtractionFailure{Name: c.Name, Cycles: e.budget.MaxReadCycles}), false
	}

	raw := text.Text()
	return &Profile{
		ExternalID:      id,
		Nickname:        c.Name,
		RawIntroduction: raw,
		Fields:          e.extractor.Extract(raw),
	}, Outcome{}, true
}

// captureAvatar 打开大头像，截屏并裁剪为 <png>/<id>.png
func (e *Explorer) captureAvatar(ctx context.Context, p *Profile) error {
	if e.pngDir == "" {
		return nil
	}
	opened, err := e.nav.OpenAvatar(ctx)
	if opened {
		defer func() {
			if err := e.nav.Back(ctx); err != nil {
				logger.Warn(ctx, "Failed to leave avatar view: %v", err)
			}
		}()
	}
	if err != nil {
		return &AvatarError{ExternalID: p.ExternalID, Err: err}
	}

	snap, err := e.nav.Reader().Capture(ctx)
	if err != nil {
		return &AvatarError{ExternalID: p.ExternalID, Err: err}
	}
	sel := e.nav.Selectors().AvatarImage
	images := executor.Find(snap, sel)
	if len(images) == 0 {
		return &AvatarError{ExternalID: p.ExternalID, Err: &executor.ElementNotFoundError{Attr: sel.Attr, Value: sel.Value}}
	}
	rect, err := images[0].Bounds()
	if err != nil {
		return &AvatarError{ExternalID: p.ExternalID, Err: err}
	}

	path, err := e.nav.Screenshot(ctx, p.ExternalID, e.pngDir)
	if err != nil {
		return &AvatarError{ExternalID: p.ExternalID, Err: err}
	}
	if e.crop != nil {
		if err := e.crop(path, rect); err != nil {
			return &AvatarError{ExternalID: p.ExternalID, Err: err}
		}
	}
	p.AvatarPath = path
	logger.Info(ctx, "Avatar saved to %s", path)
	return nil
}

// persist 写入前再次查重，概要和详情依次写入
func (e *Explorer) persist(ctx context.Context, p *Profile) Outcome {
	exists, err := e.session.Dedup.ExistsInStore(ctx, p.ExternalID)
	if err != nil {
		return Failure(FailurePersistence, &PersistenceFailure{ExternalID: p.ExternalID, Op: "exists", Err: err})
	}
	if exists {
		return Duplicate(p.ExternalID)
	}

	summary := &models.ContactSummary{
		ExternalID:       p.ExternalID,
		Nickname:         p.Nickname,
		Gender:           p.Gender,
		Age:              p.Age,
		Location:         p.CurrentLocation,
		FromLocation:     p.OriginLocation,
		Remark:           p.Remark,
		ExploreCondition: e.session.Filter(),
	}
	if err := e.store.InsertSummary(ctx, summary); err != nil {
		return Failure(FailurePersistence, &PersistenceFailure{ExternalID: p.ExternalID, Op: "insert summary", Err: err})
	}
	detail := &models.ContactDetail{
		ExternalID:  p.ExternalID,
		Description: p.RawIntroduction,
		PhotoPath:   p.AvatarPath,
	}
	if err := e.store.InsertDetail(ctx, p.ExternalID, detail); err != nil {
		return Failure(FailurePersistence, &PersistenceFailure{ExternalID: p.ExternalID, Op: "insert detail", Err: err})
	}

	e.session.Dedup.AddProfile(p)
	return Success(p)
}
