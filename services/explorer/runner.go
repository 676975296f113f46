package explorer

import (
	"context"
	"errors"
	"time"

	"github.com/browserwing/contactwing/config"
	"github.com/browserwing/contactwing/executor"
	"github.com/browserwing/contactwing/pkg/logger"
)

// BudgetFromConfig 从配置构造重试预算
func BudgetFromConfig(cfg *config.ExplorerConfig) RetryBudget {
	b := RetryBudget{
		MaxPasses:      cfg.MaxPasses,
		MaxReadCycles:  cfg.MaxReadCycles,
		MaxPageScrolls: cfg.MaxPageScrolls,
		Backoff:        cfg.Backoff(),
	}
	d := DefaultRetryBudget()
	if b.MaxPasses <= 0 {
		b.MaxPasses = d.MaxPasses
	}
	if b.MaxReadCycles <= 0 {
		b.MaxReadCycles = d.MaxReadCycles
	}
	if b.MaxPageScrolls <= 0 {
		b.MaxPageScrolls = d.MaxPageScrolls
	}
	if b.Backoff < 0 {
		b.Backoff = 0
	}
	return b
}

// Runner 多轮探索：每轮重置去重状态、初始化到查找页面，再执行单轮状态机
type Runner struct {
	explorer *Explorer
	nav      *executor.Navigator
	budget   RetryBudget
	sleepFor func(ctx context.Context, d time.Duration) error
}

// NewRunner 创建运行器
func NewRunner(explorer *Explorer, nav *executor.Navigator, budget RetryBudget) *Runner {
	return &Runner{explorer: explorer, nav: nav, budget: budget, sleepFor: executor.Sleep}
}

// Run 执行直到轮数用完、重复次数超限或 ctx 被取消
func (r *Runner) Run(ctx context.Context) error {
	session := r.explorer.Session()
	ctx = logger.WithTraceID(ctx, session.RunID())
	logger.Info(ctx, "Exploration run %s started (filter: %q, max passes: %d)", session.RunID(), session.Filter(), r.budget.MaxPasses)

	for pass := 1; pass <= r.budget.MaxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			session.setState(StateStopped)
			return err
		}
		if r.budget.Exhausted(session.Dedup.RepetitionCount()) {
			break
		}

		n := session.beginPass()
		session.Dedup.Reset()
		logger.Info(ctx, "Pass %d/%d", n, r.budget.MaxPasses)

		session.setState(StateInit)
		if err := r.nav.Init(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				session.setState(StateStopped)
				return err
			}
			session.recordFailure(err)
			logger.Error(ctx, "Initialization failed: %v, retrying in %s", err, r.budget.Backoff)
			if err := r.backoff(ctx); err != nil {
				return err
			}
			continue
		}

		result, err := r.explorer.RunPass(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				session.setState(StateStopped)
				return err
			}
			session.recordFailure(err)
			logger.Error(ctx, "Pass %d aborted: %v", n, err)
		} else {
			logger.Info(ctx, "✓ Pass %d finished: %d windows, %d saved, %d duplicates, %d failures",
				n, result.Windows, result.Persisted, result.Duplicates, result.Failures)
		}
		if result.Exhausted {
			break
		}
		if pass < r.budget.MaxPasses {
			if err := r.backoff(ctx); err != nil {
				return err
			}
		}
	}

	status := session.Status()
	if r.budget.Exhausted(status.Repetitions) {
		logger.Info(ctx, "Repetitions %d exceeded %d, no more new contacts", status.Repetitions, r.budget.MaxPasses)
	}
	session.setState(StateDone)
	logger.Info(ctx, "✓ Exploration finished: %d passes, %d saved, %d repetitions", status.Pass, status.Persisted, status.Repetitions)
	return nil
}

func (r *Runner) backoff(ctx context.Context) error {
	r.explorer.Session().setState(StateBackoff)
	if err := r.sleepFor(ctx, r.budget.Backoff); err != nil {
		r.explorer.Session().setState(StateStopped)
		return err
	}
	return nil
}
