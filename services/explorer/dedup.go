package explorer

import (
	"context"
	"sync"

	"github.com/browserwing/contactwing/models"
)

// ContactStore 探索过程需要的存储能力
type ContactStore interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	InsertSummary(ctx context.Context, summary *models.ContactSummary) error
	InsertDetail(ctx context.Context, externalID string, detail *models.ContactDetail) error
}

// DedupTracker 记录本轮已访问的昵称和跨轮次的重复计数
type DedupTracker struct {
	mu          sync.RWMutex
	store       ContactStore
	explored    map[string]struct{}
	profiles    []*Profile
	repetitions int
}

// NewDedupTracker 创建去重器
func NewDedupTracker(store ContactStore) *DedupTracker {
	return &DedupTracker{store: store, explored: make(map[string]struct{})}
}

// MarkExplored 标记昵称已访问
func (d *DedupTracker) MarkExplored(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.explored[name] = struct{}{}
}

// IsExplored 本轮是否已访问
func (d *DedupTracker) IsExplored(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.explored[name]
	return ok
}

// ExploredCount 本轮已访问数量
func (d *DedupTracker) ExploredCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.explored)
}

// ExistsInStore 查询数据库
func (d *DedupTracker) ExistsInStore(ctx context.Context, externalID string) (bool, error) {
	return d.store.Exists(ctx, externalID)
}

// RecordRepetition 遇到一个已存在的联系人
func (d *DedupTracker) RecordRepetition() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.repetitions++
	return d.repetitions
}

// RepetitionCount 累计重复次数
func (d *DedupTracker) RepetitionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.repetitions
}

// AddProfile 记录本轮保存的联系人
func (d *DedupTracker) AddProfile(p *Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles = append(d.profiles, p)
}

// Profiles 本轮保存的联系人
func (d *DedupTracker) Profiles() []*Profile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Profile(nil), d.profiles...)
}

// Reset 开始新一轮，重复计数保留
func (d *DedupTracker) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.explored = make(map[string]struct{})
	d.profiles = nil
}
