package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/browserwing/contactwing/models"
	bolt "go.etcd.io/bbolt"
)

var (
	summariesBucket = []byte("contact_summaries")
	detailsBucket   = []byte("contact_details")
)

type BoltDB struct {
	db *bolt.DB
}

func NewBoltDB(dbPath string) (*BoltDB, error) {
	dir := filepath.Dir(dbPath)

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w (directory: %s)", dbPath, err, dir)
	}

	// 创建必要的bucket
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(summariesBucket)
		if err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(detailsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

// Exists 检查联系人概要是否存在
func (b *BoltDB) Exists(ctx context.Context, externalID string) (bool, error) {
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(summariesBucket).Get([]byte(externalID)) != nil
		return nil
	})
	return found, err
}

// InsertSummary 插入联系人概要，已存在时返回 ErrDuplicate
func (b *BoltDB) InsertSummary(ctx context.Context, summary *models.ContactSummary) error {
	if summary.ExternalID == "" {
		return fmt.Errorf("summary without external id")
	}
	now := time.Now()
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(summariesBucket)
		key := []byte(summary.ExternalID)
		if bucket.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicate, summary.ExternalID)
		}
		data, err := summary.ToJSON()
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// InsertDetail 插入联系人详情，概要必须先存在
func (b *BoltDB) InsertDetail(ctx context.Context, externalID string, detail *models.ContactDetail) error {
	now := time.Now()
	detail.ExternalID = externalID
	if detail.CreatedAt.IsZero() {
		detail.CreatedAt = now
	}
	detail.UpdatedAt = now

	return b.db.Update(func(tx *bolt.Tx) error {
		key := []byte(externalID)
		if tx.Bucket(summariesBucket).Get(key) == nil {
			return fmt.Errorf("%w: %s", ErrNoSummary, externalID)
		}
		bucket := tx.Bucket(detailsBucket)
		if bucket.Get(key) != nil {
			return fmt.Errorf("%w: detail %s", ErrDuplicate, externalID)
		}
		data, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// GetContact 获取联系人概要
func (b *BoltDB) GetContact(ctx context.Context, externalID string) (*models.ContactSummary, error) {
	var summary models.ContactSummary
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(summariesBucket).Get([]byte(externalID))
		if data == nil {
			return ErrNotFound
		}
		return summary.FromJSON(data)
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetContactWithDetail 获取联系人概要及详情，详情不存在时 Detail 为 nil
func (b *BoltDB) GetContactWithDetail(ctx context.Context, externalID string) (*models.Contact, error) {
	var contact models.Contact
	err := b.db.View(func(tx *bolt.Tx) error {
		key := []byte(externalID)
		data := tx.Bucket(summariesBucket).Get(key)
		if data == nil {
			return ErrNotFound
		}
		if err := contact.ContactSummary.FromJSON(data); err != nil {
			return err
		}
		if raw := tx.Bucket(detailsBucket).Get(key); raw != nil {
			var detail models.ContactDetail
			if err := json.Unmarshal(raw, &detail); err != nil {
				return err
			}
			contact.Detail = &detail
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// SearchContacts 按条件查询联系人概要
func (b *BoltDB) SearchContacts(ctx context.Context, query models.ContactQuery) ([]*models.ContactSummary, error) {
	var contacts []*models.ContactSummary
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(summariesBucket).ForEach(func(k, v []byte) error {
			var summary models.ContactSummary
			if err := summary.FromJSON(v); err != nil {
				return err
			}
			if query.Matches(&summary) {
				contacts = append(contacts, &summary)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	// 按创建时间倒序排序
	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].CreatedAt.After(contacts[j].CreatedAt)
	})
	if query.Limit > 0 && len(contacts) > query.Limit {
		contacts = contacts[:query.Limit]
	}
	return contacts, nil
}

// UpdateSummary 更新联系人概要
func (b *BoltDB) UpdateSummary(ctx context.Context, externalID string, update models.SummaryUpdate) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(summariesBucket)
		key := []byte(externalID)
		data := bucket.Get(key)
		if data == nil {
			return ErrNotFound
		}
		var summary models.ContactSummary
		if err := summary.FromJSON(data); err != nil {
			return err
		}
		update.Apply(&summary)
		summary.UpdatedAt = time.Now()
		data, err := summary.ToJSON()
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// UpdateDetail 更新联系人详情
func (b *BoltDB) UpdateDetail(ctx context.Context, externalID string, update models.DetailUpdate) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(detailsBucket)
		key := []byte(externalID)
		data := bucket.Get(key)
		if data == nil {
			return ErrNotFound
		}
		var detail models.ContactDetail
		if err := json.Unmarshal(data, &detail); err != nil {
			return err
		}
		update.Apply(&detail)
		detail.UpdatedAt = time.Now()
		data, err := json.Marshal(&detail)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}
