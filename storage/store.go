package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/browserwing/contactwing/models"
)

var (
	ErrNotFound  = errors.New("contact not found")
	ErrDuplicate = errors.New("contact already exists")
	ErrNoSummary = errors.New("contact summary must exist before detail")
)

// Store 联系人存储，由 ExternalID 唯一标识
type Store interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	InsertSummary(ctx context.Context, summary *models.ContactSummary) error
	InsertDetail(ctx context.Context, externalID string, detail *models.ContactDetail) error
	GetContact(ctx context.Context, externalID string) (*models.ContactSummary, error)
	GetContactWithDetail(ctx context.Context, externalID string) (*models.Contact, error)
	SearchContacts(ctx context.Context, query models.ContactQuery) ([]*models.ContactSummary, error)
	UpdateSummary(ctx context.Context, externalID string, update models.SummaryUpdate) error
	UpdateDetail(ctx context.Context, externalID string, update models.DetailUpdate) error
	Close() error
}

// Open 根据驱动名打开存储
func Open(driver, path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	switch driver {
	case "", "bolt":
		return NewBoltDB(path)
	case "sqlite":
		return NewSQLiteDB(path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
