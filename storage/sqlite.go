package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/browserwing/contactwing/models"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS contact_summaries (
	external_id       TEXT PRIMARY KEY,
	nickname          TEXT NOT NULL DEFAULT '',
	gender            TEXT NOT NULL DEFAULT '',
	age               INTEGER NOT NULL DEFAULT 0,
	location          TEXT NOT NULL DEFAULT '',
	from_location     TEXT NOT NULL DEFAULT '',
	remark            TEXT NOT NULL DEFAULT '',
	explore_condition TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS contact_details (
	external_id TEXT PRIMARY KEY REFERENCES contact_summaries(external_id),
	description TEXT NOT NULL DEFAULT '',
	photo_path  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
`

const summaryColumns = `external_id, nickname, gender, age, location, from_location, remark, explore_condition, created_at, updated_at`

// SQLiteDB 关系型存储：概要与详情两张表，详情通过外键依赖概要
type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	// 单写者
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Exists 检查联系人概要是否存在
func (s *SQLiteDB) Exists(ctx context.Context, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM contact_summaries WHERE external_id = ?`, externalID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertSummary 插入联系人概要
func (s *SQLiteDB) InsertSummary(ctx context.Context, summary *models.ContactSummary) error {
	if summary.ExternalID == "" {
		return fmt.Errorf("summary without external id")
	}
	exists, err := s.Exists(ctx, summary.ExternalID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, summary.ExternalID)
	}

	now := time.Now()
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contact_summaries (`+summaryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ExternalID, summary.Nickname, summary.Gender, summary.Age, summary.Location,
		summary.FromLocation, summary.Remark, summary.ExploreCondition, summary.CreatedAt, summary.UpdatedAt,
	)
	return err
}

// InsertDetail 插入联系人详情，概要必须先存在
func (s *SQLiteDB) InsertDetail(ctx context.Context, externalID string, detail *models.ContactDetail) error {
	exists, err := s.Exists(ctx, externalID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoSummary, externalID)
	}

	now := time.Now()
	detail.ExternalID = externalID
	if detail.CreatedAt.IsZero() {
		detail.CreatedAt = now
	}
	detail.UpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contact_details (external_id, description, photo_path, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		externalID, detail.Description, detail.PhotoPath, detail.CreatedAt, detail.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return fmt.Errorf("%w: detail %s", ErrDuplicate, externalID)
	}
	return err
}

func scanSummary(row interface{ Scan(...any) error }) (*models.ContactSummary, error) {
	var c models.ContactSummary
	err := row.Scan(&c.ExternalID, &c.Nickname, &c.Gender, &c.Age, &c.Location,
		&c.FromLocation, &c.Remark, &c.ExploreCondition, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContact 获取联系人概要
func (s *SQLiteDB) GetContact(ctx context.Context, externalID string) (*models.ContactSummary, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM contact_summaries WHERE external_id = ?`, externalID)
	c, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// GetContactWithDetail 左连接详情表，详情缺失时 Detail 为 nil
func (s *SQLiteDB) GetContactWithDetail(ctx context.Context, externalID string) (*models.Contact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.external_id, f.nickname, f.gender, f.age, f.location, f.from_location, f.remark,
		       f.explore_condition, f.created_at, f.updated_at,
		       d.description, d.photo_path, d.created_at, d.updated_at
		FROM contact_summaries f
		LEFT JOIN contact_details d ON f.external_id = d.external_id
		WHERE f.external_id = ?`, externalID)

	var (
		c                  models.Contact
		description, photo sql.NullString
		dCreated, dUpdated sql.NullTime
	)
	err := row.Scan(&c.ExternalID, &c.Nickname, &c.Gender, &c.Age, &c.Location, &c.FromLocation,
		&c.Remark, &c.ExploreCondition, &c.CreatedAt, &c.UpdatedAt,
		&description, &photo, &dCreated, &dUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if description.Valid {
		c.Detail = &models.ContactDetail{
			ExternalID:  c.ExternalID,
			Description: description.String,
			PhotoPath:   photo.String,
			CreatedAt:   dCreated.Time,
			UpdatedAt:   dUpdated.Time,
		}
	}
	return &c, nil
}

// SearchContacts 按条件查询联系人概要
func (s *SQLiteDB) SearchContacts(ctx context.Context, query models.ContactQuery) ([]*models.ContactSummary, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(column string, value any) {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	if query.Gender != "" {
		add("gender", query.Gender)
	}
	if query.Location != "" {
		add("location", query.Location)
	}
	if query.FromLocation != "" {
		add("from_location", query.FromLocation)
	}
	if query.ExploreCondition != "" {
		add("explore_condition", query.ExploreCondition)
	}
	if query.Age > 0 {
		add("age", query.Age)
	}

	stmt := `SELECT ` + summaryColumns + ` FROM contact_summaries`
	if len(conditions) > 0 {
		stmt += " WHERE " + strings.Join(conditions, " AND ")
	}
	stmt += " ORDER BY created_at DESC"
	if query.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*models.ContactSummary
	for rows.Next() {
		c, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// UpdateSummary 更新联系人概要
func (s *SQLiteDB) UpdateSummary(ctx context.Context, externalID string, update models.SummaryUpdate) error {
	current, err := s.GetContact(ctx, externalID)
	if err != nil {
		return err
	}
	update.Apply(current)
	_, err = s.db.ExecContext(ctx, `
		UPDATE contact_summaries
		SET nickname = ?, gender = ?, age = ?, location = ?, from_location = ?, remark = ?, updated_at = ?
		WHERE external_id = ?`,
		current.Nickname, current.Gender, current.Age, current.Location, current.FromLocation,
		current.Remark, time.Now(), externalID,
	)
	return err
}

// UpdateDetail 更新联系人详情
func (s *SQLiteDB) UpdateDetail(ctx context.Context, externalID string, update models.DetailUpdate) error {
	contact, err := s.GetContactWithDetail(ctx, externalID)
	if err != nil {
		return err
	}
	if contact.Detail == nil {
		return ErrNotFound
	}
	update.Apply(contact.Detail)
	_, err = s.db.ExecContext(ctx,
		`UPDATE contact_details SET description = ?, photo_path = ?, updated_at = ? WHERE external_id = ?`,
		contact.Detail.Description, contact.Detail.PhotoPath, time.Now(), externalID,
	)
	return err
}
