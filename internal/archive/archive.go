// Package archive records finished sessions for later audit. Nothing here is
// ever read back into a live room.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/carbon-ledger-backend/internal/engine"
)

// Summary is the final state of a session at the moment it ended.
type Summary struct {
	Code        string
	PlayerCount int
	EndedAt     time.Time
	Roles       []engine.Role
	Ledger      engine.Ledger
}

type Archiver interface {
	Archive(ctx context.Context, s Summary) error
	Close() error
}

// Nop discards every summary. It is used when no database is configured.
type Nop struct{}

func (Nop) Archive(context.Context, Summary) error { return nil }
func (Nop) Close() error                           { return nil }

type SessionRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"size:16;index"`
	PlayerCount int
	EndedAt     time.Time       `gorm:"index"`
	Accounts    []AccountRecord `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	TotalMoney  int64
	TotalCarbon int64
}

func (SessionRecord) TableName() string { return "archived_sessions" }

type AccountRecord struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID uint   `gorm:"index"`
	Position  int    // role order within the session
	Role      string `gorm:"size:64"`
	Money     int64
	Carbon    int64
}

func (AccountRecord) TableName() string { return "archived_accounts" }

// Store writes summaries to Postgres through gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn and migrates the archive tables.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	s := &Store{db: db}
	if err := db.AutoMigrate(&SessionRecord{}, &AccountRecord{}); err != nil {
		return nil, multierr.Append(fmt.Errorf("migrate archive: %w", err), s.Close())
	}
	return s, nil
}

func (s *Store) Archive(ctx context.Context, sum Summary) error {
	rec := NewSessionRecord(sum)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("archive session %s: %w", sum.Code, err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewSessionRecord flattens a summary into rows, accounts in role order.
func NewSessionRecord(sum Summary) SessionRecord {
	totals := sum.Ledger.Totals()
	rec := SessionRecord{
		Code:        sum.Code,
		PlayerCount: sum.PlayerCount,
		EndedAt:     sum.EndedAt,
		TotalMoney:  totals.Money,
		TotalCarbon: totals.Carbon,
		Accounts:    make([]AccountRecord, 0, len(sum.Roles)),
	}
	for i, role := range sum.Roles {
		acct := sum.Ledger[role]
		rec.Accounts = append(rec.Accounts, AccountRecord{
			Position: i,
			Role:     string(role),
			Money:    acct.Money,
			Carbon:   acct.Carbon,
		})
	}
	return rec
}
