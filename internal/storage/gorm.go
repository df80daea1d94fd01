package storage

import (
	"errors"
	"fmt"
	"gamewarden/internal/domain"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const DefaultHistoryLimit = 20

type Operation struct {
	ID         string `gorm:"primaryKey"`
	Server     string `gorm:"index"`
	Intent     string
	Status     string
	Endpoint   string
	Output     string
	Error      string
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
}

type GormStore struct {
	db *gorm.DB

	// Keep caps how many operations are retained per server. Zero keeps all.
	Keep int
}

func NewGormStore(path string, logger *slog.Logger) (*GormStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	newLogger := gormlogger.New(
		slog.NewLogLogger(logger.With("component", "gorm").Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
			LogLevel:                  gormlogger.Error,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newLogger})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Operation{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) RecordOperation(res domain.Result) error {
	op := &Operation{
		ID:         res.ID,
		Server:     res.Server,
		Intent:     string(res.Intent),
		Status:     string(res.Status),
		Endpoint:   res.Endpoint,
		Output:     res.Output,
		Error:      res.Error,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if err := s.db.Create(op).Error; err != nil {
		return fmt.Errorf("error saving operation: %w", err)
	}

	if s.Keep > 0 {
		if err := s.prune(res.Server, s.Keep); err != nil {
			return fmt.Errorf("error pruning history: %w", err)
		}
	}
	return nil
}

func (s *GormStore) prune(server string, keep int) error {
	newest := s.db.Model(&Operation{}).
		Select("id").
		Where("server = ?", server).
		Order("started_at DESC").
		Limit(keep)

	return s.db.
		Where("server = ? AND id NOT IN (?)", server, newest).
		Delete(&Operation{}).Error
}

// ListOperations returns the newest operations for server first.
func (s *GormStore) ListOperations(server string, limit int) ([]domain.Result, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var ops []Operation
	err := s.db.
		Where("server = ?", server).
		Order("started_at DESC").
		Limit(limit).
		Find(&ops).Error
	if err != nil {
		return nil, err
	}

	results := make([]domain.Result, 0, len(ops))
	for _, op := range ops {
		results = append(results, op.toDomain())
	}
	return results, nil
}

func (s *GormStore) GetOperation(id string) (*domain.Result, error) {
	var op Operation
	result := s.db.First(&op, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying operation: %w", result.Error)
	}

	res := op.toDomain()
	return &res, nil
}

func (op Operation) toDomain() domain.Result {
	return domain.Result{
		ID:         op.ID,
		Server:     op.Server,
		Intent:     domain.Intent(op.Intent),
		Status:     domain.Status(op.Status),
		Endpoint:   op.Endpoint,
		Output:     op.Output,
		Error:      op.Error,
		StartedAt:  op.StartedAt.UTC(),
		FinishedAt: op.FinishedAt.UTC(),
	}
}
