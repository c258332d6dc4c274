// Package runs persists a ledger of pipeline invocations so partial runs
// leave an inspectable trail.
package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/trialgraph/internal/platform/logger"
)

type Repo interface {
	Begin(ctx context.Context, stage string) (*PipelineRun, error)
	Finish(ctx context.Context, id uuid.UUID, status string, counters any, runErr error) error
	Recent(ctx context.Context, limit int) ([]*PipelineRun, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open opens (and migrates) the sqlite ledger at path.
func Open(path string, baseLog *logger.Logger) (Repo, error) {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("runs: open ledger %s: %w", path, err)
	}
	if err := db.AutoMigrate(&PipelineRun{}); err != nil {
		return nil, fmt.Errorf("runs: migrate ledger: %w", err)
	}
	return &repo{db: db, log: baseLog.With("repo", "PipelineRunRepo")}, nil
}

func (r *repo) Begin(ctx context.Context, stage string) (*PipelineRun, error) {
	run := &PipelineRun{
		ID:        uuid.New(),
		Stage:     stage,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *repo) Finish(ctx context.Context, id uuid.UUID, status string, counters any, runErr error) error {
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now().UTC(),
	}
	if counters != nil {
		raw, err := json.Marshal(counters)
		if err != nil {
			return err
		}
		updates["counters"] = raw
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}
	return r.db.WithContext(ctx).
		Model(&PipelineRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repo) Recent(ctx context.Context, limit int) ([]*PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []*PipelineRun
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
