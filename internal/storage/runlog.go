package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunLog 每次定时采集的执行记录
type RunLog struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	Job        string            `gorm:"size:64;index" json:"job"`
	Keyword    string            `gorm:"size:256" json:"keyword"`
	Outcome    string            `gorm:"size:64" json:"outcome"`
	Requests   int               `json:"requests"`
	Records    int               `json:"records"`
	Partial    bool              `json:"partial"`
	Error      string            `gorm:"type:text" json:"error"`
	Detail     datatypes.JSONMap `json:"detail"`
	StartedAt  time.Time         `gorm:"index" json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// RunRecorder 由支持执行记录的存储实现
type RunRecorder interface {
	RecordRun(ctx context.Context, name string, r *RunLog) error
}

func (s *SQLStore) RecordRun(ctx context.Context, name string, r *RunLog) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return s.withConn(ctx, name, func(db *gorm.DB) error {
		if err := db.AutoMigrate(&RunLog{}); err != nil {
			return err
		}
		return db.Create(r).Error
	})
}

// ListRuns 按开始时间倒序返回最近的执行记录
func (s *SQLStore) ListRuns(ctx context.Context, name string, limit int) ([]RunLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var list []RunLog
	err := s.withConn(ctx, name, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(&RunLog{}) {
			return nil
		}
		return db.Order("started_at DESC").Limit(limit).Find(&list).Error
	})
	return list, err
}
