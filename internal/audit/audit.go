// Package audit persists an append-only trail of circulation operations and
// mirrors each entry to structured logs.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

const emptyDetailJSON = "{}"

// Row represents the audit_log table.
type Row struct {
	AuditID     string `gorm:"type:uuid;primaryKey"`
	Operation   string `gorm:"not null;index:idx_audit_operation"`
	ActorID     string `gorm:"index:idx_audit_actor"`
	BookID      string
	AmountCents int64
	Status      string         `gorm:"not null"`
	Detail      datatypes.JSON `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null"`
}

func (Row) TableName() string { return "audit_log" }

func (row *Row) BeforeCreate(tx *gorm.DB) error {
	if row.AuditID == "" {
		row.AuditID = uuid.NewString()
	}
	return nil
}

// Logger implements library.OperationLogger on top of a database trail and a
// zap mirror. Persistence failures are logged and swallowed; an audit outage
// must not fail the operation it describes.
type Logger struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewLogger returns a Logger writing to db and mirroring to log.
func NewLogger(db *gorm.DB, log *zap.Logger) *Logger {
	return &Logger{db: db, log: log}
}

// LogOperation records one operation entry.
func (logger *Logger) LogOperation(ctx context.Context, entry library.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("actor_id", entry.ActorID.String()),
		zap.String("book_id", entry.BookID.String()),
		zap.Int64("amount_cents", entry.Amount.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		logger.log.Warn("operation failed", fields...)
	} else {
		logger.log.Info("operation completed", fields...)
	}

	row := Row{
		Operation:   entry.Operation,
		ActorID:     entry.ActorID.String(),
		BookID:      entry.BookID.String(),
		AmountCents: entry.Amount.Int64(),
		Status:      entry.Status,
		Detail:      detailJSON(entry),
		CreatedAt:   time.Now().UTC(),
	}
	if err := logger.db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.log.Error("audit insert failed", zap.String("operation", entry.Operation), zap.Error(err))
	}
}

func detailJSON(entry library.OperationLog) datatypes.JSON {
	detail := map[string]string{}
	if entry.Error != nil {
		detail["error"] = entry.Error.Error()
	}
	encoded, err := json.Marshal(detail)
	if err != nil {
		return datatypes.JSON([]byte(emptyDetailJSON))
	}
	return datatypes.JSON(encoded)
}
