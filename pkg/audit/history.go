package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/foodorder/pkg/repository"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

var ErrInvalidLimit = errors.New("limit must be positive")

type Reader interface {
	ListAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// History reads back the entries written by a Recorder.
type History struct {
	reader Reader
}

func NewHistory(reader Reader) *History {
	return &History{reader: reader}
}

// ForEntity returns the most recent entries for entityID, oldest first.
// A zero limit selects DefaultHistoryLimit; larger limits are capped at
// MaxHistoryLimit.
func (h *History) ForEntity(ctx context.Context, entityID string, limit int) ([]*repository.AuditLog, error) {
	switch {
	case limit < 0:
		return nil, ErrInvalidLimit
	case limit == 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	logs, err := h.reader.ListAuditLogs(ctx, entityID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read audit history: %w", err)
	}
	if logs == nil {
		logs = []*repository.AuditLog{}
	}
	return logs, nil
}
