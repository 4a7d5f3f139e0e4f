package store

import (
	"context"
	"errors"

	"github.com/brahimbus/FcmControll/internal/model"
)

var ErrNotFound = errors.New("message not found")

type MessageStore interface {
	Create(ctx context.Context, msg model.ScheduledMessage) (int64, error)
	Get(ctx context.Context, id int64) (model.ScheduledMessage, error)
	ListActive(ctx context.Context) ([]model.ScheduledMessage, error)
	SetStatus(ctx context.Context, id int64, status model.Status) error
	AppendHistory(ctx context.Context, entry model.HistoryEntry) (int64, error)
	ListHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}
