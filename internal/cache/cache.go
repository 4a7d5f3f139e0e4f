package cache

import (
	"context"
	"time"

	"github.com/brahimbus/FcmControll/internal/model"
)

type AttemptCache interface {
	StoreAttempt(ctx context.Context, messageID int64, status model.HistoryStatus, detail string, sentAt time.Time) error
}
