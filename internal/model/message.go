package model

import "time"

type Status string

const (
	Active    Status = "active"
	Cancelled Status = "cancelled"
)

type HistoryStatus string

const (
	Success HistoryStatus = "success"
	Error   HistoryStatus = "error"
)

// ScheduledMessage is a planned or daily-recurring topic broadcast.
// SendTime is "HH:MM"; StartDate and EndDate are "YYYY-MM-DD", EndDate
// empty means open-ended.
type ScheduledMessage struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	SendTime  string `json:"send_time"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	LoopDaily bool   `json:"loop_daily"`
	Status    Status `json:"status"`
}

// HistoryEntry is an append-only record of one dispatch attempt.
// SentTime is the actual fire time, not the scheduled one.
type HistoryEntry struct {
	ID       int64         `json:"id"`
	Content  string        `json:"content"`
	SentTime time.Time     `json:"sent_time"`
	Status   HistoryStatus `json:"status"`
	Detail   string        `json:"detail,omitempty"`
}
