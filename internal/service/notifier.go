package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/brahimbus/FcmControll/internal/cache"
	"github.com/brahimbus/FcmControll/internal/model"
	"github.com/brahimbus/FcmControll/internal/store"
)

// ErrValidation marks a request rejected before any persistence.
var ErrValidation = errors.New("invalid request")

const dateLayout = "2006-01-02"

// DeliveryClient pushes a payload to the broadcast topic. It reports
// the outcome instead of returning an error; detail carries the
// wire-level response text either way.
type DeliveryClient interface {
	Send(ctx context.Context, content string) (ok bool, detail string)
}

// Trigger is the scheduler surface the notifier drives. Registration
// replaces an existing trigger under the same job id; Cancel on an
// unknown id is a no-op.
type Trigger interface {
	ScheduleDaily(jobID string, hour, minute int, fn func()) error
	ScheduleOnce(jobID string, at time.Time, fn func()) error
	Cancel(jobID string)
}

type ScheduleRequest struct {
	Content   string `json:"content"`
	SendTime  string `json:"send_time"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	LoopDaily bool   `json:"loop_daily"`
}

type DispatchResult struct {
	Status   model.HistoryStatus `json:"status"`
	Response string              `json:"response"`
}

// Notifier owns the scheduled-message lifecycle: it creates store
// rows and triggers together, cancels them together, and records
// every dispatch attempt in history exactly once.
type Notifier struct {
	store        store.MessageStore
	sched        Trigger
	client       DeliveryClient
	attempts     cache.AttemptCache
	historyLimit int
	now          func() time.Time
}

func NewNotifier(st store.MessageStore, sched Trigger, client DeliveryClient, historyLimit int) *Notifier {
	return &Notifier{
		store:        st,
		sched:        sched,
		client:       client,
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

func (n *Notifier) WithAttemptCache(c cache.AttemptCache) *Notifier {
	n.attempts = c
	return n
}

func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// CreateScheduled validates the request, persists the row, and
// registers the trigger. A trigger-registration failure is logged and
// does not undo the insert: the row stays visible and cancellable.
func (n *Notifier) CreateScheduled(ctx context.Context, req ScheduleRequest) (int64, error) {
	hour, minute, fireAt, err := n.validate(req)
	if err != nil {
		return 0, err
	}

	id, err := n.store.Create(ctx, model.ScheduledMessage{
		Content:   req.Content,
		SendTime:  req.SendTime,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		LoopDaily: req.LoopDaily,
		Status:    model.Active,
	})
	if err != nil {
		return 0, err
	}

	if req.LoopDaily {
		err = n.sched.ScheduleDaily(jobID(id), hour, minute, n.fireFunc(id))
	} else {
		err = n.sched.ScheduleOnce(jobID(id), fireAt, n.fireFunc(id))
	}
	if err != nil {
		slog.Error("trigger registration failed, row retained", "id", id, "error", err)
	}

	return id, nil
}

// Cancel marks the row cancelled first, so the authoritative record
// reflects cancellation even if trigger removal misbehaves, then
// removes the trigger best-effort. Idempotent.
func (n *Notifier) Cancel(ctx context.Context, id int64) error {
	if err := n.store.SetStatus(ctx, id, model.Cancelled); err != nil {
		return err
	}
	n.sched.Cancel(jobID(id))
	return nil
}

// SendNow dispatches inline and returns the outcome to the caller.
// Delivery failure is not an error here: it is a result with
// status=error, recorded in history like any other attempt.
func (n *Notifier) SendNow(ctx context.Context, content string) (DispatchResult, error) {
	if strings.TrimSpace(content) == "" {
		return DispatchResult{}, fmt.Errorf("%w: content must not be empty", ErrValidation)
	}
	return n.deliver(ctx, content), nil
}

func (n *Notifier) ListActive(ctx context.Context) ([]model.ScheduledMessage, error) {
	return n.store.ListActive(ctx)
}

func (n *Notifier) History(ctx context.Context) ([]model.HistoryEntry, error) {
	return n.store.ListHistory(ctx, n.historyLimit)
}

// Reconcile re-registers triggers for the store's active rows. Called
// once at process start: trigger state is in-memory only and must be
// rebuilt from the durable rows. One-shot rows whose moment already
// passed are skipped; they stay listed and cancellable.
func (n *Notifier) Reconcile(ctx context.Context) error {
	msgs, err := n.store.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		if windowClosed(m, n.now()) {
			continue
		}

		hour, minute, err := parseSendTime(m.SendTime)
		if err != nil {
			slog.Warn("skipping row with unparseable send_time", "id", m.ID, "send_time", m.SendTime)
			continue
		}

		if m.LoopDaily {
			if err := n.sched.ScheduleDaily(jobID(m.ID), hour, minute, n.fireFunc(m.ID)); err != nil {
				slog.Error("reconcile: trigger registration failed", "id", m.ID, "error", err)
			}
			continue
		}

		fireAt := atTime(m.StartDate, hour, minute)
		if !fireAt.After(n.now()) {
			continue
		}
		if err := n.sched.ScheduleOnce(jobID(m.ID), fireAt, n.fireFunc(m.ID)); err != nil {
			slog.Error("reconcile: trigger registration failed", "id", m.ID, "error", err)
		}
	}

	return nil
}

// fireFunc builds the callback the trigger invokes on its own
// goroutine. Each fire gets a fresh bounded context.
func (n *Notifier) fireFunc(id int64) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n.dispatch(ctx, id)
	}
}

// dispatch re-reads the row at fire time so a cancellation that raced
// an in-flight timer is honored, and so the schedule window can be
// enforced. It appends exactly one history row per delivery attempt
// and never mutates the row's status.
func (n *Notifier) dispatch(ctx context.Context, id int64) {
	msg, err := n.store.Get(ctx, id)
	if err != nil {
		slog.Error("dispatch: load message", "id", id, "error", err)
		if errors.Is(err, store.ErrNotFound) {
			n.sched.Cancel(jobID(id))
		}
		return
	}

	if msg.Status == model.Cancelled {
		n.sched.Cancel(jobID(id))
		return
	}

	// Before the window opens the trigger must survive: it is the one
	// that will fire once start_date arrives.
	if windowNotOpen(msg, n.now()) {
		slog.Info("schedule window not open yet, skipping fire", "id", id, "start_date", msg.StartDate)
		return
	}

	if windowClosed(msg, n.now()) {
		slog.Info("schedule window closed, removing trigger", "id", id, "end_date", msg.EndDate)
		n.sched.Cancel(jobID(id))
		return
	}

	res := n.deliver(ctx, msg.Content)

	if n.attempts != nil {
		if err := n.attempts.StoreAttempt(ctx, id, res.Status, res.Response, n.now()); err != nil {
			slog.Warn("attempt cache write failed", "id", id, "error", err)
		}
	}
}

// deliver is the single dispatch-and-record path shared by timer
// fires and SendNow. The history append happens regardless of the
// delivery outcome; an append failure can only be logged.
func (n *Notifier) deliver(ctx context.Context, content string) DispatchResult {
	ok, detail := n.client.Send(ctx, content)

	status := model.Success
	if !ok {
		status = model.Error
	}

	if _, err := n.store.AppendHistory(ctx, model.HistoryEntry{
		Content:  content,
		SentTime: n.now(),
		Status:   status,
		Detail:   detail,
	}); err != nil {
		slog.Error("history append failed", "status", status, "error", err)
	}

	return DispatchResult{Status: status, Response: detail}
}

func (n *Notifier) validate(req ScheduleRequest) (hour, minute int, fireAt time.Time, err error) {
	if strings.TrimSpace(req.Content) == "" {
		return 0, 0, time.Time{}, fmt.Errorf("%w: content must not be empty", ErrValidation)
	}
	if req.StartDate == "" {
		return 0, 0, time.Time{}, fmt.Errorf("%w: start_date is required", ErrValidation)
	}

	startDate, perr := time.ParseInLocation(dateLayout, req.StartDate, time.Local)
	if perr != nil {
		return 0, 0, time.Time{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrValidation)
	}

	if req.EndDate != "" {
		endDate, perr := time.ParseInLocation(dateLayout, req.EndDate, time.Local)
		if perr != nil {
			return 0, 0, time.Time{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrValidation)
		}
		if endDate.Before(startDate) {
			return 0, 0, time.Time{}, fmt.Errorf("%w: end_date is before start_date", ErrValidation)
		}
	}

	hour, minute, perr = parseSendTime(req.SendTime)
	if perr != nil {
		return 0, 0, time.Time{}, fmt.Errorf("%w: %v", ErrValidation, perr)
	}

	if !req.LoopDaily {
		fireAt = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), hour, minute, 0, 0, time.Local)
		if !fireAt.After(n.now()) {
			return 0, 0, time.Time{}, fmt.Errorf("%w: one-shot send time is in the past", ErrValidation)
		}
	}

	return hour, minute, fireAt, nil
}

func parseSendTime(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("send_time must be HH:MM, got %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("send_time hour out of range in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("send_time minute out of range in %q", s)
	}

	return hour, minute, nil
}

// windowNotOpen reports whether now is still before the message's
// start_date.
func windowNotOpen(m model.ScheduledMessage, now time.Time) bool {
	start, err := time.ParseInLocation(dateLayout, m.StartDate, time.Local)
	if err != nil {
		// Validated at creation; an unparseable value means no bound.
		return false
	}
	return now.Before(start)
}

// windowClosed reports whether now is past the message's end_date.
// The bound is inclusive: fires on the end date itself still go out.
func windowClosed(m model.ScheduledMessage, now time.Time) bool {
	if m.EndDate == "" {
		return false
	}
	end, err := time.ParseInLocation(dateLayout, m.EndDate, time.Local)
	if err != nil {
		// Validated at creation; an unparseable value means no bound.
		return false
	}
	return !now.Before(end.AddDate(0, 0, 1))
}

func atTime(date string, hour, minute int) time.Time {
	d, err := time.ParseInLocation(dateLayout, date, time.Local)
	if err != nil {
		return time.Time{}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, time.Local)
}

func jobID(id int64) string {
	return fmt.Sprintf("msg_%d", id)
}
