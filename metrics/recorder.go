package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RequestMeta carries what the HTTP layer knows about the caller.
type RequestMeta struct {
	IP        string
	UserAgent string
	Referrer  string
}

// ViewInput is the body of a view beacon. TipID is generated when empty.
type ViewInput struct {
	TipID     string  `json:"tipId" validate:"omitempty,max=64"`
	SessionID string  `json:"sessionId" validate:"max=128"`
	UserID    *string `json:"userId" validate:"omitempty,max=128"`
	PageURL   string  `json:"pageUrl" validate:"max=2048"`
}

// ClickInput is the body of a click beacon.
type ClickInput struct {
	TipID       string  `json:"tipId" validate:"required,max=64"`
	SessionID   string  `json:"sessionId" validate:"max=128"`
	UserID      *string `json:"userId" validate:"omitempty,max=128"`
	ClickURL    string  `json:"clickUrl" validate:"max=2048"`
	ClickTarget string  `json:"clickTarget" validate:"max=256"`
	PageURL     string  `json:"pageUrl" validate:"max=2048"`
}

// TimeInput is the body of a time-on-page beacon.
type TimeInput struct {
	TipID       string  `json:"tipId" validate:"required,max=64"`
	SessionID   string  `json:"sessionId" validate:"max=128"`
	UserID      *string `json:"userId" validate:"omitempty,max=128"`
	TimeSpentMs float64 `json:"timeSpentMs" validate:"min=0"`
	PageURL     string  `json:"pageUrl" validate:"max=2048"`
}

// Recorder turns beacons into events and appends them to the log.
type Recorder struct {
	log  Appender
	inst *Instruments
	now  func() time.Time
}

// NewRecorder returns a Recorder writing to log. inst may be nil.
func NewRecorder(log Appender, inst *Instruments) *Recorder {
	return &Recorder{log: log, inst: inst, now: time.Now}
}

// RecordView appends a view. The returned tip id is usable even when err is
// non-nil, so callers can answer the client regardless of storage state.
func (r *Recorder) RecordView(ctx context.Context, in ViewInput, meta RequestMeta) (string, error) {
	now := r.now()
	tipID := in.TipID
	if tipID == "" {
		tipID = GenerateTipID(now)
	}
	e := r.newEvent(View, tipID, in.SessionID, in.UserID, meta, now)
	e.PageURL = in.PageURL
	return tipID, r.append(ctx, e)
}

// RecordClick appends a click. No check is made that the tip was viewed.
func (r *Recorder) RecordClick(ctx context.Context, in ClickInput, meta RequestMeta) error {
	e := r.newEvent(Click, in.TipID, in.SessionID, in.UserID, meta, r.now())
	e.ClickURL = in.ClickURL
	e.ClickTarget = in.ClickTarget
	e.PageURL = in.PageURL
	return r.append(ctx, e)
}

// ErrTimeOutOfRange is returned for a time value that is negative or does not
// fit in whole milliseconds.
var ErrTimeOutOfRange = errors.New("time spent out of range")

// RecordTimeSpent appends a time_spent event with the value as sent,
// truncated to whole milliseconds. There is no upper bound.
func (r *Recorder) RecordTimeSpent(ctx context.Context, in TimeInput, meta RequestMeta) error {
	ms, err := wholeMillis(in.TimeSpentMs)
	if err != nil {
		return err
	}
	e := r.newEvent(TimeSpent, in.TipID, in.SessionID, in.UserID, meta, r.now())
	e.TimeSpentMs = ms
	e.PageURL = in.PageURL
	return r.append(ctx, e)
}

func wholeMillis(v float64) (int64, error) {
	if math.IsNaN(v) || v < 0 || v >= math.MaxInt64 {
		return 0, ErrTimeOutOfRange
	}
	return int64(math.Trunc(v)), nil
}

func (r *Recorder) newEvent(t InteractionType, tipID, sessionID string, userID *string, meta RequestMeta, now time.Time) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		TipID:     tipID,
		SessionID: sessionID,
		UserID:    userID,
		IPAddress: meta.IP,
		Type:      t,
		Device:    Classify(meta.UserAgent),
		Referrer:  meta.Referrer,
	}
	e.stamp(now)
	return e
}

func (r *Recorder) append(ctx context.Context, e *Event) error {
	if err := r.log.Append(ctx, e); err != nil {
		r.inst.dropped(e.Type)
		return fmt.Errorf("record %s: %w", e.Type, err)
	}
	r.inst.recorded(e.Type, e.Device.DeviceType)
	return nil
}
