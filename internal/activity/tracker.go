// Package activity keeps the per-connection counters behind the relay's
// message and room-join rate limits.
package activity

import (
	"errors"
	"time"
)

// Window lengths for the two rate policies.
const (
	MessageWindow = time.Minute
	JoinWindow    = time.Hour
)

// Defaults applied when a Config field is left at zero.
const (
	DefaultMinMessageInterval   = 500 * time.Millisecond
	DefaultMaxMessagesPerMinute = 10
	DefaultMaxJoinsPerHour      = 30
)

// Rejection reasons returned by the Allow methods.
var (
	ErrUnknownConnection = errors.New("activity: unknown connection")
	ErrTooFast           = errors.New("activity: messages sent too quickly")
	ErrMessageLimit      = errors.New("activity: message limit reached")
	ErrJoinLimit         = errors.New("activity: room join limit reached")
)

// Clock supplies the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Config holds the thresholds for both rate policies.
type Config struct {
	MinMessageInterval   time.Duration
	MaxMessagesPerMinute int
	MaxJoinsPerHour      int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinMessageInterval:   DefaultMinMessageInterval,
		MaxMessagesPerMinute: DefaultMaxMessagesPerMinute,
		MaxJoinsPerHour:      DefaultMaxJoinsPerHour,
	}
}

// WithDefaults fills zero or negative fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	if c.MinMessageInterval <= 0 {
		c.MinMessageInterval = DefaultMinMessageInterval
	}
	if c.MaxMessagesPerMinute <= 0 {
		c.MaxMessagesPerMinute = DefaultMaxMessagesPerMinute
	}
	if c.MaxJoinsPerHour <= 0 {
		c.MaxJoinsPerHour = DefaultMaxJoinsPerHour
	}
	return c
}

// Record is the activity state of one connection.
type Record struct {
	LastMessage        time.Time
	MessageCount       int
	MessageWindowStart time.Time
	JoinCount          int
	JoinWindowStart    time.Time
}

// Tracker owns one Record per open connection.
//
// Tracker is not safe for concurrent use. The relay serializes every call
// under its own lock together with the room directory.
type Tracker struct {
	cfg     Config
	clock   Clock
	records map[string]*Record
}

// NewTracker creates an empty tracker. A nil clock means RealClock.
func NewTracker(cfg Config, clock Clock) *Tracker {
	if clock == nil {
		clock = RealClock{}
	}
	return &Tracker{
		cfg:     cfg.WithDefaults(),
		clock:   clock,
		records: make(map[string]*Record),
	}
}

// Config returns the effective thresholds.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Open starts tracking connID. Both windows start now. Opening an id that is
// already tracked leaves its record untouched.
func (t *Tracker) Open(connID string) {
	if _, ok := t.records[connID]; ok {
		return
	}
	now := t.clock.Now()
	t.records[connID] = &Record{
		MessageWindowStart: now,
		JoinWindowStart:    now,
	}
}

// Close forgets connID. Closing an unknown id is a no-op.
func (t *Tracker) Close(connID string) {
	delete(t.records, connID)
}

// Has reports whether connID is tracked.
func (t *Tracker) Has(connID string) bool {
	_, ok := t.records[connID]
	return ok
}

// Len returns the number of tracked connections.
func (t *Tracker) Len() int {
	return len(t.records)
}

// Snapshot returns a copy of the record for connID.
func (t *Tracker) Snapshot(connID string) (Record, bool) {
	rec, ok := t.records[connID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// AllowMessage applies the message policy and, when the message is accepted,
// counts it and stamps the last-activity time. Rejected messages leave the
// record unchanged apart from a window reset.
func (t *Tracker) AllowMessage(connID string) error {
	rec, ok := t.records[connID]
	if !ok {
		return ErrUnknownConnection
	}

	now := t.clock.Now()
	if now.Sub(rec.MessageWindowStart) > MessageWindow {
		rec.MessageWindowStart = now
		rec.MessageCount = 0
	}

	if !rec.LastMessage.IsZero() && now.Sub(rec.LastMessage) < t.cfg.MinMessageInterval {
		return ErrTooFast
	}
	if rec.MessageCount >= t.cfg.MaxMessagesPerMinute {
		return ErrMessageLimit
	}

	rec.MessageCount++
	rec.LastMessage = now
	return nil
}

// AllowJoin applies the room-join policy and counts the join when accepted.
func (t *Tracker) AllowJoin(connID string) error {
	rec, ok := t.records[connID]
	if !ok {
		return ErrUnknownConnection
	}

	now := t.clock.Now()
	if now.Sub(rec.JoinWindowStart) > JoinWindow {
		rec.JoinWindowStart = now
		rec.JoinCount = 0
	}

	if rec.JoinCount >= t.cfg.MaxJoinsPerHour {
		return ErrJoinLimit
	}

	rec.JoinCount++
	return nil
}
