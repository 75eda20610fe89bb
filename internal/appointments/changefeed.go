package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/wolfman30/appointment-insights/pkg/logging"
)

// DefaultChannel is the NOTIFY channel written by the appointments trigger.
const DefaultChannel = "appointments_changes"

// ErrAlreadySubscribed is returned when a feed already has a live subscription.
var ErrAlreadySubscribed = errors.New("appointments: change feed already subscribed")

// EventKind classifies a row-level change.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
	EventOther  EventKind = "OTHER"
)

// ChangeEvent is one change-feed delivery. Old is set for updates and
// deletes, New for inserts and updates.
type ChangeEvent struct {
	Kind       EventKind
	Table      string
	Old        *Appointment
	New        *Appointment
	ReceivedAt time.Time
}

type changePayload struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
}

// ParseChangeEvent decodes a trigger payload.
func ParseChangeEvent(payload string) (ChangeEvent, error) {
	var raw changePayload
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return ChangeEvent{Kind: EventOther}, fmt.Errorf("appointments: decode change payload: %w", err)
	}

	evt := ChangeEvent{Kind: parseKind(raw.Type), Table: raw.Table}
	var err error
	if evt.New, err = decodeRecord(raw.Record); err != nil {
		return ChangeEvent{Kind: EventOther, Table: raw.Table}, err
	}
	if evt.Old, err = decodeRecord(raw.OldRecord); err != nil {
		return ChangeEvent{Kind: EventOther, Table: raw.Table}, err
	}
	return evt, nil
}

func parseKind(s string) EventKind {
	switch EventKind(strings.ToUpper(strings.TrimSpace(s))) {
	case EventInsert:
		return EventInsert
	case EventUpdate:
		return EventUpdate
	case EventDelete:
		return EventDelete
	default:
		return EventOther
	}
}

func decodeRecord(raw json.RawMessage) (*Appointment, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var appt Appointment
	if err := json.Unmarshal(raw, &appt); err != nil {
		return nil, fmt.Errorf("appointments: decode change record: %w", err)
	}
	return &appt, nil
}

// listenConn is the subset of a dedicated connection the feed needs.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Release()
}

type connSource interface {
	Acquire(ctx context.Context) (listenConn, error)
}

type poolSource struct {
	pool *pgxpool.Pool
}

func (p poolSource) Acquire(ctx context.Context) (listenConn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return pooledConn{conn: conn}, nil
}

type pooledConn struct {
	conn *pgxpool.Conn
}

func (c pooledConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c pooledConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.conn.Conn().WaitForNotification(ctx)
}

func (c pooledConn) Release() {
	c.conn.Release()
}

// ChangeFeed turns NOTIFY deliveries on one channel into ChangeEvents.
type ChangeFeed struct {
	source  connSource
	channel string
	logger  *logging.Logger
	now     func() time.Time

	mu     sync.Mutex
	active *Subscription
}

func NewChangeFeed(pool *pgxpool.Pool, channel string, logger *logging.Logger) *ChangeFeed {
	if pool == nil {
		panic("appointments: pgx pool required for change feed")
	}
	return newChangeFeed(poolSource{pool: pool}, channel, logger)
}

func newChangeFeed(source connSource, channel string, logger *logging.Logger) *ChangeFeed {
	if logger == nil {
		logger = logging.Default()
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &ChangeFeed{
		source:  source,
		channel: channel,
		logger:  logger,
		now:     time.Now,
	}
}

// Subscription is the handle for a live feed.
type Subscription struct {
	feed   *ChangeFeed
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Done is closed when the listen loop has exited and the connection is released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the subscription and waits for the connection to be released.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
	<-s.done
}

// Subscribe starts listening and calls onChange for every delivery, serially,
// on the feed's goroutine. Unparseable payloads are delivered as EventOther.
func (f *ChangeFeed) Subscribe(ctx context.Context, onChange func(ChangeEvent)) (*Subscription, error) {
	if onChange == nil {
		return nil, errors.New("appointments: change callback required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		select {
		case <-f.active.done:
		default:
			return nil, ErrAlreadySubscribed
		}
	}

	conn, err := f.source.Acquire(ctx)
	if err != nil {
		return nil, &BackendError{Op: "acquire listen connection", Err: err}
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pq.QuoteIdentifier(f.channel)); err != nil {
		conn.Release()
		return nil, &BackendError{Op: "listen", Err: err}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{feed: f, cancel: cancel, done: make(chan struct{})}
	f.active = sub
	f.logger.Info("change feed subscribed", "channel", f.channel)

	go f.listen(loopCtx, conn, sub, onChange)
	return sub, nil
}

// Unsubscribe releases the subscription's connection.
func (f *ChangeFeed) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.Close()
	f.mu.Lock()
	if f.active == sub {
		f.active = nil
	}
	f.mu.Unlock()
}

func (f *ChangeFeed) listen(ctx context.Context, conn listenConn, sub *Subscription, onChange func(ChangeEvent)) {
	defer close(sub.done)
	defer conn.Release()
	defer func() {
		unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlistenCtx, "UNLISTEN "+pq.QuoteIdentifier(f.channel)); err != nil {
			f.logger.Warn("change feed unlisten failed", "channel", f.channel, "error", err)
		}
	}()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				f.logger.Info("change feed stopped", "channel", f.channel)
				return
			}
			// No reconnect: the next manual reload re-subscribes.
			f.logger.Error("change feed wait failed", "channel", f.channel, "error", err)
			return
		}
		if notification == nil {
			continue
		}

		evt, err := ParseChangeEvent(notification.Payload)
		if err != nil {
			f.logger.Warn("change feed payload not understood", "channel", f.channel, "error", err)
		}
		evt.ReceivedAt = f.now()
		f.logger.Debug("database change detected", "kind", evt.Kind, "table", evt.Table)
		onChange(evt)
	}
}
