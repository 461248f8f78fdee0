package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"reco-chatbot/pkg"
)

// Notifier publishes "summary ready" events on a Postgres channel and lets
// the doctor dashboard listen for them.  The payload is the session ID.
//
// All listeners share one LISTEN connection, opened by the first Listen and
// released by Close; events are fanned out in process.
type Notifier struct {
	DB      *sql.DB
	DSN     string
	Channel string
	Logger  *slog.Logger

	open  func() (notificationSource, error)
	local *LocalNotifier

	mu   sync.Mutex
	src  notificationSource
	stop context.CancelFunc
	done chan struct{}
}

// notificationSource is the part of *pq.Listener the notifier uses.
type notificationSource interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// NewNotifier constructs a Notifier.  dsn is needed by Listen, which holds a
// dedicated connection.
func NewNotifier(db *sql.DB, dsn, channel string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{DB: db, DSN: dsn, Channel: channel, Logger: logger, local: NewLocalNotifier()}
	n.open = n.openListener
	return n
}

func (n *Notifier) openListener() (notificationSource, error) {
	l := pq.NewListener(n.DSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			n.Logger.Warn("notification listener event", "event", ev, "err", err)
		}
	})
	if err := l.Listen(n.Channel); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// Notify sends sessionID on the channel.
func (n *Notifier) Notify(ctx context.Context, sessionID string) error {
	_, err := n.DB.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.Channel, sessionID)
	return err
}

// Deliver implements core.ReportSink.
func (n *Notifier) Deliver(ctx context.Context, session pkg.Session, _ pkg.TranscriptSummary, _ []string) error {
	return n.Notify(ctx, session.ID)
}

// Listen yields session IDs as they are notified until ctx is cancelled.
func (n *Notifier) Listen(ctx context.Context) (<-chan string, error) {
	if err := n.start(); err != nil {
		return nil, err
	}
	return n.local.Listen(ctx)
}

func (n *Notifier) start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.src != nil {
		return nil
	}
	src, err := n.open()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.src, n.stop, n.done = src, cancel, make(chan struct{})
	go n.pump(ctx, src, n.done)
	n.Logger.Info("listening for notifications", "channel", n.Channel)
	return nil
}

func (n *Notifier) pump(ctx context.Context, src notificationSource, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-src.NotificationChannel():
			if !ok {
				return
			}
			// nil after a reconnect
			if notif == nil {
				continue
			}
			n.local.Notify(ctx, notif.Extra)
		case <-time.After(90 * time.Second):
			go src.Ping()
		}
	}
}

// Close releases the shared LISTEN connection.  Listeners stay registered and
// a later Listen reconnects.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.src == nil {
		return nil
	}
	n.stop()
	<-n.done
	err := n.src.Close()
	n.src = nil
	return err
}

// LocalNotifier is the in-process counterpart of Notifier for deployments
// without Postgres.
type LocalNotifier struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{subs: make(map[chan string]struct{})}
}

// Notify fans sessionID out to every listener.  Slow listeners miss events
// rather than block the caller.
func (n *LocalNotifier) Notify(_ context.Context, sessionID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- sessionID:
		default:
		}
	}
	return nil
}

// Deliver implements core.ReportSink.
func (n *LocalNotifier) Deliver(ctx context.Context, session pkg.Session, _ pkg.TranscriptSummary, _ []string) error {
	return n.Notify(ctx, session.ID)
}

// Listen registers a listener that is removed when ctx is cancelled.
func (n *LocalNotifier) Listen(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subs, ch)
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}
