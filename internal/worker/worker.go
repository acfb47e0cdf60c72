// Package worker reads chat messages and drives bets from parse to history.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/betrunner/internal/pkg/betmsg"
	"github.com/Vodeneev/betrunner/internal/pkg/metrics"
	"github.com/Vodeneev/betrunner/internal/pkg/models"
	"github.com/Vodeneev/betrunner/internal/pkg/notify"
	"github.com/Vodeneev/betrunner/internal/pkg/storage"
)

// ReplyProcessed is sent back to the chat after a bet has been handled.
const ReplyProcessed = "Aposta recebida e processada!"

const defaultIdleInterval = time.Second

var ErrAlreadyRunning = errors.New("worker is already running")

// Message is one inbound chat message.
type Message struct {
	ID     string // provider id, used for dedup; may be empty
	ChatID int64
	Text   string
}

// Source delivers inbound messages. The channel is closed when the source stops.
type Source interface {
	Messages() <-chan Message
	Reply(ctx context.Context, chatID int64, text string) error
}

// Executor runs a bet to a terminal outcome. *engine.Engine implements it.
type Executor interface {
	Process(ctx context.Context, req models.BetRequest) models.BetOutcome
}

// Deduplicator reports whether a message id is seen for the first time.
type Deduplicator interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// Publisher forwards outcomes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, correlationID string, outcome models.BetOutcome) error
}

// Worker is the single consumer of the engine: bets are executed one at a time
// in arrival order.
type Worker struct {
	source     Source
	executor   Executor
	store      storage.HistoryStorage
	notifier   notify.Notifier
	dedup      Deduplicator
	publishers []Publisher
	metrics    *metrics.Pipeline

	idleInterval time.Duration

	running atomic.Bool
	pending sync.WaitGroup
}

type Option func(*Worker)

func WithNotifier(n notify.Notifier) Option {
	return func(w *Worker) { w.notifier = n }
}

func WithDeduplicator(d Deduplicator) Option {
	return func(w *Worker) { w.dedup = d }
}

// WithPublisher adds a publisher; it may be given more than once.
func WithPublisher(p Publisher) Option {
	return func(w *Worker) { w.publishers = append(w.publishers, p) }
}

func WithMetrics(m *metrics.Pipeline) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithIdleInterval sets how often the idle loop wakes up when no message arrives.
func WithIdleInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.idleInterval = d
		}
	}
}

func New(source Source, executor Executor, store storage.HistoryStorage, opts ...Option) *Worker {
	w := &Worker{
		source:       source,
		executor:     executor,
		store:        store,
		notifier:     notify.LogNotifier{},
		idleInterval: defaultIdleInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.metrics == nil {
		w.metrics = metrics.NewPipeline(nil)
	}
	return w
}

// Run consumes messages until ctx is cancelled or the source closes.
// A message already being processed when ctx is cancelled is finished first.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer w.running.Store(false)
	defer w.pending.Wait()

	slog.Info("Worker started", "idle_interval", w.idleInterval)
	defer slog.Info("Worker stopped")

	ticker := time.NewTicker(w.idleInterval)
	defer ticker.Stop()

	messages := w.source.Messages()
	for {
		if ctx.Err() != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				slog.Info("Message source closed")
				return nil
			}
			w.handle(context.WithoutCancel(ctx), msg)
		case <-ticker.C:
			// idle
		}
	}
}

// Running reports whether Run is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	correlationID := uuid.NewString()
	logger := slog.With("message_id", msg.ID, "chat_id", msg.ChatID, "correlation_id", correlationID)
	w.metrics.MessagesReceived.Inc()

	if w.dedup != nil && msg.ID != "" {
		first, err := w.dedup.FirstSeen(ctx, msg.ID)
		if err != nil {
			logger.Warn("Dedup check failed, processing anyway", "error", err)
		} else if !first {
			logger.Info("Duplicate message skipped")
			w.metrics.MessagesIgnored.WithLabelValues("duplicate").Inc()
			return
		}
	}

	req, err := betmsg.Parse(msg.Text)
	if err != nil {
		var incomplete *betmsg.IncompleteError
		switch {
		case errors.Is(err, betmsg.ErrNotABet):
			logger.Debug("Message is not a bet, ignoring")
			w.metrics.MessagesIgnored.WithLabelValues("not_a_bet").Inc()
		case errors.As(err, &incomplete):
			logger.Warn("Incomplete bet message, ignoring", "missing", incomplete.Missing)
			w.metrics.MessagesIgnored.WithLabelValues("incomplete").Inc()
		default:
			logger.Warn("Failed to parse message", "error", err)
			w.metrics.MessagesIgnored.WithLabelValues("invalid").Inc()
		}
		return
	}

	logger.Info("New bet received", "race", req.RaceName, "race_number", req.RaceNumber, "horse", req.Horse, "odds", req.Odds)

	start := time.Now()
	outcome := w.executor.Process(ctx, req)
	w.metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())
	w.metrics.Outcomes.WithLabelValues(outcome.Status.String()).Inc()

	entry := outcome.HistoryEntry()
	if err := w.store.Append(ctx, entry); err != nil {
		// unrecorded bets are not notified
		logger.Error("Failed to record bet in history", "error", err, "status", entry.Status)
		w.metrics.PersistenceErrors.Inc()
	} else {
		w.notify(ctx, logger, outcome)
	}

	for _, p := range w.publishers {
		if err := p.Publish(ctx, correlationID, outcome); err != nil {
			logger.Warn("Failed to publish outcome", "error", err)
		}
	}

	if err := w.source.Reply(ctx, msg.ChatID, ReplyProcessed); err != nil {
		logger.Warn("Failed to reply to chat", "error", err)
	}

	logger.Info("Bet processed", "status", entry.Status, "duration", time.Since(start))
}

// notify is fire-and-forget; a failing notifier never affects the recorded outcome.
func (w *Worker) notify(ctx context.Context, logger *slog.Logger, outcome models.BetOutcome) {
	if w.notifier == nil {
		return
	}
	n := notify.ForOutcome(outcome)
	w.pending.Add(1)
	go func() {
		defer w.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Notifier panicked", "panic", r)
				w.metrics.NotificationFailures.Inc()
			}
		}()
		if !w.notifier.Notify(ctx, n) {
			logger.Warn("Notification not delivered", "title", n.Title)
			w.metrics.NotificationFailures.Inc()
		}
	}()
}
