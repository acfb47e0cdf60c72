package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/betrunner/internal/pkg/notify"
)

// Min interval between two messages to avoid 429 Too Many Requests (~30/min limit).
const sendInterval = 2 * time.Second

const queueSize = 100

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type queuedMessage struct {
	chatID   int64
	text     string
	queuedAt time.Time
}

// Notifier sends bet notifications to Telegram. Successes go to the bet chat,
// failures to the error chat; a zero chat id disables that kind.
type Notifier struct {
	bot         sender
	betChatID   int64
	errorChatID int64
	interval    time.Duration

	mu       sync.Mutex
	lastSend time.Time

	queue     chan queuedMessage
	queueDone chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

// Ensure Notifier implements notify.Notifier
var _ notify.Notifier = (*Notifier)(nil)

func NewNotifier(bot *tgbotapi.BotAPI, betChatID, errorChatID int64) *Notifier {
	return newNotifier(bot, betChatID, errorChatID, sendInterval)
}

func newNotifier(bot sender, betChatID, errorChatID int64, interval time.Duration) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		bot:         bot,
		betChatID:   betChatID,
		errorChatID: errorChatID,
		interval:    interval,
		queue:       make(chan queuedMessage, queueSize),
		queueDone:   make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	go n.messageSender()

	slog.Info("Telegram notifier initialized", "bet_chat_id", betChatID, "error_chat_id", errorChatID)
	return n
}

// Notify queues the notification without blocking. It returns false when the
// target chat is not configured, the queue is full or the notifier is stopped.
func (n *Notifier) Notify(ctx context.Context, note notify.Notification) bool {
	if n == nil {
		return false
	}
	chatID := n.betChatID
	if note.Severity == notify.SeverityWarning {
		chatID = n.errorChatID
	}
	if chatID == 0 {
		slog.Debug("Telegram notification skipped: no chat configured", "severity", note.Severity.String())
		return false
	}

	select {
	case <-n.ctx.Done():
		return false
	case <-ctx.Done():
		return false
	default:
	}

	select {
	case n.queue <- queuedMessage{chatID: chatID, text: note.Text(), queuedAt: time.Now()}:
		return true
	default:
		slog.Warn("Telegram message queue is full, dropping notification", "title", note.Title)
		return false
	}
}

// QueueLen returns current number of messages in the send queue.
func (n *Notifier) QueueLen() int {
	return len(n.queue)
}

// messageSender sends queued messages one by one, spaced by the rate limit interval
func (n *Notifier) messageSender() {
	for {
		select {
		case <-n.ctx.Done():
			// Drain remaining messages before exit
			for {
				select {
				case msg := <-n.queue:
					n.send(msg, false)
				default:
					close(n.queueDone)
					return
				}
			}
		case msg := <-n.queue:
			n.send(msg, true)
		}
	}
}

func (n *Notifier) send(msg queuedMessage, wait bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if elapsed := time.Since(n.lastSend); wait && elapsed < n.interval {
		select {
		case <-n.ctx.Done():
		case <-time.After(n.interval - elapsed):
		}
	}

	n.lastSend = time.Now()
	_, err := n.bot.Send(tgbotapi.NewMessage(msg.chatID, msg.text))
	if err != nil {
		slog.Error("Telegram send: failed", "error", err, "chat_id", msg.chatID)
		return
	}
	slog.Info("Telegram send: success",
		"chat_id", msg.chatID,
		"queue_delay", time.Since(msg.queuedAt),
		"queue_length", len(n.queue))
}

// Stop flushes queued messages and stops the sender.
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	n.stopOnce.Do(func() {
		n.cancel()
		<-n.queueDone
	})
}
