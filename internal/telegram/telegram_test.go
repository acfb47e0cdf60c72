package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/betrunner/internal/pkg/notify"
)

type fakeBot struct {
	updates chan tgbotapi.Update

	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 10)}
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) sentMessages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), b.sent...)
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chatID},
			Text: text,
		},
	}
}

func commandUpdate(id int, chatID int64, cmd string) tgbotapi.Update {
	u := textUpdate(id, chatID, cmd)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return u
}

func TestChannel_HandleUpdate(t *testing.T) {
	bot := newFakeBot()
	c := newChannel(bot, 42, 60)
	ctx := context.Background()

	tests := []struct {
		name    string
		update  tgbotapi.Update
		forward bool
	}{
		{"target chat", textUpdate(1, 42, "Nome da Corrida: Ascot"), true},
		{"other chat", textUpdate(2, 7, "Nome da Corrida: Ascot"), false},
		{"empty text", textUpdate(3, 42, "   "), false},
		{"no message", tgbotapi.Update{UpdateID: 4}, false},
		{"start command", commandUpdate(5, 42, "/start"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, forward := c.handleUpdate(ctx, tt.update)
			if forward != tt.forward {
				t.Fatalf("forward = %v, want %v", forward, tt.forward)
			}
			if forward && (msg.ChatID != 42 || msg.ID == "") {
				t.Errorf("unexpected message %+v", msg)
			}
		})
	}

	sent := bot.sentMessages()
	if len(sent) != 1 || sent[0].Text != startReply {
		t.Errorf("expected start reply, got %+v", sent)
	}
}

func TestChannel_StartForwardsAndStops(t *testing.T) {
	bot := newFakeBot()
	c := newChannel(bot, 42, 60)
	ctx, cancel := context.WithCancel(context.Background())

	c.Start(ctx)
	bot.updates <- textUpdate(10, 42, "hello")

	select {
	case msg := <-c.Messages():
		if msg.Text != "hello" || msg.ID != "10" {
			t.Errorf("unexpected message %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not forwarded")
	}

	cancel()
	select {
	case _, ok := <-c.Messages():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestNotifier_RoutesBySeverity(t *testing.T) {
	bot := newFakeBot()
	n := newNotifier(bot, 100, 200, time.Millisecond)

	ctx := context.Background()
	if !n.Notify(ctx, notify.Notification{Title: "Aposta Sucesso", Body: "Ascot - Thunder Bolt"}) {
		t.Fatal("success notification rejected")
	}
	if !n.Notify(ctx, notify.Notification{Title: "Aposta Erro", Body: "Ascot - Thunder Bolt", Severity: notify.SeverityWarning}) {
		t.Fatal("error notification rejected")
	}
	n.Stop()

	sent := bot.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].ChatID != 100 || sent[0].Text != "✅ Aposta Sucesso: Ascot - Thunder Bolt" {
		t.Errorf("success message = %+v", sent[0])
	}
	if sent[1].ChatID != 200 {
		t.Errorf("error message went to chat %d", sent[1].ChatID)
	}
}

func TestNotifier_Rejects(t *testing.T) {
	bot := newFakeBot()
	n := newNotifier(bot, 100, 0, time.Millisecond)

	if n.Notify(context.Background(), notify.Notification{Title: "x", Severity: notify.SeverityWarning}) {
		t.Error("expected rejection without error chat")
	}
	n.Stop()
	if n.Notify(context.Background(), notify.Notification{Title: "x"}) {
		t.Error("expected rejection after Stop")
	}
	n.Stop()
}
