// Package telegram connects the worker to a Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/betrunner/internal/worker"
)

const (
	startReply = "Bot de Apostas Automatizado iniciado!"
	helpReply  = "Envie mensagens no formato de apostas para processamento automático."
)

// botAPI is the part of *tgbotapi.BotAPI used here
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewBot creates the bot client and checks the token.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false
	slog.Info("Authorized on telegram account", "username", bot.Self.UserName)
	return bot, nil
}

// Channel long-polls one chat and exposes its messages as a worker.Source.
type Channel struct {
	bot           botAPI
	chatID        int64
	updateTimeout int
	out           chan worker.Message
}

// Ensure Channel implements worker.Source
var _ worker.Source = (*Channel)(nil)

func NewChannel(bot *tgbotapi.BotAPI, chatID int64, updateTimeout int) *Channel {
	return newChannel(bot, chatID, updateTimeout)
}

func newChannel(bot botAPI, chatID int64, updateTimeout int) *Channel {
	return &Channel{
		bot:           bot,
		chatID:        chatID,
		updateTimeout: updateTimeout,
		out:           make(chan worker.Message),
	}
}

// Start begins long polling. Messages() is closed once ctx is done.
func (c *Channel) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.updateTimeout
	updates := c.bot.GetUpdatesChan(u)

	slog.Info("Telegram channel started", "chat_id", c.chatID)

	go func() {
		defer close(c.out)
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				slog.Info("Telegram channel stopped")
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, forward := c.handleUpdate(ctx, update)
				if !forward {
					continue
				}
				select {
				case c.out <- msg:
				case <-ctx.Done():
					c.bot.StopReceivingUpdates()
					return
				}
			}
		}
	}()
}

func (c *Channel) Messages() <-chan worker.Message {
	return c.out
}

func (c *Channel) Reply(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// handleUpdate answers commands itself and returns the messages the worker should see.
func (c *Channel) handleUpdate(ctx context.Context, update tgbotapi.Update) (worker.Message, bool) {
	message := update.Message
	if message == nil {
		message = update.ChannelPost
	}
	if message == nil || message.Chat == nil {
		return worker.Message{}, false
	}
	if message.Chat.ID != c.chatID {
		slog.Debug("Ignoring message from other chat", "chat_id", message.Chat.ID)
		return worker.Message{}, false
	}

	text := strings.TrimSpace(message.Text)
	if text == "" {
		return worker.Message{}, false
	}

	if message.IsCommand() {
		switch strings.ToLower(message.Command()) {
		case "start":
			c.reply(ctx, message.Chat.ID, startReply)
		case "help":
			c.reply(ctx, message.Chat.ID, helpReply)
		}
		return worker.Message{}, false
	}

	return worker.Message{
		ID:     strconv.Itoa(update.UpdateID),
		ChatID: message.Chat.ID,
		Text:   message.Text,
	}, true
}

func (c *Channel) reply(ctx context.Context, chatID int64, text string) {
	if err := c.Reply(ctx, chatID, text); err != nil {
		slog.Warn("Failed to answer command", "chat_id", chatID, "error", err)
	}
}
