// Package telegram is a chat front-end for the dialogue machine. Chats are
// linked to Blurt accounts through the configured user map.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/delivery"
	"github.com/user/blurt/internal/dialog"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/gateway"
	"github.com/user/blurt/internal/types"
)

const maxTelegramMessage = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	send    sender
	gateway *gateway.Gateway
	users   map[string]types.Identity
	logger  *slog.Logger

	mu     sync.Mutex
	linked map[int64]link
}

type link struct {
	identity types.Identity
	userID   string
}

// New creates a Telegram adapter. users maps Telegram user ids to the
// identity they sign in as.
func New(token string, gw *gateway.Gateway, users map[string]types.Identity, logger *slog.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := newAdapter(bot, gw, users, logger)
	a.bot = bot
	return a, nil
}

func newAdapter(s sender, gw *gateway.Gateway, users map[string]types.Identity, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		send:    s,
		gateway: gw,
		users:   users,
		logger:  logger,
		linked:  make(map[int64]link),
	}
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	key := buildSessionKey(msg.From.ID, chatID)

	text := msg.Text
	if msg.IsCommand() {
		switch msg.Command() {
		case "reset":
			a.reset(ctx, chatID, key)
			return
		case "help":
			a.sendResponse(chatID, "Ask for your overview, events, schedules or announcements. /reset starts over.")
			return
		}
		text = "/" + msg.Command()
	}

	req := dialog.Request{Text: text}
	if l, ok := a.link(chatID); ok {
		req.Identity = &l.identity
	}
	res, err := a.turn(ctx, key, req)
	if err != nil {
		a.logger.Error("handle inbound failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
		return
	}

	if res.Response.Kind == conversation.OutcomeSignIn {
		identity, ok := a.users[strconv.FormatInt(msg.From.ID, 10)]
		if !ok {
			a.sendResponse(chatID, fmt.Sprintf("%s, link this chat first: add Telegram user %d to telegram.users.", plainText(res.Response.Reply), msg.From.ID))
			return
		}
		res, err = a.turn(ctx, key, dialog.Request{
			Event:    conversation.EventSignedIn,
			Identity: &identity,
			SignIn:   &conversation.SignInResult{Status: "OK"},
		})
		if err != nil {
			a.logger.Error("sign in failed", "chat_id", chatID, "error", err)
			a.sendResponse(chatID, "Sorry, I couldn't sign you in.")
			return
		}
		a.remember(chatID, identity)
	}
	a.sendResponse(chatID, plainText(res.Response.Reply))
}

func (a *Adapter) turn(ctx context.Context, key types.SessionKey, req dialog.Request) (*gateway.Result, error) {
	return a.gateway.HandleInbound(ctx, &gateway.Inbound{
		SessionKey: key,
		Source:     "telegram",
		Request:    req,
	})
}

func (a *Adapter) reset(ctx context.Context, chatID int64, key types.SessionKey) {
	res, err := a.turn(ctx, key, dialog.Request{Event: conversation.EventCancel})
	if err == nil {
		err = a.gateway.ClearState(ctx, res.SessionID)
	}
	if err != nil {
		a.logger.Error("reset failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Error resetting the conversation.")
		return
	}
	a.sendResponse(chatID, "Starting over.")
}

func (a *Adapter) link(chatID int64) (link, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.linked[chatID]
	return l, ok
}

func (a *Adapter) remember(chatID int64, identity types.Identity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.linked[chatID] = link{identity: identity, userID: entity.UserKey(identity.Email)}
}

// Notify tells every linked chat of the notice's user that their blurts
// changed. It satisfies delivery.Handler.
func (a *Adapter) Notify(_ context.Context, n delivery.Notice) error {
	a.mu.Lock()
	var chats []int64
	for chatID, l := range a.linked {
		if l.userID == n.UserID {
			chats = append(chats, chatID)
		}
	}
	a.mu.Unlock()

	for _, chatID := range chats {
		a.sendResponse(chatID, fmt.Sprintf("Your blurts were updated: %d scheduled.", n.Count))
	}
	return nil
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.send.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.send.Send(msg); err != nil {
				a.logger.Warn("send message failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

func plainText(r conversation.Reply) string { return r.Text() }

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
