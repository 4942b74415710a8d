// Package telegram runs the support bot over the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/confidant/internal/channel/adapters/adapterutil"
	"github.com/memohai/confidant/internal/conversation"
)

// Conversation is the reply logic the bot delegates to.
type Conversation interface {
	Greeting(ctx context.Context, userID int64) conversation.Reply
	Help(ctx context.Context, userID int64) conversation.Reply
	Abilities(ctx context.Context, userID int64) conversation.Reply
	LanguageChoice(ctx context.Context, userID int64) conversation.Reply
	SetLanguage(ctx context.Context, userID int64, lang string) (conversation.Reply, error)
	RecentActivity(ctx context.Context, userID, chatID int64) conversation.Reply
	ClearMemory(ctx context.Context, userID, chatID int64) conversation.Reply
	HandleText(ctx context.Context, in conversation.Inbound) conversation.Reply
}

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api         botAPI
	conv        Conversation
	pollTimeout int
	logger      *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	done     chan struct{}
}

// NewBot authenticates with the Bot API and routes library logs through log.
func NewBot(log *slog.Logger, token string, debug bool, pollTimeout int, conv Conversation) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := tgbotapi.SetLogger(newBotLogger(log)); err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	api.Debug = debug
	b := newBot(log, api, conv, pollTimeout)
	b.logger.Info("authorized", slog.String("username", api.Self.UserName))
	return b, nil
}

func newBot(log *slog.Logger, api botAPI, conv Conversation, pollTimeout int) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	return &Bot{
		api:         api,
		conv:        conv,
		pollTimeout: pollTimeout,
		logger:      log.With(slog.String("adapter", "telegram")),
	}
}

// Start begins long polling. Each update is handled on its own goroutine.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return errors.New("telegram: bot already started")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.pollTimeout
	updateConfig.AllowedUpdates = []string{"message", "callback_query"}
	updates := b.api.GetUpdatesChan(updateConfig)

	// Stop cancels polling only; handlers keep running until they finish or
	// the Stop deadline passes.
	handlerCtx := context.WithoutCancel(ctx)
	pollCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.poll(pollCtx, handlerCtx, updates, b.done)
	b.logger.Info("start polling")
	return nil
}

func (b *Bot) poll(ctx, handlerCtx context.Context, updates tgbotapi.UpdatesChannel, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("updates channel closed")
				return
			}
			b.inflight.Add(1)
			go func() {
				defer b.inflight.Done()
				b.dispatch(handlerCtx, update)
			}()
		}
	}
}

// Stop ends polling and waits for in-flight updates or ctx, whichever comes
// first. In-flight handlers are not cancelled.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel = nil
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}
	b.logger.Info("stop")
	b.api.StopReceivingUpdates()
	cancel()

	drained := make(chan struct{})
	go func() {
		<-done
		b.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handle update panicked", slog.Int("update_id", update.UpdateID), slog.Any("panic", r))
			if chat := update.FromChat(); chat != nil {
				b.send(chat.ID, conversation.Reply{Text: conversation.TextInternalError, Language: conversation.DefaultLanguage})
			}
		}
	}()
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	userID, chatID := msg.From.ID, msg.Chat.ID
	if msg.IsCommand() && msg.Command() == "start" {
		b.send(chatID, b.conv.Greeting(ctx, userID))
		return
	}
	if msg.Text == "" {
		return
	}
	b.logger.Info(
		"inbound received",
		slog.Int64("chat_id", chatID),
		slog.Int64("user_id", userID),
		slog.String("text", adapterutil.SummarizeText(msg.Text)),
	)
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("send typing action failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
	b.send(chatID, b.conv.HandleText(ctx, conversation.Inbound{UserID: userID, ChatID: chatID, Text: msg.Text}))
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.From == nil || query.Message == nil || query.Message.Chat == nil {
		return
	}
	userID, chatID := query.From.ID, query.Message.Chat.ID
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Debug("answer callback failed", slog.String("callback_id", query.ID), slog.Any("error", err))
	}

	data := query.Data
	switch {
	case data == callbackHelp:
		b.send(chatID, b.conv.Help(ctx, userID))
	case data == callbackAbilities:
		b.send(chatID, b.conv.Abilities(ctx, userID))
	case data == callbackRecent:
		b.send(chatID, b.conv.RecentActivity(ctx, userID, chatID))
	case data == callbackClear:
		b.send(chatID, b.conv.ClearMemory(ctx, userID, chatID))
	case data == callbackLanguage:
		reply := b.conv.LanguageChoice(ctx, userID)
		b.sendWithMarkup(chatID, reply.Text, languageKeyboard())
	case strings.HasPrefix(data, callbackSetLang):
		reply, err := b.conv.SetLanguage(ctx, userID, strings.TrimPrefix(data, callbackSetLang))
		if err != nil && !errors.Is(err, conversation.ErrUnsupportedLanguage) {
			b.logger.Error("set language failed", slog.Int64("user_id", userID), slog.Any("error", err))
			reply = conversation.Reply{Text: conversation.TextInternalError, Language: conversation.DefaultLanguage}
		}
		b.send(chatID, reply)
	default:
		b.logger.Warn("unknown callback", slog.String("data", data))
	}
}

// send delivers a reply with the main menu in the reply's language.
func (b *Bot) send(chatID int64, reply conversation.Reply) {
	b.sendWithMarkup(chatID, reply.Text, menuKeyboard(reply.Language))
}

func (b *Bot) sendWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	if strings.TrimSpace(text) == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
}
