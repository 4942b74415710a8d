package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/confidant/internal/conversation"
	"github.com/memohai/confidant/internal/logger"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) sentMessages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fakeConversation struct {
	mu      sync.Mutex
	inbound []conversation.Inbound
	setLang string
	panicOn string
}

func (f *fakeConversation) reply(text string) conversation.Reply {
	return conversation.Reply{Text: text, Kind: conversation.ReplyMenu, Language: "ru"}
}

func (f *fakeConversation) Greeting(context.Context, int64) conversation.Reply  { return f.reply("greet") }
func (f *fakeConversation) Help(context.Context, int64) conversation.Reply      { return f.reply("help") }
func (f *fakeConversation) Abilities(context.Context, int64) conversation.Reply { return f.reply("abilities") }
func (f *fakeConversation) LanguageChoice(context.Context, int64) conversation.Reply {
	return f.reply("choose")
}

func (f *fakeConversation) SetLanguage(_ context.Context, _ int64, lang string) (conversation.Reply, error) {
	if lang == "de" {
		return conversation.Reply{Text: conversation.TextUnsupportedLang, Language: "en"}, conversation.ErrUnsupportedLanguage
	}
	if lang == "xx" {
		return conversation.Reply{}, errors.New("db down")
	}
	f.setLang = lang
	return conversation.Reply{Text: "greet " + lang, Language: lang}, nil
}

func (f *fakeConversation) RecentActivity(context.Context, int64, int64) conversation.Reply {
	if f.panicOn == callbackRecent {
		panic("boom")
	}
	return f.reply("recent")
}

func (f *fakeConversation) ClearMemory(context.Context, int64, int64) conversation.Reply {
	return f.reply("cleared")
}

func (f *fakeConversation) HandleText(_ context.Context, in conversation.Inbound) conversation.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, in)
	return f.reply("answer")
}

func callbackUpdate(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 11},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 22}},
		Data:    data,
	}}
}

func TestDispatchCallbacks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		data     string
		wantText string
		wantLang bool
	}{
		{callbackHelp, "help", false},
		{callbackAbilities, "abilities", false},
		{callbackRecent, "recent", false},
		{callbackClear, "cleared", false},
		{callbackLanguage, "choose", true},
		{"setlang_it", "greet it", false},
		{"setlang_de", conversation.TextUnsupportedLang, false},
		{"setlang_xx", conversation.TextInternalError, false},
	}
	for _, tc := range cases {
		api := newFakeAPI()
		bot := newBot(logger.Discard(), api, &fakeConversation{}, 0)
		bot.dispatch(context.Background(), callbackUpdate(tc.data))

		sent := api.sentMessages()
		if len(sent) != 1 {
			t.Fatalf("%s: expected one message, got %d", tc.data, len(sent))
		}
		if sent[0].Text != tc.wantText || sent[0].ChatID != 22 {
			t.Fatalf("%s: unexpected message %q to %d", tc.data, sent[0].Text, sent[0].ChatID)
		}
		markup, ok := sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		if !ok {
			t.Fatalf("%s: expected inline keyboard", tc.data)
		}
		first := *markup.InlineKeyboard[0][0].CallbackData
		if tc.wantLang && first != callbackSetLang+"en" {
			t.Fatalf("%s: expected language keyboard, got %q", tc.data, first)
		}
		if !tc.wantLang && first != callbackHelp {
			t.Fatalf("%s: expected menu keyboard, got %q", tc.data, first)
		}
		if len(api.requests) == 0 {
			t.Fatalf("%s: callback was not answered", tc.data)
		}
	}
}

func TestDispatchMessages(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	conv := &fakeConversation{}
	bot := newBot(logger.Discard(), api, conv, 0)
	ctx := context.Background()

	start := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 2},
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}
	bot.dispatch(ctx, tgbotapi.Update{Message: start})
	bot.dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 2}, Text: "I feel lost"}})
	bot.dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3}, Text: "channel post"}})

	sent := api.sentMessages()
	if len(sent) != 2 || sent[0].Text != "greet" || sent[1].Text != "answer" {
		t.Fatalf("unexpected messages %+v", sent)
	}
	if len(conv.inbound) != 1 || conv.inbound[0] != (conversation.Inbound{UserID: 1, ChatID: 2, Text: "I feel lost"}) {
		t.Fatalf("unexpected inbound %+v", conv.inbound)
	}
	action, ok := api.requests[0].(tgbotapi.ChatActionConfig)
	if !ok || action.Action != tgbotapi.ChatTyping {
		t.Fatalf("expected typing action, got %#v", api.requests[0])
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	bot := newBot(logger.Discard(), api, &fakeConversation{panicOn: callbackRecent}, 0)
	bot.dispatch(context.Background(), callbackUpdate(callbackRecent))

	sent := api.sentMessages()
	if len(sent) != 1 || sent[0].Text != conversation.TextInternalError {
		t.Fatalf("expected internal error reply, got %+v", sent)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	conv := &fakeConversation{}
	bot := newBot(logger.Discard(), api, conv, 0)
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := bot.Start(context.Background()); err == nil {
		t.Fatal("second start should fail")
	}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "hello there"}}

	deadline := time.Now().Add(2 * time.Second)
	for len(api.sentMessages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bot.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(api.sentMessages()) != 1 {
		t.Fatalf("expected reply before stop, got %d", len(api.sentMessages()))
	}
	api.mu.Lock()
	stopped := api.stopped
	api.mu.Unlock()
	if !stopped {
		t.Fatal("expected polling stopped")
	}
}

func TestNewBotRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewBot(nil, " ", false, 0, &fakeConversation{}); err == nil {
		t.Fatal("expected token error")
	}
}

// blockingConversation holds HandleText until release is closed and records
// the context error it saw at that point.
type blockingConversation struct {
	fakeConversation
	entered chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (c *blockingConversation) HandleText(ctx context.Context, in conversation.Inbound) conversation.Reply {
	close(c.entered)
	select {
	case <-ctx.Done():
	case <-c.release:
	}
	c.ctxErr <- ctx.Err()
	return c.reply("late answer")
}

func TestStopDrainsInflightWithLiveContext(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	conv := &blockingConversation{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	bot := newBot(logger.Discard(), api, conv, 0)
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 7}, Text: "still here?"}}

	select {
	case <-conv.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stopped <- bot.Stop(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	close(conv.release)

	if err := <-conv.ctxErr; err != nil {
		t.Fatalf("handler context cancelled during stop: %v", err)
	}
	if err := <-stopped; err != nil {
		t.Fatalf("stop: %v", err)
	}
	sent := api.sentMessages()
	if len(sent) != 1 || sent[0].Text != "late answer" || sent[0].ChatID != 7 {
		t.Fatalf("expected the in-flight reply to be delivered, got %+v", sent)
	}
}

func TestStopDeadlineBoundsDrain(t *testing.T) {
	t.Parallel()

	api := newFakeAPI()
	conv := &blockingConversation{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	bot := newBot(logger.Discard(), api, conv, 0)
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 7}, Text: "still here?"}}
	<-conv.entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := bot.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(conv.release)
	if err := <-conv.ctxErr; err != nil {
		t.Fatalf("handler context should stay live, got %v", err)
	}
}
