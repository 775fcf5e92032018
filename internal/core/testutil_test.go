package core

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"rubber-ducky/internal/ai"
	"rubber-ducky/internal/calendar"
	"rubber-ducky/internal/config"
	"rubber-ducky/internal/linkpreview"
	"rubber-ducky/internal/storage"
	"rubber-ducky/internal/telegram"
)

const (
	testOwnerID     = int64(42)
	testBroadcastID = int64(-1001983251677)
	testBotName     = "rubber_ducky_bot"
)

type sentRecord struct {
	ChatID    int64
	MessageID int64
	Text      string
	Opts      *telegram.SendOptions
}

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sentRecord
	edits    []sentRecord
	captions []sentRecord
	photos   []sentRecord
	actions  int
	nextID   int64
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentRecord{ChatID: chatID, MessageID: f.nextID, Text: text, Opts: opts})
	return &telegram.Message{MessageID: f.nextID, Chat: &telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) EditMessageText(_ context.Context, chatID, messageID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentRecord{ChatID: chatID, MessageID: messageID, Text: text, Opts: opts})
	return &telegram.Message{MessageID: messageID, Chat: &telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) EditMessageCaption(_ context.Context, chatID, messageID int64, caption string, opts *telegram.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captions = append(f.captions, sentRecord{ChatID: chatID, MessageID: messageID, Text: caption, Opts: opts})
	return nil
}

func (f *fakeMessenger) SendChatAction(_ context.Context, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions++
	return nil
}

func (f *fakeMessenger) SendPhoto(_ context.Context, chatID int64, _ io.Reader, caption string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.photos = append(f.photos, sentRecord{ChatID: chatID, MessageID: f.nextID, Text: caption, Opts: &telegram.SendOptions{ReplyMarkup: markup}})
	return &telegram.Message{MessageID: f.nextID, Chat: &telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) GetFileStream(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("jpeg-bytes")), nil
}

func (f *fakeMessenger) AnswerCallbackQuery(_ context.Context, _ string) error { return nil }

func (f *fakeMessenger) sentTo(chatID int64) []sentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentRecord
	for _, s := range f.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeMessenger) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMessenger) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func (f *fakeMessenger) captionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captions)
}

type providerCall struct {
	Prompt string
	Opts   ai.Options
}

type fakeProvider struct {
	mu       sync.Mutex
	calls    []providerCall
	reply    *ai.Reply
	err      error
	partials []string
}

func (f *fakeProvider) SendMessage(_ context.Context, prompt string, opts ai.Options) (*ai.Reply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, providerCall{Prompt: prompt, Opts: opts})
	partials := f.partials
	reply, err := f.reply, f.err
	f.mu.Unlock()

	for _, p := range partials {
		if opts.OnProgress != nil {
			opts.OnProgress(p)
		}
	}
	if err != nil {
		return nil, err
	}
	if reply != nil {
		return reply, nil
	}
	return &ai.Reply{Text: "quack", ThreadID: "thread-1", ID: "msg-1"}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) call(i int) providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type historyCall struct {
	Guild, Channel string
	Limit          int
}

type fakeHistory struct {
	mu         sync.Mutex
	calls      []historyCall
	transcript string
	err        error
}

func (f *fakeHistory) FetchHistory(_ context.Context, guildID, channelID string, limit int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, historyCall{Guild: guildID, Channel: channelID, Limit: limit})
	if f.err != nil {
		return "", f.err
	}
	if f.transcript != "" {
		return f.transcript, nil
	}
	return "transcript", nil
}

func (f *fakeHistory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePreview struct {
	preview *linkpreview.Preview
	err     error
}

func (f *fakePreview) Fetch(_ context.Context, _ string) (*linkpreview.Preview, error) {
	return f.preview, f.err
}

type fakeCalendar struct {
	mu      sync.Mutex
	events  []calendar.Event
	created []calendar.CreateRequest
	listErr error
	makeErr error
}

func (f *fakeCalendar) ListEvents(_ context.Context) ([]calendar.Event, error) {
	return f.events, f.listErr
}

func (f *fakeCalendar) CreateEvent(_ context.Context, r calendar.CreateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.makeErr != nil {
		return f.makeErr
	}
	f.created = append(f.created, r)
	return nil
}

func (f *fakeCalendar) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type testEnv struct {
	engine   *Engine
	tg       *fakeMessenger
	provider *fakeProvider
	history  *fakeHistory
	preview  *fakePreview
	calendar *fakeCalendar
	store    *storage.Storage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		OwnerID:            testOwnerID,
		BroadcastChannelID: testBroadcastID,
		BotAlias:           "ducky",
		EventsTimezone:     "UTC",
	}

	env := &testEnv{
		tg:       &fakeMessenger{},
		provider: &fakeProvider{},
		history:  &fakeHistory{},
		preview:  &fakePreview{},
		calendar: &fakeCalendar{},
		store:    store,
	}
	env.engine = NewEngine(cfg, store, env.tg, env.provider, env.history, env.preview, env.calendar, testBotName)
	return env
}

// privateMessage builds an inbound private-chat message from an authorized
// context (the owner) unless overridden.
func privateMessage(chatID, senderID int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 1000 + chatID,
		Chat:      &telegram.Chat{ID: chatID, Type: "private", Username: "someone"},
		From:      &telegram.User{ID: senderID, FirstName: "Ana", LastName: "Lema", Username: "someone"},
		Text:      text,
		Date:      1714000000,
	}
}

func groupMessage(chatID int64, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: 2000 + chatID,
		Chat:      &telegram.Chat{ID: chatID, Type: "supergroup", Title: "The Hub", Username: "hubgroup"},
		From:      &telegram.User{ID: 7, FirstName: "Bo", Username: "bo"},
		Text:      text,
		Date:      1714000000,
	}
}
