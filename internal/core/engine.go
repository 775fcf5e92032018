// Package core is the message intake, command dispatch and
// conversation-continuity engine. All mutable state lives on the Engine;
// mutations are serialized per chat id and per message id.
package core

import (
	"context"
	"io"
	"sync"

	"rubber-ducky/internal/ai"
	"rubber-ducky/internal/calendar"
	"rubber-ducky/internal/config"
	"rubber-ducky/internal/linkpreview"
	"rubber-ducky/internal/storage"
	"rubber-ducky/internal/telegram"
	"rubber-ducky/pkg/keymutex"
)

// Messenger is the outbound surface of the messaging platform.
// telegram.Client satisfies it; tests use fakes.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
	EditMessageCaption(ctx context.Context, chatID, messageID int64, caption string, opts *telegram.SendOptions) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	SendPhoto(ctx context.Context, chatID int64, photo io.Reader, caption string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	GetFileStream(ctx context.Context, fileID string) (io.ReadCloser, error)
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
}

// HistoryFetcher pulls a rendered transcript from the secondary platform.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, guildID, channelID string, limit int) (string, error)
}

// PreviewFetcher resolves a URL into link metadata.
type PreviewFetcher interface {
	Fetch(ctx context.Context, url string) (*linkpreview.Preview, error)
}

// Calendar is the external event API.
type Calendar interface {
	ListEvents(ctx context.Context) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, r calendar.CreateRequest) error
}

// Session is the per-chat conversation state. ThreadID and CursorID are the
// opaque continuity handles from the model backend; PendingContext is text
// staged by a command handler for the next free-text turn, consumed exactly
// once. Sessions are memory-only and rebuilt per process start.
type Session struct {
	ThreadID       string
	CursorID       string
	PendingContext string
}

type Engine struct {
	cfg      *config.Config
	store    *storage.Storage
	tg       Messenger
	provider ai.Provider
	discord  HistoryFetcher
	previews PreviewFetcher
	calendar Calendar
	botName  string

	chatLocks *keymutex.KeyMutex
	voteLocks *keymutex.KeyMutex

	mu       sync.Mutex
	sessions map[int64]*Session
	noticed  map[int64]bool

	// notify tracks in-flight fire-and-forget sends so shutdown and tests
	// can wait for them.
	notify sync.WaitGroup
}

// Flush waits for outstanding fire-and-forget sends.
func (e *Engine) Flush() {
	e.notify.Wait()
}

func NewEngine(cfg *config.Config, store *storage.Storage, tg Messenger, provider ai.Provider,
	discord HistoryFetcher, previews PreviewFetcher, cal Calendar, botName string) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		tg:        tg,
		provider:  provider,
		discord:   discord,
		previews:  previews,
		calendar:  cal,
		botName:   botName,
		chatLocks: keymutex.New(),
		voteLocks: keymutex.New(),
		sessions:  make(map[int64]*Session),
		noticed:   make(map[int64]bool),
	}
}

// session returns a copy of the chat's session state.
func (e *Engine) session(chatID int64) Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.sessions[chatID]; s != nil {
		return *s
	}
	return Session{}
}

// setThread overwrites the continuity handles after a successful model turn.
func (e *Engine) setThread(chatID int64, threadID, cursorID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[chatID]
	if s == nil {
		s = &Session{}
		e.sessions[chatID] = s
	}
	s.ThreadID = threadID
	s.CursorID = cursorID
}

// resetSession clears the chat's thread handles and any staged context.
func (e *Engine) resetSession(chatID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, chatID)
}

// stageContext installs text to be merged into the chat's next model prompt.
// A later stage replaces an earlier unconsumed one.
func (e *Engine) stageContext(chatID int64, context string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[chatID]
	if s == nil {
		s = &Session{}
		e.sessions[chatID] = s
	}
	s.PendingContext = context
}

// takeContext consumes and clears the staged context.
func (e *Engine) takeContext(chatID int64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sessions[chatID]
	if s == nil {
		return ""
	}
	context := s.PendingContext
	s.PendingContext = ""
	return context
}
