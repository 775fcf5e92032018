package ai

import "context"

// Progress receives the partial reply text accumulated so far. It may be
// called zero or more times before SendMessage returns.
type Progress func(partialText string)

// Options carries the conversation continuity handles for a model call.
// Empty ThreadID/ParentID start a fresh thread.
type Options struct {
	ThreadID   string
	ParentID   string
	OnProgress Progress
}

// Reply is the completed model turn. ThreadID and ID are opaque handles the
// caller stores to continue the thread on the next turn.
type Reply struct {
	Text     string
	ThreadID string
	ID       string
}

type Provider interface {
	SendMessage(ctx context.Context, prompt string, opts Options) (*Reply, error)
}
