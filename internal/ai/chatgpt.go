package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatGPTProvider streams completions from a ChatGPT-style backend. The
// backend emits server-sent events with cumulative text frames and closes
// the stream with [DONE]. There is deliberately no client timeout on the
// streaming request body; interrupting a long generation is the backend's
// call, not ours.
type ChatGPTProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewChatGPTProvider(baseURL, apiKey, model string) *ChatGPTProvider {
	return &ChatGPTProvider{
		client: &http.Client{
			Timeout: 0,
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

type completionRequest struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	ConversationID  string `json:"conversation_id,omitempty"`
	ParentMessageID string `json:"parent_message_id,omitempty"`
	Stream          bool   `json:"stream"`
}

type completionFrame struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

func (p *ChatGPTProvider) SendMessage(ctx context.Context, prompt string, opts Options) (*Reply, error) {
	payload := completionRequest{
		Model:           p.model,
		Prompt:          prompt,
		ConversationID:  opts.ThreadID,
		ParentMessageID: opts.ParentID,
		Stream:          true,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/completions", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("model http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var last completionFrame
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var frame completionFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		if frame.Text != "" {
			last = frame
			if opts.OnProgress != nil {
				opts.OnProgress(frame.Text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("model stream read: %w", err)
	}

	if last.Text == "" {
		return nil, fmt.Errorf("model returned empty reply")
	}

	return &Reply{
		Text:     last.Text,
		ThreadID: last.ConversationID,
		ID:       last.ID,
	}, nil
}

// IsTokenExpired classifies a model error as a session-token expiry, which
// gets its own user-facing message.
func IsTokenExpired(err error) bool {
	return err != nil && strings.Contains(err.Error(), "session token may have expired")
}
