package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// The allowlist survives from the first deployment as a newline-delimited
// text file, so it stays that way. Entries are chat ids as decimal strings.

func (s *Storage) loadAuthorized() {
	path := filepath.Join(s.dir, authorizedFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("allowlist unreadable, starting empty")
		}
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			s.authorized = append(s.authorized, line)
		}
	}
}

// IsAuthorized reports whether chatID is on the private-chat allowlist.
func (s *Storage) IsAuthorized(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.authorized {
		if id == chatID {
			return true
		}
	}
	return false
}

// AddAuthorized appends chatID to the allowlist and rewrites the file.
// Adding an id twice is harmless.
func (s *Storage) AddAuthorized(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.authorized {
		if id == chatID {
			return nil
		}
	}
	s.authorized = append(s.authorized, chatID)

	path := filepath.Join(s.dir, authorizedFile)
	return os.WriteFile(path, []byte(strings.Join(s.authorized, "\n")), 0644)
}
