package storage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Vote choices as stored in the ledger.
const (
	VoteLike    = "like"
	VoteDislike = "dislike"
)

// Tally is the derived like/dislike counter pair kept redundantly next to
// the ledger for fast keyboard rendering. It must always equal the per-choice
// counts of the ledger entry for the same message.
type Tally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// GetVotes returns the voter → choice map for a message. The map is a copy;
// mutate it and write it back with SetVotes.
func (s *Storage) GetVotes(messageID string) map[string]string {
	data, exists := s.votes.Get(messageID)
	if !exists {
		return map[string]string{}
	}
	voters := map[string]string{}
	if err := decode(data, &voters); err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("corrupt vote record")
		return map[string]string{}
	}
	return voters
}

// GetTally returns the stored tally for a message, zero when absent.
func (s *Storage) GetTally(messageID string) Tally {
	data, exists := s.counts.Get(messageID)
	if !exists {
		return Tally{}
	}
	var t Tally
	if err := decode(data, &t); err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("corrupt tally record")
		return Tally{}
	}
	return t
}

// SetVotes writes the ledger entry and its tally for a message and persists
// both tables. The two writes are sequential whole-file saves; readers must
// tolerate the pair diverging only within this window.
func (s *Storage) SetVotes(messageID string, voters map[string]string, tally Tally) error {
	s.votes.Add(messageID, voters)
	s.counts.Add(messageID, tally)
	if err := s.votes.SaveToFile(); err != nil {
		return err
	}
	return s.counts.SaveToFile()
}

// verifyTallies checks, at load time, that every stored tally equals the
// counts derived from its ledger entry, rebuilding divergent tallies from
// the ledger. The ledger is the source of truth.
func (s *Storage) verifyTallies() {
	raw, err := os.ReadFile(filepath.Join(s.dir, votesFile))
	if err != nil {
		return
	}
	ledger := map[string]map[string]string{}
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return
	}

	fixed := 0
	for messageID, voters := range ledger {
		want := Tally{}
		for _, choice := range voters {
			switch choice {
			case VoteLike:
				want.Likes++
			case VoteDislike:
				want.Dislikes++
			}
		}
		if got := s.GetTally(messageID); got != want {
			log.Warn().
				Str("message_id", messageID).
				Int("ledger_likes", want.Likes).
				Int("ledger_dislikes", want.Dislikes).
				Int("tally_likes", got.Likes).
				Int("tally_dislikes", got.Dislikes).
				Msg("tally diverged from ledger, rebuilding")
			s.counts.Add(messageID, want)
			fixed++
		}
	}
	if fixed > 0 {
		if err := s.counts.SaveToFile(); err != nil {
			log.Error().Err(err).Msg("failed to persist rebuilt tallies")
		}
	}
}
