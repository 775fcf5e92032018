package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func open(t *testing.T, dir string) *Storage {
	t.Helper()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestVotesRoundTripAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)

	voters := map[string]string{"1": VoteLike, "2": VoteLike, "3": VoteDislike}
	if err := s.SetVotes("700", voters, Tally{Likes: 2, Dislikes: 1}); err != nil {
		t.Fatal(err)
	}

	// Every SetVotes persists immediately, so a second handle sees the data.
	s2 := open(t, dir)
	got := s2.GetVotes("700")
	if len(got) != 3 || got["1"] != VoteLike || got["3"] != VoteDislike {
		t.Fatalf("voters after reopen = %v", got)
	}
	if tally := s2.GetTally("700"); tally.Likes != 2 || tally.Dislikes != 1 {
		t.Fatalf("tally after reopen = %+v", tally)
	}
}

func TestGetVotesReturnsCopy(t *testing.T) {
	s := open(t, t.TempDir())
	if err := s.SetVotes("701", map[string]string{"1": VoteLike}, Tally{Likes: 1}); err != nil {
		t.Fatal(err)
	}

	first := s.GetVotes("701")
	first["2"] = VoteDislike

	if got := s.GetVotes("701"); len(got) != 1 {
		t.Fatalf("mutating the returned map leaked into storage: %v", got)
	}
}

func TestTallyRebuiltFromLedgerOnLoad(t *testing.T) {
	dir := t.TempDir()

	ledger := map[string]map[string]string{
		"702": {"1": VoteLike, "2": VoteLike, "3": VoteDislike},
	}
	writeJSON(t, filepath.Join(dir, votesFile), ledger)
	// A tally that disagrees with its ledger entry.
	writeJSON(t, filepath.Join(dir, countsFile), map[string]Tally{
		"702": {Likes: 9, Dislikes: 9},
	})

	s := open(t, dir)
	if tally := s.GetTally("702"); tally.Likes != 2 || tally.Dislikes != 1 {
		t.Fatalf("tally = %+v, want rebuilt 2/1", tally)
	}
}

func TestMissingRecordsAreEmpty(t *testing.T) {
	s := open(t, t.TempDir())

	if got := s.GetVotes("nope"); len(got) != 0 {
		t.Fatalf("votes for unknown message = %v", got)
	}
	if got := s.GetTally("nope"); got.Likes != 0 || got.Dislikes != 0 {
		t.Fatalf("tally for unknown message = %+v", got)
	}
}

func TestCorruptTableStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, votesFile), []byte("{truncated"), 0644); err != nil {
		t.Fatal(err)
	}

	s := open(t, dir)
	if got := s.GetVotes("700"); len(got) != 0 {
		t.Fatalf("corrupt table produced records: %v", got)
	}
	if err := s.SetVotes("700", map[string]string{"1": VoteLike}, Tally{Likes: 1}); err != nil {
		t.Fatalf("write after reset: %v", err)
	}
}

func TestAuthorizedPersistsAsNewlineList(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)

	for _, id := range []string{"100", "200", "100"} {
		if err := s.AddAuthorized(id); err != nil {
			t.Fatal(err)
		}
	}
	if !s.IsAuthorized("100") || !s.IsAuthorized("200") || s.IsAuthorized("300") {
		t.Fatal("allowlist membership wrong")
	}

	raw, err := os.ReadFile(filepath.Join(dir, authorizedFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "100\n200" {
		t.Fatalf("allowlist file = %q, want newline list without duplicates", raw)
	}

	s2 := open(t, dir)
	if !s2.IsAuthorized("200") {
		t.Fatal("allowlist lost across reopen")
	}
}

func TestChannelLinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := open(t, dir)

	if err := s.SetChannelLink("general", ChannelLink{Guild: "g1", Channel: "c1"}); err != nil {
		t.Fatal(err)
	}

	s2 := open(t, dir)
	link, ok := s2.GetChannelLink("general")
	if !ok || link.Guild != "g1" || link.Channel != "c1" {
		t.Fatalf("link = %+v ok=%v", link, ok)
	}
	if _, ok := s2.GetChannelLink("nope"); ok {
		t.Fatal("unknown alias resolved")
	}
}

func TestPhotoLinkRoundTrip(t *testing.T) {
	s := open(t, t.TempDir())

	if err := s.SavePhotoLink("321", PhotoLink{Timestamp: 1714000000, ChannelID: -100}); err != nil {
		t.Fatal(err)
	}
	link, ok := s.GetPhotoLink("321")
	if !ok || link.Timestamp != 1714000000 || link.ChannelID != -100 {
		t.Fatalf("photo link = %+v ok=%v", link, ok)
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatal(err)
	}
}
