package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Question is one entry of the question bank. Answer stays a free-text
// string in storage; it is parsed to a number when a round starts.
type Question struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionStore holds the ordered question bank, mirrored to a JSON file.
// Reads are concurrent; every write persists the file before swapping the
// in-memory slice, so memory never runs ahead of what can be reloaded.
type QuestionStore struct {
	path string

	mu        sync.RWMutex
	questions []Question
}

// LoadQuestionStore reads the question bank at path. A missing file yields
// an empty store; a malformed one is an error.
func LoadQuestionStore(path string) (*QuestionStore, error) {
	s := &QuestionStore{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &s.questions); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

func (s *QuestionStore) List() []Question {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Question, len(s.questions))
	copy(out, s.questions)
	return out
}

func (s *QuestionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.questions)
}

// Append adds a single question, rejecting case-insensitive duplicates of
// an existing prompt.
func (s *QuestionStore) Append(q Question) error {
	q.Question = strings.TrimSpace(q.Question)
	q.Answer = strings.TrimSpace(q.Answer)
	if q.Question == "" || q.Answer == "" {
		return gameErrf(errInvalidQuestion, "Soru ve cevap boş olamaz!")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.questions {
		if strings.EqualFold(existing.Question, q.Question) {
			return gameErrf(errDuplicate, "Bu soru zaten mevcut!")
		}
	}

	next := make([]Question, 0, len(s.questions)+1)
	next = append(next, s.questions...)
	next = append(next, q)

	return s.persistLocked(next)
}

// AppendAll merges the given records onto the existing bank, skipping rows
// with a blank question or answer and case-insensitive duplicates of any
// prompt already present. Returns how many were added and skipped.
func (s *QuestionStore) AppendAll(qs []Question) (added, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Question, 0, len(s.questions)+len(qs))
	next = append(next, s.questions...)

	seen := make(map[string]bool, len(next))
	for _, existing := range next {
		seen[strings.ToLower(existing.Question)] = true
	}

	for _, q := range qs {
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.TrimSpace(q.Answer)
		if q.Question == "" || q.Answer == "" {
			skipped++
			continue
		}
		key := strings.ToLower(q.Question)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true
		next = append(next, q)
		added++
	}

	if added == 0 {
		return 0, skipped, nil
	}

	if err := s.persistLocked(next); err != nil {
		return 0, skipped, err
	}
	return added, skipped, nil
}

// RemoveAll clears the question bank, durable file included.
func (s *QuestionStore) RemoveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persistLocked([]Question{})
}

// persistLocked writes next to the backing file, then swaps it in. On any
// write error the in-memory list is left untouched.
func (s *QuestionStore) persistLocked(next []Question) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	s.questions = next
	return nil
}

// shuffledQuestions returns a copy of the bank in crypto-random order,
// used when the host picks the random game mode. The order is fixed once
// per game.
func shuffledQuestions(qs []Question) []Question {
	out := make([]Question, len(qs))
	copy(out, qs)

	for i := len(out) - 1; i > 0; i-- {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		j := int(b[0]) % (i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return out
}
