package main

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func tempStore(t *testing.T) *QuestionStore {
	t.Helper()
	store, err := LoadQuestionStore(filepath.Join(t.TempDir(), "questions.json"))
	if err != nil {
		t.Fatalf("loading store: %v", err)
	}
	return store
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	store := tempStore(t)

	if store.Count() != 0 {
		t.Fatalf("expected empty store, got %d questions", store.Count())
	}
}

func TestAppendPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "questions.json")

	store, err := LoadQuestionStore(path)
	if err != nil {
		t.Fatalf("loading store: %v", err)
	}

	q := Question{Question: "Türkiye'nin yüzölçümü kaç bin km²?", Answer: "783"}
	if err := store.Append(q); err != nil {
		t.Fatalf("appending: %v", err)
	}

	reloaded, err := LoadQuestionStore(path)
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}

	questions := reloaded.List()
	if len(questions) != 1 || questions[0] != q {
		t.Fatalf("expected %+v after reload, got %+v", q, questions)
	}
}

func TestAppendRejectsBlankFields(t *testing.T) {
	store := tempStore(t)

	for _, q := range []Question{
		{Question: "", Answer: "5"},
		{Question: "Kaç?", Answer: "   "},
	} {
		err := store.Append(q)
		ge, ok := err.(*GameError)
		if !ok || ge.Kind != errInvalidQuestion {
			t.Fatalf("expected invalidQuestion for %+v, got %v", q, err)
		}
	}

	if store.Count() != 0 {
		t.Fatalf("expected nothing stored, got %d", store.Count())
	}
}

func TestAppendRejectsDuplicatesCaseInsensitive(t *testing.T) {
	store := tempStore(t)

	if err := store.Append(Question{Question: "Kaç kıta var?", Answer: "7"}); err != nil {
		t.Fatalf("appending: %v", err)
	}

	err := store.Append(Question{Question: "KAÇ KITA VAR?", Answer: "7"})
	ge, ok := err.(*GameError)
	if !ok || ge.Kind != errDuplicate {
		t.Fatalf("expected duplicateQuestion, got %v", err)
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 question, got %d", store.Count())
	}
}

func TestAppendAllCountsAddedAndSkipped(t *testing.T) {
	store := tempStore(t)

	if err := store.Append(Question{Question: "Kaç kıta var?", Answer: "7"}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	added, skipped, err := store.AppendAll([]Question{
		{Question: "Kaç kıta var?", Answer: "7"},   // duplicate
		{Question: "", Answer: "1"},                // blank
		{Question: "Bir yılda kaç ay var?", Answer: "12"},
	})
	if err != nil {
		t.Fatalf("appending batch: %v", err)
	}

	if added != 1 || skipped != 2 {
		t.Fatalf("expected added=1 skipped=2, got added=%d skipped=%d", added, skipped)
	}
	if store.Count() != 2 {
		t.Fatalf("expected 2 questions, got %d", store.Count())
	}
}

func TestRemoveAllClearsStoreAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")

	store, err := LoadQuestionStore(path)
	if err != nil {
		t.Fatalf("loading store: %v", err)
	}
	if err := store.Append(Question{Question: "Kaç?", Answer: "1"}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	if err := store.RemoveAll(); err != nil {
		t.Fatalf("removing: %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("expected empty store, got %d", store.Count())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("expected empty array on disk, got %q", data)
	}
}

func TestListReturnsACopy(t *testing.T) {
	store := tempStore(t)

	if err := store.Append(Question{Question: "Kaç?", Answer: "1"}); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	got := store.List()
	got[0].Answer = "mutated"

	if store.List()[0].Answer != "1" {
		t.Fatal("mutating the returned slice must not touch the store")
	}
}

func TestShuffledQuestionsPreservesMultiset(t *testing.T) {
	deck := make([]Question, 20)
	for i := range deck {
		deck[i] = Question{Question: "Soru", Answer: string(rune('a' + i))}
	}

	shuffled := shuffledQuestions(deck)
	if len(shuffled) != len(deck) {
		t.Fatalf("expected %d questions, got %d", len(deck), len(shuffled))
	}

	want := append([]Question(nil), deck...)
	got := append([]Question(nil), shuffled...)
	sort.Slice(got, func(i, j int) bool { return got[i].Answer < got[j].Answer })
	sort.Slice(want, func(i, j int) bool { return want[i].Answer < want[j].Answer })

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("shuffle changed contents at %d: %+v vs %+v", i, got[i], want[i])
		}
	}

	// Shuffling must not touch the input.
	for i := range deck {
		if deck[i].Answer != string(rune('a'+i)) {
			t.Fatal("input deck mutated by shuffle")
		}
	}
}
