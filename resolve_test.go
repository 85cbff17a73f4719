package main

import (
	"math"
	"testing"
)

func numericAnswer(name string, value float64) submittedAnswer {
	return submittedAnswer{PlayerName: name, Value: value, Numeric: true}
}

func TestResolveClosestWinsWithTies(t *testing.T) {
	subs := []submittedAnswer{
		numericAnswer("AYŞE", 48),
		numericAnswer("BURAK", 52),
		numericAnswer("CEM", 45),
	}

	result := resolveAnswers(50, subs, []string{"AYŞE", "BURAK", "CEM"})

	if len(result.Winners) != 2 {
		t.Fatalf("expected 2 winners, got %v", result.Winners)
	}
	found := map[string]bool{}
	for _, w := range result.Winners {
		found[w] = true
	}
	if !found["AYŞE"] || !found["BURAK"] {
		t.Fatalf("expected AYŞE and BURAK to win, got %v", result.Winners)
	}
	if found["CEM"] {
		t.Fatalf("CEM has a larger distance and must not win: %v", result.Winners)
	}

	if result.AllAnswers[2].PlayerName != "CEM" {
		t.Fatalf("expected CEM ranked last among responders, got %v", result.AllAnswers)
	}
	if result.TotalAnswers != 3 || result.TotalPlayers != 3 {
		t.Fatalf("unexpected totals: %d answers, %d players", result.TotalAnswers, result.TotalPlayers)
	}
}

func TestResolveDistinctValuesAtEqualDistanceBothWin(t *testing.T) {
	// correct=10, answers 8 and 12: different values, same distance.
	subs := []submittedAnswer{
		numericAnswer("DENIZ", 8),
		numericAnswer("EMRE", 12),
	}

	result := resolveAnswers(10, subs, []string{"DENIZ", "EMRE"})

	if len(result.Winners) != 2 {
		t.Fatalf("expected both equally-close values to win, got %v", result.Winners)
	}
}

func TestResolveExactMatchAlwaysWins(t *testing.T) {
	subs := []submittedAnswer{
		numericAnswer("AYŞE", 10),
		numericAnswer("BURAK", 10.5),
	}

	result := resolveAnswers(10, subs, []string{"AYŞE", "BURAK"})

	if len(result.Winners) != 1 || result.Winners[0] != "AYŞE" {
		t.Fatalf("expected only the exact match to win, got %v", result.Winners)
	}
	if !result.AllAnswers[0].IsCorrect || result.AllAnswers[0].PlayerName != "AYŞE" {
		t.Fatalf("expected AYŞE first and marked correct, got %+v", result.AllAnswers[0])
	}
	if result.Closest != "AYŞE (Doğru)" {
		t.Fatalf("unexpected winner display: %q", result.Closest)
	}
}

func TestResolveNonRespondersNeverOmitted(t *testing.T) {
	subs := []submittedAnswer{
		numericAnswer("AYŞE", 7),
	}
	all := []string{"AYŞE", "BURAK", "CEM"}

	result := resolveAnswers(5, subs, all)

	if len(result.AllAnswers) != len(all) {
		t.Fatalf("expected %d rows, got %d", len(all), len(result.AllAnswers))
	}
	for _, row := range result.AllAnswers[1:] {
		if row.HasAnswered {
			t.Fatalf("expected non-responder flagged, got %+v", row)
		}
		if row.Answer != nil || row.Difference != nil {
			t.Fatalf("expected nil answer/difference for non-responder, got %+v", row)
		}
	}
}

func TestResolveNoSubmissions(t *testing.T) {
	result := resolveAnswers(42, nil, []string{"AYŞE", "BURAK"})

	if len(result.Winners) != 0 {
		t.Fatalf("expected no winners, got %v", result.Winners)
	}
	if result.Closest != "Kimse (Cevap yok)" {
		t.Fatalf("unexpected winner display: %q", result.Closest)
	}
	if len(result.AllAnswers) != 2 {
		t.Fatalf("expected every registered player listed, got %v", result.AllAnswers)
	}
	if result.TotalAnswers != 0 {
		t.Fatalf("expected 0 answers, got %d", result.TotalAnswers)
	}
}

func TestResolveUnparseableNeverWins(t *testing.T) {
	subs := []submittedAnswer{
		{PlayerName: "AYŞE", Raw: "bilmiyorum"},
		numericAnswer("BURAK", 1000),
	}

	result := resolveAnswers(5, subs, []string{"AYŞE", "BURAK"})

	if len(result.Winners) != 1 || result.Winners[0] != "BURAK" {
		t.Fatalf("expected only the numeric answer to win, got %v", result.Winners)
	}

	// Unparseable submissions sort after numeric ones but before
	// non-responders, and still count as answered.
	if result.AllAnswers[0].PlayerName != "BURAK" {
		t.Fatalf("expected BURAK ranked first, got %v", result.AllAnswers)
	}
	if !result.AllAnswers[1].HasAnswered || result.AllAnswers[1].Answer != nil {
		t.Fatalf("expected AYŞE answered with nil value, got %+v", result.AllAnswers[1])
	}
}

func TestResolveOnlyUnparseableSubmissions(t *testing.T) {
	subs := []submittedAnswer{
		{PlayerName: "AYŞE", Raw: "yok"},
	}

	result := resolveAnswers(5, subs, []string{"AYŞE"})

	if len(result.Winners) != 0 {
		t.Fatalf("expected no winners, got %v", result.Winners)
	}
	if result.Closest != "Kimse (Cevap yok)" {
		t.Fatalf("unexpected winner display: %q", result.Closest)
	}
	if result.TotalAnswers != 1 {
		t.Fatalf("expected the unparseable submission counted, got %d", result.TotalAnswers)
	}
}

func TestWinnerDisplayVariants(t *testing.T) {
	for _, tc := range []struct {
		winners []string
		minDiff float64
		want    string
	}{
		{nil, math.Inf(1), "Kimse (Cevap yok)"},
		{[]string{"AYŞE"}, 0, "AYŞE (Doğru)"},
		{[]string{"AYŞE", "BURAK"}, 0, "AYŞE, BURAK (Doğru)"},
		{[]string{"AYŞE"}, 3, "AYŞE (En yakın)"},
		{[]string{"AYŞE", "BURAK"}, 2, "AYŞE, BURAK (En yakın mesafe: 2)"},
		{[]string{"AYŞE", "BURAK"}, 2.5, "AYŞE, BURAK (En yakın mesafe: 2.5)"},
	} {
		if got := winnerDisplay(tc.winners, tc.minDiff); got != tc.want {
			t.Errorf("winnerDisplay(%v, %v) = %q, want %q", tc.winners, tc.minDiff, got, tc.want)
		}
	}
}
