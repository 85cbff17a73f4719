package main

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// exactMatchEpsilon is the tolerance for treating a submission as the
// exact correct answer.
const exactMatchEpsilon = 0.001

// submittedAnswer is one player's recorded submission for a round.
// Numeric is false when the raw value never parsed as a number; such
// entries can never win and rank below every numeric answer.
type submittedAnswer struct {
	PlayerName string
	Raw        string
	Value      float64
	Numeric    bool
}

// RankedAnswer is one row of the end-of-round answer board. Answer and
// Difference are nil for unparseable or missing submissions.
type RankedAnswer struct {
	PlayerName  string   `json:"playerName"`
	Answer      *float64 `json:"answer"`
	Difference  *float64 `json:"difference"`
	IsCorrect   bool     `json:"isCorrect"`
	HasAnswered bool     `json:"hasAnswered"`
}

// Result is the full graded outcome of a round.
type Result struct {
	Type         string         `json:"type"` // "showResult"
	Correct      float64        `json:"correct"`
	Closest      string         `json:"closest"` // winner display string
	Winners      []string       `json:"winners"`
	AllAnswers   []RankedAnswer `json:"allAnswers"`
	TotalAnswers int            `json:"totalAnswers"`
	TotalPlayers int            `json:"totalPlayers"`
}

// resolveAnswers grades a round: every player whose numeric answer ties
// for the minimum distance to correct is a winner, and every registered
// player appears in the ranked board, responders first by ascending
// distance, non-responders flagged and last.
func resolveAnswers(correct float64, subs []submittedAnswer, allPlayers []string) Result {
	minDiff := math.Inf(1)
	for _, sub := range subs {
		if !sub.Numeric {
			continue
		}
		if diff := math.Abs(sub.Value - correct); diff < minDiff {
			minDiff = diff
		}
	}

	winners := []string{}
	if !math.IsInf(minDiff, 1) {
		// Group by submitted value so every player who gave an
		// equally-close answer wins, even across distinct values.
		seen := make(map[float64]bool)
		for _, sub := range subs {
			if !sub.Numeric || seen[sub.Value] {
				continue
			}
			seen[sub.Value] = true
			if math.Abs(sub.Value-correct) != minDiff {
				continue
			}
			for _, other := range subs {
				if other.Numeric && other.Value == sub.Value {
					winners = append(winners, other.PlayerName)
				}
			}
		}
	}

	answered := make(map[string]bool, len(subs))
	board := make([]RankedAnswer, 0, len(allPlayers))
	for _, sub := range subs {
		answered[sub.PlayerName] = true

		row := RankedAnswer{
			PlayerName:  sub.PlayerName,
			HasAnswered: true,
		}
		if sub.Numeric {
			value := sub.Value
			diff := math.Abs(sub.Value - correct)
			row.Answer = &value
			row.Difference = &diff
			row.IsCorrect = diff == 0
		}
		board = append(board, row)
	}

	sort.SliceStable(board, func(i, j int) bool {
		// Numeric answers first, ascending by distance; unparseable
		// submissions keep their arrival order after them.
		if (board[i].Difference == nil) != (board[j].Difference == nil) {
			return board[i].Difference != nil
		}
		if board[i].Difference == nil {
			return false
		}
		return *board[i].Difference < *board[j].Difference
	})

	for _, name := range allPlayers {
		if answered[name] {
			continue
		}
		board = append(board, RankedAnswer{PlayerName: name})
	}

	return Result{
		Type:         "showResult",
		Correct:      correct,
		Closest:      winnerDisplay(winners, minDiff),
		Winners:      winners,
		AllAnswers:   board,
		TotalAnswers: len(subs),
		TotalPlayers: len(allPlayers),
	}
}

// winnerDisplay renders the host-facing winner line.
func winnerDisplay(winners []string, minDiff float64) string {
	if len(winners) == 0 {
		return "Kimse (Cevap yok)"
	}

	names := strings.Join(winners, ", ")

	switch {
	case minDiff == 0:
		return names + " (Doğru)"
	case len(winners) > 1:
		return names + " (En yakın mesafe: " + formatNumber(minDiff) + ")"
	default:
		return names + " (En yakın)"
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
