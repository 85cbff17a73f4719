package main

import (
	"encoding/json"
	"strings"
	"time"
)

// ClientMessage is every message a client may send, discriminated by Type.
type ClientMessage struct {
	Type     string           `json:"type"`               // "join", "answer", "leave", "startQuestion", "startGame", "nextQuestion", "getParticipants", "showScores", "endGame", "startNewGame", "addQuestion", "ping"
	Name     string           `json:"name,omitempty"`     // join
	Value    flexValue        `json:"value,omitempty"`    // answer
	Question *QuestionPayload `json:"question,omitempty"` // startQuestion / addQuestion
	Mode     string           `json:"mode,omitempty"`     // startGame: "sequential" or "random"
}

// QuestionPayload carries a question with its free-text answer field.
type QuestionPayload struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// flexValue accepts a JSON string or number and keeps the original text.
// Whether it parses as a number is decided later; a non-numeric value is
// never a decode failure.
type flexValue struct {
	raw string
	set bool
}

func (v *flexValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.raw = s
		v.set = true
		return nil
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	v.raw = trimmed
	v.set = true
	return nil
}

func (v flexValue) MarshalJSON() ([]byte, error) {
	if !v.set {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// ConnectedMessage greets a freshly attached transport.
type ConnectedMessage struct {
	Type         string `json:"type"` // "connected"
	ServerTime   int64  `json:"serverTime"`
	TotalPlayers int    `json:"totalPlayers"`
}

// GameStateInfo is the coarse lifecycle snapshot sent with join confirmations.
type GameStateInfo struct {
	IsActive       bool `json:"isActive"`
	TotalQuestions int  `json:"totalQuestions"`
}

type JoinConfirmedMessage struct {
	Type         string        `json:"type"` // "joinConfirmed"
	Name         string        `json:"name"`
	PlayerID     string        `json:"playerId"`
	TotalPlayers int           `json:"totalPlayers"`
	Message      string        `json:"message"`
	GameState    GameStateInfo `json:"gameState"`
}

// ErrorMessage carries any rejected action back to the acting client only.
type ErrorMessage struct {
	Type    string `json:"type"` // "joinError", "answerError", "questionError"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type AnswerConfirmedMessage struct {
	Type          string    `json:"type"` // "answerConfirmed"
	Value         flexValue `json:"value"`
	TimeRemaining int       `json:"timeRemaining"` // seconds
	TotalAnswers  int       `json:"totalAnswers"`
	TotalPlayers  int       `json:"totalPlayers"`
	Message       string    `json:"message"`
}

type NewQuestionMessage struct {
	Type     string `json:"type"` // "newQuestion"
	Question string `json:"question"`
}

type TimerUpdateMessage struct {
	Type     string `json:"type"` // "timerUpdate"
	TimeLeft int    `json:"timeLeft"`
}

// PlayerAnsweredMessage tells everyone else that a player has locked in,
// without revealing the value.
type PlayerAnsweredMessage struct {
	Type       string `json:"type"` // "playerAnswered"
	PlayerName string `json:"playerName"`
	AnswerTime int    `json:"answerTime"` // seconds into the round
}

// CorrectAnswerMessage is the instant-correct notification, fired the
// moment an exact match is submitted, ahead of round-end grading.
type CorrectAnswerMessage struct {
	Type       string `json:"type"` // "correctAnswer"
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
	Message    string `json:"message"`
}

type ScoresMessage struct {
	Type   string         `json:"type"` // "updateScores", "gameEnded"
	Scores map[string]int `json:"scores"`
}

type PlayerEventMessage struct {
	Type string `json:"type"` // "playerJoined", "playerLeft"
	Name string `json:"name"`
}

type ParticipantsMessage struct {
	Type         string   `json:"type"` // "allParticipants"
	Participants []string `json:"participants"`
}

type PlayerCountMessage struct {
	Type      string `json:"type"` // "playerCount"
	Total     int    `json:"total"`
	Answered  int    `json:"answered"`
	Timestamp int64  `json:"timestamp"`
}

type QuestionAddedMessage struct {
	Type           string `json:"type"` // "questionAdded"
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	TotalQuestions int    `json:"totalQuestions"`
}

type PongMessage struct {
	Type         string `json:"type"` // "pong"
	ServerTime   int64  `json:"serverTime"`
	TotalPlayers int    `json:"totalPlayers"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
