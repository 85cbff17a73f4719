package main

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Player is one joined identity. The ID comes from the client cookie, so
// it survives transport reconnects; Name is the normalized display name.
type Player struct {
	ID           string
	Name         string
	Score        int // session score, seeded from the durable score on join
	JoinedAt     time.Time
	LastActivity time.Time
}

type roundPhase int

const (
	roundActive roundPhase = iota
	roundGraded
)

// round is the singleton per-question lifecycle. submissions is keyed by
// player ID; last write wins until the window closes.
type round struct {
	seq           int
	question      string
	correctAnswer float64
	startedAt     time.Time
	duration      time.Duration
	phase         roundPhase
	submissions   map[string]*submission
	cancel        chan struct{}
}

type submission struct {
	submittedAnswer
	at time.Time
}

type clientRequest struct {
	client *Client
	msg    ClientMessage
}

// Hub owns all mutable game state for the single room: the connection
// registry, the durable score ledger, and the active round. Mutations are
// serialized through run() plus the mutex, which the grace-window timers
// and the countdown goroutine also take.
type Hub struct {
	cfg   *Config
	store *QuestionStore

	register   chan *Client
	unregister chan *Client
	requests   chan clientRequest

	mu       sync.RWMutex
	clients  map[*Client]bool
	players  map[string]*Player     // keyed by player ID
	durable  map[string]int         // keyed by normalized name, survives reconnects
	pending  map[string]*time.Timer // grace-window removals, cancelled on reconnect
	round    *round
	roundSeq int

	deck    []Question
	deckPos int
}

func newHub(cfg *Config, store *QuestionStore) *Hub {
	return &Hub{
		cfg:        cfg,
		store:      store,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		requests:   make(chan clientRequest),
		clients:    make(map[*Client]bool),
		players:    make(map[string]*Player),
		durable:    make(map[string]int),
		pending:    make(map[string]*time.Timer),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.handleAttach(c)

		case c := <-h.unregister:
			h.handleDetach(c)

		case req := <-h.requests:
			switch req.msg.Type {
			case "join":
				h.handleJoin(req.client, req.msg.Name)
			case "answer":
				h.handleAnswer(req.client, req.msg.Value)
			case "leave":
				h.handleLeave(req.client)
			case "startQuestion":
				h.handleStartQuestion(req.client, req.msg.Question)
			case "startGame":
				h.handleStartGame(req.client, req.msg.Mode)
			case "nextQuestion":
				h.handleNextQuestion(req.client)
			case "getParticipants":
				h.handleGetParticipants(req.client)
			case "showScores":
				h.handleShowScores()
			case "endGame":
				h.handleEndGame()
			case "startNewGame":
				h.handleStartNewGame()
			case "addQuestion":
				h.handleAddQuestion(req.client, req.msg.Question)
			case "ping":
				h.handlePing(req.client)
			default:
				logf(h.cfg, "GAME: Ignoring unknown message type %q", req.msg.Type)
			}
		}
	}
}

// normalizeName trims and uppercases a player name with Turkish casing
// rules, so i→İ and ı→I instead of the ASCII mapping that corrupts them.
func normalizeName(raw string) string {
	return cases.Upper(language.Turkish).String(strings.TrimSpace(raw))
}

func (h *Hub) handleAttach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true

	// A returning transport cancels any pending grace-window removal, so
	// a quick reconnect never produces a playerLeft/playerJoined pair.
	h.cancelPendingLocked(c.playerID)

	h.unicastLocked(c, ConnectedMessage{
		Type:         "connected",
		ServerTime:   nowMillis(),
		TotalPlayers: len(h.players),
	})
}

func (h *Hub) handleDetach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	id := c.playerID
	if id == "" || h.players[id] == nil {
		return
	}
	if h.hasClientLocked(id) {
		// Another tab with the same cookie is still attached.
		return
	}
	if _, scheduled := h.pending[id]; scheduled {
		return
	}

	logf(h.cfg, "GAME: Player %q disconnected, removal in %s", h.players[id].Name, h.cfg.graceWindow)

	h.pending[id] = time.AfterFunc(h.cfg.graceWindow, func() {
		h.removeExpired(id)
	})
}

// removeExpired fires when a disconnected player's grace window elapses
// without a reconnect.
func (h *Hub) removeExpired(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, scheduled := h.pending[id]; !scheduled {
		return
	}
	delete(h.pending, id)

	if h.hasClientLocked(id) {
		return
	}

	player := h.players[id]
	if player == nil {
		return
	}

	delete(h.players, id)
	if h.round != nil {
		delete(h.round.submissions, id)
	}

	logf(h.cfg, "GAME: Player %q removed after grace window", player.Name)

	h.broadcastLocked(PlayerEventMessage{Type: "playerLeft", Name: player.Name})
	h.broadcastParticipantsLocked()
	h.broadcastPlayerCountLocked()
}

func (h *Hub) cancelPendingLocked(id string) {
	if t, ok := h.pending[id]; ok {
		t.Stop()
		delete(h.pending, id)
	}
}

func (h *Hub) hasClientLocked(id string) bool {
	for client := range h.clients {
		if client.playerID == id {
			return true
		}
	}
	return false
}

func (h *Hub) handleJoin(c *Client, rawName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if strings.TrimSpace(rawName) == "" {
		h.unicastLocked(c, ErrorMessage{
			Type:    "joinError",
			Kind:    errInvalidName,
			Message: "Geçerli bir isim girin",
		})
		return
	}

	name := normalizeName(rawName)

	for id, p := range h.players {
		if id != c.playerID && p.Name == name {
			h.unicastLocked(c, ErrorMessage{
				Type:    "joinError",
				Kind:    errNameTaken,
				Message: fmt.Sprintf("\"%s\" isimli bir oyuncu zaten var! Lütfen farklı bir isim seçin.", p.Name),
			})
			return
		}
	}

	h.cancelPendingLocked(c.playerID)

	now := time.Now()
	if _, ok := h.durable[name]; !ok {
		h.durable[name] = 0
	}

	if p, ok := h.players[c.playerID]; ok {
		// Same identity rejoining, e.g. reconnect or rename: update in
		// place and re-seed the session score from the durable ledger.
		p.Name = name
		p.Score = h.durable[name]
		p.LastActivity = now
	} else {
		h.players[c.playerID] = &Player{
			ID:           c.playerID,
			Name:         name,
			Score:        h.durable[name],
			JoinedAt:     now,
			LastActivity: now,
		}
	}

	logf(h.cfg, "GAME: Player %q joined (%d total)", name, len(h.players))

	h.unicastLocked(c, JoinConfirmedMessage{
		Type:         "joinConfirmed",
		Name:         name,
		PlayerID:     c.playerID,
		TotalPlayers: len(h.players),
		Message:      "Başarıyla katıldınız!",
		GameState: GameStateInfo{
			IsActive:       h.roundActiveLocked(),
			TotalQuestions: h.store.Count(),
		},
	})

	h.broadcastExceptLocked(c, PlayerEventMessage{Type: "playerJoined", Name: name})
	h.broadcastParticipantsLocked()
	h.broadcastPlayerCountLocked()
}

func (h *Hub) handleLeave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	player := h.players[c.playerID]
	if player == nil {
		return
	}

	h.cancelPendingLocked(c.playerID)
	delete(h.players, c.playerID)

	logf(h.cfg, "GAME: Player %q left", player.Name)

	h.broadcastExceptLocked(c, PlayerEventMessage{Type: "playerLeft", Name: player.Name})
	h.broadcastParticipantsLocked()
	h.broadcastPlayerCountLocked()
}

func (h *Hub) handleAnswer(c *Client, value flexValue) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()

	if !h.roundActiveLocked() {
		h.unicastLocked(c, ErrorMessage{
			Type:    "answerError",
			Kind:    errNoActiveRound,
			Message: "Şu anda aktif bir soru yok. Lütfen soru başladıktan sonra cevap verin.",
		})
		return
	}

	// The wall clock is authoritative for the window, not the advisory
	// per-second tick: a stalled tick must not stretch the window.
	elapsed := now.Sub(h.round.startedAt)
	if elapsed > h.round.duration {
		h.unicastLocked(c, ErrorMessage{
			Type:    "answerError",
			Kind:    errWindowExpired,
			Message: "Süre doldu! Geç cevap kabul edilmez. Lütfen bir sonraki soruyu bekleyin.",
		})
		return
	}

	player := h.players[c.playerID]
	if player == nil {
		h.unicastLocked(c, ErrorMessage{
			Type:    "answerError",
			Kind:    errUnknownPlayer,
			Message: "Oyuncu bulunamadı! Lütfen oyuna tekrar katılın.",
		})
		return
	}

	raw := strings.TrimSpace(value.raw)
	if !value.set || raw == "" {
		h.unicastLocked(c, ErrorMessage{
			Type:    "answerError",
			Kind:    errInvalidAnswer,
			Message: "Geçerli bir cevap girin",
		})
		return
	}

	// Non-numeric input is kept as a sentinel that can never win, not
	// rejected outright.
	parsed, parseErr := strconv.ParseFloat(raw, 64)

	player.LastActivity = now
	h.round.submissions[player.ID] = &submission{
		submittedAnswer: submittedAnswer{
			PlayerName: player.Name,
			Raw:        raw,
			Value:      parsed,
			Numeric:    parseErr == nil,
		},
		at: now,
	}

	if parseErr == nil && math.Abs(parsed-h.round.correctAnswer) < exactMatchEpsilon {
		// Instant feedback on an exact match, ahead of round-end grading.
		// Grading awards the winners a second time; the double award for
		// exact matches is intentional.
		player.Score += 10
		h.durable[player.Name] += 10
		h.broadcastLocked(CorrectAnswerMessage{
			Type:       "correctAnswer",
			PlayerName: player.Name,
			Score:      player.Score,
			Message:    "Doğru cevap verildi!",
		})
	}

	h.broadcastExceptLocked(c, PlayerAnsweredMessage{
		Type:       "playerAnswered",
		PlayerName: player.Name,
		AnswerTime: int(elapsed.Seconds()),
	})

	remaining := h.round.duration - elapsed
	h.unicastLocked(c, AnswerConfirmedMessage{
		Type:          "answerConfirmed",
		Value:         value,
		TimeRemaining: int(remaining.Seconds()),
		TotalAnswers:  len(h.round.submissions),
		TotalPlayers:  len(h.players),
		Message:       "Cevabınız alındı!",
	})

	h.broadcastPlayerCountLocked()
}

func (h *Hub) handleStartQuestion(c *Client, payload *QuestionPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if payload == nil {
		h.unicastLocked(c, ErrorMessage{
			Type:    "questionError",
			Kind:    errInvalidQuestion,
			Message: "Soru ve cevap gerekli!",
		})
		return
	}

	h.startRoundLocked(c, Question{Question: payload.Question, Answer: payload.Answer})
}

// startRoundLocked opens a new submission window. An unparseable correct
// answer refuses to start the round rather than grading against NaN.
func (h *Hub) startRoundLocked(c *Client, q Question) {
	correct, err := strconv.ParseFloat(strings.TrimSpace(q.Answer), 64)
	if err != nil {
		logf(h.cfg, "GAME: Refusing to start question with non-numeric answer %q", q.Answer)
		h.unicastLocked(c, ErrorMessage{
			Type:    "questionError",
			Kind:    errInvalidQuestion,
			Message: fmt.Sprintf("Sorunun cevabı sayı değil: \"%s\"", q.Answer),
		})
		return
	}

	h.stopRoundLocked()

	h.roundSeq++
	h.round = &round{
		seq:           h.roundSeq,
		question:      q.Question,
		correctAnswer: correct,
		startedAt:     time.Now(),
		duration:      h.cfg.roundDuration,
		phase:         roundActive,
		submissions:   make(map[string]*submission),
		cancel:        make(chan struct{}),
	}

	logf(h.cfg, "GAME: Question started, window %s", h.round.duration)

	h.broadcastLocked(NewQuestionMessage{Type: "newQuestion", Question: q.Question})
	h.broadcastPlayerCountLocked()

	go h.runCountdown(h.round.seq, h.round.cancel)
}

// runCountdown broadcasts the advisory once-a-second countdown and fires
// grading when the window closes. The sequence check makes a stale timer
// from an earlier round a no-op.
func (h *Hub) runCountdown(seq int, cancel chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return

		case <-ticker.C:
			h.mu.Lock()

			if h.round == nil || h.round.seq != seq || h.round.phase != roundActive {
				h.mu.Unlock()
				return
			}

			remaining := h.round.duration - time.Since(h.round.startedAt)
			timeLeft := int(remaining.Seconds())
			if timeLeft < 0 {
				timeLeft = 0
			}

			h.broadcastLocked(TimerUpdateMessage{Type: "timerUpdate", TimeLeft: timeLeft})

			if remaining <= 0 {
				h.gradeRoundLocked()
				h.mu.Unlock()
				return
			}

			h.mu.Unlock()
		}
	}
}

// gradeRoundLocked resolves the finished round, applies the score deltas,
// and broadcasts the result. The phase flips to graded up front so a
// grading failure can never leave the round stuck accepting answers.
func (h *Hub) gradeRoundLocked() {
	if h.round == nil || h.round.phase != roundActive {
		return
	}
	h.round.phase = roundGraded

	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s | ERROR: grading round failed: %v", time.Now().Format(logDate), r)
		}
	}()

	subs := make([]*submission, 0, len(h.round.submissions))
	for _, sub := range h.round.submissions {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].at.Before(subs[j].at)
	})

	ordered := make([]submittedAnswer, len(subs))
	for i, sub := range subs {
		ordered[i] = sub.submittedAnswer
	}

	result := resolveAnswers(h.round.correctAnswer, ordered, h.participantsLocked())

	for _, name := range result.Winners {
		h.durable[name] += 10
		if p := h.playerByNameLocked(name); p != nil {
			p.Score += 10
		}
	}

	logf(h.cfg, "GAME: Round graded, winners: %s", result.Closest)

	h.broadcastLocked(result)
}

// stopRoundLocked cancels any running countdown and discards the round.
func (h *Hub) stopRoundLocked() {
	if h.round == nil {
		return
	}
	close(h.round.cancel)
	h.round = nil
}

func (h *Hub) handleStartGame(c *Client, mode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.deck = h.store.List()
	if mode == "random" {
		h.deck = shuffledQuestions(h.deck)
	}
	h.deckPos = 0

	logf(h.cfg, "GAME: Deck of %d questions prepared (mode %q)", len(h.deck), mode)
}

func (h *Hub) handleNextQuestion(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.deck == nil {
		h.deck = h.store.List()
		h.deckPos = 0
	}

	if h.deckPos >= len(h.deck) {
		h.unicastLocked(c, ErrorMessage{
			Type:    "questionError",
			Kind:    errOutOfQuestions,
			Message: "Sorular bitti!",
		})
		return
	}

	q := h.deck[h.deckPos]
	h.deckPos++
	h.startRoundLocked(c, q)
}

func (h *Hub) handleGetParticipants(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unicastLocked(c, ParticipantsMessage{
		Type:         "allParticipants",
		Participants: h.participantsLocked(),
	})
}

func (h *Hub) handleShowScores() {
	h.mu.Lock()
	defer h.mu.Unlock()

	scores := make(map[string]int, len(h.players))
	for _, p := range h.players {
		scores[p.Name] = p.Score
	}

	h.broadcastLocked(ScoresMessage{Type: "updateScores", Scores: scores})
}

// handleEndGame publishes the durable scoreboard and clears the joined
// set. Durable scores survive until the next explicit startNewGame.
func (h *Hub) handleEndGame() {
	h.mu.Lock()
	defer h.mu.Unlock()

	final := make(map[string]int, len(h.durable))
	for name, score := range h.durable {
		final[name] = score
	}

	h.broadcastLocked(ScoresMessage{Type: "gameEnded", Scores: final})

	h.stopRoundLocked()
	h.resetPlayersLocked()

	logf(h.cfg, "GAME: Game ended with %d scored players", len(final))
}

// handleStartNewGame is the forced reset: round, players, and durable
// scores all cleared; transports stay connected.
func (h *Hub) handleStartNewGame() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopRoundLocked()
	h.resetPlayersLocked()
	h.durable = make(map[string]int)
	h.deck = nil
	h.deckPos = 0

	h.broadcastLocked(ParticipantsMessage{Type: "allParticipants", Participants: []string{}})

	logf(h.cfg, "GAME: New game, all state cleared")
}

func (h *Hub) resetPlayersLocked() {
	for id := range h.pending {
		h.cancelPendingLocked(id)
	}
	h.players = make(map[string]*Player)
}

func (h *Hub) handleAddQuestion(c *Client, payload *QuestionPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if payload == nil {
		h.unicastLocked(c, QuestionAddedMessage{
			Type:    "questionAdded",
			Message: "Soru ve cevap gerekli!",
		})
		return
	}

	err := h.store.Append(Question{Question: payload.Question, Answer: payload.Answer})
	if err != nil {
		message := "Soru eklenirken bir hata oluştu."
		if ge, ok := err.(*GameError); ok {
			message = ge.Message
		} else {
			logf(h.cfg, "STORE: Adding question failed: %v", err)
		}
		h.unicastLocked(c, QuestionAddedMessage{
			Type:           "questionAdded",
			Message:        message,
			TotalQuestions: h.store.Count(),
		})
		return
	}

	h.unicastLocked(c, QuestionAddedMessage{
		Type:           "questionAdded",
		Success:        true,
		Message:        "Soru başarıyla eklendi!",
		TotalQuestions: h.store.Count(),
	})
}

func (h *Hub) handlePing(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unicastLocked(c, PongMessage{
		Type:         "pong",
		ServerTime:   nowMillis(),
		TotalPlayers: len(h.players),
	})
}

// participantsLocked lists player names, most recently joined first.
func (h *Hub) participantsLocked() []string {
	players := make([]*Player, 0, len(h.players))
	for _, p := range h.players {
		players = append(players, p)
	}

	sort.Slice(players, func(i, j int) bool {
		if !players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].JoinedAt.After(players[j].JoinedAt)
		}
		return players[i].Name < players[j].Name
	})

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return names
}

func (h *Hub) playerByNameLocked(name string) *Player {
	for _, p := range h.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (h *Hub) roundActiveLocked() bool {
	return h.round != nil && h.round.phase == roundActive
}

func (h *Hub) broadcastParticipantsLocked() {
	h.broadcastLocked(ParticipantsMessage{
		Type:         "allParticipants",
		Participants: h.participantsLocked(),
	})
}

func (h *Hub) broadcastPlayerCountLocked() {
	answered := 0
	if h.round != nil {
		answered = len(h.round.submissions)
	}

	h.broadcastLocked(PlayerCountMessage{
		Type:      "playerCount",
		Total:     len(h.players),
		Answered:  answered,
		Timestamp: nowMillis(),
	})
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) broadcastExceptLocked(skip *Client, msg any) {
	for client := range h.clients {
		if client == skip {
			continue
		}
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) unicastLocked(c *Client, msg any) {
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// PlayerCount reports the joined-player count for the health endpoint.
func (h *Hub) PlayerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.players)
}

// GameActive reports whether a question window is currently open.
func (h *Hub) GameActive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.roundActiveLocked()
}
