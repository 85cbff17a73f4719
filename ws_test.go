package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

func newGameServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()

	store, err := LoadQuestionStore(cfg.questionsFile)
	if err != nil {
		t.Fatalf("loading store: %v", err)
	}

	hub := newHub(cfg, store)
	go hub.run()

	mux := httprouter.New()
	registerGameRoutes(cfg, mux, hub)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dialGame(t *testing.T, srv *httptest.Server, cookie string) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", playerCookieName+"="+cookie)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	id := cookie
	if resp != nil {
		for _, c := range resp.Cookies() {
			if c.Name == playerCookieName {
				id = c.Value
			}
		}
	}
	return conn, id
}

// readUntil consumes messages until one with the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("setting deadline: %v", err)
	}

	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", wantType, err)
		}
		if msg["type"] == wantType {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("sending %v: %v", msg["type"], err)
	}
}

func TestGameOverWebSocket(t *testing.T) {
	cfg := testConfig(t)
	cfg.roundDuration = 1500 * time.Millisecond
	srv := newGameServer(t, cfg)

	ayse, ayseID := dialGame(t, srv, "")
	readUntil(t, ayse, "connected")
	send(t, ayse, map[string]any{"type": "join", "name": "ayşe"})

	confirmed := readUntil(t, ayse, "joinConfirmed")
	if confirmed["name"] != "AYŞE" {
		t.Fatalf("expected normalized AYŞE, got %v", confirmed["name"])
	}
	if ayseID == "" {
		t.Fatal("expected an identity cookie from the handshake")
	}

	burak, _ := dialGame(t, srv, "")
	readUntil(t, burak, "connected")
	send(t, burak, map[string]any{"type": "join", "name": "Burak"})
	readUntil(t, burak, "joinConfirmed")

	// The joiner is announced to everyone already in the room.
	joined := readUntil(t, ayse, "playerJoined")
	if joined["name"] != "BURAK" {
		t.Fatalf("expected BURAK announcement, got %v", joined["name"])
	}

	send(t, ayse, map[string]any{
		"type":     "startQuestion",
		"question": map[string]any{"question": "Kaç kıta var?", "answer": "7"},
	})
	readUntil(t, ayse, "newQuestion")
	question := readUntil(t, burak, "newQuestion")
	if question["question"] != "Kaç kıta var?" {
		t.Fatalf("unexpected question broadcast: %v", question)
	}

	send(t, ayse, map[string]any{"type": "answer", "value": "6"})
	readUntil(t, ayse, "answerConfirmed")
	send(t, burak, map[string]any{"type": "answer", "value": 12})
	readUntil(t, burak, "answerConfirmed")

	// Answering is announced without the value itself.
	answered := readUntil(t, ayse, "playerAnswered")
	if answered["playerName"] != "BURAK" {
		t.Fatalf("expected BURAK answer announcement, got %v", answered)
	}

	result := readUntil(t, ayse, "showResult")
	winners, ok := result["winners"].([]any)
	if !ok || len(winners) != 1 || winners[0] != "AYŞE" {
		t.Fatalf("expected AYŞE as sole winner, got %v", result["winners"])
	}

	scoresMsg := readUntil(t, burak, "showResult")
	allAnswers, ok := scoresMsg["allAnswers"].([]any)
	if !ok || len(allAnswers) != 2 {
		t.Fatalf("expected both answers on the board, got %v", scoresMsg["allAnswers"])
	}
}

func TestReconnectResumesIdentityOverWebSocket(t *testing.T) {
	cfg := testConfig(t)
	srv := newGameServer(t, cfg)

	conn, id := dialGame(t, srv, "")
	readUntil(t, conn, "connected")
	send(t, conn, map[string]any{"type": "join", "name": "Cem"})
	readUntil(t, conn, "joinConfirmed")

	conn.Close()

	// Same cookie, fresh transport, inside the grace window: the name must
	// not read as taken.
	again, _ := dialGame(t, srv, id)
	readUntil(t, again, "connected")
	send(t, again, map[string]any{"type": "join", "name": "Cem"})

	confirmed := readUntil(t, again, "joinConfirmed")
	if confirmed["name"] != "CEM" {
		t.Fatalf("expected CEM to resume, got %v", confirmed)
	}
}

func TestPingPongOverWebSocket(t *testing.T) {
	cfg := testConfig(t)
	srv := newGameServer(t, cfg)

	conn, _ := dialGame(t, srv, "")
	readUntil(t, conn, "connected")

	send(t, conn, map[string]any{"type": "ping"})
	pong := readUntil(t, conn, "pong")

	if _, ok := pong["serverTime"].(float64); !ok {
		t.Fatalf("expected serverTime in pong, got %v", pong)
	}
}
