package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cluehunt-service/internal/app"
	"cluehunt-service/internal/domain"
	"cluehunt-service/internal/engine/lobby"
	"cluehunt-service/internal/engine/phase"
	"cluehunt-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

const testAdminToken = "test-token"

func newTestServer(t *testing.T) (*httptest.Server, *memory.EntityStore) {
	t.Helper()
	entities := memory.NewEntityStore()
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(sampleQuestions()), time.Minute)
	service := app.NewGameService(entities, repo, 30*time.Second)
	coordinator := lobby.NewCoordinator(entities, memory.NewIdentityIssuer())
	handler := NewWSHandler(entities, service, coordinator, repo, phase.DefaultTimings(), testAdminToken)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, entities
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + server.URL[len("http"):] + "/ws" + query
}

func TestPlayerClaimAndAnswerFlow(t *testing.T) {
	server, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil(conn, t, "welcome")

	writeMsg(conn, t, map[string]any{
		"type":    "claimRole",
		"payload": map[string]any{"role": "DROIT"},
	})
	claimed := readUntil(conn, t, "claimed")
	if claimed["roleName"] != "DROIT" {
		t.Fatalf("expected claimed role DROIT, got %v", claimed["roleName"])
	}

	writeMsg(conn, t, map[string]any{"type": "start"})
	round := readUntil(conn, t, "round")
	if round["width"].(float64) != 6 {
		t.Fatalf("expected answer width 6, got %v", round["width"])
	}
	letters, ok := round["letters"].([]any)
	if !ok || len(letters) == 0 {
		t.Fatalf("expected shuffled letters, got %v", round["letters"])
	}

	// Type the answer, then submit it explicitly.
	for _, ch := range "AVATAR" {
		writeMsg(conn, t, map[string]any{
			"type":    "input",
			"payload": map[string]any{"op": "insert", "char": string(ch)},
		})
	}
	writeMsg(conn, t, map[string]any{"type": "validate"})
	validated := readUntil(conn, t, "validated")
	if validated["scoreDelta"].(float64) <= 0 {
		t.Fatalf("expected positive score delta, got %v", validated["scoreDelta"])
	}

	// A single-player session goes straight to correction once answered.
	readUntil(conn, t, "phase")
}

func TestValidateRejectsPartialBoard(t *testing.T) {
	server, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil(conn, t, "welcome")
	writeMsg(conn, t, map[string]any{
		"type":    "claimRole",
		"payload": map[string]any{"role": "THEOLOGIE"},
	})
	readUntil(conn, t, "claimed")
	writeMsg(conn, t, map[string]any{"type": "start"})
	readUntil(conn, t, "round")

	// A half-filled board cannot be submitted.
	for _, ch := range "AVA" {
		writeMsg(conn, t, map[string]any{
			"type":    "input",
			"payload": map[string]any{"op": "insert", "char": string(ch)},
		})
	}
	writeMsg(conn, t, map[string]any{"type": "validate"})
	rejected := readUntil(conn, t, "invalid")
	if msg, _ := rejected["message"].(string); msg == "" {
		t.Fatalf("expected a corrective message, got %v", rejected)
	}

	// The board stays editable: finish the word and submit for real.
	for _, ch := range "TAR" {
		writeMsg(conn, t, map[string]any{
			"type":    "input",
			"payload": map[string]any{"op": "insert", "char": string(ch)},
		})
	}
	writeMsg(conn, t, map[string]any{"type": "validate"})
	readUntil(conn, t, "validated")
}

func TestFullBoardWithoutValidateDoesNotSubmit(t *testing.T) {
	server, entities := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil(conn, t, "welcome")
	writeMsg(conn, t, map[string]any{
		"type":    "claimRole",
		"payload": map[string]any{"role": "GESTION"},
	})
	readUntil(conn, t, "claimed")
	writeMsg(conn, t, map[string]any{"type": "start"})
	readUntil(conn, t, "round")

	for _, ch := range "AVATAR" {
		writeMsg(conn, t, map[string]any{
			"type":    "input",
			"payload": map[string]any{"op": "insert", "char": string(ch)},
		})
	}
	readUntil(conn, t, "state")

	// Typing alone records nothing; the session stays in progress with the
	// player unready until an explicit submit lands.
	players, err := entities.ListPlayers(context.Background())
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, p := range players {
		if p.Ready {
			t.Fatalf("player %s submitted without an explicit validate", p.ID)
		}
	}
}

func TestPlayerWrongFullAnswerPenalty(t *testing.T) {
	server, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil(conn, t, "welcome")
	writeMsg(conn, t, map[string]any{
		"type":    "claimRole",
		"payload": map[string]any{"role": "NURS"},
	})
	readUntil(conn, t, "claimed")
	writeMsg(conn, t, map[string]any{"type": "start"})
	readUntil(conn, t, "round")

	// Fill all six slots with a wrong word.
	for _, ch := range "RATAVA" {
		writeMsg(conn, t, map[string]any{
			"type":    "input",
			"payload": map[string]any{"op": "insert", "char": string(ch)},
		})
	}
	penalty := readUntil(conn, t, "penalty")
	if penalty["penalties"].(float64) != 1 {
		t.Fatalf("expected one penalty, got %v", penalty["penalties"])
	}
	// The board clears for another attempt.
	state := readUntil(conn, t, "state")
	slots := state["slots"].([]any)
	for i, s := range slots {
		if s != "" {
			t.Fatalf("expected slot %d cleared, got %v", i, s)
		}
	}
}

func TestAdminSurface(t *testing.T) {
	server, entities := newTestServer(t)

	// Wrong token is rejected before the upgrade.
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "?surface=admin&token=nope"), nil); err == nil {
		t.Fatal("expected handshake failure with bad token")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "?surface=admin&token="+testAdminToken), nil)
	if err != nil {
		t.Fatalf("dial admin: %v", err)
	}
	defer conn.Close()

	readUntil(conn, t, "session")
	readUntil(conn, t, "leaderboard")

	writeMsg(conn, t, map[string]any{"type": "reset"})
	readUntil(conn, t, "resetDone")

	if _, err := entities.CurrentSession(context.Background()); err == nil {
		t.Fatal("expected sessions wiped after reset")
	}
}

func TestPublicSurface(t *testing.T) {
	server, _ := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "?surface=public"), nil)
	if err != nil {
		t.Fatalf("dial public: %v", err)
	}
	defer conn.Close()

	welcome := readUntil(conn, t, "welcome")
	roles, ok := welcome["roles"].([]any)
	if !ok || len(roles) != len(domain.Roles) {
		t.Fatalf("expected full role board, got %v", welcome["roles"])
	}
}

func writeMsg(conn *websocket.Conn, t *testing.T, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %v: %v", msg["type"], err)
	}
}

// readUntil skips unrelated frames (timer ticks, role boards) until the
// wanted type arrives.
func readUntil(conn *websocket.Conn, t *testing.T, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var raw struct {
			Type    string `json:"type"`
			Payload any    `json:"payload"`
		}
		if err := conn.ReadJSON(&raw); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if raw.Type != want {
			continue
		}
		switch p := raw.Payload.(type) {
		case map[string]any:
			return p
		case []any:
			return map[string]any{"items": p}
		default:
			return nil
		}
	}
}

func sampleQuestions() map[string]domain.Question {
	qs := make(map[string]domain.Question, 6)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("q-%d", i)
		qs[id] = domain.Question{
			ID:         id,
			ThemeTag:   "CINEMA",
			AnswerKey:  "AVATAR",
			ImageURLs:  []string{"https://img.example/" + id + "-1.jpg", "https://img.example/" + id + "-2.jpg", "https://img.example/" + id + "-3.jpg"},
			LetterPool: "AVATARBCDEGHIK",
		}
	}
	return qs
}
