package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/revodavid/copperhead-server/internal/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.GridWidth, cfg.GridHeight = 10, 10
	cfg.Speed = 0.001
	return NewServer(cfg)
}

func TestHandleRootReturnsOK(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.handleRoot(rec, req)

	var body rootResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %q", body.Status)
	}
}

func TestHandleCompetitionReflectsWaitingState(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/competition", nil)
	rec := httptest.NewRecorder()
	s.handleCompetition(rec, req)

	var snap struct {
		State    string `json:"state"`
		Required int    `json:"required"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.State != "waiting_for_players" {
		t.Fatalf("expected waiting_for_players, got %q", snap.State)
	}
	if snap.Required != 2*s.cfg.Arenas {
		t.Fatalf("expected required = 2*arenas = %d, got %d", 2*s.cfg.Arenas, snap.Required)
	}
}

func TestHandleHistoryStartsEmpty(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	s.handleHistory(rec, req)

	var resp historyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Championships) != 0 {
		t.Fatalf("expected no championships yet, got %d", len(resp.Championships))
	}
}

func TestHandleAddBotRejectsGet(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/add_bot", nil)
	rec := httptest.NewRecorder()
	s.handleAddBot(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET /add_bot, got %d", rec.Code)
	}
}

func TestHandleAddBotAcknowledgesPost(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/add_bot?difficulty=3", nil)
	rec := httptest.NewRecorder()
	s.handleAddBot(rec, req)

	var resp addBotResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success=true, got %+v", resp)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")

	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("expected forwarded IP, got %q", got)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("expected remote addr host, got %q", got)
	}
}

func TestGridConfigAppliesFruitTableFromCLIConfig(t *testing.T) {
	s := testServer(t)
	grid := s.gridConfig()
	if grid.Width != s.cfg.GridWidth || grid.Height != s.cfg.GridHeight {
		t.Fatalf("expected grid config dims to mirror server config, got %dx%d", grid.Width, grid.Height)
	}
	if _, ok := grid.Fruits["apple"]; !ok {
		t.Fatalf("expected apple fruit spec to carry through from config defaults")
	}
}

func TestTickRateFromSpeed(t *testing.T) {
	s := testServer(t)
	if got := s.tickRate(); got != time.Duration(s.cfg.Speed*float64(time.Second)) {
		t.Fatalf("unexpected tick rate: %v", got)
	}
}
