package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/websocket"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
)

func dialStream(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	return ws
}

func TestStreamTrials(t *testing.T) {
	for _, id := range []string{"buffon", "dart"} {
		t.Run(id, func(t *testing.T) {
			srv := httptest.NewServer(newTestServer(nil).Routes())
			defer srv.Close()

			ws := dialStream(t, srv, "/api/v1/estimators/"+id+"/stream?tries=25&seed=11")
			defer ws.Close()

			var board StreamBoard
			if err := websocket.JSON.Receive(ws, &board); err != nil {
				t.Fatalf("Failed to receive board: %v", err)
			}
			if board.Type != "board" || board.Spec.ID != id || board.Config.Tries != 25 {
				t.Fatalf("Unexpected board message: %+v", board)
			}

			spec, _ := estimator.Lookup(id)
			cfg := spec.Defaults
			cfg.Tries = 25
			cfg.Seed = 11
			est, err := estimator.New(id, cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			want := estimator.Trials(est, 25)

			hits := 0
			for i := range want {
				var msg StreamTrial
				if err := websocket.JSON.Receive(ws, &msg); err != nil {
					t.Fatalf("Failed to receive trial %d: %v", i, err)
				}
				if msg.Type != "trial" || msg.Trial == nil {
					t.Fatalf("trial %d: unexpected message %+v", i, msg)
				}
				if *msg.Trial != want[i] {
					t.Errorf("trial %d: expected %+v, got %+v", i, want[i], *msg.Trial)
				}
				if msg.Trial.Hit {
					hits++
				}
				if msg.Result.Tries != i+1 || msg.Result.Hits != hits {
					t.Errorf("trial %d: running tally %d/%d, expected %d/%d",
						i, msg.Result.Hits, msg.Result.Tries, hits, i+1)
				}
			}

			var done StreamTrial
			if err := websocket.JSON.Receive(ws, &done); err != nil {
				t.Fatalf("Failed to receive done: %v", err)
			}
			if done.Type != "done" || done.Trial != nil || done.Result.Tries != 25 || done.Result.Hits != hits {
				t.Errorf("Unexpected done message: %+v", done)
			}
		})
	}
}

func TestStreamRejectsBadQuery(t *testing.T) {
	server := newTestServer(nil)
	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/estimators/monte/stream", http.StatusNotFound},
		{"/api/v1/estimators/dart/stream?tries=100001", http.StatusBadRequest},
		{"/api/v1/estimators/dart/stream?interval_ms=5000", http.StatusBadRequest},
		{"/api/v1/estimators/buffon/stream?stripe_width=0.5", http.StatusBadRequest},
		{"/api/v1/estimators/buffon/stream?stripes=1001", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := do(t, server, "GET", tt.path, nil); w.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, w.Code)
		}
	}
}

func TestStreamDegenerateDone(t *testing.T) {
	srv := httptest.NewServer(newTestServer(nil).Routes())
	defer srv.Close()

	ws := dialStream(t, srv, "/api/v1/estimators/buffon/stream?tries=0")
	defer ws.Close()

	var board StreamBoard
	if err := websocket.JSON.Receive(ws, &board); err != nil {
		t.Fatalf("Failed to receive board: %v", err)
	}

	var done StreamTrial
	if err := websocket.JSON.Receive(ws, &done); err != nil {
		t.Fatalf("Failed to receive done: %v", err)
	}
	if done.Type != "done" || done.Trial != nil {
		t.Fatalf("Expected done message, got %+v", done)
	}
	if !done.Result.Degenerate || done.Result.Tries != 0 {
		t.Errorf("Expected degenerate result with 0 tries, got %+v", done.Result)
	}
}
