package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/steveyegge/reposync/internal/syncer"
	"github.com/steveyegge/reposync/internal/vcs"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(Config{Host: "127.0.0.1"})
	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("Stop() failed: %v", err)
		}
	})
	return server
}

// dial connects a client and consumes the status message sent on connect.
func dial(t *testing.T, ctx context.Context, server *Server) (*websocket.Conn, Message) {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	return conn, readMessage(t, ctx, conn)
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(Config{Host: "127.0.0.1"})
	if err := server.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if addr := server.Addr(); strings.HasSuffix(addr, ":0") {
		t.Errorf("Addr() = %q, want the bound port", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
}

func TestStatusOnConnect(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, msg := dial(t, ctx, server)
	if msg.Type != MessageTypeStatus {
		t.Errorf("first message type = %s, want %s", msg.Type, MessageTypeStatus)
	}
	if len(msg.Data) != 0 {
		t.Errorf("status data = %s, want empty before any cycle", msg.Data)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("ClientCount() = %d, want 1", count)
	}
}

func TestCycleEventsBroadcast(t *testing.T) {
	server := startServer(t)
	handler := NewHandler(server)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, _ := dial(t, ctx, server)
	b, _ := dial(t, ctx, server)

	h := syncer.Handle{Path: "/srv/notes", Branch: "main"}
	start := time.Now()
	handler.CycleStarted(4, h, start)
	handler.CycleFinished(h, syncer.Result{
		Cycle:      4,
		Phase:      syncer.PhaseFailed,
		Trace:      []syncer.Phase{syncer.PhaseStart, syncer.PhaseStash, syncer.PhaseReconcile, syncer.PhaseUnstash, syncer.PhaseFailed},
		Restore:    syncer.RestoreClean,
		Err:        fmt.Errorf("%w: %w", syncer.ErrPull, vcs.ErrConflicts),
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	})

	for i, conn := range []*websocket.Conn{a, b} {
		started := readMessage(t, ctx, conn)
		if started.Type != MessageTypeCycleStarted {
			t.Fatalf("client %d: type = %s, want cycle_started", i, started.Type)
		}
		var sd CycleStartedData
		if err := json.Unmarshal(started.Data, &sd); err != nil {
			t.Fatal(err)
		}
		if sd.Cycle != 4 || sd.Branch != "main" {
			t.Errorf("client %d: started = %+v", i, sd)
		}

		finished := readMessage(t, ctx, conn)
		if finished.Type != MessageTypeCycleFinished {
			t.Fatalf("client %d: type = %s, want cycle_finished", i, finished.Type)
		}
		var fd CycleFinishedData
		if err := json.Unmarshal(finished.Data, &fd); err != nil {
			t.Fatal(err)
		}
		if fd.Phase != "FAILED" || fd.Restore != "clean" || fd.Duration != 2*time.Second {
			t.Errorf("client %d: finished = %+v", i, fd)
		}
		if len(fd.Trace) != 5 || fd.Trace[3] != "UNSTASH" {
			t.Errorf("client %d: trace = %v", i, fd.Trace)
		}
		if !strings.Contains(fd.Error, "conflicts") {
			t.Errorf("client %d: error = %q", i, fd.Error)
		}
	}
}

func TestStatusReplaysLastCycle(t *testing.T) {
	server := startServer(t)
	handler := NewHandler(server)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	handler.CycleFinished(syncer.Handle{Path: "/srv/notes", Branch: "main"}, syncer.Result{
		Cycle:      7,
		Phase:      syncer.PhaseDone,
		Publish:    syncer.Published,
		StartedAt:  now,
		FinishedAt: now,
	})

	_, msg := dial(t, ctx, server)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("type = %s, want status", msg.Type)
	}
	var fd CycleFinishedData
	if err := json.Unmarshal(msg.Data, &fd); err != nil {
		t.Fatalf("status data %q: %v", msg.Data, err)
	}
	if fd.Cycle != 7 || fd.Publish != "published" {
		t.Errorf("status = %+v, want cycle 7 published", fd)
	}
}

func TestClientDisconnect(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(t, ctx, server)
	conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(5 * time.Second)
	for server.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d after disconnect", server.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v", body)
	}
}

func TestRootEndpoint(t *testing.T) {
	server := startServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/ws") {
		t.Errorf("GET / = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get("http://" + server.Addr() + "/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /missing = %d, want 404", resp.StatusCode)
	}
}

func TestStopClosesClients(t *testing.T) {
	server := NewServer(Config{Host: "127.0.0.1"})
	if err := server.Start(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(t, ctx, server)
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("Read() succeeded after server stop")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Error("connection was not closed by Stop()")
	}
}
