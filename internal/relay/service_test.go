package relay

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/streamring/framing"
	"github.com/danmuck/streamring/internal/logging"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

type captureSink struct {
	mu      sync.Mutex
	records []string
	notify  chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{notify: make(chan struct{}, 64)}
}

func (c *captureSink) Consume(record []byte) error {
	c.mu.Lock()
	c.records = append(c.records, string(record))
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *captureSink) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.records...)
}

func testConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.RelayID = "relay.test"
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.CapacityBytes = 256
	cfg.ReadChunkBytes = 64
	cfg.Heartbeat = time.Minute
	return cfg
}

func framed(payload string, sep framing.Separator) []byte {
	return append([]byte(payload), sep.Bytes()...)
}

func TestNewServiceValidates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ServiceConfig)
	}{
		{"tiny capacity", func(c *ServiceConfig) { c.CapacityBytes = 1 }},
		{"zero chunk", func(c *ServiceConfig) { c.ReadChunkBytes = 0 }},
		{"chunk over capacity", func(c *ServiceConfig) { c.ReadChunkBytes = c.CapacityBytes + 1 }},
		{"no listen addr", func(c *ServiceConfig) { c.ListenAddr = "  " }},
		{"bad separator", func(c *ServiceConfig) { c.Separator.Len = 9 }},
	}
	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		if _, err := NewService(cfg, nil); err == nil {
			t.Fatalf("%s: expected constructor error", tc.name)
		}
	}
}

func TestIngestExtractsRecordsAcrossChunks(t *testing.T) {
	cfg := testConfig()
	sink := newCaptureSink()
	svc, err := NewService(cfg, sink)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	stream := append(framed("ABCDEFGHIJK\r\n", cfg.Separator), framed("abcdefg\r\n", cfg.Separator)...)
	// Feed in 5 byte chunks so separators straddle chunk boundaries.
	for i := 0; i < len(stream); i += 5 {
		end := min(i+5, len(stream))
		svc.Ingest(stream[i:end])
	}

	got := sink.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %q", len(got), got)
	}
	if got[0] != "ABCDEFGHIJK\r\n" || got[1] != "abcdefg\r\n" {
		t.Fatalf("record mismatch: %q", got)
	}

	stats := svc.Stats()
	if stats.Records != 2 {
		t.Fatalf("unexpected record count: %d", stats.Records)
	}
	if stats.BufferedBytes != 0 {
		t.Fatalf("records should be drained, buffered=%d", stats.BufferedBytes)
	}
	if stats.IngestBytes != uint64(len(stream)) {
		t.Fatalf("unexpected ingest bytes: %d", stats.IngestBytes)
	}
}

func TestIngestDropOldestMakesRoom(t *testing.T) {
	cfg := testConfig()
	cfg.CapacityBytes = 32
	cfg.ReadChunkBytes = 16
	sink := newCaptureSink()
	svc, err := NewService(cfg, sink)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	// No separators, so nothing drains and the buffer overflows.
	junk := []byte(strings.Repeat("x", 16))
	for i := 0; i < 4; i++ {
		svc.Ingest(junk)
	}

	stats := svc.Stats()
	if stats.DroppedBytes != 32 {
		t.Fatalf("expected 32 dropped bytes, got %d", stats.DroppedBytes)
	}
	if stats.BufferedBytes != 32 {
		t.Fatalf("buffer should sit at capacity, got %d", stats.BufferedBytes)
	}
	// The stream recovers once a separator finally arrives.
	svc.Ingest(cfg.Separator.Bytes())
	if got := sink.snapshot(); len(got) != 1 {
		t.Fatalf("expected recovery record, got %q", got)
	}
}

func TestIngestRejectsChunkWithoutDropOldest(t *testing.T) {
	cfg := testConfig()
	cfg.CapacityBytes = 16
	cfg.ReadChunkBytes = 12
	cfg.DropOldest = false
	sink := newCaptureSink()
	svc, err := NewService(cfg, sink)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	svc.Ingest([]byte(strings.Repeat("a", 12)))
	svc.Ingest([]byte(strings.Repeat("b", 12)))

	stats := svc.Stats()
	if stats.BufferedBytes != 12 {
		t.Fatalf("rejected chunk mutated buffer: %d", stats.BufferedBytes)
	}
	if stats.DroppedBytes != 12 {
		t.Fatalf("expected 12 dropped bytes, got %d", stats.DroppedBytes)
	}
	if stats.IngestBytes != 12 {
		t.Fatalf("expected 12 ingest bytes, got %d", stats.IngestBytes)
	}
}

func TestAdminEndpoints(t *testing.T) {
	cfg := testConfig()
	svc, err := NewService(cfg, newCaptureSink())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	router := svc.adminRouter()

	for _, path := range []string{"/health", "/ready", "/stats", "/metrics"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if !strings.Contains(w.Body.String(), `"relay_id":"relay.test"`) {
		t.Fatalf("stats body missing relay id: %s", w.Body.String())
	}
}

func TestRelayEndToEndTCP(t *testing.T) {
	cfg := testConfig()
	sink := newCaptureSink()
	svc, err := NewService(cfg, sink)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.RunContext(ctx)
	}()

	var addr string
	deadline := time.Now().Add(5 * time.Second)
	for addr == "" {
		if time.Now().After(deadline) {
			t.Fatalf("listener never bound")
		}
		addr = svc.BoundAddr()
		time.Sleep(10 * time.Millisecond)
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial relay: %v", err)
	}
	if _, err := conn.Write(framed("hello", cfg.Separator)); err != nil {
		t.Fatalf("write record: %v", err)
	}
	if _, err := conn.Write(framed("world", cfg.Separator)); err != nil {
		t.Fatalf("write record: %v", err)
	}

	for len(sink.snapshot()) < 2 {
		select {
		case <-sink.notify:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for records, got %q", sink.snapshot())
		}
	}
	conn.Close()

	got := sink.snapshot()
	if got[0] != "hello" || got[1] != "world" {
		t.Fatalf("record mismatch: %q", got)
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("shutdown timed out")
	}
}
