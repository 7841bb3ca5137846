// Package relay runs a byte-stream relay on top of a ring buffer: an
// ingest connection is drained into the ring in chunks, and complete
// separator-framed records are handed to a sink as they appear.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/streamring/framing"
	"github.com/danmuck/streamring/internal/observability"
	"github.com/danmuck/streamring/ring"
)

var (
	ErrInvalidCapacity  = errors.New("relay: invalid buffer capacity")
	ErrInvalidReadChunk = errors.New("relay: invalid read chunk size")
	ErrMissingListen    = errors.New("relay: missing listen address")
)

// Sink consumes one extracted record payload. Implementations must not
// retain the slice past the call.
type Sink interface {
	Consume(record []byte) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(record []byte) error

func (f SinkFunc) Consume(record []byte) error {
	return f(record)
}

// ServiceConfig configures relay runtime defaults.
type ServiceConfig struct {
	RelayID        string
	ListenAddr     string
	AdminAddr      string
	CapacityBytes  int
	ReadChunkBytes int
	Separator      framing.Separator
	// DropOldest discards the oldest buffered bytes when an ingest chunk
	// does not fit; otherwise the chunk itself is rejected.
	DropOldest bool
	Heartbeat  time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		RelayID:        "relay.local",
		ListenAddr:     ":9400",
		AdminAddr:      "",
		CapacityBytes:  64 * 1024,
		ReadChunkBytes: 4 * 1024,
		Separator:      framing.Separator{Value: 0xCCFB22AA, Len: 4},
		DropOldest:     true,
		Heartbeat:      30 * time.Second,
	}
}

// Service owns the ring buffer and serializes every access to it; the
// buffer itself is single-threaded by contract.
type Service struct {
	cfg  ServiceConfig
	sink Sink

	mu      sync.Mutex
	buf     *ring.Buffer
	scanner *framing.Scanner

	started      time.Time
	boundAddr    atomic.Value
	ingestTotal  atomic.Uint64
	dropTotal    atomic.Uint64
	recordTotal  atomic.Uint64
	sinkFailures atomic.Uint64
}

// Stats is a point-in-time snapshot for the admin surface.
type Stats struct {
	RelayID       string `json:"relay_id"`
	CapacityBytes int    `json:"capacity_bytes"`
	BufferedBytes int    `json:"buffered_bytes"`
	FreeBytes     int    `json:"free_bytes"`
	IngestBytes   uint64 `json:"ingest_bytes"`
	DroppedBytes  uint64 `json:"dropped_bytes"`
	Records       uint64 `json:"records"`
	SinkFailures  uint64 `json:"sink_failures"`
}

// NewService builds a relay around a fresh ring buffer. A nil sink logs
// each record through the global logger.
func NewService(cfg ServiceConfig, sink Sink) (*Service, error) {
	if cfg.CapacityBytes < 2 {
		return nil, ErrInvalidCapacity
	}
	if cfg.ReadChunkBytes < 1 || cfg.ReadChunkBytes > cfg.CapacityBytes {
		return nil, ErrInvalidReadChunk
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return nil, ErrMissingListen
	}
	if err := cfg.Separator.Validate(); err != nil {
		return nil, err
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	buf, err := ring.New(make([]byte, cfg.CapacityBytes))
	if err != nil {
		return nil, err
	}
	scanner, err := framing.NewScanner(buf, cfg.Separator)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = SinkFunc(func(record []byte) error {
			log.Info().
				Str("relay", cfg.RelayID).
				Int("bytes", len(record)).
				Msg("record")
			return nil
		})
	}
	return &Service{
		cfg:     cfg,
		sink:    sink,
		buf:     buf,
		scanner: scanner,
		started: time.Now(),
	}, nil
}

// Run blocks until a process signal triggers shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext serves until ctx is cancelled.
func (s *Service) RunContext(ctx context.Context) error {
	observability.RegisterMetrics()

	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}
	defer listener.Close()
	s.boundAddr.Store(listener.Addr().String())

	adminErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.AdminAddr) != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx, s.cfg.AdminAddr)
		}()
	}

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop(ctx, listener)
	}()

	log.Info().
		Str("relay", s.cfg.RelayID).
		Str("listen", listener.Addr().String()).
		Str("admin", s.cfg.AdminAddr).
		Int("capacity", s.cfg.CapacityBytes).
		Msg("relay.Service ready")

	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			listener.Close()
			log.Info().Str("relay", s.cfg.RelayID).Msg("relay.Service shutdown")
			return nil
		case err := <-adminErr:
			if err != nil {
				return err
			}
		case err := <-acceptErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			stats := s.Stats()
			log.Info().
				Str("relay", stats.RelayID).
				Int("buffered", stats.BufferedBytes).
				Uint64("records", stats.Records).
				Uint64("dropped", stats.DroppedBytes).
				Msg("relay.Service heartbeat")
		}
	}
}

// acceptLoop serves one ingest connection at a time: the buffer has a
// single producer by design and concurrent writers would interleave
// records arbitrarily.
func (s *Service) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("relay accept: %w", err)
		}
		s.handleConn(ctx, conn)
	}
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	log.Info().
		Str("relay", s.cfg.RelayID).
		Str("remote", conn.RemoteAddr().String()).
		Msg("relay.Service ingest connected")

	chunk := make([]byte, s.cfg.ReadChunkBytes)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			s.Ingest(chunk[:n])
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Info().
					Str("relay", s.cfg.RelayID).
					Str("remote", conn.RemoteAddr().String()).
					AnErr("cause", err).
					Msg("relay.Service ingest closed")
			}
			return
		}
	}
}

// Ingest appends one chunk to the ring and extracts every complete
// record that became available. When the chunk does not fit, the
// configured overflow policy applies: drop-oldest deletes just enough
// buffered bytes to make room, otherwise the chunk is rejected whole.
func (s *Service) Ingest(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.buf.WriteSpan(chunk); err != nil {
		if !errors.Is(err, ring.ErrInsufficientSpace) || !s.cfg.DropOldest {
			s.dropTotal.Add(uint64(len(chunk)))
			observability.RecordDrop(s.cfg.RelayID, "reject_chunk", len(chunk))
			log.Warn().
				Str("relay", s.cfg.RelayID).
				Int("bytes", len(chunk)).
				Msg("relay.Service chunk rejected, buffer full")
			return
		}
		need := s.buf.Length() + len(chunk) - s.buf.Capacity()
		if err := s.buf.Delete(need); err != nil {
			// need never exceeds the stored count when chunk <= capacity
			s.dropTotal.Add(uint64(len(chunk)))
			observability.RecordDrop(s.cfg.RelayID, "reject_chunk", len(chunk))
			return
		}
		s.dropTotal.Add(uint64(need))
		observability.RecordDrop(s.cfg.RelayID, "drop_oldest", need)
		if err := s.buf.WriteSpan(chunk); err != nil {
			s.dropTotal.Add(uint64(len(chunk)))
			observability.RecordDrop(s.cfg.RelayID, "reject_chunk", len(chunk))
			return
		}
	}
	s.ingestTotal.Add(uint64(len(chunk)))
	observability.RecordIngest(s.cfg.RelayID, len(chunk))

	s.drainLocked()
}

func (s *Service) drainLocked() {
	for {
		record, err := s.scanner.Next()
		if err != nil {
			if errors.Is(err, framing.ErrNoRecord) {
				observability.RecordScanMiss(s.cfg.RelayID)
			}
			return
		}
		s.recordTotal.Add(1)
		observability.RecordExtracted(s.cfg.RelayID, len(record))
		if err := s.sink.Consume(record); err != nil {
			s.sinkFailures.Add(1)
			log.Warn().
				Str("relay", s.cfg.RelayID).
				AnErr("cause", err).
				Msg("relay.Service sink failure")
		}
	}
}

// BoundAddr reports the ingest listener's resolved address once
// RunContext has bound it, allowing ":0" configs to be dialed.
func (s *Service) BoundAddr() string {
	addr, _ := s.boundAddr.Load().(string)
	return addr
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	buffered := s.buf.Length()
	free := s.buf.FreeSpace()
	s.mu.Unlock()

	return Stats{
		RelayID:       s.cfg.RelayID,
		CapacityBytes: s.cfg.CapacityBytes,
		BufferedBytes: buffered,
		FreeBytes:     free,
		IngestBytes:   s.ingestTotal.Load(),
		DroppedBytes:  s.dropTotal.Load(),
		Records:       s.recordTotal.Load(),
		SinkFailures:  s.sinkFailures.Load(),
	}
}
