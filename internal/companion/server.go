package companion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/metrics"
)

// ServerConfig configures the companion server.
type ServerConfig struct {
	// Paths are tried in order; the first readable file is served.
	Paths []string
	// SocketPath is where ListenAndServe binds.
	SocketPath string
	// SocketMode is applied to the socket file when non-zero.
	SocketMode os.FileMode
	// AllowedUIDs restricts peers by uid when non-empty.
	AllowedUIDs []uint32
	// Blocklist options used to sanity check the served file.
	Blocklist blocklist.Options

	Metrics *metrics.Collector
	Logger  *slog.Logger
}

type snapshot struct {
	path    string
	data    []byte
	entries int
}

// Server answers each connection with the current blocklist file.
type Server struct {
	paths   []string
	socket  string
	mode    os.FileMode
	allowed map[uint32]struct{}
	opts    blocklist.Options
	metrics *metrics.Collector
	logger  *slog.Logger

	current  atomic.Pointer[snapshot]
	watching atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a server. Reload or Watch must be called to load data;
// until then each request reads the file directly.
func NewServer(cfg ServerConfig) (*Server, error) {
	if len(cfg.Paths) == 0 {
		return nil, errors.New("companion: at least one blocklist path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		paths:   append([]string(nil), cfg.Paths...),
		socket:  cfg.SocketPath,
		mode:    cfg.SocketMode,
		opts:    cfg.Blocklist,
		metrics: cfg.Metrics,
		logger:  logger,
	}
	if len(cfg.AllowedUIDs) > 0 {
		s.allowed = make(map[uint32]struct{}, len(cfg.AllowedUIDs))
		for _, uid := range cfg.AllowedUIDs {
			s.allowed[uid] = struct{}{}
		}
	}
	return s, nil
}

// Reload reads the first existing path into the served snapshot. When no
// path exists the server answers unavailable.
func (s *Server) Reload() error {
	snap, err := s.load()
	s.current.Store(snap)
	s.metrics.IncReload(err == nil)
	return err
}

func (s *Server) load() (*snapshot, error) {
	for _, p := range s.paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		snap := &snapshot{path: p, data: data}
		if bl, perr := blocklist.Parse(data, s.opts); perr != nil {
			s.logger.Warn("served blocklist will be rejected by clients", "path", p, "error", perr)
		} else {
			snap.entries = bl.Len()
		}
		return snap, nil
	}
	return nil, fmt.Errorf("%w: none of %v exist", ErrUnavailable, s.paths)
}

// Entries returns the entry count of the served snapshot.
func (s *Server) Entries() int {
	if snap := s.current.Load(); snap != nil {
		return snap.entries
	}
	return 0
}

func (s *Server) served() *snapshot {
	if !s.watching.Load() {
		snap, err := s.load()
		// Keep Entries in step with what was last served.
		s.current.Store(snap)
		if err != nil {
			s.logger.Debug("blocklist unavailable", "error", err)
			return nil
		}
		return snap
	}
	return s.current.Load()
}

// ListenAndServe binds the unix socket, replacing a stale one, and serves
// until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.socket == "" {
		return errors.New("companion: socket path is required")
	}
	if err := os.Remove(s.socket); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", s.socket)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.socket, err)
	}
	if s.mode != 0 {
		if err := os.Chmod(s.socket, s.mode); err != nil {
			ln.Close()
			return fmt.Errorf("chmod socket: %w", err)
		}
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.HandleConn(conn)
		}()
	}
}

// HandleConn answers one request and closes conn.
func (s *Server) HandleConn(conn net.Conn) {
	defer conn.Close()
	log := s.logger.With("conn", uuid.NewString())

	if len(s.allowed) > 0 {
		uid, err := peerUID(conn)
		if err != nil {
			log.Warn("peer credentials unavailable", "error", err)
			s.metrics.IncCompanionFailed()
			return
		}
		if _, ok := s.allowed[uid]; !ok {
			log.Warn("rejected companion peer", "uid", uid)
			s.metrics.IncCompanionFailed()
			_ = WriteUnavailable(conn)
			return
		}
	}

	snap := s.served()
	if snap == nil {
		s.metrics.IncCompanionFailed()
		if err := WriteUnavailable(conn); err != nil {
			log.Warn("write unavailable", "error", err)
		}
		return
	}
	if err := WriteBlob(conn, snap.data); err != nil {
		s.metrics.IncCompanionFailed()
		log.Warn("send blocklist", "path", snap.path, "error", err)
		return
	}
	s.metrics.IncCompanionServed()
	log.Debug("sent blocklist", "path", snap.path, "bytes", len(snap.data))
}
