package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultCols           uint16 = 80
	DefaultRows           uint16 = 24
	DefaultKillGrace             = 3 * time.Second
	DefaultDrainTimeout          = 500 * time.Millisecond
	DefaultReadBufferSize        = 4096
)

// Options configures a Manager. Every field is optional.
type Options struct {
	Sink     EventSink
	Ingester Ingester
	Recorder Recorder
	Logger   *zap.Logger

	DefaultCols    uint16
	DefaultRows    uint16
	KillGrace      time.Duration
	DrainTimeout   time.Duration
	ReadBufferSize int
}

// Manager owns the registry of live sessions and their background tasks.
type Manager struct {
	spawner  Spawner
	resolver ShellResolver
	sink     EventSink
	ingester Ingester
	recorder Recorder
	log      *zap.Logger

	cols, rows   uint16
	killGrace    time.Duration
	drainTimeout time.Duration
	bufferSize   int

	// ctx scopes scraper persistence for every relay; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	sessions  map[string]*Session
	closed    bool
	instances atomic.Uint64

	tasks sync.WaitGroup
	now   func() time.Time
}

// NewManager creates a session manager.
func NewManager(spawner Spawner, resolver ShellResolver, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		spawner:      spawner,
		resolver:     resolver,
		sink:         opts.Sink,
		ingester:     opts.Ingester,
		recorder:     opts.Recorder,
		log:          opts.Logger,
		cols:         opts.DefaultCols,
		rows:         opts.DefaultRows,
		killGrace:    opts.KillGrace,
		drainTimeout: opts.DrainTimeout,
		bufferSize:   opts.ReadBufferSize,
		ctx:          ctx,
		cancel:       cancel,
		sessions:     make(map[string]*Session),
		now:          time.Now,
	}

	if m.sink == nil {
		m.sink = nopSink{}
	}
	if m.ingester == nil {
		m.ingester = nopIngester{}
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.cols == 0 {
		m.cols = DefaultCols
	}
	if m.rows == 0 {
		m.rows = DefaultRows
	}
	if m.killGrace <= 0 {
		m.killGrace = DefaultKillGrace
	}
	if m.drainTimeout <= 0 {
		m.drainTimeout = DefaultDrainTimeout
	}
	if m.bufferSize <= 0 {
		m.bufferSize = DefaultReadBufferSize
	}

	return m
}

// Spawn starts a shell on a new PTY and registers it under req.SessionID.
// A duplicate id fails with ErrSessionExists. Nothing is registered when
// spawning fails.
func (m *Manager) Spawn(ctx context.Context, req types.SpawnRequest) (Summary, error) {
	if req.SessionID == "" {
		return Summary{}, fmt.Errorf("%w: empty session id", ErrSpawn)
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	m.mu.RLock()
	_, exists := m.sessions[req.SessionID]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return Summary{}, ErrShutdown
	}
	if exists {
		return Summary{}, fmt.Errorf("%w: %s", ErrSessionExists, req.SessionID)
	}

	info, err := m.resolver.Resolve(req.Shell)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	cwd := req.Cwd
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			cwd = "."
		}
	}

	cols, rows := req.Cols, req.Rows
	if cols == 0 {
		cols = m.cols
	}
	if rows == 0 {
		rows = m.rows
	}

	cmd := Command{
		Path: info.Path,
		Args: info.Args,
		Dir:  cwd,
		Env:  mergeEnv(os.Environ(), m.resolver.DefaultEnv(), req.Env, map[string]string{"TERM": "xterm-256color"}),
		Cols: cols,
		Rows: rows,
	}

	handle, err := m.spawner.Spawn(cmd)
	if err != nil {
		m.log.Warn("Failed to spawn session",
			zap.String("session_id", req.SessionID),
			zap.String("shell", info.Path),
			zap.Error(err))
		return Summary{}, fmt.Errorf("%w: %s: %v", ErrSpawn, req.SessionID, err)
	}

	s := newSession(req.SessionID, cmd, handle, m.now())
	s.stream.Instance = m.instances.Add(1)

	m.mu.Lock()
	if _, taken := m.sessions[s.id]; taken || m.closed {
		shutdown := m.closed
		m.tasks.Add(1)
		m.mu.Unlock()

		go m.discard(s)
		if shutdown {
			return Summary{}, ErrShutdown
		}
		return Summary{}, fmt.Errorf("%w: %s", ErrSessionExists, s.id)
	}
	m.sessions[s.id] = s
	m.tasks.Add(1)
	m.mu.Unlock()

	m.recorder.SessionStarted()
	m.log.Info("Session spawned",
		zap.String("session_id", s.id),
		zap.String("shell", s.shell),
		zap.String("cwd", s.cwd),
		zap.Int("pid", s.pid))

	go m.supervise(s)

	return s.summary(), nil
}

// Write sends input to the session's child.
func (m *Manager) Write(sessionID string, data []byte) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return s.write(data)
}

// Resize changes the PTY window size; the kernel delivers SIGWINCH.
func (m *Manager) Resize(sessionID string, cols, rows uint16) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	return s.resize(cols, rows)
}

// Kill removes the session, terminates its process and publishes an exit
// event with ExitCodeKilled. SIGHUP is escalated to SIGKILL once the grace
// period elapses or ctx is done.
func (m *Manager) Kill(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	m.recorder.SessionEnded("killed")
	m.terminate(ctx, s)
	m.publishExit(s.id, ExitCodeKilled)

	m.log.Info("Session killed", zap.String("session_id", s.id), zap.Int("pid", s.pid))
	return nil
}

// List returns a snapshot of every registered session ordered by start time.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(live))
	for _, s := range live {
		out = append(out, s.summary())
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// Get returns the summary of one session.
func (m *Manager) Get(sessionID string) (Summary, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return Summary{}, err
	}
	return s.summary(), nil
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown kills every session, refuses new spawns and waits for all
// background tasks to finish or ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var kills sync.WaitGroup
	for _, id := range ids {
		kills.Add(1)
		go func() {
			defer kills.Done()
			if err := m.Kill(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
				m.log.Warn("Failed to kill session on shutdown", zap.String("session_id", id), zap.Error(err))
			}
		}()
	}
	kills.Wait()

	done := make(chan struct{})
	go func() {
		m.tasks.Wait()
		close(done)
	}()

	defer m.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s, nil
}

// remove deletes the entry only if it still refers to s.
func (m *Manager) remove(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
		return true
	}
	return false
}

// terminate signals the process group and waits for the exit-watch task to
// observe the exit, then closes the master.
func (m *Manager) terminate(ctx context.Context, s *Session) {
	log := m.log.With(zap.String("session_id", s.id), zap.Int("pid", s.pid))

	if err := s.signal(syscall.SIGHUP); err != nil {
		log.Debug("SIGHUP not delivered", zap.Error(err))
	}

	grace := time.NewTimer(m.killGrace)
	defer grace.Stop()

	select {
	case <-s.exited:
	case <-grace.C:
		m.forceKill(s, log)
	case <-ctx.Done():
		m.forceKill(s, log)
	}

	if err := s.closeMaster(); err != nil {
		log.Debug("Closing pty master failed", zap.Error(err))
	}
}

func (m *Manager) forceKill(s *Session, log *zap.Logger) {
	log.Warn("Session ignored SIGHUP, sending SIGKILL")
	if err := s.signal(syscall.SIGKILL); err != nil {
		log.Debug("SIGKILL not delivered", zap.Error(err))
	}

	wait := time.NewTimer(m.killGrace)
	defer wait.Stop()

	select {
	case <-s.exited:
	case <-wait.C:
		log.Error("Session still running after SIGKILL")
	}
}

func (m *Manager) publishExit(sessionID string, code int32) {
	if err := m.sink.Exit(sessionID, code); err != nil {
		m.publishFailed(types.EventExit, sessionID, err)
	}
}

func (m *Manager) publishFailed(event, sessionID string, err error) {
	m.recorder.PublishFailed(event)
	m.log.Debug("Event not delivered",
		zap.String("event", event),
		zap.String("session_id", sessionID),
		zap.Error(err))
}
