package terminal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// Session is the runtime record of one live shell. Master, writer and child
// are locked independently so a resize never waits on a slow write.
type Session struct {
	id        string
	stream    types.Stream
	shell     string
	args      []string
	cwd       string
	pid       int
	startedAt time.Time

	reader io.Reader

	masterMu     sync.Mutex
	master       Master
	masterClosed bool
	cols, rows   uint16

	writerMu sync.Mutex
	writer   io.Writer

	// childMu serializes signals. Wait is only ever called by the
	// exit-watch task and never under this lock.
	childMu sync.Mutex
	child   Child

	exitOnce  sync.Once
	exited    chan struct{}
	relayDone chan struct{}
}

// Summary is an immutable snapshot of a session.
type Summary struct {
	SessionID string    `json:"session_id"`
	Shell     string    `json:"shell"`
	Args      []string  `json:"args,omitempty"`
	Cwd       string    `json:"cwd"`
	Pid       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Cols      uint16    `json:"cols"`
	Rows      uint16    `json:"rows"`
}

func newSession(id string, cmd Command, h *Handle, startedAt time.Time) *Session {
	return &Session{
		id:        id,
		stream:    types.Stream{SessionID: id},
		shell:     cmd.Path,
		args:      append([]string(nil), cmd.Args...),
		cwd:       cmd.Dir,
		pid:       h.Child.Pid(),
		startedAt: startedAt,
		reader:    h.Reader,
		master:    h.Master,
		cols:      cmd.Cols,
		rows:      cmd.Rows,
		writer:    h.Writer,
		child:     h.Child,
		exited:    make(chan struct{}),
		relayDone: make(chan struct{}),
	}
}

func (s *Session) summary() Summary {
	s.masterMu.Lock()
	cols, rows := s.cols, s.rows
	s.masterMu.Unlock()

	return Summary{
		SessionID: s.id,
		Shell:     s.shell,
		Args:      append([]string(nil), s.args...),
		Cwd:       s.cwd,
		Pid:       s.pid,
		StartedAt: s.startedAt,
		Cols:      cols,
		Rows:      rows,
	}
}

// sizer is implemented by masters that can read back the applied window
// size.
type sizer interface {
	Size() (cols, rows uint16, err error)
}

type flusher interface {
	Flush() error
}

func (s *Session) write(data []byte) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	if _, err := s.writer.Write(data); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, s.id, err)
	}
	if f, ok := s.writer.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("%w: flush %s: %v", ErrIO, s.id, err)
		}
	}
	return nil
}

func (s *Session) resize(cols, rows uint16) error {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()

	if s.masterClosed {
		return fmt.Errorf("%w: resize %s: pty closed", ErrIO, s.id)
	}
	if err := s.master.Resize(cols, rows); err != nil {
		return fmt.Errorf("%w: resize %s: %v", ErrIO, s.id, err)
	}
	if sz, ok := s.master.(sizer); ok {
		if c, r, err := sz.Size(); err == nil {
			cols, rows = c, r
		}
	}
	s.cols, s.rows = cols, rows
	return nil
}

// closeMaster is idempotent. Closing the master ends the relay's read.
func (s *Session) closeMaster() error {
	s.masterMu.Lock()
	defer s.masterMu.Unlock()

	if s.masterClosed {
		return nil
	}
	s.masterClosed = true
	return s.master.Close()
}

func (s *Session) signal(sig os.Signal) error {
	s.childMu.Lock()
	defer s.childMu.Unlock()
	return s.child.Signal(sig)
}

func (s *Session) markExited() {
	s.exitOnce.Do(func() { close(s.exited) })
}
