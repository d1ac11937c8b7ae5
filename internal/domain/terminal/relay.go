package terminal

import (
	"errors"
	"io"
	"math"
	"os"
	"runtime/debug"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// supervise runs the relay and exit-watch tasks of one session and releases
// its resources once both are done.
func (m *Manager) supervise(s *Session) {
	defer m.tasks.Done()

	go m.relay(s)
	m.watchExit(s)

	// Let the relay drain output the child wrote just before exiting.
	drain := time.NewTimer(m.drainTimeout)
	select {
	case <-s.relayDone:
	case <-drain.C:
	}
	drain.Stop()

	if err := s.closeMaster(); err != nil {
		m.log.Debug("Closing pty master failed", zap.String("session_id", s.id), zap.Error(err))
	}
	<-s.relayDone

	m.ingester.Forget(s.stream)
}

// relay forwards every chunk to the sink, then to the ingester, before the
// next read.
func (m *Manager) relay(s *Session) {
	defer close(s.relayDone)
	defer m.recoverTask("relay", s.id)

	buf := make([]byte, m.bufferSize)
	for {
		n, err := s.reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			m.recorder.RecordBytesRelayed(n)

			if perr := m.sink.Output(s.id, chunk); perr != nil {
				m.publishFailed(types.EventOutput, s.id, perr)
			}
			if inserted := m.ingester.Ingest(m.ctx, s.stream, chunk); inserted > 0 {
				if perr := m.sink.MetricsCaptured(s.id, inserted); perr != nil {
					m.publishFailed(types.EventTokenCaptured, s.id, perr)
				}
			}
		}

		if err != nil {
			if !isEndOfStream(err) {
				m.log.Debug("Relay read ended", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

// watchExit blocks on the child and deregisters the session. The exit
// event is published only when this task removed the record.
func (m *Manager) watchExit(s *Session) {
	code := ExitCodeKilled

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("Exit watch panicked",
				zap.String("session_id", s.id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}

		s.markExited()
		if m.remove(s) {
			m.recorder.SessionEnded("exit")
			m.publishExit(s.id, code)
			m.log.Info("Session exited",
				zap.String("session_id", s.id),
				zap.Int("pid", s.pid),
				zap.Int32("code", code))
		}
	}()

	status, err := s.child.Wait()
	if err != nil {
		m.log.Warn("Waiting for session failed", zap.String("session_id", s.id), zap.Error(err))
		return
	}
	code = clampExitCode(status)
}

// discard tears down a process that lost a registration race.
func (m *Manager) discard(s *Session) {
	defer m.tasks.Done()
	defer m.recoverTask("discard", s.id)

	if err := s.signal(syscall.SIGKILL); err != nil {
		m.log.Debug("SIGKILL not delivered", zap.String("session_id", s.id), zap.Error(err))
	}
	if _, err := s.child.Wait(); err != nil {
		m.log.Debug("Reaping discarded session failed", zap.String("session_id", s.id), zap.Error(err))
	}
	s.markExited()
	if err := s.closeMaster(); err != nil {
		m.log.Debug("Closing pty master failed", zap.String("session_id", s.id), zap.Error(err))
	}
}

func (m *Manager) recoverTask(task, sessionID string) {
	if r := recover(); r != nil {
		m.log.Error("Session task panicked",
			zap.String("task", task),
			zap.String("session_id", sessionID),
			zap.Any("panic", r),
			zap.ByteString("stack", debug.Stack()))
	}
}

func clampExitCode(code int) int32 {
	switch {
	case code > math.MaxInt32:
		return math.MaxInt32
	case code < math.MinInt32:
		return math.MinInt32
	default:
		return int32(code)
	}
}

// isEndOfStream reports the errors a closed or hung-up PTY produces. Linux
// returns EIO once the slave side has no open descriptors.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EIO)
}
