package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/blitzwolfz/aion-terminal/internal/domain/terminal"
)

// Spawner starts commands on real pseudo-terminals.
type Spawner struct{}

// NewSpawner returns a PTY spawner.
func NewSpawner() *Spawner {
	return &Spawner{}
}

// Spawn opens a PTY sized cmd.Cols x cmd.Rows and starts cmd on its slave
// side as a session leader, so signals can target the whole process group.
func (s *Spawner) Spawn(cmd terminal.Command) (*terminal.Handle, error) {
	if cmd.Path == "" {
		return nil, errors.New("empty command path")
	}

	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env

	// pty.StartWithSize sets Setsid and Setctty.
	ptmx, err := pty.StartWithSize(c, &pty.Winsize{Cols: cmd.Cols, Rows: cmd.Rows})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	file, err := pollable(ptmx)
	if err != nil {
		_ = c.Process.Kill()
		_ = c.Wait()
		return nil, fmt.Errorf("failed to prepare PTY master: %w", err)
	}

	return &terminal.Handle{
		Reader: file,
		Writer: file,
		Master: &master{file: file},
		Child:  &child{cmd: c},
	}, nil
}

// pollable replaces ptmx with a non-blocking duplicate served by the runtime
// poller. Reads on it return once Close is called, even while a background
// job still holds the slave open.
func pollable(ptmx *os.File) (*os.File, error) {
	defer ptmx.Close()

	fd, err := unix.FcntlInt(ptmx.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return os.NewFile(uintptr(fd), ptmx.Name()), nil
}

type master struct {
	file *os.File
}

func (m *master) Resize(cols, rows uint16) error {
	return pty.Setsize(m.file, &pty.Winsize{Cols: cols, Rows: rows})
}

func (m *master) Close() error {
	return m.file.Close()
}

// Size reports the current window size.
func (m *master) Size() (cols, rows uint16, err error) {
	ws, err := pty.GetsizeFull(m.file)
	if err != nil {
		return 0, 0, err
	}
	return ws.Cols, ws.Rows, nil
}

type child struct {
	cmd *exec.Cmd

	mu     sync.Mutex
	reaped bool
}

func (c *child) Pid() int {
	return c.cmd.Process.Pid
}

// Wait reports the exit status. Death by signal reports -1.
func (c *child) Wait() (int, error) {
	err := c.cmd.Wait()

	c.mu.Lock()
	c.reaped = true
	c.mu.Unlock()

	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Signal delivers sig to the child's process group, falling back to the
// child alone. Once the child has been reaped its pid may be reused, so
// nothing is sent and os.ErrProcessDone is returned.
func (c *child) Signal(sig os.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reaped {
		return os.ErrProcessDone
	}
	s, ok := sig.(syscall.Signal)
	if !ok {
		return c.cmd.Process.Signal(sig)
	}

	// Signal 0 through the process handle fails once Wait has released
	// the child, even before reaped is set.
	if err := c.cmd.Process.Signal(syscall.Signal(0)); err != nil {
		return err
	}
	if err := unix.Kill(-c.cmd.Process.Pid, s); err == nil {
		return nil
	}
	return c.cmd.Process.Signal(sig)
}
