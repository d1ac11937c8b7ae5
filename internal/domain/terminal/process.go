package terminal

import (
	"io"
	"os"
)

// Command describes the child process a Spawner starts on a fresh PTY.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
	Cols uint16
	Rows uint16
}

// Master controls the PTY master side.
type Master interface {
	Resize(cols, rows uint16) error
	Close() error
}

// Child is the process attached to the PTY slave.
type Child interface {
	Pid() int
	// Wait blocks until the process terminates. It must be called at most
	// once. A process killed by a signal reports -1 with a nil error.
	Wait() (int, error)
	Signal(sig os.Signal) error
}

// Handle bundles the resources produced by one spawn. Reader and Writer may
// be the same file as the master.
type Handle struct {
	Reader io.Reader
	Writer io.Writer
	Master Master
	Child  Child
}

// Spawner opens a PTY and starts a command on it.
type Spawner interface {
	Spawn(cmd Command) (*Handle, error)
}
