// Package process implements terminal.Spawner on top of creack/pty.
//
// Each child runs in its own session with the PTY slave as controlling
// terminal. Resizing the master sets the kernel window size, which delivers
// SIGWINCH to the foreground process group.
package process
