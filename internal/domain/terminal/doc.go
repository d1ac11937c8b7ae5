// Package terminal manages interactive shell sessions running on
// pseudo-terminals.
//
// A Manager keeps a registry of live sessions keyed by a caller-chosen id.
// Each session owns two background tasks started at spawn time:
//
//   - relay: reads PTY output, publishes it to the EventSink and feeds the
//     same bytes to the Ingester before the next read.
//   - exit watch: blocks on the child, deregisters the session and publishes
//     the exit code.
//
// Kill removes a session synchronously and publishes ExitCodeKilled. When a
// kill races a natural exit, whichever removes the record publishes; the
// other is a no-op, so every session produces exactly one exit event.
//
// The registry lock is never held during I/O. The PTY master, the writer and
// the child each have their own lock.
package terminal
