package terminal

import (
	"context"

	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// EventSink receives session events for the presentation layer. Errors are
// counted and logged by the manager, never propagated.
type EventSink interface {
	Output(sessionID string, data []byte) error
	MetricsCaptured(sessionID string, count int) error
	Exit(sessionID string, code int32) error
}

// Ingester consumes relayed output and reports completed usage records.
// State is kept per stream and dropped by Forget.
type Ingester interface {
	Ingest(ctx context.Context, stream types.Stream, data []byte) int
	Forget(stream types.Stream)
}

// ShellResolver picks the shell command for a spawn.
type ShellResolver interface {
	Resolve(override string) (shell.Info, error)
	DefaultEnv() map[string]string
}

// Recorder observes session lifecycle for metrics.
type Recorder interface {
	SessionStarted()
	SessionEnded(reason string)
	RecordBytesRelayed(n int)
	PublishFailed(event string)
}

type nopSink struct{}

func (nopSink) Output(string, []byte) error { return nil }
func (nopSink) MetricsCaptured(string, int) error { return nil }
func (nopSink) Exit(string, int32) error { return nil }

type nopIngester struct{}

func (nopIngester) Ingest(context.Context, types.Stream, []byte) int { return 0 }
func (nopIngester) Forget(types.Stream) {}

type nopRecorder struct{}

func (nopRecorder) SessionStarted() {}
func (nopRecorder) SessionEnded(string) {}
func (nopRecorder) RecordBytesRelayed(int) {}
func (nopRecorder) PublishFailed(string) {}
