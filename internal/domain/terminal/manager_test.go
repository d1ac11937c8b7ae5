package terminal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

func spawn(t *testing.T, h *harness, id string) Summary {
	t.Helper()
	summary, err := h.manager.Spawn(context.Background(), types.SpawnRequest{SessionID: id, Cwd: "/tmp", Cols: 100, Rows: 30})
	require.NoError(t, err)
	return summary
}

func TestSpawnRegistersSession(t *testing.T) {
	h := newHarness(t, nil, nil)

	summary := spawn(t, h, "a")
	assert.Equal(t, "a", summary.SessionID)
	assert.Equal(t, "/bin/fake", summary.Shell)
	assert.Equal(t, []string{"-l"}, summary.Args)
	assert.Equal(t, "/tmp", summary.Cwd)
	assert.Equal(t, 1000, summary.Pid)
	assert.Equal(t, uint16(100), summary.Cols)
	assert.Equal(t, uint16(30), summary.Rows)
	assert.False(t, summary.StartedAt.IsZero())

	// Visible immediately after Spawn returns
	list := h.manager.List()
	require.Len(t, list, 1)
	assert.Equal(t, summary, list[0])

	got, err := h.manager.Get("a")
	require.NoError(t, err)
	assert.Equal(t, summary, got)
	assert.Equal(t, 1, h.manager.Count())
}

func TestSpawnDefaults(t *testing.T) {
	h := newHarness(t, nil, nil)

	_, err := h.manager.Spawn(context.Background(), types.SpawnRequest{SessionID: "a"})
	require.NoError(t, err)

	cmd := h.spawner.spawned()[0]
	assert.Equal(t, DefaultCols, cmd.Cols)
	assert.Equal(t, DefaultRows, cmd.Rows)
	assert.NotEmpty(t, cmd.Dir)
}

func TestSpawnShellOverride(t *testing.T) {
	h := newHarness(t, nil, nil)

	summary, err := h.manager.Spawn(context.Background(), types.SpawnRequest{SessionID: "a", Shell: "/bin/other"})
	require.NoError(t, err)
	assert.Equal(t, "/bin/other", summary.Shell)
}

func TestSpawnMergesEnvironment(t *testing.T) {
	t.Setenv("AION_INHERITED", "yes")
	t.Setenv("TERM", "dumb")

	h := newHarness(t, nil, fakeResolver{env: map[string]string{"EDITOR": "vim", "PAGER": "less"}})

	_, err := h.manager.Spawn(context.Background(), types.SpawnRequest{
		SessionID: "a",
		Env:       map[string]string{"PAGER": "more", "TERM": "vt100"},
	})
	require.NoError(t, err)

	env := map[string]string{}
	for _, kv := range h.spawner.spawned()[0].Env {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}

	assert.Equal(t, "yes", env["AION_INHERITED"])
	assert.Equal(t, "vim", env["EDITOR"])
	assert.Equal(t, "more", env["PAGER"])
	assert.Equal(t, "xterm-256color", env["TERM"])
}

func TestSpawnDuplicateFails(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")

	_, err := h.manager.Spawn(context.Background(), types.SpawnRequest{SessionID: "a"})
	assert.ErrorIs(t, err, ErrSessionExists)
	assert.Len(t, h.spawner.spawned(), 1)
	assert.Len(t, h.manager.List(), 1)
}

func TestSpawnFailureRegistersNothing(t *testing.T) {
	h := newHarness(t, &fakeSpawner{err: errBoom}, nil)

	_, err := h.manager.Spawn(context.Background(), types.SpawnRequest{SessionID: "a"})
	assert.ErrorIs(t, err, ErrSpawn)
	assert.Empty(t, h.manager.List())

	started, _, _ := h.recorder.snapshot()
	assert.Zero(t, started)
}

func TestSpawnResolveFailure(t *testing.T) {
	h := newHarness(t, nil, fakeResolver{err: fmt.Errorf("%w: nothing installed", shell.ErrResolve)})

	_, err := h.manager.Spawn(context.Background(), types.SpawnRequest{SessionID: "a"})
	assert.ErrorIs(t, err, ErrSpawn)
	assert.ErrorIs(t, err, shell.ErrResolve)
	assert.Empty(t, h.spawner.spawned())
}

func TestSpawnRejectsEmptyID(t *testing.T) {
	h := newHarness(t, nil, nil)

	_, err := h.manager.Spawn(context.Background(), types.SpawnRequest{})
	assert.ErrorIs(t, err, ErrSpawn)
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	h := newHarness(t, nil, nil)

	assert.ErrorIs(t, h.manager.Write("missing", []byte("x")), ErrNotFound)
	assert.ErrorIs(t, h.manager.Resize("missing", 10, 10), ErrNotFound)
	assert.ErrorIs(t, h.manager.Kill(context.Background(), "missing"), ErrNotFound)

	_, err := h.manager.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, h.spawner.spawned())
	assert.Empty(t, h.sink.ofKind("exit", "missing"))
}

func TestWriteIsRelayedAndIngested(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")

	require.NoError(t, h.manager.Write("a", []byte("hello ")))
	require.NoError(t, h.manager.Write("a", []byte("world")))

	require.Eventually(t, func() bool {
		return h.ingester.seen("a") == "hello world"
	}, 2*time.Second, 5*time.Millisecond)

	// Chunks are published before they are ingested
	assert.Equal(t, "hello world", h.sink.output("a"))
}

func TestCompletedRecordsArePublished(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")

	require.NoError(t, h.manager.Write("a", []byte("DONE")))

	require.Eventually(t, func() bool {
		return len(h.sink.ofKind("metrics", "a")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.sink.ofKind("metrics", "a")[0].count)
}

func TestPublishFailureDoesNotStopIngestion(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.sink.outputErr = errBoom
	spawn(t, h, "a")

	require.NoError(t, h.manager.Write("a", []byte("one")))
	require.NoError(t, h.manager.Write("a", []byte("two")))

	require.Eventually(t, func() bool {
		return h.ingester.seen("a") == "onetwo"
	}, 2*time.Second, 5*time.Millisecond)

	_, _, failures := h.recorder.snapshot()
	assert.Equal(t, 2, failures[types.EventOutput])
}

func TestResizeUpdatesSummary(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")

	require.NoError(t, h.manager.Resize("a", 132, 43))

	got, err := h.manager.Get("a")
	require.NoError(t, err)
	assert.Equal(t, uint16(132), got.Cols)
	assert.Equal(t, uint16(43), got.Rows)

	m := h.spawner.master(0)
	m.mu.Lock()
	assert.Equal(t, [][2]uint16{{132, 43}}, m.sizes)
	m.mu.Unlock()
}

// boundedMaster applies at most 200x50, the way a kernel clamps a request.
type boundedMaster struct {
	cols, rows uint16
}

func (m *boundedMaster) Resize(cols, rows uint16) error {
	m.cols, m.rows = min(cols, 200), min(rows, 50)
	return nil
}

func (m *boundedMaster) Close() error { return nil }

func (m *boundedMaster) Size() (uint16, uint16, error) { return m.cols, m.rows, nil }

func TestResizeRecordsAppliedSize(t *testing.T) {
	s := newSession("a", Command{Cols: 80, Rows: 24}, &Handle{Master: &boundedMaster{}, Child: &fakeChild{pid: 1}}, time.Now())

	require.NoError(t, s.resize(500, 40))

	got := s.summary()
	assert.Equal(t, uint16(200), got.Cols)
	assert.Equal(t, uint16(40), got.Rows)
}

type failingMaster struct{}

func (failingMaster) Resize(uint16, uint16) error { return nil }
func (failingMaster) Close() error { return errBoom }

func TestDiscardLogsCloseFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := NewManager(&fakeSpawner{}, fakeResolver{}, Options{Logger: zap.New(core)})

	_, outW := io.Pipe()
	child := &fakeChild{pid: 7, exit: make(chan int, 1), outW: outW}
	s := newSession("lost", Command{}, &Handle{Master: failingMaster{}, Child: child}, time.Now())

	m.tasks.Add(1)
	m.discard(s)

	assert.Equal(t, []os.Signal{syscall.SIGKILL}, child.receivedSignals())
	entries := logs.FilterMessage("Closing pty master failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "lost", entries[0].ContextMap()["session_id"])
}

func TestNaturalExit(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")

	var listedAtExit []Summary
	h.sink.onExit = func(string) { listedAtExit = h.manager.List() }

	h.spawner.child(0).terminate(3)

	ev := h.waitExit(t, "a")
	assert.Equal(t, int32(3), ev.code)
	assert.Empty(t, listedAtExit, "session still listed when its exit was published")
	assert.Empty(t, h.manager.List())
	assert.ErrorIs(t, h.manager.Write("a", []byte("x")), ErrNotFound)

	require.Eventually(t, func() bool {
		return h.ingester.wasForgotten("a") && h.spawner.master(0).isClosed()
	}, 2*time.Second, 5*time.Millisecond)

	_, ended, _ := h.recorder.snapshot()
	assert.Equal(t, 1, ended["exit"])
}

func TestWaitFailurePublishesKilledCode(t *testing.T) {
	h := newHarness(t, &fakeSpawner{waitErr: errBoom}, nil)
	spawn(t, h, "a")

	h.spawner.child(0).terminate(0)

	assert.Equal(t, ExitCodeKilled, h.waitExit(t, "a").code)
	assert.Empty(t, h.manager.List())
}

func TestKill(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")

	require.NoError(t, h.manager.Kill(context.Background(), "a"))

	assert.Empty(t, h.manager.List())
	exits := h.sink.ofKind("exit", "a")
	require.Len(t, exits, 1)
	assert.Equal(t, ExitCodeKilled, exits[0].code)
	assert.Equal(t, []os.Signal{syscall.SIGHUP}, h.spawner.child(0).receivedSignals())
	assert.True(t, h.spawner.master(0).isClosed())

	// The exit watch sees the process end but publishes nothing more
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.sink.ofKind("exit", "a"), 1)

	assert.ErrorIs(t, h.manager.Kill(context.Background(), "a"), ErrNotFound)

	_, ended, _ := h.recorder.snapshot()
	assert.Equal(t, map[string]int{"killed": 1}, ended)
}

func TestKillEscalates(t *testing.T) {
	h := newHarness(t, &fakeSpawner{ignoreHUP: true}, nil)
	spawn(t, h, "a")

	start := time.Now()
	require.NoError(t, h.manager.Kill(context.Background(), "a"))

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, []os.Signal{syscall.SIGHUP, syscall.SIGKILL}, h.spawner.child(0).receivedSignals())
	assert.Equal(t, ExitCodeKilled, h.sink.ofKind("exit", "a")[0].code)
}

func TestKillEscalatesWhenContextDone(t *testing.T) {
	h := newHarness(t, &fakeSpawner{ignoreHUP: true}, nil)
	spawn(t, h, "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.manager.Kill(ctx, "a"))
	assert.Contains(t, h.spawner.child(0).receivedSignals(), os.Signal(syscall.SIGKILL))
}

func TestKillRacesNaturalExit(t *testing.T) {
	h := newHarness(t, nil, nil)

	const n = 50
	for i := 0; i < n; i++ {
		spawn(t, h, fmt.Sprintf("s%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("s%d", i)
		child := h.spawner.child(i)

		wg.Add(2)
		go func() {
			defer wg.Done()
			child.terminate(0)
		}()
		go func() {
			defer wg.Done()
			_ = h.manager.Kill(context.Background(), id)
		}()
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		h.waitExit(t, fmt.Sprintf("s%d", i))
	}
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < n; i++ {
		assert.Len(t, h.sink.ofKind("exit", fmt.Sprintf("s%d", i)), 1)
	}
	assert.Empty(t, h.manager.List())

	_, ended, _ := h.recorder.snapshot()
	assert.Equal(t, n, ended["exit"]+ended["killed"])
}

func TestWriteToClosedSessionIsIOError(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")

	h.manager.mu.RLock()
	s := h.manager.sessions["a"]
	h.manager.mu.RUnlock()

	require.NoError(t, h.manager.Kill(context.Background(), "a"))

	// A write already holding the record fails cleanly
	assert.ErrorIs(t, s.write([]byte("late")), ErrIO)
	assert.ErrorIs(t, s.resize(1, 1), ErrIO)
}

func TestSpawnReusesIDAfterExit(t *testing.T) {
	h := newHarness(t, nil, nil)
	spawn(t, h, "a")
	require.NoError(t, h.manager.Write("a", []byte("one")))
	require.Eventually(t, func() bool { return h.ingester.seen("a") == "one" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, h.manager.Kill(context.Background(), "a"))
	second := spawn(t, h, "a")
	require.NoError(t, h.manager.Write("a", []byte("two")))

	assert.Equal(t, 1001, second.Pid)
	assert.Len(t, h.manager.List(), 1)

	// Each instance is scraped under its own stream and the old one is
	// dropped even though the id is live again.
	require.Eventually(t, func() bool { return len(h.ingester.streamsOf("a")) == 2 }, 2*time.Second, 5*time.Millisecond)
	streams := h.ingester.streamsOf("a")
	assert.NotEqual(t, streams[0].Instance, streams[1].Instance)

	require.Eventually(t, func() bool { return h.ingester.forgot(streams[0]) }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, h.ingester.forgot(streams[1]))
}

func TestShutdown(t *testing.T) {
	spawner := &fakeSpawner{}
	m := NewManager(spawner, fakeResolver{}, Options{KillGrace: 50 * time.Millisecond})

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Spawn(context.Background(), types.SpawnRequest{SessionID: id})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	assert.Empty(t, m.List())
	_, err := m.Spawn(context.Background(), types.SpawnRequest{SessionID: "d"})
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestClampExitCode(t *testing.T) {
	assert.Equal(t, int32(0), clampExitCode(0))
	assert.Equal(t, int32(-1), clampExitCode(-1))
	assert.Equal(t, int32(2147483647), clampExitCode(1<<40))
	assert.Equal(t, int32(-2147483648), clampExitCode(-(1 << 40)))
}
