package terminal

import (
	"context"
	"errors"
	"io"
	"os"
	"slices"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blitzwolfz/aion-terminal/internal/infrastructure/shell"
	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// fakeChild echoes its input back as output until it exits.
type fakeChild struct {
	pid       int
	ignoreHUP bool
	waitErr   error

	exit    chan int
	outW    *io.PipeWriter
	once    sync.Once
	mu      sync.Mutex
	signals []os.Signal
}

func (c *fakeChild) Pid() int { return c.pid }

func (c *fakeChild) Wait() (int, error) {
	code := <-c.exit
	return code, c.waitErr
}

func (c *fakeChild) Signal(sig os.Signal) error {
	c.mu.Lock()
	c.signals = append(c.signals, sig)
	c.mu.Unlock()

	if sig == syscall.SIGKILL || (sig == syscall.SIGHUP && !c.ignoreHUP) {
		c.terminate(-1)
	}
	return nil
}

// terminate ends the process with code; later calls are ignored.
func (c *fakeChild) terminate(code int) {
	c.once.Do(func() {
		c.outW.Close()
		c.exit <- code
	})
}

func (c *fakeChild) receivedSignals() []os.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]os.Signal(nil), c.signals...)
}

type fakeMaster struct {
	outR *io.PipeReader
	inW  *io.PipeWriter

	mu     sync.Mutex
	sizes  [][2]uint16
	closed bool
}

func (m *fakeMaster) Resize(cols, rows uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes = append(m.sizes, [2]uint16{cols, rows})
	return nil
}

func (m *fakeMaster) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.inW.Close()
	return m.outR.Close()
}

func (m *fakeMaster) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeSpawner struct {
	err       error
	ignoreHUP bool
	waitErr   error

	mu       sync.Mutex
	commands []Command
	children []*fakeChild
	masters  []*fakeMaster
}

func (s *fakeSpawner) Spawn(cmd Command) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, cmd)
	if s.err != nil {
		return nil, s.err
	}

	outR, outW := io.Pipe()
	inR, inW := io.Pipe()

	child := &fakeChild{
		pid:       1000 + len(s.children),
		ignoreHUP: s.ignoreHUP,
		waitErr:   s.waitErr,
		exit:      make(chan int, 1),
		outW:      outW,
	}
	master := &fakeMaster{outR: outR, inW: inW}

	go func() {
		_, _ = io.Copy(outW, inR)
	}()

	s.children = append(s.children, child)
	s.masters = append(s.masters, master)

	return &Handle{Reader: outR, Writer: inW, Master: master, Child: child}, nil
}

func (s *fakeSpawner) child(i int) *fakeChild {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[i]
}

func (s *fakeSpawner) master(i int) *fakeMaster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.masters[i]
}

func (s *fakeSpawner) spawned() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.commands...)
}

type fakeResolver struct {
	err error
	env map[string]string
}

func (r fakeResolver) Resolve(override string) (shell.Info, error) {
	if r.err != nil {
		return shell.Info{}, r.err
	}
	path := "/bin/fake"
	if override != "" {
		path = override
	}
	return shell.Info{Path: path, Args: []string{"-l"}, Name: "fake"}, nil
}

func (r fakeResolver) DefaultEnv() map[string]string { return r.env }

type event struct {
	kind  string
	id    string
	data  string
	count int
	code  int32
}

// recordingSink captures events; onExit runs synchronously inside Exit.
type recordingSink struct {
	outputErr error
	onExit    func(id string)

	mu     sync.Mutex
	events []event
}

func (s *recordingSink) add(e event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Output(id string, data []byte) error {
	s.add(event{kind: "output", id: id, data: string(data)})
	return s.outputErr
}

func (s *recordingSink) MetricsCaptured(id string, count int) error {
	s.add(event{kind: "metrics", id: id, count: count})
	return nil
}

func (s *recordingSink) Exit(id string, code int32) error {
	if s.onExit != nil {
		s.onExit(id)
	}
	s.add(event{kind: "exit", id: id, code: code})
	return nil
}

func (s *recordingSink) ofKind(kind, id string) []event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []event
	for _, e := range s.events {
		if e.kind == kind && e.id == id {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) output(id string) string {
	var data string
	for _, e := range s.ofKind("output", id) {
		data += e.data
	}
	return data
}

// recordingIngester keeps every chunk and reports a completion for each
// chunk containing "DONE".
type recordingIngester struct {
	mu        sync.Mutex
	data      map[string]string
	streams   []types.Stream
	forgotten []types.Stream
}

func (r *recordingIngester) Ingest(_ context.Context, stream types.Stream, data []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.data == nil {
		r.data = map[string]string{}
	}
	if !slices.Contains(r.streams, stream) {
		r.streams = append(r.streams, stream)
	}
	r.data[stream.SessionID] += string(data)
	if string(data) == "DONE" {
		return 1
	}
	return 0
}

func (r *recordingIngester) Forget(stream types.Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, stream)
}

func (r *recordingIngester) seen(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[id]
}

// streamsOf returns the distinct streams ingested for id in arrival order.
func (r *recordingIngester) streamsOf(id string) []types.Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Stream
	for _, s := range r.streams {
		if s.SessionID == id {
			out = append(out, s)
		}
	}
	return out
}

func (r *recordingIngester) wasForgotten(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.forgotten {
		if f.SessionID == id {
			return true
		}
	}
	return false
}

func (r *recordingIngester) forgot(stream types.Stream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.forgotten, stream)
}

type countingRecorder struct {
	mu       sync.Mutex
	started  int
	ended    map[string]int
	bytes    int
	failures map[string]int
}

func (r *countingRecorder) SessionStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *countingRecorder) SessionEnded(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended == nil {
		r.ended = map[string]int{}
	}
	r.ended[reason]++
}

func (r *countingRecorder) RecordBytesRelayed(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes += n
}

func (r *countingRecorder) PublishFailed(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[event]++
}

func (r *countingRecorder) snapshot() (started int, ended map[string]int, failures map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ended = map[string]int{}
	for k, v := range r.ended {
		ended[k] = v
	}
	failures = map[string]int{}
	for k, v := range r.failures {
		failures[k] = v
	}
	return r.started, ended, failures
}

type harness struct {
	spawner  *fakeSpawner
	sink     *recordingSink
	ingester *recordingIngester
	recorder *countingRecorder
	manager  *Manager
}

func newHarness(t *testing.T, spawner *fakeSpawner, resolver ShellResolver) *harness {
	t.Helper()

	if spawner == nil {
		spawner = &fakeSpawner{}
	}
	if resolver == nil {
		resolver = fakeResolver{}
	}

	h := &harness{
		spawner:  spawner,
		sink:     &recordingSink{},
		ingester: &recordingIngester{},
		recorder: &countingRecorder{},
	}
	h.manager = NewManager(spawner, resolver, Options{
		Sink:         h.sink,
		Ingester:     h.ingester,
		Recorder:     h.recorder,
		KillGrace:    100 * time.Millisecond,
		DrainTimeout: 50 * time.Millisecond,
	})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, h.manager.Shutdown(ctx))
	})
	return h
}

func (h *harness) waitExit(t *testing.T, id string) event {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.sink.ofKind("exit", id)) > 0
	}, 3*time.Second, 5*time.Millisecond, "no exit event for %s", id)
	return h.sink.ofKind("exit", id)[0]
}

var errBoom = errors.New("boom")
