package scraper

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blitzwolfz/aion-terminal/internal/shared/types"
)

// DefaultPersistTimeout bounds a single store insert.
const DefaultPersistTimeout = 5 * time.Second

// Store persists completed usage records.
type Store interface {
	InsertUsage(ctx context.Context, record types.UsageRecord) (int64, error)
}

// Recorder counts persistence outcomes, "stored" or "failed".
type Recorder interface {
	UsageRecorded(status string)
}

// Options configures a Scraper.
type Options struct {
	Agent          string
	PersistTimeout time.Duration
	Logger         *zap.Logger
	Recorder       Recorder
	Now            func() time.Time
}

// Scraper extracts usage summaries from terminal output, one independent
// state per stream.
type Scraper struct {
	store    Store
	agent    string
	timeout  time.Duration
	log      *zap.Logger
	recorder Recorder
	now      func() time.Time

	bufMu   sync.Mutex
	buffers map[types.Stream]*lineBuffer

	stateMu sync.Mutex
	states  map[types.Stream]*Accumulator
}

// New creates a Scraper writing completed records to store.
func New(store Store, opts Options) *Scraper {
	s := &Scraper{
		store:    store,
		agent:    opts.Agent,
		timeout:  opts.PersistTimeout,
		log:      opts.Logger,
		recorder: opts.Recorder,
		now:      opts.Now,
		buffers:  make(map[types.Stream]*lineBuffer),
		states:   make(map[types.Stream]*Accumulator),
	}

	if s.agent == "" {
		s.agent = types.DefaultAgent
	}
	if s.timeout <= 0 {
		s.timeout = DefaultPersistTimeout
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Ingest feeds a chunk of raw output for a stream and returns the number
// of usage summaries it completed. Each completion is persisted before the
// next line is examined; a failed insert is logged and the data dropped.
func (s *Scraper) Ingest(ctx context.Context, stream types.Stream, data []byte) int {
	if len(data) == 0 {
		return 0
	}

	s.bufMu.Lock()
	buf, ok := s.buffers[stream]
	if !ok {
		buf = &lineBuffer{}
		s.buffers[stream] = buf
	}
	raw := buf.feed(data)
	s.bufMu.Unlock()

	completed := 0
	for _, r := range raw {
		record, ok := s.advance(stream, cleanLine(r))
		if !ok {
			continue
		}
		completed++
		s.persist(ctx, record)
	}
	return completed
}

// Forget drops all state kept for a stream.
func (s *Scraper) Forget(stream types.Stream) {
	s.bufMu.Lock()
	delete(s.buffers, stream)
	s.bufMu.Unlock()

	s.stateMu.Lock()
	delete(s.states, stream)
	s.stateMu.Unlock()
}

// advance applies one line and, on completion, returns the record and
// resets the stream's accumulator.
func (s *Scraper) advance(stream types.Stream, line string) (types.UsageRecord, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	acc, ok := s.states[stream]
	if !ok {
		acc = &Accumulator{}
		s.states[stream] = acc
	}

	acc.Apply(line)
	if !acc.Complete(line) {
		return types.UsageRecord{}, false
	}

	record := acc.Record(stream.SessionID, s.agent, s.now())
	acc.Reset()
	return record, true
}

func (s *Scraper) persist(ctx context.Context, record types.UsageRecord) {
	log := s.log.With(
		zap.String("session_id", record.SessionID),
		zap.Float64("cost_usd", record.CostUSD),
		zap.Int64("tokens_total", record.TokensTotal))

	if s.store == nil {
		s.recorder.UsageRecorded("failed")
		log.Warn("Dropping usage record, no store configured")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id, err := s.store.InsertUsage(ctx, record)
	if err != nil {
		s.recorder.UsageRecorded("failed")
		log.Warn("Dropping usage record", zap.Error(err))
		return
	}

	s.recorder.UsageRecorded("stored")
	log.Info("Usage captured", zap.Int64("id", id))
}

type nopRecorder struct{}

func (nopRecorder) UsageRecorded(string) {}
