// Package id provides identifier generation for terminal sessions and
// websocket subscribers.
//
// Session IDs are normally chosen by the caller. When a caller does not
// supply one, a prefixed ULID is generated so that IDs sort by creation time
// and remain readable in logs (term_01HZX...).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies a terminal session
type SessionID string

// ClientID identifies a websocket subscriber
type ClientID string

const (
	SessionPrefix = "term"
	ClientPrefix  = "ws"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// ordering inside the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a ULID of the form prefix_ULID
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new terminal session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewClientID generates a new websocket subscriber ID
func NewClientID() ClientID {
	return ClientID(ClientPrefix + "_" + uuid.NewString())
}

func (id SessionID) String() string { return string(id) }
func (id ClientID) String() string  { return string(id) }
