package anchor

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator mints identifiers for newly tracked anchors.
// Implemented by UUIDv7Generator (production) and SequenceGenerator (tests).
type IDGenerator interface {
	NewID() ID
}

// UUIDv7Generator mints time-sortable UUIDv7 identifiers, which keeps
// identifiers in logs ordered by creation.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID returns a fresh UUIDv7 identifier. Panics if the system random source
// fails.
func (UUIDv7Generator) NewID() ID {
	return ID(uuid.Must(uuid.NewV7()).String())
}

// SequenceGenerator mints "<prefix>-0001", "<prefix>-0002", ... so that test
// runs and golden traces see the same identifiers every time.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequenceGenerator creates a generator. An empty prefix means "anchor".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "anchor"
	}
	return &SequenceGenerator{prefix: prefix, next: 1}
}

// NewID returns the next identifier in sequence.
func (g *SequenceGenerator) NewID() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ID(fmt.Sprintf("%s-%04d", g.prefix, g.next))
	g.next++
	return id
}
