package fixsession

import (
	"sync"

	"github.com/finalex-io/fixgo/pkg/fixerrors"
)

// Registry is a process-wide, concurrency-safe mapping from session
// key to running session, grounded on the teacher's ConsumerManager
// (services/marketfeeds/.../aggregator/consumer_manager.go): a
// sync.Mutex-guarded map plus spawn/stop lifecycle per entry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry. Most callers use the package
// level Default registry via Start/SendMessage/Stop instead of
// constructing their own; a private Registry is useful in tests that
// must not share global state across parallel test cases.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Default is the process-wide registry the free functions Start,
// SendMessage, and Stop operate against.
var Default = NewRegistry()

func (r *Registry) insert(key string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[key]; exists {
		return fixerrors.ErrAlreadyStarted
	}
	r.sessions[key] = s
	return nil
}

func (r *Registry) lookup(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *Registry) delete(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

// Keys returns the session keys currently registered, for diagnostics.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}
