package channel

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrValidation is returned when channel parameters are missing or invalid.
var ErrValidation = errors.New("invalid channel parameters")

// ParseError reports a malformed channel id list.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse channel id %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Registry is the process-wide table of channels. Reads take a shared lock;
// creation takes the exclusive lock. Entries are never removed or rebound.
type Registry struct {
	mu              sync.RWMutex
	channels        map[uuid.UUID]*Channel
	order           []*Channel
	defaultCapacity int
	maxCapacity     int
}

// Option configures a Registry.
type Option func(*Registry)

// WithDefaultCapacity sets the capacity used when none is given.
func WithDefaultCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.defaultCapacity = n
		}
	}
}

// WithMaxCapacity caps the capacity a caller may request. Zero means no cap.
func WithMaxCapacity(n int) Option {
	return func(r *Registry) {
		if n >= 0 {
			r.maxCapacity = n
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		channels:        make(map[uuid.UUID]*Channel),
		defaultCapacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new channel and returns its id. The name is stored as
// given but must not be blank. A non-positive capacity falls back to the
// default; a capacity above the configured maximum is clamped to it.
func (r *Registry) Create(name string, capacity int) (uuid.UUID, error) {
	if strings.TrimSpace(name) == "" {
		return uuid.Nil, fmt.Errorf("%w: channel name is required", ErrValidation)
	}
	if capacity <= 0 {
		capacity = r.defaultCapacity
	}
	if r.maxCapacity > 0 && capacity > r.maxCapacity {
		capacity = r.maxCapacity
	}

	ch := newChannel(name, capacity)

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if _, taken := r.channels[ch.id]; !taken {
			break
		}
		ch.id = uuid.New()
	}
	r.channels[ch.id] = ch
	r.order = append(r.order, ch)
	return ch.id, nil
}

// List returns a snapshot of every channel in creation order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, ch := range r.order {
		infos = append(infos, ch.Info())
	}
	return infos
}

// Lookup returns the channel registered under id.
func (r *Registry) Lookup(id uuid.UUID) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Resolve maps ids to channels through Lookup. Unknown ids are skipped and
// duplicates are collapsed, keeping the order of first appearance.
func (r *Registry) Resolve(ids []uuid.UUID) []*Channel {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]*Channel, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if ch, ok := r.Lookup(id); ok {
			out = append(out, ch)
		}
	}
	return out
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Shutdown closes every channel bus so blocked subscribers return.
// The registry keeps its entries.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.order {
		ch.close()
	}
}

// ParseIDList parses a comma-separated list of channel ids. Whitespace
// around each id is ignored; any element that is not a UUID, including an
// empty element, fails the whole list.
func ParseIDList(s string) ([]uuid.UUID, error) {
	parts := strings.Split(s, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, &ParseError{Value: part, Err: err}
		}
		ids = append(ids, id)
	}
	return ids, nil
}
