package event

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Key identifies one event channel and binds it to payload type T.
// Keys with the same name route to the same channel.
type Key[T any] struct {
	name string
}

// NewKey returns a key for the named event carrying payloads of type T.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// TypeKey returns a key named after T itself, for events whose payload type
// is their identity.
func TypeKey[T any]() Key[T] {
	return Key[T]{name: reflect.TypeOf((*T)(nil)).Elem().String()}
}

func (k Key[T]) Name() string { return k.name }

// Listener is a callback registered against a channel. Identity is the
// pointer: the same *Listener added twice is called twice.
type Listener[T any] struct {
	name string
	fn   func(T)
}

// NewListener wraps fn. The name only shows up in diagnostics. A nil fn
// panics.
func NewListener[T any](name string, fn func(T)) *Listener[T] {
	if fn == nil {
		panic(fmt.Sprintf("event: listener %q has a nil callback", name))
	}
	return &Listener[T]{name: name, fn: fn}
}

func (l *Listener[T]) Name() string { return l.name }

func (l *Listener[T]) String() string {
	if l.name == "" {
		return fmt.Sprintf("listener(%p)", l)
	}
	return l.name
}

// channel holds the ordered listeners of one event.
type channel[T any] struct {
	mu        sync.Mutex
	listeners []*Listener[T]
}

func (c *channel[T]) add(l *Listener[T]) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// remove drops the first registration of l.
func (c *channel[T]) remove(l *Listener[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.listeners {
		if cur == l {
			// copy into a fresh slice so in-flight snapshots stay intact
			next := make([]*Listener[T], 0, len(c.listeners)-1)
			next = append(next, c.listeners[:i]...)
			c.listeners = append(next, c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (c *channel[T]) snapshot() []*Listener[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners[:len(c.listeners):len(c.listeners)]
}

func (c *channel[T]) payloadType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (c *channel[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// ShapeMismatchError reports a channel stored under a name with a different
// payload type than the one requested. It is raised as a panic.
type ShapeMismatchError struct {
	Event string
	Want  reflect.Type
	Got   reflect.Type
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("event %q: channel payload is %s, requested %s", e.Event, e.Got, e.Want)
}

// Registry holds exactly one channel per event name. Channels are created on
// first subscribe or invoke and live as long as the registry.
// Safe for concurrent use; listeners run on the invoking goroutine with no
// registry lock held, so they may call back into the registry.
type Registry struct {
	mu       sync.RWMutex // only protects the channel map
	channels map[string]any
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		channels: make(map[string]any),
		log:      log,
	}
}

// StartListening registers l for future invocations of key. A nil l panics.
func StartListening[T any](r *Registry, key Key[T], l *Listener[T]) {
	if l == nil || l.fn == nil {
		panic(fmt.Sprintf("event %q: cannot listen with a nil listener", key.name))
	}
	lookupOrCreate(r, key).add(l)
}

// StopListening removes the first registration of l from key's channel.
// If the channel does not exist yet it logs a warning and returns false.
func StopListening[T any](r *Registry, key Key[T], l *Listener[T]) bool {
	ch := lookup(r, key)
	if ch == nil {
		r.log.Warn("listener did not stop listening to event because it does not exist yet",
			zap.Stringer("listener", l),
			zap.String("event", key.name))
		return false
	}
	return ch.remove(l)
}

// Invoke calls every listener registered on key when the call starts, in
// insertion order, with payload. Listeners added during the batch wait for
// the next Invoke; listeners removed during the batch are still called.
func Invoke[T any](r *Registry, key Key[T], payload T) {
	for _, l := range lookupOrCreate(r, key).snapshot() {
		l.fn(payload)
	}
}

// ListenerCount returns the number of registrations on key, 0 if the channel
// does not exist.
func ListenerCount[T any](r *Registry, key Key[T]) int {
	ch := lookup(r, key)
	if ch == nil {
		return 0
	}
	return ch.len()
}

// Has reports whether a channel exists for the named event.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[name]
	return ok
}

// Events returns the names of all existing channels, sorted.
func (r *Registry) Events() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func lookup[T any](r *Registry, key Key[T]) *channel[T] {
	r.mu.RLock()
	v, ok := r.channels[key.name]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return mustShape[T](key.name, v)
}

func lookupOrCreate[T any](r *Registry, key Key[T]) *channel[T] {
	if ch := lookup(r, key); ch != nil {
		return ch
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// another goroutine may have created it between the two locks
	if v, ok := r.channels[key.name]; ok {
		return mustShape[T](key.name, v)
	}
	ch := &channel[T]{}
	r.channels[key.name] = ch
	r.log.Debug("event channel created", zap.String("event", key.name))
	return ch
}

// mustShape asserts that v is the channel type for T. The registry only ever
// stores channel[T] under a name first used with T, so a miss means two keys
// were declared with the same name and different payloads.
func mustShape[T any](name string, v any) *channel[T] {
	ch, ok := v.(*channel[T])
	if !ok {
		err := &ShapeMismatchError{
			Event: name,
			Want:  reflect.TypeOf((*T)(nil)).Elem(),
		}
		if pt, ok := v.(interface{ payloadType() reflect.Type }); ok {
			err.Got = pt.payloadType()
		}
		panic(err)
	}
	return ch
}
