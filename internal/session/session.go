package session

import (
	"os"
	"os/user"
	"sync"

	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// Well-known session keys.
const (
	Project          = "AVALON_PROJECT"
	Asset            = "AVALON_ASSET"
	Task             = "AVALON_TASK"
	App              = "AVALON_APP"
	AppName          = "AVALON_APP_NAME"
	Silo             = "AVALON_SILO"
	Hierarchy        = "AVALON_HIERARCHY"
	Workdir          = "AVALON_WORKDIR"
	User             = "AVALON_USER"
	Config           = "AVALON_CONFIG"
	OpenLastWorkfile = "AVALON_OPEN_LAST_WORKFILE"
	LastWorkfile     = "AVALON_LAST_WORKFILE"
	ThumbnailRoot    = "AVALON_THUMBNAIL_ROOT"
)

// KnownKeys lists the keys FromEnviron picks up, in session order.
var KnownKeys = []string{
	Project, Asset, Silo, Hierarchy, Task, App, AppName, Workdir,
	User, Config, OpenLastWorkfile, LastWorkfile, ThumbnailRoot,
}

// Environ is the process environment the session mirrors its writes into.
type Environ interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	Unset(key string) error
}

// OSEnviron mirrors into the real process environment.
type OSEnviron struct{}

func (OSEnviron) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (OSEnviron) Set(key, value string) error      { return os.Setenv(key, value) }
func (OSEnviron) Unset(key string) error           { return os.Unsetenv(key) }

// MapEnviron is an in-memory environment.
type MapEnviron map[string]string

func (m MapEnviron) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapEnviron) Set(key, value string) error {
	m[key] = value
	return nil
}

func (m MapEnviron) Unset(key string) error {
	delete(m, key)
	return nil
}

// Change is one session key update. Unset removes the key.
type Change struct {
	Key   string
	Value string
	Unset bool
}

// Changes is an ordered set of updates.
type Changes []Change

// Map returns the changes as a plain map; unset keys map to "".
func (c Changes) Map() map[string]string {
	out := make(map[string]string, len(c))
	for _, change := range c {
		out[change.Key] = change.Value
	}
	return out
}

// Get returns the value recorded for key in the changes.
func (c Changes) Get(key string) (string, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Key == key {
			return c[i].Value, true
		}
	}
	return "", false
}

// Session is the ordered mapping of AVALON_* keys describing the current
// working context. Writes are mirrored into its Environ when one is set.
type Session struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]string
	env    Environ
}

// New returns an empty session mirrored into env. A nil env disables
// mirroring.
func New(env Environ) *Session {
	return &Session{values: map[string]string{}, env: env}
}

// FromEnviron seeds a session with every known key present in env.
func FromEnviron(env Environ) *Session {
	s := New(env)
	for _, key := range KnownKeys {
		if value, ok := env.Lookup(key); ok {
			s.keys = append(s.keys, key)
			s.values[key] = value
		}
	}
	return s
}

// FromMap builds an unmirrored session. Keys follow KnownKeys order first,
// then any extra keys in the order given by extra.
func FromMap(values map[string]string, extra ...string) *Session {
	s := New(nil)
	seen := map[string]bool{}
	for _, key := range append(append([]string(nil), KnownKeys...), extra...) {
		if value, ok := values[key]; ok && !seen[key] {
			seen[key] = true
			s.keys = append(s.keys, key)
			s.values[key] = value
		}
	}
	return s
}

// Get returns the value of key.
func (s *Session) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Value returns the value of key or "".
func (s *Session) Value(key string) string {
	v, _ := s.Get(key)
	return v
}

// Set stores key and mirrors it into the environment.
func (s *Session) Set(key, value string) error {
	s.mu.Lock()
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
	env := s.env
	s.mu.Unlock()

	if env != nil {
		return env.Set(key, value)
	}
	return nil
}

// Unset removes key from the session and the environment.
func (s *Session) Unset(key string) error {
	s.mu.Lock()
	if _, exists := s.values[key]; exists {
		delete(s.values, key)
		for i, k := range s.keys {
			if k == key {
				s.keys = append(s.keys[:i], s.keys[i+1:]...)
				break
			}
		}
	}
	env := s.env
	s.mu.Unlock()

	if env != nil {
		return env.Unset(key)
	}
	return nil
}

// Apply writes every change in order.
func (s *Session) Apply(changes Changes) error {
	for _, change := range changes {
		var err error
		if change.Unset {
			err = s.Unset(change.Key)
		} else {
			err = s.Set(change.Key, change.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the keys in insertion order.
func (s *Session) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.keys...)
}

// Snapshot returns a copy of the values.
func (s *Session) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Copy returns an independent, unmirrored session with the same content.
func (s *Session) Copy() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := New(nil)
	c.keys = append([]string(nil), s.keys...)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// Require fails with an EnvironmentError naming every key that is missing
// or empty.
func (s *Session) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if s.Value(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return avalonerrors.NewEnvironmentError("", missing...)
	}
	return nil
}

// UserName returns AVALON_USER, falling back to the OS account name.
func (s *Session) UserName() string {
	if name := s.Value(User); name != "" {
		return name
	}
	if current, err := user.Current(); err == nil {
		return current.Username
	}
	return os.Getenv("USER")
}
