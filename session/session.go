package session

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an HTTP session with associated data.
type Session struct {
	// Unique identifier for this session
	id string

	// used to determine the cookie expiration
	createdAt time.Time

	// Session data as key-value pairs
	values map[string]any

	// Indicates if the session needs to be destroyed
	isDestroyed bool

	isModified bool
}

// newSession creates a new Session with a unique ID, current timestamp,
// and an empty values map.
func newSession() *Session {
	return &Session{
		id:        newID(),
		createdAt: time.Now(),
		values:    make(map[string]any),
	}
}

// newID returns a time ordered UUIDv7, falling back to a random UUIDv4
// when the clock sequence can't be produced.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Destroy removes all values and marks the session to be deleted from
// the store.
func (s *Session) Destroy() {
	s.Clear()
	s.isDestroyed = true
}

// Set adds or updates a value in the session.
func (s *Session) Set(key string, value any) {
	s.isModified = true
	s.values[key] = value
}

// SetWeak adds or updates a value in the session without marking it
// modified. The value is saved only if something else modifies the
// session.
func (s *Session) SetWeak(key string, value any) {
	s.values[key] = value
}

// Delete removes a value from the session.
func (s *Session) Delete(key string) {
	s.isModified = true
	delete(s.values, key)
}

// Clear removes all values from the session.
func (s *Session) Clear() {
	s.isModified = true
	s.values = make(map[string]any)
}

func (s *Session) GetCreatedAt() time.Time {
	return s.createdAt
}

func (s *Session) GetID() string {
	return s.id
}

// Get retrieves a value from the session.
// Returns nil if the key doesn't exist.
func (s *Session) Get(key string) any {
	return s.values[key]
}

// value returns the value stored under key as a T, or the zero T when
// the key is missing or holds another type.
func value[T any](s *Session, key string) T {
	v, _ := s.values[key].(T)
	return v
}

func (s *Session) GetInt(key string) int         { return value[int](s, key) }
func (s *Session) GetUint(key string) uint       { return value[uint](s, key) }
func (s *Session) GetBool(key string) bool       { return value[bool](s, key) }
func (s *Session) GetFloat32(key string) float32 { return value[float32](s, key) }
func (s *Session) GetFloat64(key string) float64 { return value[float64](s, key) }
func (s *Session) GetString(key string) string   { return value[string](s, key) }
