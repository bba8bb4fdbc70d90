package memory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxMessages = 10
	DefaultMaxAge      = 30 * time.Minute
)

// Role tags who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrInvalidRole = errors.New("invalid role")

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ParseRole converts untrusted input into a Role.
func ParseRole(v string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(v)))
	if !r.Valid() {
		return "", fmt.Errorf("%w %q (expected user|assistant)", ErrInvalidRole, v)
	}
	return r, nil
}

// UnmarshalText rejects unknown roles when entries are decoded from JSON.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Turn stores a single user or assistant message. Turns are never mutated after insertion.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is the (role, content) view returned by context reads.
type Entry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Config is fixed at construction.
type Config struct {
	// MaxMessages bounds each user's buffer. Zero or negative selects DefaultMaxMessages.
	MaxMessages int
	// MaxAge excludes older turns from context reads. Zero or negative selects DefaultMaxAge.
	MaxAge time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
	// OnEvict is called outside any lock after a turn is dropped for capacity.
	OnEvict func(userID string, evicted Turn)
}

// MaxAgeMinutes converts a fractional minute count into a duration.
func MaxAgeMinutes(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
