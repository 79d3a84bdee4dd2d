// Package session persists the signed-in user's credentials and roles under a single key.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Key is the fixed key the session record is stored under
const Key = "user"

// RoleAdmin is the role granting access to admin endpoints
const RoleAdmin = "ROLE_ADMIN"

// ErrNoSession is returned when no session is stored
var ErrNoSession = errors.New("no session stored")

// ParseError reports a stored session that exists but cannot be decoded
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed session record: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Session is the credential and role data of the signed-in user. Fields the backend sends
// that are not modelled here are kept in Extra and written back unchanged.
type Session struct {
	AccessToken  string
	RefreshToken string
	Username     string
	Email        string
	Roles        []string
	Extra        map[string]any
}

var knownKeys = []string{"accessToken", "token", "refreshToken", "username", "email", "roles"}

// UnmarshalJSON accepts token as an alias of accessToken and a single role string.
// Numbers are kept as json.Number so they are written back unchanged.
func (s *Session) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*s = FromMap(raw)
	return nil
}

// FromMap builds a session from a decoded backend payload (sign-in response or stored record)
func FromMap(raw map[string]any) Session {
	s := Session{
		AccessToken:  firstString(raw, "accessToken", "token"),
		RefreshToken: firstString(raw, "refreshToken"),
		Username:     firstString(raw, "username"),
		Email:        firstString(raw, "email"),
		Roles:        parseRoles(raw["roles"]),
	}

	for k, v := range raw {
		if isKnown(k) {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[k] = v
	}
	return s
}

// MarshalJSON writes the known fields over the preserved extra fields
func (s Session) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+5)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["accessToken"] = s.AccessToken
	if s.RefreshToken != "" {
		out["refreshToken"] = s.RefreshToken
	}
	if s.Username != "" {
		out["username"] = s.Username
	}
	if s.Email != "" {
		out["email"] = s.Email
	}
	roles := s.Roles
	if roles == nil {
		roles = []string{}
	}
	out["roles"] = roles
	return json.Marshal(out)
}

// Token returns the bearer token
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.AccessToken
}

// HasRole reports whether the session carries role
func (s *Session) HasRole(role string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the session carries the admin role
func (s *Session) IsAdmin() bool {
	return s.HasRole(RoleAdmin)
}

// TokenExpiry reads the exp claim of a JWT access token without verifying its signature.
// The second result is false when the token is not a JWT or has no exp claim.
func (s *Session) TokenExpiry() (time.Time, bool) {
	if s == nil || s.AccessToken == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Backend stores the raw session record
type Backend interface {
	// Get returns ErrNoSession when nothing is stored
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, value string) error
	// Delete succeeds when nothing is stored
	Delete(ctx context.Context) error
}

// Store reads and writes the session through a Backend
type Store struct {
	backend Backend
}

// NewStore creates a session store over backend
func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load returns the stored session. Errors: ErrNoSession when absent, *ParseError when the
// record is malformed, anything else from the backend.
func (st *Store) Load(ctx context.Context) (*Session, error) {
	raw, err := st.backend.Get(ctx)
	if err != nil {
		return nil, err
	}
	if raw == "" || raw == "null" {
		return nil, ErrNoSession
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return &s, nil
}

// Save overwrites the stored session
func (st *Store) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return errors.New("cannot save a nil session")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := st.backend.Set(ctx, string(data)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Clear deletes the stored session
func (st *Store) Clear(ctx context.Context) error {
	if err := st.backend.Delete(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func parseRoles(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []string:
		return x
	case []any:
		roles := make([]string, 0, len(x))
		for _, r := range x {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return []string{}
	}
}

func isKnown(key string) bool {
	for _, k := range knownKeys {
		if k == key {
			return true
		}
	}
	return false
}
