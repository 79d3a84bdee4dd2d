package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"novelassist/internal/api"
	"novelassist/internal/logging"
	"novelassist/internal/session"
)

// ErrInvalidRefreshToken is returned when no refresh token is stored
var ErrInvalidRefreshToken = &api.ValidationError{Field: "refreshToken", Message: "invalid refresh token"}

// Service handles sign-in, sign-up and the stored session
type Service struct {
	client   *api.Client
	sessions *session.Store
	log      *zap.Logger
}

// NewService creates an auth service sharing the client's session store
func NewService(client *api.Client, log *zap.Logger) *Service {
	return &Service{
		client:   client,
		sessions: client.Sessions(),
		log:      logging.OrNop(log),
	}
}

// Login signs in and stores the session built from the response
func (s *Service) Login(ctx context.Context, username, password string) (*session.Session, error) {
	if username == "" {
		return nil, &api.ValidationError{Field: "username", Message: "username is required"}
	}
	if password == "" {
		return nil, &api.ValidationError{Field: "password", Message: "password is required"}
	}

	payload, err := s.client.Post(ctx, "/auth/signin", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected sign-in payload %T", payload)
	}

	sess := session.FromMap(m)
	if sess.Token() == "" {
		return nil, errors.New("sign-in response carries no access token")
	}
	if err := s.sessions.Save(ctx, &sess); err != nil {
		return nil, err
	}

	s.log.Info("Signed in", zap.String("username", sess.Username), zap.Strings("roles", sess.Roles))
	return &sess, nil
}

// Logout removes the stored session
func (s *Service) Logout(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

// Register creates an account; it does not sign in
func (s *Service) Register(ctx context.Context, username, email, password string) (any, error) {
	if username == "" || email == "" || password == "" {
		return nil, &api.ValidationError{Field: "username", Message: "username, email and password are required"}
	}
	return s.client.Post(ctx, "/auth/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

// RefreshToken exchanges the stored refresh token for a new access token and updates
// the stored session
func (s *Service) RefreshToken(ctx context.Context) (*session.Session, error) {
	sess, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.RefreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	payload, err := s.client.Post(ctx, "/auth/refresh-token", map[string]string{
		"refreshToken": sess.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	if m, ok := payload.(map[string]any); ok {
		fresh := session.FromMap(m)
		if fresh.Token() != "" {
			sess.AccessToken = fresh.Token()
			if fresh.RefreshToken != "" {
				sess.RefreshToken = fresh.RefreshToken
			}
			if err := s.sessions.Save(ctx, sess); err != nil {
				return nil, err
			}
			s.log.Debug("Access token refreshed")
		}
	}
	return sess, nil
}

// CurrentUser returns the stored session, or nil when there is none or it is unreadable
func (s *Service) CurrentUser(ctx context.Context) (*session.Session, error) {
	sess, err := s.sessions.Load(ctx)
	if err == nil {
		return sess, nil
	}

	var parseErr *session.ParseError
	switch {
	case errors.Is(err, session.ErrNoSession):
		return nil, nil
	case errors.As(err, &parseErr):
		s.log.Warn("Stored session is unreadable", zap.Error(err))
		return nil, nil
	default:
		return nil, err
	}
}

// IsAdmin reports whether the signed-in user has the admin role
func (s *Service) IsAdmin(ctx context.Context) bool {
	sess, err := s.CurrentUser(ctx)
	if err != nil {
		return false
	}
	return sess.IsAdmin()
}
