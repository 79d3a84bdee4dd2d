package admin

import (
	"context"
	"net/url"
	"strconv"

	"novelassist/internal/api"
)

// Service wraps the /admin endpoints. The backend rejects callers without the admin role.
type Service struct {
	client *api.Client
}

// NewService creates an admin service
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Dashboard returns the admin dashboard figures
func (s *Service) Dashboard(ctx context.Context) (any, error) {
	return s.client.Get(ctx, "/admin/dashboard", nil)
}

// Users lists all users
func (s *Service) Users(ctx context.Context) (any, error) {
	return s.client.Get(ctx, "/admin/users", nil)
}

// User returns one user
func (s *Service) User(ctx context.Context, userID string) (any, error) {
	if err := api.RequireID("userId", userID); err != nil {
		return nil, err
	}
	return s.client.Get(ctx, "/admin/users/"+url.PathEscape(userID), nil)
}

// UpdateUserStatus enables or disables a user
func (s *Service) UpdateUserStatus(ctx context.Context, userID string, enabled bool) (any, error) {
	if err := api.RequireID("userId", userID); err != nil {
		return nil, err
	}
	path := "/admin/users/" + url.PathEscape(userID) + "/status?enabled=" + strconv.FormatBool(enabled)
	return s.client.Put(ctx, path, nil)
}

// DeleteUser removes a user
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := api.RequireID("userId", userID); err != nil {
		return err
	}
	_, err := s.client.Delete(ctx, "/admin/users/"+url.PathEscape(userID))
	return err
}

// Novels lists every novel in the system
func (s *Service) Novels(ctx context.Context) (any, error) {
	return s.client.Get(ctx, "/admin/novels", nil)
}

// DeleteNovel removes any user's novel
func (s *Service) DeleteNovel(ctx context.Context, novelID string) error {
	if err := api.RequireID("novelId", novelID); err != nil {
		return err
	}
	_, err := s.client.Delete(ctx, "/admin/novels/"+url.PathEscape(novelID))
	return err
}

// Logs returns one page of the system log
func (s *Service) Logs(ctx context.Context, page, size int) (any, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	return s.client.Get(ctx, "/admin/logs", map[string]string{
		"page": strconv.Itoa(page),
		"size": strconv.Itoa(size),
	})
}

// ClearCache flushes the backend caches
func (s *Service) ClearCache(ctx context.Context) (any, error) {
	return s.client.Post(ctx, "/admin/cache/clear", nil)
}
