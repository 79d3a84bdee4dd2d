package user

import (
	"context"
	"io"

	"novelassist/internal/api"
)

// ProfileUpdate holds the editable profile fields
type ProfileUpdate struct {
	Email    string `json:"email,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// Service wraps the /user endpoints of the signed-in user
type Service struct {
	client *api.Client
}

// NewService creates a user service
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

// Me returns the signed-in user's profile
func (s *Service) Me(ctx context.Context) (any, error) {
	return s.client.Get(ctx, "/user/me", nil)
}

// UpdateProfile saves profile changes
func (s *Service) UpdateProfile(ctx context.Context, update ProfileUpdate) (any, error) {
	return s.client.Put(ctx, "/user/profile", update)
}

// ChangePassword replaces the password
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword string) (any, error) {
	if oldPassword == "" || newPassword == "" {
		return nil, &api.ValidationError{Field: "password", Message: "old and new password are required"}
	}
	return s.client.Post(ctx, "/user/change-password", map[string]string{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	})
}

// Stats returns usage statistics of the signed-in user
func (s *Service) Stats(ctx context.Context) (any, error) {
	return s.client.Get(ctx, "/user/stats", nil)
}

// Novels lists the novels uploaded by the signed-in user
func (s *Service) Novels(ctx context.Context) (any, error) {
	return s.client.Get(ctx, "/user/novels", nil)
}

// UploadAvatar replaces the avatar image
func (s *Service) UploadAvatar(ctx context.Context, name string, r io.Reader) (any, error) {
	if r == nil {
		return nil, &api.ValidationError{Field: "avatar", Message: "avatar file is required"}
	}
	return s.client.PostMultipart(ctx, "/user/avatar", nil, api.File{Field: "avatar", Name: name, Reader: r})
}

// DeleteAccount removes the signed-in user's account, confirmed by password
func (s *Service) DeleteAccount(ctx context.Context, password string) (any, error) {
	if password == "" {
		return nil, &api.ValidationError{Field: "password", Message: "password is required"}
	}
	return s.client.Post(ctx, "/user/delete-account", map[string]string{"password": password})
}
