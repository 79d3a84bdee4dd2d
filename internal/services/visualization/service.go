package visualization

import (
	"context"
	"net/url"

	"novelassist/internal/api"
)

// Views are the visualization views the backend serves per novel
var Views = []string{"keywords", "emotional", "structure", "characters", "scenes", "statistics", "all"}

// Service wraps the /novels/visualization endpoints
type Service struct {
	client *api.Client
}

// NewService creates a visualization service
func NewService(client *api.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Keywords(ctx context.Context, novelID string) (any, error) {
	return s.View(ctx, novelID, "keywords")
}

func (s *Service) Emotional(ctx context.Context, novelID string) (any, error) {
	return s.View(ctx, novelID, "emotional")
}

func (s *Service) Structure(ctx context.Context, novelID string) (any, error) {
	return s.View(ctx, novelID, "structure")
}

func (s *Service) Characters(ctx context.Context, novelID string) (any, error) {
	return s.View(ctx, novelID, "characters")
}

func (s *Service) Scenes(ctx context.Context, novelID string) (any, error) {
	return s.View(ctx, novelID, "scenes")
}

func (s *Service) Statistics(ctx context.Context, novelID string) (any, error) {
	return s.View(ctx, novelID, "statistics")
}

// All returns every view in one payload
func (s *Service) All(ctx context.Context, novelID string) (any, error) {
	return s.View(ctx, novelID, "all")
}

// View fetches one named view
func (s *Service) View(ctx context.Context, novelID, view string) (any, error) {
	if err := api.RequireID("novelId", novelID); err != nil {
		return nil, err
	}
	if !knownView(view) {
		return nil, &api.ValidationError{Field: "view", Message: "unknown visualization view: " + view}
	}
	return s.client.Get(ctx, "/novels/visualization/"+url.PathEscape(novelID)+"/"+view, nil)
}

func knownView(view string) bool {
	for _, v := range Views {
		if v == view {
			return true
		}
	}
	return false
}
