package novel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"novelassist/internal/api"
	"novelassist/internal/logging"
	"novelassist/internal/models"
)

const titleCacheSize = 256

// UploadRequest describes a novel to upload, either as a file or from a URL
type UploadRequest struct {
	File     io.Reader
	FileName string
	URL      string
	Title    string
	Author   string
}

// Overview bundles the detail, chapters and tags of one novel
type Overview struct {
	Novel    models.NovelRecord `json:"novel"`
	Chapters any                `json:"chapters"`
	Tags     any                `json:"tags"`
}

// Service wraps the /novels endpoints
type Service struct {
	client *api.Client
	titles *titleCache
	log    *zap.Logger
}

// NewService creates a novel service
func NewService(client *api.Client, log *zap.Logger) *Service {
	return &Service{
		client: client,
		titles: newTitleCache(titleCacheSize),
		log:    logging.OrNop(log),
	}
}

// List returns the novels visible to the current user
func (s *Service) List(ctx context.Context) ([]models.NovelRecord, error) {
	payload, err := s.client.Get(ctx, "/novels", nil)
	if err != nil {
		return nil, err
	}

	novels := Records(payload)
	for _, n := range novels {
		s.remember(n)
	}
	return novels, nil
}

// Detail returns one novel
func (s *Service) Detail(ctx context.Context, id string) (models.NovelRecord, error) {
	if err := api.RequireID("novelId", id); err != nil {
		return nil, err
	}

	payload, err := s.client.Get(ctx, novelPath(id), nil)
	if err != nil {
		return nil, err
	}

	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected novel payload %T", payload)
	}
	n := models.NovelRecord(m)
	s.remember(n)
	return n, nil
}

// Status returns the processing status of a novel. A 404 is reported as NOT_FOUND
// rather than an error.
func (s *Service) Status(ctx context.Context, id string) (*models.StatusReport, error) {
	if err := api.RequireID("novelId", id); err != nil {
		return nil, err
	}

	payload, err := s.client.Get(ctx, novelPath(id, "status"), nil)
	if err != nil {
		if api.StatusCode(err) == http.StatusNotFound && !api.IsDisabledAccount(err) {
			return &models.StatusReport{
				Status: string(models.StatusNotFound),
				Error:  "novel not found: " + id,
			}, nil
		}
		return nil, err
	}

	var report models.StatusReport
	if err := api.Decode(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to decode status of novel %s: %w", id, err)
	}
	return &report, nil
}

// Upload sends a novel file, or a URL to fetch it from, and returns the new novel's ID
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.UploadResult, error) {
	if req.File == nil && strings.TrimSpace(req.URL) == "" {
		return nil, &api.ValidationError{Field: "file", Message: "a file or a URL is required"}
	}

	fields := map[string]string{"title": req.Title}
	if req.Author != "" {
		fields["author"] = req.Author
	}

	var payload any
	var err error
	if req.File != nil {
		name := req.FileName
		if name == "" {
			name = "novel.txt"
		}
		s.log.Info("Uploading novel file", zap.String("file", name), zap.String("title", req.Title))
		payload, err = s.client.PostMultipart(ctx, "/novels/upload", fields,
			api.File{Field: "file", Name: name, Reader: req.File})
	} else {
		fields["url"] = req.URL
		s.log.Info("Uploading novel from URL", zap.String("url", req.URL), zap.String("title", req.Title))
		payload, err = s.client.PostMultipart(ctx, "/novels/upload-from-url", fields)
	}
	if err != nil {
		return nil, err
	}

	m, _ := payload.(map[string]any)
	result, ok := models.UploadResultFrom(m)
	if !ok {
		return nil, errors.New("upload response carries no novel id")
	}
	if req.Title != "" {
		s.titles.Put(result.ID, req.Title)
	}
	return result, nil
}

// Summary returns the summary analysis of a novel
func (s *Service) Summary(ctx context.Context, id string) (any, error) {
	return s.sub(ctx, id, "summary")
}

// Chapters returns the chapter list of a novel
func (s *Service) Chapters(ctx context.Context, id string) (any, error) {
	return s.sub(ctx, id, "chapters")
}

// Tags returns the tags of a novel
func (s *Service) Tags(ctx context.Context, id string) (any, error) {
	return s.sub(ctx, id, "tags")
}

// Visualizations returns the visualization bundle of a novel
func (s *Service) Visualizations(ctx context.Context, id string) (any, error) {
	return s.sub(ctx, id, "visualizations")
}

// RefreshTags asks the backend to regenerate the tags of a novel
func (s *Service) RefreshTags(ctx context.Context, id string) (any, error) {
	if err := api.RequireID("novelId", id); err != nil {
		return nil, err
	}
	return s.client.Post(ctx, novelPath(id, "refresh-tags"), nil)
}

// Delete removes a novel
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := api.RequireID("novelId", id); err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, novelPath(id)); err != nil {
		return err
	}
	s.titles.Forget(id)
	return nil
}

// Title returns the title of a novel, from cache when possible. Falls back to the ID
// when the novel cannot be fetched.
func (s *Service) Title(ctx context.Context, id string) string {
	if title, ok := s.titles.Get(id); ok {
		return title
	}

	n, err := s.Detail(ctx, id)
	if err != nil {
		s.log.Debug("Failed to fetch novel title", zap.String("novel_id", id), zap.Error(err))
		return id
	}
	return n.Title()
}

// Overview fetches detail, chapters and tags concurrently
func (s *Service) Overview(ctx context.Context, id string) (*Overview, error) {
	if err := api.RequireID("novelId", id); err != nil {
		return nil, err
	}

	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.Detail(gctx, id)
		out.Novel = n
		return err
	})
	g.Go(func() error {
		chapters, err := s.Chapters(gctx, id)
		out.Chapters = chapters
		return err
	})
	g.Go(func() error {
		tags, err := s.Tags(gctx, id)
		out.Tags = tags
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) sub(ctx context.Context, id, resource string) (any, error) {
	if err := api.RequireID("novelId", id); err != nil {
		return nil, err
	}
	return s.client.Get(ctx, novelPath(id, resource), nil)
}

func (s *Service) remember(n models.NovelRecord) {
	if id := n.ID(); id != "" && id != "0" {
		s.titles.Put(id, n.Title())
	}
}

// Records extracts the novel list from a normalized payload
func Records(payload any) []models.NovelRecord {
	var items []any
	switch x := payload.(type) {
	case []any:
		items = x
	case map[string]any:
		items, _ = x["novels"].([]any)
	}

	out := make([]models.NovelRecord, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, models.NovelRecord(m))
		}
	}
	return out
}

func novelPath(id string, parts ...string) string {
	p := "/novels/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}
