package jobs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelassist/internal/database"
	"novelassist/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "jobs.db"), false, nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return NewService(db, nil)
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	t.Run("Should record an upload through to completion", func(t *testing.T) {
		jobID, err := svc.Start(ctx, "Dune", "file")
		require.NoError(t, err)
		require.NotEmpty(t, jobID)

		require.NoError(t, svc.Attach(ctx, jobID, "12"))
		require.NoError(t, svc.Transition(ctx, jobID, models.StatusProcessing, "Processing novel 12"))
		require.NoError(t, svc.Transition(ctx, jobID, models.StatusCompleted, "Processing finished"))

		job, err := svc.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, "12", job.NovelID)
		assert.Equal(t, "COMPLETED", job.Status)
		assert.Equal(t, 100, job.Progress)
		assert.Equal(t, []string{"Upload started", "Processing novel 12", "Processing finished"}, job.Messages)

		summary := Summary(job)
		assert.Contains(t, summary, "Dune [file, novel 12]: COMPLETED 100%")
		assert.Contains(t, summary, "(last: Processing finished)")
	})

	t.Run("Should report unknown jobs", func(t *testing.T) {
		assert.ErrorIs(t, svc.Attach(ctx, "missing", "1"), ErrJobNotFound)
		assert.ErrorIs(t, svc.Transition(ctx, "missing", models.StatusFailed, ""), ErrJobNotFound)
		_, err := svc.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("Should list jobs up to the limit", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := svc.Start(ctx, "Batch", "url")
			require.NoError(t, err)
		}

		jobs, err := svc.List(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)

		all, err := svc.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestSummary(t *testing.T) {
	t.Run("Should describe a pending job", func(t *testing.T) {
		line := Summary(&JobProgress{Source: "url", Status: "UPLOADING", Progress: 20})
		assert.Equal(t, "untitled [url, novel pending]: UPLOADING 20%", line)
		assert.Equal(t, "", Summary(nil))
	})
}
