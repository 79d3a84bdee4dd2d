package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelassist/internal/models"
)

func TestOpen(t *testing.T) {
	t.Run("Should open sqlite file and migrate tables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")

		db, err := Open("sqlite://"+path, false, nil)
		require.NoError(t, err)
		defer Close(db)

		assert.True(t, db.Migrator().HasTable(&models.UploadJob{}))
		assert.True(t, db.Migrator().HasTable(&models.ClientState{}))
	})

	t.Run("Should reject unknown URL schemes", func(t *testing.T) {
		_, err := Open("mysql://localhost/novels", false, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database URL format")
	})

	t.Run("Should tolerate closing a nil database", func(t *testing.T) {
		assert.NoError(t, Close(nil))
	})
}
