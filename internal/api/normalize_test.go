package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelassist/internal/models"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testNormalizer(harvest bool) normalizer {
	return normalizer{
		dates:   dateCoercer{loc: time.UTC, now: func() time.Time { return fixedNow }},
		harvest: harvest,
	}
}

func decode(t *testing.T, body string) any {
	t.Helper()
	v := decodeBody([]byte(body))
	require.NotNil(t, v)
	return v
}

// novelsOf returns the novel records of a normalized payload of any shape
func novelsOf(t *testing.T, v any) []map[string]any {
	t.Helper()
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case map[string]any:
		if list, ok := x["novels"].([]any); ok {
			items = list
		} else {
			items = []any{x}
		}
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.(map[string]any))
	}
	return out
}

func TestNormalizeShapes(t *testing.T) {
	n := testNormalizer(true)

	shapes := map[string]string{
		"novels array":   `{"novels":[{"id":1,"status":"PROCESSING","chapterCount":3},{"id":2,"processingStatus":"COMPLETED","totalChapters":7}]}`,
		"bare array":     `[{"id":1,"status":"PROCESSING","chapterCount":3},{"id":2,"processingStatus":"COMPLETED","totalChapters":7}]`,
		"single object":  `{"id":1,"status":"PROCESSING","chapterCount":3}`,
		"data container": `{"data":[{"id":1,"status":"PROCESSING","chapterCount":3}],"total":1}`,
		"content page":   `{"content":[{"id":2,"processingStatus":"COMPLETED","totalChapters":7}],"totalElements":1}`,
		"items":          `{"items":[{"id":1,"status":"PROCESSING","chapterCount":3}]}`,
		"list":           `{"list":[{"id":2,"processingStatus":"COMPLETED","totalChapters":7}]}`,
	}

	for name, body := range shapes {
		body := body
		t.Run("Should keep status and chapter counts consistent for "+name, func(t *testing.T) {
			novels := novelsOf(t, n.payload(decode(t, body)))
			require.NotEmpty(t, novels)
			for _, novel := range novels {
				assert.Equal(t, novel["status"], novel["processingStatus"])
				assert.Equal(t, novel["chapterCount"], novel["totalChapters"])
				assert.NotEqual(t, unknownStatus, novel["status"])
				assert.NotEqual(t, json.Number("0"), novel["chapterCount"])
			}
		})
	}

	t.Run("Should copy a container array to novels and normalize it in place", func(t *testing.T) {
		out := n.payload(decode(t, `{"data":[{"id":5}],"items":[{"id":6}]}`)).(map[string]any)
		assert.Equal(t, out["data"], out["novels"])
		assert.Equal(t, defaultTitle, out["items"].([]any)[0].(map[string]any)["title"])
	})

	t.Run("Should keep an existing novels key when a container is present", func(t *testing.T) {
		out := n.payload(decode(t, `{"novels":"n/a","data":[{"id":5}]}`)).(map[string]any)
		assert.Equal(t, "n/a", out["novels"])
	})
}

func TestNormalizeRecord(t *testing.T) {
	n := testNormalizer(true)
	now := fixedNow.Format(models.TimestampLayout)

	t.Run("Should fill defaults for missing and null fields", func(t *testing.T) {
		rec := n.record(decode(t, `{"id":3,"title":null,"extra":"kept"}`).(map[string]any))

		assert.Equal(t, json.Number("3"), rec[models.FieldID])
		assert.Equal(t, defaultTitle, rec.Title())
		assert.Equal(t, defaultAuthor, rec.Author())
		assert.Equal(t, unknownStatus, rec[models.FieldStatus])
		assert.Equal(t, unknownStatus, rec[models.FieldProcessingStatus])
		assert.Equal(t, "", rec.Description())
		assert.Equal(t, 0, rec.ChapterCount())
		assert.Equal(t, 0, rec.WordCount())
		assert.Equal(t, "kept", rec["extra"])
		for _, f := range append(append([]string{}, models.CreatedFields...), models.UpdatedFields...) {
			assert.Equal(t, now, rec[f], f)
		}
	})

	t.Run("Should keep both sides when both are present", func(t *testing.T) {
		rec := n.record(decode(t, `{"status":"FAILED","processingStatus":"PROCESSING","chapterCount":2,"totalChapters":9}`).(map[string]any))
		assert.Equal(t, "FAILED", rec[models.FieldStatus])
		assert.Equal(t, "PROCESSING", rec[models.FieldProcessingStatus])
		assert.Equal(t, 2, rec.ChapterCount())
		assert.Equal(t, 9, rec.TotalChapters())
	})

	t.Run("Should treat zero counts as absent when copying across", func(t *testing.T) {
		rec := n.record(decode(t, `{"chapterCount":0,"totalChapters":4}`).(map[string]any))
		assert.Equal(t, 4, rec.ChapterCount())
	})

	t.Run("Should spread the first present date alias to the whole group", func(t *testing.T) {
		rec := n.record(decode(t, `{"created_at":"","createTime":"2024-05-06 07:08:09","updateTime":1714979289}`).(map[string]any))

		for _, f := range models.CreatedFields {
			assert.Equal(t, "2024-05-06T07:08:09.000Z", rec[f], f)
		}
		for _, f := range models.UpdatedFields {
			assert.Equal(t, "2024-05-06T07:08:09.000Z", rec[f], f)
		}
		created, ok := rec.CreatedAt()
		require.True(t, ok)
		assert.Equal(t, 2024, created.Year())
	})

	t.Run("Should turn null list items into empty records", func(t *testing.T) {
		out := n.payload(decode(t, `[null,{"id":1},"x"]`)).([]any)
		assert.Equal(t, map[string]any{}, out[0])
		assert.Equal(t, "x", out[2])
	})
}

func TestHarvest(t *testing.T) {
	body := `{"first":{"title":"B"},"second":{"title":"A","author":"Z"},"meta":{"page":1},"count":2}`

	t.Run("Should collect title-bearing objects in key order", func(t *testing.T) {
		out := testNormalizer(true).payload(decode(t, body)).(map[string]any)
		novels := out["novels"].([]any)
		require.Len(t, novels, 2)
		assert.Equal(t, "B", novels[0].(map[string]any)["title"])
		assert.Equal(t, "A", novels[1].(map[string]any)["title"])
		assert.Equal(t, "Z", novels[1].(map[string]any)["author"])
	})

	t.Run("Should leave the payload alone when harvesting is disabled", func(t *testing.T) {
		out := testNormalizer(false).payload(decode(t, body)).(map[string]any)
		_, ok := out["novels"]
		assert.False(t, ok)
	})

	t.Run("Should not harvest when a container filled novels", func(t *testing.T) {
		out := testNormalizer(true).payload(decode(t, `{"data":[],"novel":{"title":"A"}}`)).(map[string]any)
		assert.Equal(t, []any{}, out["novels"])
	})
}

func TestIsNovelPath(t *testing.T) {
	t.Run("Should match novel-bearing endpoints", func(t *testing.T) {
		assert.True(t, isNovelPath("/novels"))
		assert.True(t, isNovelPath("/novels/3/status"))
		assert.True(t, isNovelPath("/admin/novels?page=1"))
		assert.True(t, isNovelPath("/user/novels"))
		assert.False(t, isNovelPath("/auth/signin"))
		assert.False(t, isNovelPath("/visualization/3?view=/novels"))
	})
}
