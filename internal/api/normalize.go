package api

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"novelassist/internal/models"
)

// containerKeys are the generic wrapper keys the backend uses for lists
var containerKeys = []string{"data", "content", "items", "list"}

const (
	defaultTitle  = "Unknown title"
	defaultAuthor = "Unknown author"
	unknownStatus = "UNKNOWN"
)

// novelPathMarker marks endpoints whose payloads carry novels (/novels, /admin/novels, /user/novels)
const novelPathMarker = "/novels"

func isNovelPath(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.Contains(path, novelPathMarker)
}

// normalizer reshapes novel-bearing payloads
type normalizer struct {
	dates   dateCoercer
	harvest bool
}

// payload detects the shape of a decoded response and normalizes every novel in it.
// Maps and slices are normalized in place.
func (n normalizer) payload(v any) any {
	switch x := v.(type) {
	case []any:
		return n.list(x)
	case map[string]any:
		if novels, ok := x["novels"].([]any); ok && novels != nil {
			x["novels"] = n.list(novels)
			return x
		}
		if truthy(x[models.FieldID]) {
			return map[string]any(n.record(x))
		}
		n.containers(x)
		return x
	default:
		return v
	}
}

// containers normalizes generic wrapper arrays, then falls back to harvesting
// title-bearing nested objects when no novels list exists yet.
func (n normalizer) containers(x map[string]any) {
	for _, key := range containerKeys {
		arr, ok := x[key].([]any)
		if !ok || arr == nil {
			continue
		}
		normalized := n.list(arr)
		x[key] = normalized
		if !truthy(x["novels"]) {
			x["novels"] = normalized
		}
	}

	if !n.harvest || truthy(x["novels"]) {
		return
	}

	keys := make([]string, 0, len(x))
	for k := range x {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var harvested []any
	for _, k := range keys {
		nested, ok := x[k].(map[string]any)
		if !ok || !truthy(nested[models.FieldTitle]) {
			continue
		}
		harvested = append(harvested, map[string]any(n.record(nested)))
	}
	if len(harvested) > 0 {
		x["novels"] = harvested
	}
}

func (n normalizer) list(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		switch x := item.(type) {
		case map[string]any:
			out[i] = map[string]any(n.record(x))
		case nil:
			out[i] = map[string]any{}
		default:
			out[i] = item
		}
	}
	return out
}

// record applies defaults, keeps status and chapter counts consistent and coerces every
// date alias to the canonical timestamp. A JSON null counts as absent.
func (n normalizer) record(novel map[string]any) models.NovelRecord {
	now := n.dates.coerce(nil)

	rec := models.NovelRecord{
		models.FieldID:                json.Number("0"),
		models.FieldTitle:             defaultTitle,
		models.FieldAuthor:            defaultAuthor,
		models.FieldStatus:            unknownStatus,
		models.FieldProcessingStatus:  unknownStatus,
		models.FieldDescription:       "",
		models.FieldChapterCount:      json.Number("0"),
		models.FieldTotalChapters:     json.Number("0"),
		models.FieldProcessedChapters: json.Number("0"),
		models.FieldWordCount:         json.Number("0"),
	}
	for _, f := range models.CreatedFields {
		rec[f] = now
	}
	for _, f := range models.UpdatedFields {
		rec[f] = now
	}

	for k, v := range novel {
		if v == nil {
			continue
		}
		rec[k] = v
	}

	copyAcross(rec, novel, models.FieldStatus, models.FieldProcessingStatus)
	copyAcross(rec, novel, models.FieldTotalChapters, models.FieldChapterCount)

	n.syncDates(rec, novel, models.CreatedFields)
	n.syncDates(rec, novel, models.UpdatedFields)
	return rec
}

// copyAcross fills whichever of a and b is missing in the original from the other
func copyAcross(rec models.NovelRecord, original map[string]any, a, b string) {
	if truthy(original[a]) && !truthy(original[b]) {
		rec[b] = original[a]
	}
	if truthy(original[b]) && !truthy(original[a]) {
		rec[a] = original[b]
	}
}

// syncDates copies the first present alias of a group to all aliases, then coerces each
func (n normalizer) syncDates(rec models.NovelRecord, original map[string]any, fields []string) {
	for _, f := range fields {
		if v := original[f]; truthy(v) {
			for _, g := range fields {
				rec[g] = v
			}
			break
		}
	}
	for _, f := range fields {
		rec[f] = n.dates.coerce(rec[f])
	}
}

// truthy mirrors the loose presence checks the backend's payloads rely on
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case int:
		return x != 0
	case int64:
		return x != 0
	default:
		return true
	}
}
