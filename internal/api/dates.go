package api

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"time"

	"novelassist/internal/models"
)

var (
	mysqlDateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	isoPrefixPattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	mysqlDatePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	epochMillisPattern   = regexp.MustCompile(`^\d{13}$`)
	epochSecondsPattern  = regexp.MustCompile(`^\d{10}$`)
)

// isoLayouts are tried in order for strings starting with an ISO date-time.
// Layouts without a zone are read in the configured location.
var isoLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05Z0700", true},
	{"2006-01-02T15:04:05.999999999Z0700", true},
	{"2006-01-02T15:04:05.999999999", false},
}

// looseLayouts cover other common renderings
var looseLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"2006/01/02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// maxEpochMillis bounds representable instants to +-100,000,000 days around the epoch
const maxEpochMillis = 8.64e15

// dateCoercer turns backend date values into the canonical timestamp
type dateCoercer struct {
	loc *time.Location
	now func() time.Time
}

// coerce returns the canonical UTC timestamp for v, or now when v cannot be read
func (d dateCoercer) coerce(v any) string {
	t, ok := d.parse(v)
	if !ok {
		t = d.now()
	}
	return t.UTC().Format(models.TimestampLayout)
}

func (d dateCoercer) parse(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	case string:
		return d.parseString(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpochNumber(f)
	case float64:
		return fromEpochNumber(x)
	case int:
		return fromEpochNumber(float64(x))
	case int64:
		return fromEpochNumber(float64(x))
	default:
		return time.Time{}, false
	}
}

func (d dateCoercer) parseString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	switch {
	case mysqlDateTimePattern.MatchString(s):
		t, err := time.ParseInLocation("2006-01-02 15:04:05", s, d.loc)
		return t, err == nil
	case isoPrefixPattern.MatchString(s):
		for _, l := range isoLayouts {
			var t time.Time
			var err error
			if l.zoned {
				t, err = time.Parse(l.layout, s)
			} else {
				t, err = time.ParseInLocation(l.layout, s, d.loc)
			}
			if err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case mysqlDatePattern.MatchString(s):
		t, err := time.Parse("2006-01-02", s)
		return t, err == nil
	case epochMillisPattern.MatchString(s):
		ms, err := strconv.ParseInt(s, 10, 64)
		return time.UnixMilli(ms), err == nil
	case epochSecondsPattern.MatchString(s):
		sec, err := strconv.ParseInt(s, 10, 64)
		return time.Unix(sec, 0), err == nil
	}

	for _, layout := range looseLayouts {
		if t, err := time.ParseInLocation(layout, s, d.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// fromEpochNumber reads values above 1e10 as milliseconds and the rest as seconds
func fromEpochNumber(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	ms := f
	if f <= 1e10 {
		ms = f * 1000
	}
	if math.Abs(ms) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}
