package features

import (
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// Calendar holds the fields derived from a timestamp.
type Calendar struct {
	Year  int
	Month int
	Day   int
	Hour  int
}

var fallbackLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

// ParseTimestamp decomposes s into calendar fields. ISO 8601 is tried first,
// then the common spreadsheet layouts.
func ParseTimestamp(s string) (Calendar, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Calendar{}, apperr.New(apperr.Parse, "empty timestamp")
	}

	t, err := iso8601.ParseString(s)
	if err != nil {
		var ok bool
		for _, layout := range fallbackLayouts {
			if parsed, perr := time.Parse(layout, s); perr == nil {
				t, ok = parsed, true
				break
			}
		}
		if !ok {
			return Calendar{}, apperr.New(apperr.Parse, "unparseable timestamp %q", s)
		}
	}

	return Calendar{
		Year:  t.Year(),
		Month: int(t.Month()),
		Day:   t.Day(),
		Hour:  t.Hour(),
	}, nil
}

// Timestamp formats the calendar back to a parseable timestamp.
func (c Calendar) Timestamp() string {
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, 0, 0, 0, time.UTC).
		Format("2006-01-02 15:04:05")
}
