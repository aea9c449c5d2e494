package features

import (
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// RecordFromFields builds a RawRecord from named string fields, as sent by a
// form or a JSON object. The timestamp comes from Timestamp or, when that is
// absent, from Year, Month, Day and Hour.
func RecordFromFields(fields map[string]string) (RawRecord, error) {
	get := func(key string) (string, bool) {
		v, ok := fields[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var rec RawRecord

	mode, ok := get(ColOperationMode)
	if !ok {
		return RawRecord{}, apperr.New(apperr.InvalidInput, "missing field %s", ColOperationMode)
	}
	rec.OperationMode = mode

	for i, col := range SensorColumns {
		raw, ok := get(col)
		if !ok {
			return RawRecord{}, apperr.New(apperr.InvalidInput, "missing field %s", col)
		}
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return RawRecord{}, apperr.New(apperr.InvalidInput, "field %s: %q is not a number", col, raw)
		}
		rec.Sensors[i] = x
	}

	if ts, ok := get(ColTimestamp); ok {
		if _, err := ParseTimestamp(ts); err != nil {
			return RawRecord{}, err
		}
		rec.Timestamp = ts
		return rec, nil
	}

	cal, err := calendarFromFields(get)
	if err != nil {
		return RawRecord{}, err
	}
	rec.Timestamp = cal.Timestamp()
	return rec, nil
}

func calendarFromFields(get func(string) (string, bool)) (Calendar, error) {
	parts := make([]int, 4)
	for i, col := range []string{ColYear, ColMonth, ColDay, ColHour} {
		raw, ok := get(col)
		if !ok {
			return Calendar{}, apperr.New(apperr.InvalidInput, "missing field %s (or %s)", col, ColTimestamp)
		}
		// forms often post "2024.0"
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil || x != float64(int(x)) {
			return Calendar{}, apperr.New(apperr.InvalidInput, "field %s: %q is not an integer", col, raw)
		}
		parts[i] = int(x)
	}

	cal := Calendar{Year: parts[0], Month: parts[1], Day: parts[2], Hour: parts[3]}
	if cal.Hour < 0 || cal.Hour > 23 {
		return Calendar{}, apperr.New(apperr.InvalidInput, "hour %d out of range", cal.Hour)
	}
	t := time.Date(cal.Year, time.Month(cal.Month), cal.Day, cal.Hour, 0, 0, 0, time.UTC)
	if t.Year() != cal.Year || int(t.Month()) != cal.Month || t.Day() != cal.Day {
		return Calendar{}, apperr.New(apperr.InvalidInput,
			"invalid date %04d-%02d-%02d", cal.Year, cal.Month, cal.Day)
	}
	return cal, nil
}
