package features_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

var vocab = features.Vocabulary{
	OperationModes:   []string{"Idle", "Active", "Maintenance"},
	EfficiencyLabels: []string{"Low", "Medium", "High"},
}

func record(ts, mode, status string, base float64) features.RawRecord {
	r := features.RawRecord{Timestamp: ts, OperationMode: mode, EfficiencyStatus: status}
	for i := range r.Sensors {
		r.Sensors[i] = base + float64(i)
	}
	return r
}

func TestParseTimestamp(t *testing.T) {
	for _, ts := range []string{"2024-03-05T14:30:00Z", "2024-03-05 14:30:00", "2024-03-05T14:30:00+00:00"} {
		cal, err := features.ParseTimestamp(ts)
		require.NoError(t, err, ts)
		require.Equal(t, features.Calendar{Year: 2024, Month: 3, Day: 5, Hour: 14}, cal, ts)
	}

	_, err := features.ParseTimestamp("yesterday at noon")
	require.ErrorIs(t, err, apperr.Parse)

	_, err = features.ParseTimestamp("  ")
	require.ErrorIs(t, err, apperr.Parse)
}

func TestCalendarTimestampRoundTrip(t *testing.T) {
	cal := features.Calendar{Year: 2023, Month: 12, Day: 31, Hour: 23}
	back, err := features.ParseTimestamp(cal.Timestamp())
	require.NoError(t, err)
	require.Equal(t, cal, back)
}

func TestFitFixedVocabulary(t *testing.T) {
	records := []features.RawRecord{
		record("2024-01-01 00:00:00", "Active", "High", 10),
		record("2024-01-02 05:00:00", "Idle", "Low", 20),
	}

	enc, X, y, err := features.Fit(records, vocab)
	require.NoError(t, err)
	require.Equal(t, []int{2, 0}, y)
	require.Equal(t, []string{"Low", "Medium", "High"}, enc.Efficiency.Classes)

	require.Len(t, X, 2)
	require.Len(t, X[0], features.Count)
	require.Equal(t, 1.0, X[0][0]) // Active
	require.Equal(t, 10.0, X[0][1])
	require.Equal(t, []float64{2024, 1, 2, 5}, []float64(X[1][10:]))
}

func TestFitLearnsSortedClasses(t *testing.T) {
	records := []features.RawRecord{
		record("2024-01-01 00:00:00", "Maintenance", "Medium", 0),
		record("2024-01-01 01:00:00", "Active", "High", 0),
		record("2024-01-01 02:00:00", "Idle", "Low", 0),
	}

	enc, _, y, err := features.Fit(records, features.Vocabulary{})
	require.NoError(t, err)
	require.Equal(t, []string{"Active", "Idle", "Maintenance"}, enc.OperationMode.Classes)
	require.Equal(t, []string{"High", "Low", "Medium"}, enc.Efficiency.Classes)
	require.Equal(t, []int{2, 0, 1}, y)
}

func TestFitRejectsUnknownCategory(t *testing.T) {
	records := []features.RawRecord{
		record("2024-01-01 00:00:00", "Active", "High", 0),
		record("2024-01-01 01:00:00", "Unknown", "High", 0),
	}

	_, _, _, err := features.Fit(records, vocab)
	require.ErrorIs(t, err, apperr.UnknownCategory)
	require.Contains(t, err.Error(), "row 3")
}

func TestFitRejectsBadTimestamp(t *testing.T) {
	records := []features.RawRecord{record("not a time", "Active", "High", 0)}
	_, _, _, err := features.Fit(records, vocab)
	require.ErrorIs(t, err, apperr.Parse)
}

func TestEncoderRejectsUnknownMode(t *testing.T) {
	enc, err := features.NewLabelEncoder(features.ColOperationMode, vocab.OperationModes)
	require.NoError(t, err)

	_, err = enc.Encode("Unknown")
	require.ErrorIs(t, err, apperr.UnknownCategory)

	idx, err := enc.Encode("Maintenance")
	require.NoError(t, err)
	require.Equal(t, 2, idx)

	_, err = features.NewLabelEncoder("x", []string{"a", "a"})
	require.ErrorIs(t, err, apperr.InvalidInput)
}

func TestScaler(t *testing.T) {
	m := features.Matrix{make([]float64, features.Count), make([]float64, features.Count)}
	for j := 0; j < features.Count; j++ {
		m[0][j] = float64(j)
		m[1][j] = float64(j) + 2
	}
	m[0][5], m[1][5] = 7, 7 // constant column

	sc, err := features.FitScaler(m)
	require.NoError(t, err)
	require.NoError(t, sc.Validate())
	require.Equal(t, 1.0, sc.Std[5])
	require.Equal(t, 1.0, sc.Std[0])
	require.Equal(t, 1.0, sc.Mean[0])

	v, err := sc.Transform(m[0])
	require.NoError(t, err)
	require.Equal(t, -1.0, v[0])
	require.Equal(t, 0.0, v[5])

	back, err := sc.Inverse(v)
	require.NoError(t, err)
	require.InDeltaSlice(t, m[0], []float64(back), 1e-12)

	_, err = sc.Transform(features.Vector{1, 2, 3})
	require.ErrorIs(t, err, apperr.ShapeMismatch)
}

func TestScalerValidateDetectsReorder(t *testing.T) {
	m := features.Matrix{make([]float64, features.Count)}
	sc, err := features.FitScaler(m)
	require.NoError(t, err)

	sc.Features[0], sc.Features[1] = sc.Features[1], sc.Features[0]
	err = sc.Validate()
	require.ErrorIs(t, err, apperr.ShapeMismatch)
}

func TestRecordFromFields(t *testing.T) {
	fields := map[string]string{features.ColOperationMode: "Idle"}
	for i, col := range features.SensorColumns {
		fields[col] = []string{"70.5", "50", "5", "20", "1", "2", "300", "0.8", "3"}[i]
	}

	t.Run("calendar fields", func(t *testing.T) {
		f := clone(fields)
		f[features.ColYear], f[features.ColMonth], f[features.ColDay], f[features.ColHour] = "2024.0", "2", "29", "13"
		rec, err := features.RecordFromFields(f)
		require.NoError(t, err)
		require.Equal(t, "2024-02-29 13:00:00", rec.Timestamp)
		require.Equal(t, 70.5, rec.Sensors[0])
	})

	t.Run("timestamp wins", func(t *testing.T) {
		f := clone(fields)
		f[features.ColTimestamp] = "2024-06-01T08:00:00Z"
		rec, err := features.RecordFromFields(f)
		require.NoError(t, err)
		require.Equal(t, "2024-06-01T08:00:00Z", rec.Timestamp)
	})

	t.Run("invalid date", func(t *testing.T) {
		f := clone(fields)
		f[features.ColYear], f[features.ColMonth], f[features.ColDay], f[features.ColHour] = "2023", "2", "29", "1"
		_, err := features.RecordFromFields(f)
		require.ErrorIs(t, err, apperr.InvalidInput)
	})

	t.Run("missing sensor", func(t *testing.T) {
		f := clone(fields)
		delete(f, features.ColVibration)
		_, err := features.RecordFromFields(f)
		require.ErrorIs(t, err, apperr.InvalidInput)
	})

	t.Run("non numeric", func(t *testing.T) {
		f := clone(fields)
		f[features.ColPower] = "lots"
		f[features.ColTimestamp] = "2024-06-01 08:00:00"
		_, err := features.RecordFromFields(f)
		require.True(t, errors.Is(err, apperr.InvalidInput))
	})
}

func TestTransformer(t *testing.T) {
	records := []features.RawRecord{
		record("2024-01-01 00:00:00", "Active", "High", 10),
		record("2024-01-02 05:00:00", "Idle", "Low", 20),
	}
	enc, X, _, err := features.Fit(records, vocab)
	require.NoError(t, err)
	sc, err := features.FitScaler(X)
	require.NoError(t, err)

	tr, err := features.NewTransformer(enc, sc)
	require.NoError(t, err)

	v, err := tr.Transform(records[0])
	require.NoError(t, err)
	want, err := sc.Transform(X[0])
	require.NoError(t, err)
	require.Equal(t, want, v)

	_, err = tr.Transform(record("2024-01-01 00:00:00", "Unknown", "", 0))
	require.ErrorIs(t, err, apperr.UnknownCategory)

	_, err = features.NewTransformer(enc, nil)
	require.ErrorIs(t, err, apperr.ArtifactInvalid)
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
