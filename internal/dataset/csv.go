// Package dataset reads raw telemetry and partitions it for training.
package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jengzang/machine-efficiency-go/internal/features"
	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// LoadCSV reads every record of the CSV file at path.
func LoadCSV(path string) ([]features.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.WrapAs(apperr.ArtifactNotFound, err, "raw data "+path)
		}
		return nil, apperr.Wrap(err, "open raw data "+path)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses records from r. The first line is the header; columns are
// matched by name so their order in the file does not matter.
func ReadCSV(r io.Reader) ([]features.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperr.New(apperr.InsufficientData, "empty CSV: no header")
	}
	if err != nil {
		return nil, apperr.WrapAs(apperr.Parse, err, "read CSV header")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		// spreadsheets like to prepend a BOM
		index[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}

	required := append([]string{
		features.ColTimestamp,
		features.ColOperationMode,
		features.ColEfficiencyStatus,
	}, features.SensorColumns...)
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, apperr.New(apperr.Parse, "CSV is missing column %s", col)
		}
	}

	var records []features.RawRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.WrapAs(apperr.Parse, err, "read CSV line "+strconv.Itoa(line))
		}

		rec := features.RawRecord{
			Timestamp:        strings.TrimSpace(row[index[features.ColTimestamp]]),
			OperationMode:    strings.TrimSpace(row[index[features.ColOperationMode]]),
			EfficiencyStatus: strings.TrimSpace(row[index[features.ColEfficiencyStatus]]),
		}
		for i, col := range features.SensorColumns {
			raw := strings.TrimSpace(row[index[col]])
			x, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, apperr.New(apperr.Parse, "line %d column %s: %q is not a number", line, col, raw)
			}
			rec.Sensors[i] = x
		}
		records = append(records, rec)
	}

	return records, nil
}
