// Package features turns raw sensor records into the fixed-order numeric
// vectors consumed by the classifier.
//
// The column order in Names is part of every persisted scaler and model.
// Reordering, adding or removing a feature invalidates them all.
package features

import (
	"slices"

	"github.com/jengzang/machine-efficiency-go/pkg/apperr"
)

// CSV column names.
const (
	ColTimestamp        = "Timestamp"
	ColMachineID        = "Machine_ID"
	ColOperationMode    = "Operation_Mode"
	ColEfficiencyStatus = "Efficiency_Status"
	ColTemperature      = "Temperature_C"
	ColVibration        = "Vibration_Hz"
	ColPower            = "Power_Consumption_kW"
	ColLatency          = "Network_Latency_ms"
	ColPacketLoss       = "Packet_Loss_%"
	ColDefectRate       = "Quality_Control_Defect_Rate_%"
	ColProductionSpeed  = "Production_Speed_units_per_hr"
	ColMaintenanceScore = "Predictive_Maintenance_Score"
	ColErrorRate        = "Error_Rate_%"
	ColYear             = "Year"
	ColMonth            = "Month"
	ColDay              = "Day"
	ColHour             = "Hour"
)

// SensorColumns are the numeric inputs in feature order.
var SensorColumns = []string{
	ColTemperature,
	ColVibration,
	ColPower,
	ColLatency,
	ColPacketLoss,
	ColDefectRate,
	ColProductionSpeed,
	ColMaintenanceScore,
	ColErrorRate,
}

// Names is the canonical feature order.
var Names = []string{
	ColOperationMode,
	ColTemperature,
	ColVibration,
	ColPower,
	ColLatency,
	ColPacketLoss,
	ColDefectRate,
	ColProductionSpeed,
	ColMaintenanceScore,
	ColErrorRate,
	ColYear,
	ColMonth,
	ColDay,
	ColHour,
}

// Count is len(Names).
const Count = 14

// RawRecord is one row of telemetry as read from the source.
type RawRecord struct {
	Timestamp        string
	OperationMode    string
	EfficiencyStatus string
	// Sensors follows SensorColumns.
	Sensors [9]float64
}

// Vector is a single feature vector in Names order.
type Vector []float64

// Matrix is a row-major batch of vectors.
type Matrix [][]float64

// Column copies column j.
func (m Matrix) Column(j int) []float64 {
	col := make([]float64, len(m))
	for i, row := range m {
		col[i] = row[j]
	}
	return col
}

// Rows selects rows by index into a new matrix sharing no memory with m.
func (m Matrix) Rows(idx []int) Matrix {
	out := make(Matrix, len(idx))
	for i, r := range idx {
		out[i] = slices.Clone(m[r])
	}
	return out
}

// CheckNames fails with ShapeMismatch when names is not the canonical order.
func CheckNames(what string, names []string) error {
	if !slices.Equal(names, Names) {
		return apperr.New(apperr.ShapeMismatch,
			"%s was fit against features %v, expected %v", what, names, Names)
	}
	return nil
}

// CheckWidth fails with ShapeMismatch when any row is not Count wide.
func CheckWidth(what string, m Matrix) error {
	for i, row := range m {
		if len(row) != Count {
			return apperr.New(apperr.ShapeMismatch,
				"%s row %d has %d features, expected %d", what, i, len(row), Count)
		}
	}
	return nil
}
