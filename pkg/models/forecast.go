package models

import (
	"math"
	"time"
)

// DateLayout is the UTC timestamp format used for forecast_date columns and tags.
const DateLayout = "2006-01-02T15:04:05Z"

// DateColumn is the name of the timestamp column in persisted forecast tables.
const DateColumn = "date"

// ForecastRow is one hourly step of a model forecast. Values align with ForecastTable.Fields;
// NaN marks a value the model did not provide.
type ForecastRow struct {
	Date   time.Time
	Values []float64
}

// AllMissing reports whether the model provided no value at all for this step.
func (r ForecastRow) AllMissing() bool {
	for _, v := range r.Values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// ForecastTable is the normalized hourly series of one forecast model.
type ForecastTable struct {
	Model  string
	Fields []string
	Rows   []ForecastRow
}

// Len returns the number of hourly steps
func (t *ForecastTable) Len() int {
	return len(t.Rows)
}

// FieldIndex returns the column index of a feature, or -1.
func (t *ForecastTable) FieldIndex(field string) int {
	for i, f := range t.Fields {
		if f == field {
			return i
		}
	}
	return -1
}

// Value returns the value of field at row i; ok is false when the field is unknown or the value is missing.
func (t *ForecastTable) Value(i int, field string) (float64, bool) {
	idx := t.FieldIndex(field)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return math.NaN(), false
	}
	v := t.Rows[i].Values[idx]
	return v, !math.IsNaN(v)
}
