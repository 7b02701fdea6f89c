package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForecastTable_Value(t *testing.T) {
	nan := math.NaN()
	table := &ForecastTable{
		Model:  "icon_seamless",
		Fields: []string{"temperature_2m", "precipitation"},
		Rows: []ForecastRow{
			{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Values: []float64{12.5, nan}},
			{Date: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), Values: []float64{nan, nan}},
		},
	}

	tests := []struct {
		name   string
		row    int
		field  string
		want   float64
		wantOK bool
	}{
		{name: "present", row: 0, field: "temperature_2m", want: 12.5, wantOK: true},
		{name: "missing value", row: 0, field: "precipitation", wantOK: false},
		{name: "unknown field", row: 0, field: "cloud_cover", wantOK: false},
		{name: "row out of range", row: 5, field: "temperature_2m", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Value(tt.row, tt.field)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, 1, table.FieldIndex("precipitation"))
	assert.False(t, table.Rows[0].AllMissing())
	assert.True(t, table.Rows[1].AllMissing())
}
