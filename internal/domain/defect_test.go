package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDefectType(t *testing.T) {
	tests := []struct {
		input    string
		expected DefectType
	}{
		{"pothole", TypePothole},
		{"minor pothole", TypePothole},
		{"Minor Pothole", TypePothole},
		{"CRACK", TypeCrack},
		{"damaged pavement", TypeDamagedPavement},
		{"damaged_pavement", TypeDamagedPavement},
		{"water logging", TypeWaterLogging},
		{"missing manhole", TypeMissingManhole},
		{" pothole ", TypePothole},
		{"sinkhole", TypeOther},
		{"", TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDefectType(tt.input))
		})
	}
}

func TestParseSeverity(t *testing.T) {
	for _, level := range SeverityLevels() {
		got, ok := ParseSeverity(string(level))
		assert.True(t, ok)
		assert.Equal(t, level, got)
	}

	got, ok := ParseSeverity("CRITICAL")
	assert.True(t, ok)
	assert.Equal(t, SeverityCritical, got)

	_, ok = ParseSeverity("catastrophic")
	assert.False(t, ok)
}

func TestSeverityWeight(t *testing.T) {
	assert.Equal(t, 0.5, SeverityLow.Weight())
	assert.Equal(t, 1.0, SeverityMedium.Weight())
	assert.Equal(t, 1.5, SeverityHigh.Weight())
	assert.Equal(t, 2.0, SeverityCritical.Weight())
}

func TestClosedEnumerations(t *testing.T) {
	assert.Len(t, DefectTypes(), 6)
	assert.Len(t, SeverityLevels(), 4)

	// Every severity has a weight; aggregation key sets depend on it.
	for _, s := range SeverityLevels() {
		assert.Greater(t, s.Weight(), 0.0)
	}
}

func TestCoordinateInRange(t *testing.T) {
	assert.True(t, Coordinate{Latitude: 90, Longitude: 180}.InRange())
	assert.True(t, Coordinate{Latitude: -90, Longitude: -180}.InRange())
	assert.False(t, Coordinate{Latitude: 90.0001, Longitude: 0}.InRange())
	assert.False(t, Coordinate{Latitude: 0, Longitude: -180.0001}.InRange())
}
