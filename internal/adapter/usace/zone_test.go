package usace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestZoneLocation(t *testing.T) {
	summer := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tz         string
		wantOffset int
	}{
		{"PST", -8 * 3600},
		{"EST", -5 * 3600},
		{"UTC", 0},
		{"", 0},
		{"America/Los_Angeles", -7 * 3600},
		{"Not/AZone", 0},
	}

	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			_, offset := summer.In(ZoneLocation(tt.tz)).Zone()
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
