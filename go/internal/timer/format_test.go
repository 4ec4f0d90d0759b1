package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		ms        int64
		precision Precision
		want      string
	}{
		{0, PrecisionSecond, "00:00"},
		{999, PrecisionSecond, "00:00"},
		{1999, PrecisionDecisecond, "00:01.9"},
		{61_234, PrecisionCentisecond, "01:01.23"},
		{61_239, PrecisionMillisecond, "01:01.239"},
		{3_600_000, PrecisionSecond, "01:00:00"},
		{3_723_456, PrecisionDecisecond, "01:02:03.4"},
		{-1000, PrecisionSecond, "-00:01"},
		{-1999, PrecisionSecond, "-00:01"},
		{-250, PrecisionDecisecond, "-00:00.2"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMillis(tt.ms, tt.precision), "FormatMillis(%d, %s)", tt.ms, tt.precision)
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]int64{
		"45":       45_000,
		"05:00":    300_000,
		"1:02:03":  3_723_000,
		" 90 ":     90_000,
		"00:00:01": 1000,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "abc", "1:2:3:4", "-5", "1::2", "9223372036854775807", "9223372036854775:00", "2562047788015216:00:00"} {
		_, err := ParseDuration(bad)
		assert.ErrorIs(t, err, ErrInvalidConfig, bad)
	}
}
