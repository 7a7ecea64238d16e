package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"00:00", 0},
		{"08:00", 480},
		{"8:05", 485},
		{"23:59", 1439},
		{"09:30:45", 570},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToMinutes(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinutesRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "8", "08h00", "ab:cd", "24:00", "12:60", "123:00", " 08:00"} {
		_, err := ToMinutes(in)
		assert.ErrorIs(t, err, ErrInvalidTimeFormat, in)
	}
}

func TestToTimeStringWraps(t *testing.T) {
	assert.Equal(t, "00:10", ToTimeString(1450))
	assert.Equal(t, "08:00", ToTimeString(480))
	assert.Equal(t, "23:50", ToTimeString(-10))
	assert.Equal(t, "00:00", ToTimeString(2880))
}

func TestEndTime(t *testing.T) {
	end, err := EndTime("09:45", 30)
	require.NoError(t, err)
	assert.Equal(t, "10:15", end)

	end, err = EndTime("23:30", 45)
	require.NoError(t, err)
	assert.Equal(t, "00:15", end)

	_, err = EndTime("nope", 10)
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h30", FormatDuration(90))
	assert.Equal(t, "45min", FormatDuration(45))
	assert.Equal(t, "2h", FormatDuration(120))
	assert.Equal(t, "1h5", FormatDuration(65))
	assert.Equal(t, "0min", FormatDuration(0))
	assert.Equal(t, "0min", FormatDuration(-5))
}
