package transcript

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"worker-minutes/entities"
)

func TestFormatTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:         "00:00:00",
		5.9:       "00:00:05",
		65:        "00:01:05",
		3600:      "01:00:00",
		86399:     "23:59:59",
		-3:        "00:00:00",
		360000.0:  "100:00:00",
		3599999.0: "999:59:59",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatTimestamp(in), "seconds=%v", in)
	}
}

func TestFormatTimestamp_ClampsHugeValues(t *testing.T) {
	assert.Equal(t, "277777:46:40", FormatTimestamp(MaxSeconds))
	assert.Equal(t, "277777:46:40", FormatTimestamp(1e19))
	assert.Equal(t, "277777:46:40", FormatTimestamp(math.Inf(1)))
	assert.Equal(t, "00:00:00", FormatTimestamp(math.NaN()))
}

func TestFormat(t *testing.T) {
	got, err := NewParser().Parse(kickoffOutput())
	require.NoError(t, err)

	want := "[00:00:00 - 00:00:05] spk_0:\nHello let's start.\n\n" +
		"[00:00:06 - 00:00:12] spk_1:\nAgreed, I will send the report by Friday.\n\n"
	assert.Equal(t, want, Format(got))
}

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, "", Format(entities.ParsedTranscript{}))
}
