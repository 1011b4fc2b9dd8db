package transcript

import (
	"fmt"
	"strings"

	"worker-minutes/entities"
)

// FormatTimestamp renders seconds as HH:MM:SS. The hour field widens past
// two digits instead of wrapping. Values outside [0, MaxSeconds] are clamped.
func FormatTimestamp(seconds float64) string {
	if !(seconds > 0) {
		seconds = 0
	}
	if seconds > MaxSeconds {
		seconds = MaxSeconds
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// Format renders one "[start - end] speaker:" block per segment, in segment order.
func Format(t entities.ParsedTranscript) string {
	var b strings.Builder
	for _, seg := range t.Segments {
		fmt.Fprintf(&b, "[%s - %s] %s:\n%s\n\n",
			FormatTimestamp(seg.StartTime), FormatTimestamp(seg.EndTime), seg.SpeakerID, seg.Text)
	}
	return b.String()
}
