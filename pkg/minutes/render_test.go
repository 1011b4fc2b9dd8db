package minutes

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"worker-minutes/entities"
)

func TestRender(t *testing.T) {
	m := entities.Minutes{
		JobID:       "job-1",
		GeneratedAt: time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC),
		Summary:     "Kickoff call",
		Decisions:   []entities.Decision{{ID: "a", Description: "Ship on Monday", Timestamp: "[00:01:00]"}},
		NextActions: []entities.NextAction{
			{ID: "b", Description: "Send report", Assignee: "spk_1", DueDate: "2025-10-17", Timestamp: "[00:00:06]"},
			{ID: "c", Description: "Book room"},
		},
		Transcript: "Hello let's start.",
		Speakers:   []entities.SpeakerStat{{ID: "spk_0", SegmentCount: 1, SpeakingSeconds: 5}},
	}

	doc := Render(m, "")

	assert.True(t, strings.HasPrefix(doc, "# Meeting Minutes\n"))
	assert.Contains(t, doc, "- Generated: 2025-10-14T09:30:00Z")
	assert.Contains(t, doc, "## Summary\n\nKickoff call\n")
	assert.Contains(t, doc, "1. Ship on Monday [00:01:00]\n")
	assert.Contains(t, doc, "1. Send report (Assignee: spk_1; Due: 2025-10-17) [00:00:06]\n")
	assert.Contains(t, doc, "2. Book room\n")
	assert.Contains(t, doc, "- spk_0: 1 segments, 00:00:05 speaking")
	assert.True(t, strings.HasSuffix(doc, "## Transcript\n\nHello let's start.\n"))

	assert.Less(t, strings.Index(doc, "## Summary"), strings.Index(doc, "## Decisions"))
	assert.Less(t, strings.Index(doc, "## Decisions"), strings.Index(doc, "## Next Actions"))
	assert.Less(t, strings.Index(doc, "## Next Actions"), strings.Index(doc, "## Transcript"))
}

func TestRender_EmptyLists(t *testing.T) {
	doc := Render(entities.Minutes{Decisions: []entities.Decision{}, NextActions: []entities.NextAction{}}, "")

	assert.Contains(t, doc, "_No summary provided._")
	assert.Equal(t, 2, strings.Count(doc, "_None recorded._"))
	assert.NotContains(t, doc, "## Speakers")
}

func TestRender_FormattedTranscript(t *testing.T) {
	formatted := "[00:00:00 - 00:00:05] spk_0:\nHello\n\n"
	doc := Render(entities.Minutes{Transcript: "Hello"}, formatted)

	assert.True(t, strings.HasSuffix(doc, "## Transcript\n\n[00:00:00 - 00:00:05] spk_0:\nHello\n"))
}
