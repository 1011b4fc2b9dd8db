package minutes

import (
	"fmt"
	"strings"
	"time"

	"worker-minutes/entities"
	"worker-minutes/pkg/transcript"
)

// Render produces the minutes document persisted as the job's artifact. The
// transcript section holds formatted when it is non-empty and the plain
// transcript text otherwise.
func Render(m entities.Minutes, formatted string) string {
	var b strings.Builder
	b.WriteString("# Meeting Minutes\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", m.GeneratedAt.UTC().Format(time.RFC3339))
	if m.JobID != "" {
		fmt.Fprintf(&b, "- Job: `%s`\n", m.JobID)
	}
	b.WriteString("\n## Summary\n\n")
	if s := strings.TrimSpace(m.Summary); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	} else {
		b.WriteString("_No summary provided._\n")
	}

	b.WriteString("\n## Decisions\n\n")
	if len(m.Decisions) == 0 {
		b.WriteString("_None recorded._\n")
	}
	for i, d := range m.Decisions {
		fmt.Fprintf(&b, "%d. %s", i+1, d.Description)
		if d.Timestamp != "" {
			fmt.Fprintf(&b, " %s", d.Timestamp)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Next Actions\n\n")
	if len(m.NextActions) == 0 {
		b.WriteString("_None recorded._\n")
	}
	for i, a := range m.NextActions {
		fmt.Fprintf(&b, "%d. %s", i+1, a.Description)
		var notes []string
		if a.Assignee != "" {
			notes = append(notes, "Assignee: "+a.Assignee)
		}
		if a.DueDate != "" {
			notes = append(notes, "Due: "+a.DueDate)
		}
		if len(notes) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(notes, "; "))
		}
		if a.Timestamp != "" {
			fmt.Fprintf(&b, " %s", a.Timestamp)
		}
		b.WriteString("\n")
	}

	if len(m.Speakers) > 0 {
		b.WriteString("\n## Speakers\n\n")
		for _, s := range m.Speakers {
			fmt.Fprintf(&b, "- %s: %d segments, %s speaking\n", s.ID, s.SegmentCount, transcript.FormatTimestamp(s.SpeakingSeconds))
		}
	}

	b.WriteString("\n## Transcript\n\n")
	if strings.TrimSpace(formatted) == "" {
		formatted = m.Transcript
	}
	b.WriteString(strings.TrimSpace(formatted))
	b.WriteString("\n")
	return b.String()
}
