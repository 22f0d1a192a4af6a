package viewer

import (
	"fmt"
	"io"
	"strings"

	"vestigia/internal/core/locale"
)

// Render writes the timeline as numbered plain-text entries, newest first.
func (v *TimelineView) Render(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", locale.FormatDate(v.Today(), v.language))

	posts := v.Posts()
	if len(posts) == 0 {
		b.WriteString("Nothing has happened yet. Check back tomorrow.\n")
	}
	ref := 0
	for i, p := range posts {
		author := p.FigureID
		if p.Figure != nil {
			author = p.Figure.Name
			if p.Figure.Verified {
				author += " ✓"
			}
		}
		date := p.DisplayDate
		if date == "" {
			date = locale.FormatDate(p.OriginalDate, v.language)
		}
		fmt.Fprintf(&b, "\n[%d] %s · %s\n", i+1, author, date)
		if p.Significant {
			b.WriteString("    ★ significant event\n")
		}
		for _, line := range strings.Split(p.Content, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
		if p.Source != "" {
			fmt.Fprintf(&b, "    source: %s\n", p.Source)
		}

		st := v.State(p.ID)
		heart := "♡"
		if st.Liked {
			heart = "♥"
		}
		fmt.Fprintf(&b, "    %s %d   comments %d\n", heart, st.LikeCount, st.CommentCount)
		for _, c := range st.Comments {
			mark := ""
			if c.Pending {
				mark = " (sending)"
			}
			ref++
			fmt.Fprintf(&b, "      [c%d] %s%s  [%d likes]\n", ref, c.Content, mark, c.LikeCount)
		}
	}
	if v.HasMore() && len(posts) > 0 {
		b.WriteString("\n(more)\n")
	}
	for _, n := range v.Notifications() {
		fmt.Fprintf(&b, "! %s\n", n.Message)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
