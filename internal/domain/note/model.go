package note

import "strings"

// Note is the structured result of transcribing and summarizing a recording.
// A Degraded note carries an error message in Markdown instead of a summary.
type Note struct {
	Markdown    string   `json:"markdown"`
	NextActions []string `json:"nextActions"`
	Tags        []string `json:"tags"`
	Degraded    bool     `json:"-"`
}

// ErrorTag is the only tag of a degraded note.
const ErrorTag = "error"

// NextActionsMarkdown renders next actions as a "### NextActions" section,
// or returns "" when there are none.
func (n Note) NextActionsMarkdown() string {
	if len(n.NextActions) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("### NextActions")
	for _, action := range n.NextActions {
		b.WriteString("\n- ")
		b.WriteString(action)
	}
	return b.String()
}
