package tabpanel

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tracker/internal/theme"
)

// TimeLayout formats action timestamps.
const TimeLayout = "2006-01-02 15:04"

// TextRenderer prints actions for a terminal.
type TextRenderer struct {
	Width int
}

// Render writes a header for issueKey followed by one block per action.
func (r TextRenderer) Render(w io.Writer, issueKey string, actions []Action) error {
	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render(issueKey))
	b.WriteString("\n")

	if len(actions) == 0 {
		b.WriteString(theme.MetaStyle.Render("No activity."))
		b.WriteString("\n")
	}
	for _, a := range actions {
		b.WriteString("\n")
		b.WriteString(r.renderAction(a))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r TextRenderer) renderAction(a Action) string {
	head := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.PanelStyle(string(a.Panel)).Render(fmt.Sprintf("[%s]", a.Panel)),
		" ",
		a.Summary,
		" ",
		theme.MetaStyle.Render(a.Time.Local().Format(TimeLayout)),
	)
	if a.Body == "" {
		return head
	}
	body := theme.BodyStyle
	if r.Width > 0 {
		body = body.Width(r.Width)
	}
	return lipgloss.JoinVertical(lipgloss.Left, head, body.Render(a.Body))
}
