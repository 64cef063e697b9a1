package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/BuzzLyutic/task-tracker/internal/model"
)

type styles struct {
	banner lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
	faint  lipgloss.Style
	id     lipgloss.Style
	status map[model.Status]lipgloss.Style
}

// newStyles renders for out; colors are dropped when out is not a terminal.
func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	badge := r.NewStyle().Width(12)
	return styles{
		banner: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		ok:     r.NewStyle().Foreground(lipgloss.Color("10")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("9")),
		faint:  r.NewStyle().Faint(true),
		id:     r.NewStyle().Width(6),
		status: map[model.Status]lipgloss.Style{
			model.StatusTodo:       badge.Foreground(lipgloss.Color("8")),
			model.StatusInProgress: badge.Foreground(lipgloss.Color("12")),
			model.StatusDone:       badge.Foreground(lipgloss.Color("10")),
		},
	}
}

func (a *app) printTask(t model.Task) {
	id := fmt.Sprintf("#%d", t.ID)
	if !t.Confirmed() {
		id = "#new"
	}
	fmt.Fprintf(a.out, "%s %s %-7s %s  %s\n",
		a.styles.id.Render(id),
		a.styles.status[t.Status].Render(t.Status.Label()),
		t.Priority,
		t.Title,
		a.styles.faint.Render(dueText(t.DueAt, a.now())),
	)
	if t.Description != "" {
		fmt.Fprintf(a.out, "%s %s\n", strings.Repeat(" ", 6), a.styles.faint.Render(t.Description))
	}
}

func (a *app) printCounts() {
	counts := a.coord.Counts()
	parts := make([]string, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		parts = append(parts, fmt.Sprintf("%s: %d", s.Label(), counts[s]))
	}
	fmt.Fprintln(a.out, strings.Join(parts, "  "))
}

func dueText(due *time.Time, now time.Time) string {
	if due == nil {
		return "No due date"
	}
	return "Due " + relative(*due, now)
}

// relative renders t against now as "in 3 days" or "2 hours ago".
func relative(t, now time.Time) string {
	d := t.Sub(now)
	future := d >= 0
	if !future {
		d = -d
	}

	var s string
	switch {
	case d < time.Minute:
		s = "less than a minute"
	case d < time.Hour:
		s = plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		s = plural(int(d/time.Hour), "hour")
	case d < 30*24*time.Hour:
		s = plural(int(d/(24*time.Hour)), "day")
	case d < 365*24*time.Hour:
		s = plural(int(d/(30*24*time.Hour)), "month")
	default:
		s = plural(int(d/(365*24*time.Hour)), "year")
	}

	if future {
		return "in " + s
	}
	return s + " ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var dueLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// parseDue accepts RFC 3339, a local date-time or a bare date.
func parseDue(v string) (time.Time, error) {
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid due date %q", model.ErrValidation, v)
}
