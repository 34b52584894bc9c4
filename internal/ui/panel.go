package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/idilsaglam/todosync/internal/model"
)

// visibleWidth is the number of terminal cells s occupies, ignoring escape
// sequences and counting wide runes as two.
func visibleWidth(s string) int { return lipgloss.Width(s) }

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := int(float64(done) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	pct := int(float64(done) / float64(total) * 100)
	return fmt.Sprintf("%s %3d%%", bar, pct)
}

// Panel draws a framed box using the current theme.
func Panel(w io.Writer, lines []string) {
	t := Current()
	maxw := 0
	for _, ln := range lines {
		if n := visibleWidth(ln); n > maxw {
			maxw = n
		}
	}
	pad := func(s string) string {
		if vis := visibleWidth(s); vis < maxw {
			s += strings.Repeat(" ", maxw-vis)
		}
		return s
	}
	fmt.Fprintln(w, t.CornerTL+strings.Repeat(t.H, maxw+2)+t.CornerTR)
	for _, ln := range lines {
		fmt.Fprintln(w, t.V+" "+pad(ln)+" "+t.V)
	}
	fmt.Fprintln(w, t.CornerBL+strings.Repeat(t.H, maxw+2)+t.CornerBR)
}

// Header is the counts line shown above the list.
func Header(items []model.Item) string {
	t := Current()
	d, p := model.Stats(items)
	return fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		C(t.Title, "Todos"),
		C(t.Success, t.SymDone), d,
		C(t.Pending, t.SymUnchecked), p,
		C(t.Accent, "Total"), len(items),
	)
}

// ListLines renders the static panel body for ls.
func ListLines(items []model.Item, group bool) []string {
	t := Current()
	d, p := model.Stats(items)
	lines := []string{
		Header(items),
		C(t.Muted, ProgressBar(d, d+p, 28)),
		"",
	}
	if group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items, nil)...)
	}
	lines = append(lines, "", C(t.Muted, "Tip: add with `todo add \"Buy milk\"`"))
	return lines
}

// flatLines numbers items by their position in all (or items when all is
// nil) so indexes match what done/rm accept.
func flatLines(items, all []model.Item) []string {
	if len(items) == 0 {
		return []string{C(Current().Muted, "no items")}
	}
	pos := map[model.ID]int{}
	for i, it := range all {
		pos[it.ID] = i + 1
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		n := i + 1
		if all != nil {
			n = pos[it.ID]
		}
		box, color := Current().BoxUnchecked, Current().Muted
		if it.IsCompleted {
			box, color = Current().BoxChecked, Current().Success
		}
		name := it.Name
		if utf8.RuneCountInString(name) > 80 {
			name = string([]rune(name)[:77]) + "..."
		}
		out = append(out, fmt.Sprintf("%s %s %s", Dim(fmt.Sprintf("%2d.", n)), C(color, box), name))
	}
	return out
}

func groupLines(items []model.Item) []string {
	var pend, done []model.Item
	for _, it := range items {
		if it.IsCompleted {
			done = append(done, it)
		} else {
			pend = append(pend, it)
		}
	}
	section := func(title string, group []model.Item) []string {
		lines := []string{C(Current().Accent, title)}
		if len(group) == 0 {
			return append(lines, C(Current().Muted, "(none)"))
		}
		return append(lines, flatLines(group, items)...)
	}
	lines := section("Pending", pend)
	lines = append(lines, "")
	return append(lines, section("Done", done)...)
}
