// Package report renders tally snapshots into fixed-width text tables.
// Rendering is a pure function of the grouped snapshot: no I/O, widths
// recomputed on every invocation.
package report

import (
	"strconv"
	"strings"

	"github.com/sszokoly/sipcounter/internal/core"
	"github.com/sszokoly/sipcounter/internal/counter"
)

// summaryLabel is the row label of the cross-link totals.
const summaryLabel = "SUMMARY"

// Options controls what Render emits.
type Options struct {
	// Name labels the second header line, typically the session name.
	Name string
	// Title is printed inline with the column header, e.g. a timestamp.
	Title string
	// Columns overrides the discovered label set and its order.
	Columns []string
	// Header, Links and Summary toggle the respective sections.
	Header  bool
	Links   bool
	Summary bool
}

// DefaultOptions returns Options with all sections enabled.
func DefaultOptions(name string) Options {
	return Options{Name: name, Header: true, Links: true, Summary: true}
}

// Render produces the report table for an already-grouped snapshot view
// (see counter.GroupBy and counter.MostCommon). Each message-type column
// has two sub-columns, one per direction; when the view only contains
// direction-less entries a single sub-column is used. Returns the empty
// string for an empty view.
func Render(groups []counter.Group, opts Options) string {
	if len(groups) == 0 {
		return ""
	}
	elements := opts.Columns
	if len(elements) == 0 {
		elements = counter.ElementsOf(groups)
	}
	if len(elements) == 0 {
		return ""
	}
	summary := counter.Summarize(groups)

	directions := 2
	for _, g := range groups {
		if _, ok := g.Rows[core.DirBoth]; ok {
			directions = 1
			break
		}
	}

	// Column width: the smallest odd width that fits the widest label and
	// the widest count in every sub-column. Link column: widest of the link
	// strings, the name, the title and the summary label.
	countWidth := 1
	for _, tally := range summary {
		for _, n := range tally {
			if w := len(strconv.Itoa(n)); w > countWidth {
				countWidth = w
			}
		}
	}
	contentWidth := countWidth * directions
	for _, e := range elements {
		if len(e) > contentWidth {
			contentWidth = len(e)
		}
	}
	columnWidth := (contentWidth/2)*2 + 1

	linkWidth := len(summaryLabel)
	for _, g := range groups {
		if w := len(g.Key.String()); w > linkWidth {
			linkWidth = w
		}
	}
	if len(opts.Name) > linkWidth {
		linkWidth = len(opts.Name)
	}
	if len(opts.Title) > linkWidth {
		linkWidth = len(opts.Title)
	}
	linkWidth++

	cellWidth := columnWidth / directions

	var out []string
	out = append(out, "")

	if opts.Header {
		cols := make([]string, len(elements))
		for i, e := range elements {
			cols[i] = center(e, columnWidth)
		}
		out = append(out, padRight(opts.Title, linkWidth)+strings.Join(cols, " "))

		var b strings.Builder
		b.WriteString(padRight(opts.Name, linkWidth))
		for range elements {
			if directions == 2 {
				b.WriteString(fillLeft(string(core.DirOut), cellWidth))
				b.WriteByte(' ')
				b.WriteString(fillRight(string(core.DirIn), cellWidth))
			} else {
				b.WriteString(strings.Repeat("-", columnWidth))
			}
			b.WriteByte(' ')
		}
		out = append(out, strings.TrimRight(b.String(), " "))
	}

	row := func(label string, rows counter.Rows) string {
		cells := make([]string, 0, len(elements)*directions)
		for _, e := range elements {
			if directions == 2 {
				cells = append(cells,
					padLeft(strconv.Itoa(rows[core.DirOut][e]), cellWidth),
					padLeft(strconv.Itoa(rows[core.DirIn][e]), cellWidth))
			} else {
				cells = append(cells,
					padLeft(strconv.Itoa(rows[core.DirBoth][e]), cellWidth))
			}
		}
		return padRight(label, linkWidth) + strings.Join(cells, " ")
	}

	if opts.Links {
		for _, g := range groups {
			out = append(out, row(g.Key.String(), g.Rows))
		}
	}
	if opts.Summary {
		out = append(out, row(summaryLabel, summary))
	}

	out = append(out, "")
	return strings.Join(out, "\n")
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}

// fillLeft / fillRight pad with dashes, forming the direction ruler of the
// header ("---->" / "<-----").
func fillLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("-", width-len(s)) + s
}

func fillRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat("-", width-len(s))
}
