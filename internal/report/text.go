package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ajitpratap0/classcycle/internal/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	style := table.StyleRounded
	style.Format.Header = text.FormatDefault
	tw := table.NewWriter()
	tw.SetStyle(style)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// CyclesTable renders cycles as a table.
func CyclesTable(cycles []models.Cycle) string {
	rows := make([][]string, 0, len(cycles))
	for _, c := range cycles {
		rows = append(rows, []string{
			c.Name,
			strconv.Itoa(c.Size()),
			strconv.Itoa(c.Layer),
			strings.Join(c.Members, ", "),
		})
	}
	return renderTable(
		[]string{"Cycle", "Size", "Layer", "Members"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	)
}

// NodesTable renders class or package nodes as a table.
func NodesTable(nodes []models.Node, level models.Level) string {
	headers := []string{"Name", "Size", "Used by", "Uses int.", "Uses ext.", "Layer", "Cycle"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	if level == models.LevelClass {
		headers = append(headers[:1], append([]string{"Type"}, headers[1:]...)...)
		aligns = append(aligns[:1], append([]columnAlignment{alignLeft}, aligns[1:]...)...)
	}

	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		row := []string{n.Name}
		if level == models.LevelClass {
			row = append(row, string(n.Type))
		}
		row = append(row,
			strconv.Itoa(n.Size),
			strconv.Itoa(len(n.UsedBy)),
			strconv.Itoa(len(n.UsesInternal)),
			strconv.Itoa(len(n.UsesExternal)),
			strconv.Itoa(n.Layer),
			n.Cycle,
		)
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}

// WriteText renders a summary followed by cycle, class and package tables.
func WriteText(w io.Writer, a *models.Analysis) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", a.Title)
	fmt.Fprintf(&b, "Run %s at %s\n\n", a.ID, a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(&b, "Classes:          %d (%d external)\n", len(a.Classes), len(a.ExternalClasses))
	fmt.Fprintf(&b, "Packages:         %d\n", len(a.Packages))
	fmt.Fprintf(&b, "Class cycles:     %d\n", len(a.ClassCycles))
	fmt.Fprintf(&b, "Package cycles:   %d\n", len(a.PackageCycles))

	if len(a.ClassCycles) > 0 {
		b.WriteString("\nClass cycles:\n")
		b.WriteString(CyclesTable(a.ClassCycles))
		b.WriteString("\n")
	}
	if len(a.PackageCycles) > 0 {
		b.WriteString("\nPackage cycles:\n")
		b.WriteString(CyclesTable(a.PackageCycles))
		b.WriteString("\n")
	}
	if len(a.Classes) > 0 {
		b.WriteString("\nClasses:\n")
		b.WriteString(NodesTable(a.Classes, models.LevelClass))
		b.WriteString("\n")
	}
	if len(a.Packages) > 0 {
		b.WriteString("\nPackages:\n")
		b.WriteString(NodesTable(a.Packages, models.LevelPackage))
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("report: writing text: %w", err)
	}
	return nil
}

// RunsTable renders stored run summaries as a table.
func RunsTable(runs []models.RunSummary) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
			r.Title,
			strconv.Itoa(r.Classes),
			strconv.Itoa(r.Packages),
			strconv.Itoa(r.ClassCycles),
			strconv.Itoa(r.PackageCycles),
		})
	}
	return renderTable(
		[]string{"ID", "Created", "Title", "Classes", "Packages", "Class cycles", "Package cycles"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}
