package psdbench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const summaryMsg = `#summary:
total_count:	%d
measured:	%d
decoder_failure:	%d
parse_failure:	%d
`

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// FormatTable renders one row per measurement followed by a summary.
func FormatTable(parseFailure int, report Report) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("decoder", "file", "opacity", "parse", "merged image", "layers").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			if col >= 3 {
				return cellStyle.Align(lipgloss.Right)
			}

			return cellStyle
		})

	for _, m := range report.Measurements {
		t.Row(
			m.Decoder,
			m.File,
			fmt.Sprintf("%t", m.Options.ApplyOpacity),
			formatMs(m.Result.ParseTime),
			formatMs(m.Result.ImageRenderTime),
			formatMs(m.Result.LayerRenderTime),
		)
	}

	var b strings.Builder

	b.WriteString(t.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, summaryMsg,
		len(report.Measurements)+report.FailedCount+parseFailure,
		len(report.Measurements),
		report.FailedCount,
		parseFailure,
	)

	return b.String()
}

func formatMs(v float64) string {
	return fmt.Sprintf("%.2fms", v)
}

// FormatJSON writes the report as indented JSON.
func FormatJSON(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("could not encode report: %w", err)
	}

	return nil
}
