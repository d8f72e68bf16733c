package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// Format is a table layout.
type Format string

const (
	FormatLaTeX    Format = "latex"
	FormatMarkdown Format = "markdown"
	FormatTSV      Format = "tsv"
)

// DefaultPlaces is the number of decimals kept in rendered numbers.
const DefaultPlaces = 6

func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatLaTeX, FormatMarkdown, FormatTSV:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown table format %q (want latex, markdown or tsv)", name)
	}
}

// Table is a header row plus data rows of pre-formatted cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Number renders f rounded to places decimals. NaN renders as "nan".
func Number(f float64, places int32) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "nan"
	}
	return decimal.NewFromFloat(f).StringFixed(places)
}

// SeedTable lays out one row per seed with its estimate and relative error.
func SeedTable(rows []sweep.Row, places int32) Table {
	t := Table{Headers: []string{"Seed", "Estimate", "Relative error"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(r.Seed),
			Number(r.Result.Estimate, places),
			Number(r.Result.RelativeError(), places),
		})
	}
	return t
}

// SweepTable lays out one row per sweep point.
func SweepTable(result *sweep.SweepResult, places int32) Table {
	t := Table{Headers: []string{"Seed", "Needle length", "Tries", "Hits", "Estimate", "Relative error"}}
	for _, series := range result.Series {
		length := "-"
		if series.NeedleLength > 0 {
			length = Number(series.NeedleLength, places)
		}
		for _, p := range series.Points {
			t.Rows = append(t.Rows, []string{
				fmt.Sprint(series.Seed),
				length,
				fmt.Sprint(p.Result.Tries),
				fmt.Sprint(p.Result.Hits),
				Number(p.Result.Estimate, places),
				Number(p.Result.RelativeError(), places),
			})
		}
	}
	return t
}

// Write renders the table in the given format.
func (t Table) Write(w io.Writer, format Format) error {
	switch format {
	case FormatLaTeX:
		return t.writeLaTeX(w)
	case FormatMarkdown:
		return t.writeMarkdown(w)
	case FormatTSV:
		return t.writeTSV(w)
	default:
		return fmt.Errorf("unknown table format %q", format)
	}
}

func (t Table) widths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	return widths
}

func pad(cells []string, widths []int) []string {
	out := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		out[i] = fmt.Sprintf("%*s", widths[i], cell)
	}
	return out
}

func escapeLaTeX(s string) string {
	return strings.NewReplacer(`\`, `\textbackslash{}`, "&", `\&`, "%", `\%`, "_", `\_`, "#", `\#`).Replace(s)
}

func (t Table) writeLaTeX(w io.Writer) error {
	widths := t.widths()
	var b strings.Builder

	fmt.Fprintf(&b, "\\begin{tabular}{%s}\n", strings.Repeat("r", len(widths)))
	b.WriteString("\\hline\n")
	headers := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = escapeLaTeX(h)
	}
	fmt.Fprintf(&b, " %s \\\\\n", strings.Join(pad(headers, widths), " & "))
	b.WriteString("\\hline\n")
	for _, row := range t.Rows {
		fmt.Fprintf(&b, " %s \\\\\n", strings.Join(pad(row, widths), " & "))
	}
	b.WriteString("\\hline\n")
	b.WriteString("\\end{tabular}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (t Table) writeMarkdown(w io.Writer) error {
	widths := t.widths()
	var b strings.Builder

	fmt.Fprintf(&b, "| %s |\n", strings.Join(pad(t.Headers, widths), " | "))
	rules := make([]string, len(widths))
	for i, n := range widths {
		rules[i] = strings.Repeat("-", max(n-1, 2)) + ":"
	}
	fmt.Fprintf(&b, "|%s|\n", strings.Join(wrapSpaces(rules), "|"))
	for _, row := range t.Rows {
		fmt.Fprintf(&b, "| %s |\n", strings.Join(pad(row, widths), " | "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func wrapSpaces(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = " " + c + " "
	}
	return out
}

func (t Table) writeTSV(w io.Writer) error {
	var b strings.Builder
	b.WriteString(strings.Join(t.Headers, "\t"))
	b.WriteByte('\n')
	for _, row := range t.Rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
