package report

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

func sampleRows() []sweep.Row {
	return []sweep.Row{
		{Seed: 0, Result: estimator.Result{Method: "dart", Hits: 79, Tries: 100, Estimate: 3.16}},
		{Seed: 1, Result: estimator.Result{Method: "dart", Hits: 77, Tries: 100, Estimate: 3.08}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"latex", FormatLaTeX, false},
		{"LaTeX", FormatLaTeX, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"tsv", FormatTSV, false},
		{"html", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		f      float64
		places int32
		want   string
	}{
		{3.14159265, 4, "3.1416"},
		{0.5, 3, "0.500"},
		{2, 0, "2"},
		{math.NaN(), 3, "nan"},
	}
	for _, tt := range tests {
		if got := Number(tt.f, tt.places); got != tt.want {
			t.Errorf("Number(%v, %d) = %q, want %q", tt.f, tt.places, got, tt.want)
		}
	}
}

func TestSeedTableLaTeX(t *testing.T) {
	var buf bytes.Buffer
	if err := SeedTable(sampleRows(), 4).Write(&buf, FormatLaTeX); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "\\begin{tabular}{rrr}\n\\hline\n") {
		t.Errorf("Unexpected LaTeX preamble:\n%s", out)
	}
	if !strings.HasSuffix(out, "\\hline\n\\end{tabular}\n") {
		t.Errorf("Unexpected LaTeX ending:\n%s", out)
	}
	if !strings.Contains(out, "3.1600 &") || !strings.Contains(out, "0.0059 \\\\") {
		t.Errorf("Expected rounded values in:\n%s", out)
	}
	if strings.Count(out, "\\\\\n") != 3 {
		t.Errorf("Expected header plus 2 rows, got:\n%s", out)
	}
}

func TestSeedTableMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := SeedTable(sampleRows(), 3).Write(&buf, FormatMarkdown); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "Relative error") {
		t.Errorf("Expected header row, got %q", lines[0])
	}
	if !strings.Contains(lines[1], ":") || !strings.HasPrefix(lines[1], "|") {
		t.Errorf("Expected alignment row, got %q", lines[1])
	}
	for _, line := range lines {
		if len(line) != len(lines[0]) {
			t.Errorf("Expected aligned columns, got %q", line)
		}
	}
}

func TestSweepTableTSV(t *testing.T) {
	result := &sweep.SweepResult{
		Series: []sweep.SeriesResult{{
			Series: sweep.Series{Seed: 1500, NeedleLength: 0.5},
			Points: []sweep.Point{
				{Exponent: 1, Result: estimator.Result{Tries: 2, Estimate: math.NaN(), Degenerate: true}},
				{Exponent: 2, Result: estimator.Result{Tries: 4, Hits: 1, Estimate: 2}},
			},
		}},
	}

	var buf bytes.Buffer
	if err := SweepTable(result, 2).Write(&buf, FormatTSV); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if lines[1] != "1500\t0.50\t2\t0\tnan\tnan" {
		t.Errorf("Unexpected degenerate row %q", lines[1])
	}
	if lines[2] != "1500\t0.50\t4\t1\t2.00\t0.36" {
		t.Errorf("Unexpected row %q", lines[2])
	}
}

func TestUnknownFormat(t *testing.T) {
	if err := SeedTable(sampleRows(), 2).Write(&bytes.Buffer{}, Format("html")); err == nil {
		t.Error("Expected error for unknown format")
	}
}
