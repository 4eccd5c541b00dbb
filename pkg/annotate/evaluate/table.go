package evaluate

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/report"
)

// Table is one CSV file written per evaluation run, one row per report.
type Table struct {
	Name   string
	Header []string
	Row    func(Report) []string
}

// Tables lists the evaluation outputs in the order they are written.
var Tables = []Table{
	{Name: "solved-best.csv", Header: curveHeader(), Row: func(r Report) []string { return curveRow(r, r.Best) }},
	{Name: "solved.csv", Header: curveHeader(), Row: func(r Report) []string { return curveRow(r, r.Each) }},
	{Name: "solved-average.csv", Header: averageHeader(), Row: averageRow},
	{Name: "solved-stats.csv", Header: distributionHeader(), Row: distributionRow},
	{Name: "llm-summary.csv", Header: []string{
		"domain", "llm", "threads.answered", "threads.answered.fraction",
		"results.length.min", "results.length.q1", "results.length.median",
		"results.length.q3", "results.length.max", "results.total",
	}, Row: summaryRow},
}

// WriteTable writes t's header and one row per report.
func WriteTable(w io.Writer, t Table, reports []Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name, err)
	}
	for _, r := range reports {
		if err := cw.Write(t.Row(r)); err != nil {
			return fmt.Errorf("write %s row for %s/%s: %w", t.Name, r.Domain, r.Model, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func curveHeader() []string {
	h := []string{"domain", "llm", "mmr"}
	for k := 1; k <= MaxRank; k++ {
		h = append(h, fmt.Sprintf("solved.%d", k))
	}
	for k := 1; k <= MaxRank; k++ {
		h = append(h, fmt.Sprintf("solved.%d.fraction", k))
	}
	return h
}

func curveRow(r Report, c Curve) []string {
	row := []string{r.Domain, r.Model, report.FormatFraction(c.MRR)}
	for _, n := range c.Counts {
		row = append(row, strconv.Itoa(n))
	}
	for _, f := range c.Fractions {
		row = append(row, report.FormatFraction(f))
	}
	return row
}

func averageHeader() []string {
	h := []string{"domain", "llm", "mmr"}
	for k := 1; k <= MaxRank; k++ {
		h = append(h,
			fmt.Sprintf("solved.%d.avg", k),
			fmt.Sprintf("solved.%d.stdev", k),
			fmt.Sprintf("solved.%d.fraction.avg", k),
			fmt.Sprintf("solved.%d.fraction.stdev", k))
	}
	return h
}

func averageRow(r Report) []string {
	a := r.Average
	row := []string{r.Domain, r.Model, report.FormatFraction(a.MRR)}
	for i := range a.Mean {
		row = append(row,
			report.FormatFraction(a.Mean[i]),
			report.FormatFraction(a.StdDev[i]),
			report.FormatFraction(a.FractionMean[i]),
			report.FormatFraction(a.FractionStdDev[i]))
	}
	return row
}

func distributionHeader() []string {
	h := []string{"domain", "llm"}
	for i := 0; i <= Runs; i++ {
		h = append(h, fmt.Sprintf("solved.%d", i))
	}
	for i := 0; i <= Runs; i++ {
		h = append(h, fmt.Sprintf("solved.%d.fraction", i))
	}
	return h
}

func distributionRow(r Report) []string {
	row := []string{r.Domain, r.Model}
	for _, n := range r.Distribution {
		row = append(row, strconv.Itoa(n))
	}
	for _, f := range r.DistributionFraction() {
		row = append(row, report.FormatFraction(f))
	}
	return row
}

func summaryRow(r Report) []string {
	s := r.Summary
	return []string{
		r.Domain, r.Model,
		strconv.Itoa(s.Answered),
		report.FormatFraction(s.AnsweredFraction),
		strconv.Itoa(int(s.LengthMin)),
		report.FormatFraction(s.LengthQ1),
		report.FormatFraction(s.LengthMedian),
		report.FormatFraction(s.LengthQ3),
		strconv.Itoa(int(s.LengthMax)),
		strconv.Itoa(s.Total),
	}
}
