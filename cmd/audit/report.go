package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/rocjay1/spend-audit/internal/engine"
	"github.com/rocjay1/spend-audit/internal/models"
)

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func printSummary(w io.Writer, st models.Statistics) {
	fmt.Fprintf(w, "\n=== Spend Audit (rules %s) ===\n", st.RulesVersion)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Transactions", strconv.Itoa(st.Total)})
	table.Append([]string{"Included", fmt.Sprintf("%d (%s)", st.Included, pct(st.IncludedPercent))})
	table.Append([]string{"Excluded", strconv.Itoa(st.Excluded)})
	table.Append([]string{"True spend", st.TrueSpend.StringFixed(2)})
	table.Append([]string{"Excluded amount", st.ExcludedAmount.StringFixed(2)})
	table.Append([]string{"Duplicates removed", strconv.Itoa(st.DuplicatesRemoved)})
	table.Append([]string{"Out of window", strconv.Itoa(st.OutOfWindow)})
	table.Append([]string{"Coverage", pct(st.Coverage)})
	table.Render()

	if len(st.UnavailableSources) > 0 {
		fmt.Fprintln(w, "\nUnavailable sources:")
		table = tablewriter.NewWriter(w)
		table.SetHeader([]string{"Source", "Required", "Reason"})
		for _, u := range st.UnavailableSources {
			table.Append([]string{u.Label, strconv.FormatBool(u.Required), u.Reason})
		}
		table.Render()
	}

	fmt.Fprintln(w, "\nCategories:")
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Count", "Total", "Average", "% of spend"})
	for _, c := range st.Categories {
		if c.Count == 0 {
			continue
		}
		table.Append([]string{string(c.Category), strconv.Itoa(c.Count), c.Total.StringFixed(2), c.Average.StringFixed(2), pct(c.PercentOfSpend)})
	}
	table.Render()

	fmt.Fprintln(w, "\nExclusions:")
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Kind", "Reason", "Count", "Amount"})
	for _, e := range st.Exclusions {
		table.Append([]string{e.Kind.String(), e.Reason, strconv.Itoa(e.Count), e.Amount.StringFixed(2)})
	}
	table.Render()

	fmt.Fprintln(w, "\nMonthly:")
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Month", "Count", "Total"})
	for _, m := range st.Monthly {
		table.Append([]string{m.Month, strconv.Itoa(m.Count), m.Total.StringFixed(2)})
	}
	table.Render()

	if len(st.TopUncategorized) > 0 {
		fmt.Fprintln(w, "\nTop uncategorized:")
		table = tablewriter.NewWriter(w)
		table.SetHeader([]string{"Name", "Count", "Total"})
		for _, m := range st.TopUncategorized {
			table.Append([]string{m.Name, strconv.Itoa(m.Count), m.Total.StringFixed(2)})
		}
		table.Render()
	}

	q := st.Quality
	if q != (models.QualityReport{}) {
		fmt.Fprintf(w, "\nData quality: %d unparsable dates, %d unparsable amounts, %d empty names, %d rejected rows\n",
			q.InvalidDates, q.InvalidAmounts, q.EmptyNames, q.RejectedRows)
	}
}

func printMatch(w io.Writer, report engine.MatchReport) {
	s := report.Summary
	fmt.Fprintf(w, "\n=== Verification: %d of %d matched (%s) ===\n", s.Matched, s.Total, pct(s.MatchedPercent()))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Source", "Matched audit records", "Unmatched source records"})
	for _, label := range slices.Sorted(maps.Keys(s.MatchedBySource)) {
		table.Append([]string{label, strconv.Itoa(s.MatchedBySource[label]), strconv.Itoa(s.UnmatchedBySource[label])})
	}
	table.Render()

	if len(report.Unmatched) > 0 {
		fmt.Fprintln(w, "\nAudit records with no source record:")
		table = tablewriter.NewWriter(w)
		table.SetHeader([]string{"Date", "Name", "Amount"})
		for _, t := range report.Unmatched {
			table.Append([]string{t.FormatDate(), t.Name, t.Amount.StringFixed(2)})
		}
		table.Render()
	}
}

func printComparison(w io.Writer, cmp engine.Comparison, stale []models.Category) {
	fmt.Fprintln(w, "\n=== Reclassification ===")
	if len(stale) > 0 {
		labels := make([]string, len(stale))
		for i, c := range stale {
			labels[i] = string(c)
		}
		fmt.Fprintf(w, "Not in the current taxonomy, shown as removed: %s\n", strings.Join(labels, ", "))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Before", "After", "Delta"})
	table.Append([]string{"Included", strconv.Itoa(cmp.IncludedBefore), strconv.Itoa(cmp.IncludedAfter), strconv.Itoa(cmp.IncludedDelta)})
	table.Append([]string{"True spend", cmp.SpendBefore.StringFixed(2), cmp.SpendAfter.StringFixed(2), cmp.SpendDelta.StringFixed(2)})
	table.Append([]string{"Coverage", pct(cmp.CoverageBefore), pct(cmp.CoverageAfter), pct(cmp.CoverageAfter - cmp.CoverageBefore)})
	table.Render()

	fmt.Fprintln(w, "\nCategories:")
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"Category", "Count before", "Count after", "Total before", "Total after"})
	for _, d := range cmp.Categories {
		if d.CountBefore == 0 && d.CountAfter == 0 {
			continue
		}
		table.Append([]string{string(d.Category), strconv.Itoa(d.CountBefore), strconv.Itoa(d.CountAfter), d.TotalBefore.StringFixed(2), d.TotalAfter.StringFixed(2)})
	}
	table.Render()
}
