package usace

import (
	"fmt"
	"html"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const gridViewPage = `<html><body>
<table id="layout" width="100%"><tr><td>12:00 am - 1:00 am</td><td>999</td></tr>
<tr><td>1:00 am - 2:00 am</td><td>999</td></tr></table>
<form method="post" action="./GenerationSchedule.aspx" id="form1">
<table cellspacing="0" rules="all" border="1" id="GridView1" style="border-collapse:collapse;">
	<caption>
		Barkley Dam
		<table id="legend"><tr><td>Legend</td><td>1</td></tr><tr><td>1:00 am - 2:00 am</td><td>77</td></tr></table>
	</caption>
	<tr><th scope="col">Time</th><th scope="col">Generation (MW)</th></tr>
	<tr><td>12:00 am - 1:00 am</td><td>6</td></tr>
	<tr><td>1:00&nbsp;am - 2:00 am</td><td> 6 </td></tr>
	<tr><td>2:00 am - 3:00 am</td><td>64 MW</td></tr>
</table>
</form>
</body></html>`

const mixedRowsPage = `<table id="GridView1">
	<tr><th>Time</th><th>Generation (MW)</th></tr>
	<tr><td>3:00 am - 4:00 am</td><td>12.5</td></tr>
	<tr><td></td><td>20</td></tr>
	<tr><td colspan="2">Total</td></tr>
	<tr><td>4:00 am - 5:00 am</td><td>n/a</td></tr>
	<tr><td>5:00 am - 6:00 am</td><td><span>51</span></td></tr>
	<tr><td>6:00 am - 7:00 am</td><td>-3</td></tr>
	<tr><td>7:00 am - 8:00 am</td><td></td></tr>
</table>`

func extractors() map[string]PeriodExtractor {
	return map[string]PeriodExtractor{
		"regex": RegexTable{TableID: "GridView1", Source: SOURCE_LIVE},
		"dom":   DOMTable{TableID: "GridView1", Source: SOURCE_LIVE},
	}
}

func TestExtractPeriods(t *testing.T) {
	testCases := []struct {
		name     string
		page     string
		expected []GenerationPeriod
	}{
		{
			name: "caption table and unit suffix",
			page: gridViewPage,
			expected: []GenerationPeriod{
				{Time: "12:00 am - 1:00 am", Generation: 6, Status: STATUS_BASE, Source: SOURCE_LIVE},
				{Time: "1:00 am - 2:00 am", Generation: 6, Status: STATUS_BASE, Source: SOURCE_LIVE},
			},
		},
		{
			name: "ambiguous rows",
			page: mixedRowsPage,
			expected: []GenerationPeriod{
				{Time: "3:00 am - 4:00 am", Generation: 12.5, Status: STATUS_ACTIVE, Source: SOURCE_LIVE},
				{Time: "5:00 am - 6:00 am", Generation: 51, Status: STATUS_PEAK, Source: SOURCE_LIVE},
			},
		},
		{
			name:     "no results table",
			page:     `<table id="layout"><tr><td>a</td><td>1</td></tr><tr><td>b</td><td>2</td></tr></table>`,
			expected: nil,
		},
		{
			name:     "header only",
			page:     `<table id="GridView1"><tr><td>12:00 am - 1:00 am</td><td>6</td></tr></table>`,
			expected: nil,
		},
	}

	for name, extractor := range extractors() {
		for _, test := range testCases {
			t.Run(name+"/"+test.name, func(t *testing.T) {
				got := extractor.ExtractPeriods(test.page)
				if diff := cmp.Diff(test.expected, got); diff != "" {
					t.Fatalf("unexpected periods (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestRegexTableNestedTables(t *testing.T) {
	inner, ok := innerTable(gridViewPage, "GridView1")
	require.True(t, ok)
	require.Contains(t, inner, "64 MW")
	require.NotContains(t, inner, "layout")

	_, ok = innerTable(gridViewPage, "GridView2")
	require.False(t, ok)
}

func TestDefaultTableID(t *testing.T) {
	require.Len(t, RegexTable{}.ExtractPeriods(gridViewPage), 2)
	require.Len(t, DOMTable{}.ExtractPeriods(gridViewPage), 2)
}

func FuzzExtractPeriods(f *testing.F) {
	f.Add("12:00 am - 1:00 am", "6")
	f.Add("1:00 am - 2:00 am", "64 MW")
	f.Add("", "12.5")
	f.Add("<b>x</b>", "007")
	f.Add("2:00 pm - 3:00 pm", "1e3")

	f.Fuzz(func(t *testing.T, timeCell, genCell string) {
		page := fmt.Sprintf(
			`<table id="GridView1"><tr><th>Time</th><th>MW</th></tr><tr><td>%s</td><td>%s</td></tr></table>`,
			html.EscapeString(timeCell), html.EscapeString(genCell),
		)
		for name, extractor := range extractors() {
			periods := extractor.ExtractPeriods(page)
			if len(periods) > 1 {
				t.Fatalf("%s: one data row produced %d periods", name, len(periods))
			}
			for _, p := range periods {
				if p.Time == "" {
					t.Fatalf("%s: period without a time range", name)
				}
				if p.Generation < 0 {
					t.Fatalf("%s: negative generation %v", name, p.Generation)
				}
				if p.Status != StatusFor(p.Generation) {
					t.Fatalf("%s: status %s does not match generation %v", name, p.Status, p.Generation)
				}
				if strings.ContainsAny(genCell, "abcdefghijklmnopqrstuvwxyz") {
					t.Fatalf("%s: non numeric cell '%s' was accepted", name, genCell)
				}
			}
		}
	})
}
