package usace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"usace-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// PeriodExtractor turns a date postback response into generation periods.
type PeriodExtractor interface {
	ExtractPeriods(page string) []GenerationPeriod
}

const DEFAULT_TABLE_ID = "GridView1"

// generation cells must be a plain number, "64 MW" or "n/a" are not guessed at
var generationRegex = regexp.MustCompile(`^\d+(\.\d+)?$`)

// toPeriods applies the row rules shared by every extractor: row 0 is the
// header, a data row needs a time range and a plain numeric generation.
func toPeriods(rows [][]string, source string) []GenerationPeriod {
	var periods []GenerationPeriod
	for i, cells := range rows {
		if i == 0 || len(cells) < 2 {
			continue
		}
		timeText := cells[0]
		genText := cells[1]
		if timeText == "" || !generationRegex.MatchString(genText) {
			continue
		}
		generation, err := strconv.ParseFloat(genText, 64)
		if err != nil || generation < 0 {
			continue
		}
		periods = append(periods, NewGenerationPeriod(timeText, generation, source))
	}
	return periods
}

// RegexTable extracts periods with targeted pattern matching against the
// known GridView markup.
type RegexTable struct {
	TableID string
	Source  string
}

var tableTagRegex = regexp.MustCompile(`(?i)<(/?)table\b[^>]*>`)
var captionRegex = regexp.MustCompile(`(?is)<caption\b[^>]*>.*?</caption>`)
var rowRegex = regexp.MustCompile(`(?is)<tr\b[^>]*>(.*?)</tr>`)
var cellRegex = regexp.MustCompile(`(?is)<td\b[^>]*>(.*?)</td>`)

// innerTable returns the markup between the opening tag of the table with
// the given id and its matching closing tag.
func innerTable(page, id string) (string, bool) {
	openRegex := regexp.MustCompile(fmt.Sprintf(
		`(?i)<table\b[^>]*\bid=["']%s["'][^>]*>`,
		regexp.QuoteMeta(id),
	))
	open := openRegex.FindStringIndex(page)
	if open == nil {
		return "", false
	}

	rest := page[open[1]:]
	depth := 1
	for _, tag := range tableTagRegex.FindAllStringSubmatchIndex(rest, -1) {
		closing := tag[3] > tag[2]
		if !closing {
			depth++
			continue
		}
		depth--
		if depth == 0 {
			return rest[:tag[0]], true
		}
	}
	// unterminated table, take what is there
	return rest, true
}

func (t RegexTable) ExtractPeriods(page string) []GenerationPeriod {
	id := t.TableID
	if id == "" {
		id = DEFAULT_TABLE_ID
	}
	inner, ok := innerTable(page, id)
	if !ok {
		return nil
	}
	// a caption can embed a whole table of its own, its rows must not be counted
	inner = captionRegex.ReplaceAllString(inner, "")

	var rows [][]string
	for _, row := range rowRegex.FindAllStringSubmatch(inner, -1) {
		var cells []string
		for _, cell := range cellRegex.FindAllStringSubmatch(row[1], -1) {
			cells = append(cells, htmlutil.StripTags(cell[1]))
		}
		rows = append(rows, cells)
	}
	return toPeriods(rows, t.Source)
}

// DOMTable extracts periods by walking the parsed document, it follows the
// same row rules as RegexTable.
type DOMTable struct {
	TableID string
	Source  string
}

func (t DOMTable) ExtractPeriods(page string) []GenerationPeriod {
	id := t.TableID
	if id == "" {
		id = DEFAULT_TABLE_ID
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	table := doc.Find(fmt.Sprintf(`table[id="%s"]`, id)).First()
	if table.Length() == 0 {
		return nil
	}
	table.Find("caption").Remove()

	// only rows that belong to this table, not to tables nested in its cells
	rowSel := table.ChildrenFiltered("tr").
		AddSelection(table.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr"))

	var rows [][]string
	rowSel.Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.ChildrenFiltered("td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, htmlutil.CleanText(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return toPeriods(rows, t.Source)
}
