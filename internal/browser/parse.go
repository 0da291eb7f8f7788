package browser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/model"
)

// ParsePage scans every table and definition list of a rendered page and
// returns one RawFields per labelled row. Rows are returned as found; callers
// decide which are complete enough to keep.
//
// Two table shapes are recognised: header tables, whose header row labels the
// columns of each body row, and key/value tables, whose rows pair a label
// cell with a value cell and together describe a single record.
func ParsePage(html string, labels Labels) ([]model.RawFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "parse: read html")
	}

	var out []model.RawFields
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		out = append(out, parseTable(table, labels)...)
	})
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		if row := parseDefinitionList(dl, labels); len(row) > 0 {
			out = append(out, row)
		}
	})
	return out, nil
}

func parseTable(table *goquery.Selection, labels Labels) []model.RawFields {
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
	if rows.Length() == 0 {
		return nil
	}

	// Header table: the first row made only of <th> cells (or living in
	// <thead>) whose texts resolve to at least two distinct fields.
	header := -1
	var columns []model.Field
	rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Children().Filter("th,td")
		inHead := tr.ParentsFiltered("thead").Length() > 0
		if !inHead && (cells.Length() == 0 || cells.Filter("td").Length() > 0) {
			return true
		}
		cols, distinct := headerColumns(cells, labels)
		if distinct >= 2 {
			header, columns = i, cols
			return false
		}
		return true
	})

	if header >= 0 {
		var out []model.RawFields
		rows.Each(func(i int, tr *goquery.Selection) {
			if i <= header {
				return
			}
			row := model.RawFields{}
			tr.Children().Filter("td,th").Each(func(j int, cell *goquery.Selection) {
				if j < len(columns) && columns[j] != "" {
					row[columns[j]] = cellText(cell)
				}
			})
			if len(row) > 0 {
				out = append(out, row)
			}
		})
		return out
	}

	row := model.RawFields{}
	rows.Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Children().Filter("th,td")
		if cells.Length() < 2 {
			return
		}
		field, ok := labels.Lookup(cellText(cells.Eq(0)))
		if !ok {
			return
		}
		if _, seen := row[field]; !seen {
			row[field] = cellText(cells.Eq(1))
		}
	})
	if len(row) == 0 {
		return nil
	}
	return []model.RawFields{row}
}

func headerColumns(cells *goquery.Selection, labels Labels) ([]model.Field, int) {
	cols := make([]model.Field, cells.Length())
	seen := map[model.Field]bool{}
	cells.Each(func(i int, cell *goquery.Selection) {
		if f, ok := labels.Lookup(cellText(cell)); ok && !seen[f] {
			cols[i] = f
			seen[f] = true
		}
	})
	return cols, len(seen)
}

func parseDefinitionList(dl *goquery.Selection, labels Labels) model.RawFields {
	row := model.RawFields{}
	dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		field, ok := labels.Lookup(cellText(dt))
		if !ok {
			return
		}
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		if _, seen := row[field]; !seen {
			row[field] = cellText(dd)
		}
	})
	return row
}

func cellText(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// Classify turns a rendered result page into an ExtractionResult. A page
// with no complete row is NotFound, unless it is an anti-bot interstitial.
// formSelectors are passed to DetectBlock.
func Classify(html string, labels Labels, formSelectors ...string) model.ExtractionResult {
	rows, err := ParsePage(html, labels)
	if err != nil {
		return model.Failed(model.ReasonUnexpectedPage, err.Error())
	}

	var complete []model.RawFields
	for _, r := range rows {
		if r.Complete() {
			complete = append(complete, r)
		}
	}
	if len(complete) > 0 {
		return model.Found(complete...)
	}

	if blocked, kind := DetectBlock(html, formSelectors...); blocked {
		return model.Failed(model.ReasonUnexpectedPage, "blocked: "+string(kind))
	}
	return model.NotFound()
}
