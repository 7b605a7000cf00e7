// Package export renders frameworks and assessments as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/co-cddo/webcaf/internal/framework"
)

// Fill colours shared by both workbooks.
const (
	colourYellow = "FFFACD"
	colourBlue   = "4682B4"
	colourGreen  = "C6E2B3"
	colourPink   = "FFB6C1"
	colourGrey   = "D3D3D3"
)

const officialSensitive = "OFFICIAL SENSITIVE WHEN COMPLETED"

// sheet writes cells on one worksheet and keeps the first error, so callers
// can lay out a block of cells and check once.
type sheet struct {
	f    *excelize.File
	name string
	err  error
}

func (s *sheet) cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil && s.err == nil {
		s.err = err
	}
	return name
}

func (s *sheet) set(col, row int, v any) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetCellValue(s.name, s.cell(col, row), v)
}

func (s *sheet) style(col, row, toCol, toRow, style int) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetCellStyle(s.name, s.cell(col, row), s.cell(toCol, toRow), style)
}

func (s *sheet) merge(col, row, toCol, toRow int) {
	if s.err != nil {
		return
	}
	s.err = s.f.MergeCell(s.name, s.cell(col, row), s.cell(toCol, toRow))
}

func (s *sheet) row(row int, values []any) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetSheetRow(s.name, s.cell(1, row), &values)
}

func (s *sheet) height(row int, h float64) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetRowHeight(s.name, row, h)
}

func (s *sheet) widths(widths map[string]float64) {
	for col, w := range widths {
		if s.err != nil {
			return
		}
		s.err = s.f.SetColWidth(s.name, col, col, w)
	}
}

func (s *sheet) link(col, row int, target string) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetCellHyperLink(s.name, s.cell(col, row), target, "External")
}

// dropList restricts a cell to one of values.
func (s *sheet) dropList(col, row int, values []string) {
	if s.err != nil {
		return
	}
	dv := excelize.NewDataValidation(false)
	dv.Sqref = s.cell(col, row)
	if err := dv.SetDropList(values); err != nil {
		s.err = fmt.Errorf("drop list %s!%s: %w", s.name, dv.Sqref, err)
		return
	}
	s.err = s.f.AddDataValidation(s.name, dv)
}

// formulaEscaper escapes formula text for the worksheet XML, which excelize
// writes verbatim for custom validations.
var formulaEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// maxWords limits a text cell to a number of space separated words.
func (s *sheet) maxWords(col, row, limit int) {
	if s.err != nil {
		return
	}
	ref := s.cell(col, row)
	dv := excelize.NewDataValidation(true)
	dv.Sqref = ref
	dv.Type = "custom"
	dv.Formula1 = formulaEscaper.Replace(wordLimitFormula(ref, limit))
	dv.SetError(excelize.DataValidationErrorStyleStop, "Too long", fmt.Sprintf("Maximum %d words allowed", limit))
	dv.SetInput("Word limit", fmt.Sprintf("Enter up to %d words only", limit))
	s.err = s.f.AddDataValidation(s.name, dv)
}

func wordLimitFormula(ref string, limit int) string {
	return fmt.Sprintf(`LEN(TRIM(%[1]s))-LEN(SUBSTITUTE(TRIM(%[1]s)," ",""))+1<=%[2]d`, ref, limit)
}

// styles are the cell formats used across the workbooks, registered once per file.
type styles struct {
	title       int
	banner      int
	heading     int
	subheading  int
	outcome     int
	outcomeText int
	wrap        int
	bold        int
	bordered    int
	grey        int
	header      map[framework.Level]int
	indicator   map[framework.Level]int
}

func border() []excelize.Border {
	var b []excelize.Border
	for _, side := range []string{"left", "right", "top", "bottom"} {
		b = append(b, excelize.Border{Type: side, Color: "000000", Style: 1})
	}
	return b
}

func fill(colour string) excelize.Fill {
	return excelize.Fill{Type: "pattern", Color: []string{colour}, Pattern: 1}
}

func newStyles(f *excelize.File) (*styles, error) {
	var err error
	add := func(st *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = f.NewStyle(st)
		return id
	}

	top := &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true}
	s := &styles{
		title: add(&excelize.Style{
			Font:      &excelize.Font{Family: "Calibri", Bold: true, Color: "FFFFFF"},
			Fill:      fill(colourBlue),
			Border:    border(),
			Alignment: top,
		}),
		banner: add(&excelize.Style{
			Font:      &excelize.Font{Family: "Calibri", Bold: true, Color: "FFFFFF"},
			Fill:      fill(colourBlue),
			Border:    border(),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "top", WrapText: true},
		}),
		heading:    add(&excelize.Style{Font: &excelize.Font{Family: "Calibri", Bold: true, Size: 16}}),
		subheading: add(&excelize.Style{Font: &excelize.Font{Family: "Calibri", Bold: true, Size: 14}}),
		outcome: add(&excelize.Style{
			Font:   &excelize.Font{Family: "Calibri", Bold: true, Size: 14, Color: "FFFFFF"},
			Fill:   fill(colourBlue),
			Border: border(),
		}),
		outcomeText: add(&excelize.Style{
			Font:      &excelize.Font{Family: "Calibri", Color: "FFFFFF"},
			Fill:      fill(colourBlue),
			Border:    border(),
			Alignment: top,
		}),
		wrap:      add(&excelize.Style{Alignment: top}),
		bold:      add(&excelize.Style{Font: &excelize.Font{Family: "Calibri", Bold: true}, Border: border()}),
		bordered:  add(&excelize.Style{Border: border()}),
		grey:      add(&excelize.Style{Fill: fill(colourGrey), Border: border()}),
		header:    make(map[framework.Level]int),
		indicator: make(map[framework.Level]int),
	}
	for level, colour := range levelColours {
		s.header[level] = add(&excelize.Style{
			Font:      &excelize.Font{Family: "Calibri", Bold: true, Size: 12},
			Fill:      fill(colour),
			Border:    border(),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		})
		s.indicator[level] = add(&excelize.Style{
			Fill:      fill(colour),
			Border:    border(),
			Alignment: &excelize.Alignment{WrapText: true},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("register styles: %w", err)
	}
	return s, nil
}

func write(f *excelize.File) (*bytes.Buffer, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf, nil
}
