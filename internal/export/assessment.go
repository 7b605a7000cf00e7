package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/co-cddo/webcaf/internal/assessment"
	"github.com/co-cddo/webcaf/internal/form"
	"github.com/co-cddo/webcaf/internal/framework"
	"github.com/co-cddo/webcaf/internal/route"
	"github.com/co-cddo/webcaf/internal/status"
)

// Sheet names of the assessment workbook.
const (
	MetadataSheet       = "Metadata"
	IndicatorSheet      = "Indicator Level"
	OutcomeSummarySheet = "Outcome Summary"
)

var (
	indicatorHeader = []any{"Contributing outcome", "IGP", "IGP wording", "Self-assessment", "Self-assessment comments"}
	summaryHeader   = []any{"Contributing outcome", "Target CAF profile", "Self-assessment status", "Meets target CAF profile"}
)

var titleCase = cases.Title(language.English)

// IndicatorLabel names an indicator the way reviewers refer to it, e.g.
// "A1.a Partially Achieved statement 2".
func IndicatorLabel(o *framework.Outcome, level framework.Level, indicatorKey string) string {
	n := indicatorKey[strings.LastIndex(indicatorKey, ".")+1:]
	return fmt.Sprintf("%s %s statement %s", o.Code, titleCase.String(strings.ReplaceAll(string(level), "-", " ")), n)
}

func contributingOutcome(o *framework.Outcome) string {
	if o.Title == "" {
		return o.Code
	}
	return o.Code + " " + o.Title
}

// Assessment renders the answers of an assessment: metadata, one row per
// answered indicator and one status row per outcome.
func Assessment(fw *framework.Framework, a *assessment.Assessment) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", MetadataSheet); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{IndicatorSheet, OutcomeSummarySheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
	}

	meta := &sheet{f: f, name: MetadataSheet}
	meta.row(1, []any{"System name:", a.SystemName})
	meta.row(2, []any{"Reference:", a.Reference})
	meta.row(3, []any{"CAF version:", a.FrameworkID})
	meta.row(4, []any{"Assigned target CAF profile:", a.Profile})
	meta.row(5, []any{"Status:", a.Status})
	meta.widths(map[string]float64{"A": 30, "B": 50})

	ind := &sheet{f: f, name: IndicatorSheet}
	ind.row(1, indicatorHeader)
	sum := &sheet{f: f, name: OutcomeSummarySheet}
	sum.row(1, summaryHeader)

	indRow, sumRow := 2, 2
	for _, obj := range fw.Objectives {
		for _, p := range obj.Principles {
			for _, o := range p.Outcomes {
				section, answered := a.Data[o.Key]
				if answered {
					indRow = writeIndicatorRows(ind, o, section, indRow)
				}

				result := status.Result{
					OutcomeStatus:  status.Status(section.Confirmation[status.FieldOutcomeStatus]),
					OverrideStatus: status.Status(section.Confirmation[status.FieldOverrideStatus]),
				}
				effective := result.Effective()
				sum.row(sumRow, []any{
					contributingOutcome(o),
					o.MinProfileRequirement[a.Profile],
					string(effective),
					status.ProfileRequirement(o, a.Profile, effective),
				})
				sumRow++
			}
		}
	}

	for _, s := range []*sheet{meta, ind, sum} {
		if s.err != nil {
			return nil, fmt.Errorf("write %s sheet: %w", s.name, s.err)
		}
	}
	return write(f)
}

func writeIndicatorRows(s *sheet, o *framework.Outcome, section assessment.Section, row int) int {
	for _, level := range framework.Levels {
		for _, indicator := range o.Indicators.Group(level) {
			field := route.IndicatorFieldName(level, indicator.Key)
			answer := section.Indicators[field]
			var comment string
			if answer != "" {
				comment = section.Indicators[form.JustificationName(field, answer)]
			}
			s.row(row, []any{
				contributingOutcome(o),
				IndicatorLabel(o, level, indicator.Key),
				indicator.Description,
				answer,
				comment,
			})
			row++
		}
	}
	return row
}
