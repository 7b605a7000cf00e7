package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/co-cddo/webcaf/internal/framework"
	"github.com/co-cddo/webcaf/internal/status"
)

// GuidanceSheet is the first sheet of the template workbook.
const GuidanceSheet = "Guidance"

// An objective sheet has a description, answer and explanation column for
// each indicator level.
const (
	templateColumns = 9
	summaryWords    = 1500
)

var levelColours = map[framework.Level]string{
	framework.LevelAchieved:          colourGreen,
	framework.LevelPartiallyAchieved: colourYellow,
	framework.LevelNotAchieved:       colourPink,
}

var levelStatus = map[framework.Level]status.Status{
	framework.LevelAchieved:          status.Achieved,
	framework.LevelPartiallyAchieved: status.PartiallyAchieved,
	framework.LevelNotAchieved:       status.NotAchieved,
}

// templateLevels is the left-to-right column order of the indicator block.
var templateLevels = []framework.Level{
	framework.LevelAchieved,
	framework.LevelPartiallyAchieved,
	framework.LevelNotAchieved,
}

var yesNo = []string{"Yes", "No"}

var guidanceLinks = []struct{ text, target string }{
	{"Stage 3 self-assessment guidance:", "https://www.security.gov.uk/policy-and-guidance/govassure/stage-3-self-assessment/"},
	{"NCSC CAF version 3.2:", "https://www.ncsc.gov.uk/collection/cyber-assessment-framework/changelog"},
	{"WebCAF:", "https://webcaf.service.security.gov.uk/"},
}

var templateIntro = []string{
	"You can use this spreadsheet to prepare your organisation's GovAssure self-assessment before completing it in WebCAF.",
	"The structure of the spreadsheet matches the format of responses in WebCAF. You should use the GovAssure stage 3 guidance to support you when preparing your self-assessment.",
	"This spreadsheet is for use within your organisation. You will not need to share it with GDS. You can choose to use as much or as little as is helpful to you.",
}

var templateUsage = []string{
	"There is a separate sheet for each CAF objective. You should scroll to the bottom of the sheet to see all contributing outcomes.\n",
	"For each contributing outcome, you can:",
	"- Respond 'Yes' or 'No' to each indicator of good practice (IGP) statement that is true about your system or organisation",
	"- If you have alternative controls in place, or the IGP is not applicable, tick the statement and explain this alternative control or exemption in the next column",
	"- Select your overall contributing outcome status from the dropdown menu",
	"- Write a summary for the contributing outcome (1,500 word limit)",
	"- List your supporting evidence for the contributing outcome",
}

// ObjectiveSheet names the template sheet for an objective.
func ObjectiveSheet(o *framework.Objective) string {
	return "CAF - Objective " + o.Code
}

// StatusChoices lists the statuses an outcome may be given in the template.
// Partially achieved is only offered when the outcome has indicators at that level.
func StatusChoices(o *framework.Outcome) []string {
	if o.HasPartiallyAchieved() {
		return []string{string(status.Achieved), string(status.PartiallyAchieved), string(status.NotAchieved)}
	}
	return []string{string(status.Achieved), string(status.NotAchieved)}
}

// Template renders a blank self-assessment workbook for offline preparation:
// a guidance sheet followed by one sheet per objective.
func Template(fw *framework.Framework) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", GuidanceSheet); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	if err := writeGuidance(&sheet{f: f, name: GuidanceSheet}, st); err != nil {
		return nil, err
	}

	for _, obj := range fw.Objectives {
		name := ObjectiveSheet(obj)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := writeObjective(&sheet{f: f, name: name}, st, obj); err != nil {
			return nil, err
		}
	}
	return write(f)
}

func (s *sheet) title(row int, text string, style int) {
	s.merge(1, row, 4, row)
	s.set(1, row, text)
	s.style(1, row, 4, row, style)
}

func writeGuidance(s *sheet, st *styles) error {
	s.widths(map[string]float64{"A": 50, "B": 50, "C": 50, "D": 50})

	row := 1
	s.title(row, officialSensitive, st.banner)
	row += 2

	s.title(row, "GovAssure self-assessment and evidence collation template - CAF version 3.2", st.title)
	row++
	s.merge(1, row, 4, row)
	s.set(1, row, strings.Join(templateIntro, "\n\n"))
	s.style(1, row, 4, row, st.wrap)
	s.height(row, 100)
	row += 2

	s.title(row, "Supporting Resources", st.title)
	row++
	for _, l := range guidanceLinks {
		s.set(1, row, l.text)
		s.merge(2, row, 4, row)
		s.set(2, row, l.target)
		s.link(2, row, l.target)
		s.style(1, row, 4, row, st.bordered)
		row++
	}
	row++

	s.title(row, "To use the spreadsheet:", st.title)
	row++
	s.merge(1, row, 4, row)
	s.set(1, row, strings.Join(templateUsage, "\n"))
	s.style(1, row, 4, row, st.wrap)
	s.height(row, 150)
	row += 2

	s.title(row, "For questions or support:", st.title)
	row++
	s.set(1, row, "Please contact")
	s.merge(2, row, 4, row)
	s.set(2, row, "cybergovassure@cabinetoffice.gov.uk")
	s.link(2, row, "mailto:cybergovassure@cabinetoffice.gov.uk")
	s.style(1, row, 4, row, st.bordered)

	if s.err != nil {
		return fmt.Errorf("write %s sheet: %w", s.name, s.err)
	}
	return nil
}

func writeObjective(s *sheet, st *styles, obj *framework.Objective) error {
	s.widths(map[string]float64{
		"A": 50, "B": 10, "C": 50,
		"D": 50, "E": 10, "F": 50,
		"G": 50, "H": 10, "I": 50,
	})

	row := 1
	s.title(row, officialSensitive, st.banner)
	row += 2

	s.merge(1, row, templateColumns, row)
	s.set(1, row, "Please refer to the guidance sheet before filling in this sheet. "+
		"Scroll to the bottom to make sure you have completed all contributing outcomes.")
	s.style(1, row, templateColumns, row, st.bold)
	row++
	s.set(1, row, "Name of the system being assessed: ")
	s.style(1, row, 1, row, st.bold)
	s.merge(2, row, 3, row)
	s.style(2, row, 3, row, st.bordered)
	row += 3

	s.merge(1, row, templateColumns, row)
	s.set(1, row, fmt.Sprintf("Objective %s - %s", obj.Code, obj.Title))
	s.style(1, row, templateColumns, row, st.heading)
	row++
	row = s.description(row, obj.Description, st.wrap)

	for _, p := range obj.Principles {
		s.merge(1, row, templateColumns, row)
		s.set(1, row, fmt.Sprintf("%s - %s", p.Code, p.Title))
		s.style(1, row, templateColumns, row, st.subheading)
		row++
		row = s.description(row, p.Description, st.wrap) + 1

		for _, o := range p.Outcomes {
			row = writeOutcome(s, st, o, row)
		}
	}

	if s.err != nil {
		return fmt.Errorf("write %s sheet: %w", s.name, s.err)
	}
	return nil
}

// description writes text across two merged rows and returns the next row.
func (s *sheet) description(row int, text string, style int) int {
	s.merge(1, row, templateColumns, row+1)
	s.set(1, row, text)
	s.style(1, row, templateColumns, row+1, style)
	return row + 2
}

func writeOutcome(s *sheet, st *styles, o *framework.Outcome, row int) int {
	s.merge(1, row, templateColumns, row)
	s.set(1, row, fmt.Sprintf("%s - %s", o.Code, o.Title))
	s.style(1, row, templateColumns, row, st.outcome)
	row++
	row = s.description(row, o.Description, st.outcomeText)

	col := 1
	for _, level := range templateLevels {
		for _, h := range []string{string(levelStatus[level]), "Answer", "If applicable, explain alternative controls/exemptions:"} {
			s.set(col, row, h)
			s.style(col, row, col, row, st.header[level])
			col++
		}
	}
	row++

	depth := 0
	for _, level := range templateLevels {
		depth = max(depth, len(o.Indicators.Group(level)))
	}
	for i := range depth {
		col := 1
		for _, level := range templateLevels {
			group := o.Indicators.Group(level)
			if i < len(group) {
				s.set(col, row, fmt.Sprintf("%d - %s", i+1, group[i].Description))
				s.style(col, row, col, row, st.indicator[level])
				s.style(col+1, row, col+2, row, st.bordered)
				s.dropList(col+1, row, yesNo)
			} else {
				s.style(col, row, col+2, row, st.grey)
			}
			col += 3
		}
		row++
	}

	s.set(1, row, "Contributing outcome status:")
	s.style(1, row, 1, row, st.bold)
	s.merge(2, row, 3, row)
	s.style(2, row, 3, row, st.bordered)
	s.dropList(2, row, StatusChoices(o))
	row++

	s.set(1, row, "Contributing outcome summary (1,500 word limit):")
	s.style(1, row, 1, row, st.bold)
	s.merge(2, row, templateColumns, row)
	s.style(2, row, templateColumns, row, st.bordered)
	s.maxWords(2, row, summaryWords)
	s.height(row, 50)
	row++

	s.set(1, row, "Contributing outcome evidence list: ")
	s.style(1, row, 1, row, st.bold)
	s.merge(2, row, templateColumns, row)
	s.style(2, row, templateColumns, row, st.bordered)
	s.height(row, 50)
	return row + 5
}
