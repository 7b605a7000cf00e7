package route

import (
	"github.com/co-cddo/webcaf/internal/form"
	"github.com/co-cddo/webcaf/internal/framework"
)

// Answer values for indicator fields.
const (
	AnswerAgreed                   = "agreed"
	AnswerNotTrueHaveJustification = "not_true_have_justification"
	AnswerNotTrueNoJustification   = "not_true_no_justification"
)

// Confirmation stage field names and choices.
const (
	FieldConfirmOutcome     = "confirm_outcome"
	FieldSupportingComments = "supporting_comments"

	ChoiceConfirm                   = "confirm"
	ChoiceChangeToAchieved          = "change_to_achieved"
	ChoiceChangeToNotAchieved       = "change_to_not_achieved"
	ChoiceChangeToPartiallyAchieved = "change_to_partially_achieved"

	supportingCommentsMaxLength = 200
	supportingCommentsRows      = 5
)

var levelChoices = map[framework.Level][]form.Choice{
	framework.LevelNotAchieved: {
		{Value: AnswerAgreed, Label: "This does apply to my system or organisation and I have justifications", NeedsJustification: true},
		{Value: AnswerNotTrueHaveJustification, Label: "This does apply to my system or organisation, but I have no justifications"},
		{Value: AnswerNotTrueNoJustification, Label: "This does not apply to my system or organisation"},
	},
	framework.LevelPartiallyAchieved: {
		{Value: AnswerAgreed, Label: "True"},
		{Value: AnswerNotTrueHaveJustification, Label: "Not true, but I do have justifications", NeedsJustification: true},
		{Value: AnswerNotTrueNoJustification, Label: "Not true, and I have no justifications"},
	},
	framework.LevelAchieved: {
		{Value: AnswerAgreed, Label: "True"},
		{Value: AnswerNotTrueHaveJustification, Label: "Not true, but I do have justifications", NeedsJustification: true},
		{Value: AnswerNotTrueNoJustification, Label: "Not true, and I have no justifications"},
	},
}

// IndicatorFieldName names the answer field for one indicator.
func IndicatorFieldName(level framework.Level, indicatorKey string) string {
	return string(level) + "_" + indicatorKey
}

// IndicatorFields returns one required choice per indicator, grouped by level
// in presentation order.
func IndicatorFields(o *framework.Outcome) []form.FieldDefinition {
	var defs []form.FieldDefinition
	for _, level := range framework.Levels {
		for _, ind := range o.Indicators.Group(level) {
			defs = append(defs, form.FieldDefinition{
				Name:     IndicatorFieldName(level, ind.Key),
				Label:    ind.Description,
				Type:     form.TypeChoiceWithJustifications,
				Required: true,
				Choices:  levelChoices[level],
			})
		}
	}
	return defs
}

// ConfirmationFields returns the override choice and the supporting comment
// for an outcome. The partially achieved override is only offered when the
// outcome has partially achieved indicators.
func ConfirmationFields(o *framework.Outcome) []form.FieldDefinition {
	choices := []form.Choice{
		{Value: ChoiceConfirm, Label: "Confirm"},
		{Value: ChoiceChangeToAchieved, Label: "Change to Achieved", NeedsJustification: true},
		{Value: ChoiceChangeToNotAchieved, Label: "Change to Not Achieved", NeedsJustification: true},
	}
	if o.HasPartiallyAchieved() {
		choices = append(choices, form.Choice{
			Value: ChoiceChangeToPartiallyAchieved, Label: "Change to Partially Achieved", NeedsJustification: true,
		})
	}

	return []form.FieldDefinition{
		{
			Name:     FieldConfirmOutcome,
			Type:     form.TypeChoiceWithJustifications,
			Required: true,
			Choices:  choices,
		},
		{
			Name:      FieldSupportingComments,
			Label:     "Please write a short summary outlining how you worked towards achieving this outcome.",
			Type:      form.TypeText,
			Required:  true,
			MaxLength: supportingCommentsMaxLength,
			Rows:      supportingCommentsRows,
		},
	}
}
