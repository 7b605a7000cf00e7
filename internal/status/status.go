// Package status computes outcome statuses from submitted answers.
package status

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/co-cddo/webcaf/internal/framework"
)

// Status is the display form of an outcome status.
type Status string

const (
	Achieved          Status = "Achieved"
	PartiallyAchieved Status = "Partially achieved"
	NotAchieved       Status = "Not achieved"
)

// ErrUnknownStatus is returned when a status or key cannot be mapped.
var ErrUnknownStatus = errors.New("unknown status")

const (
	FieldConfirmOutcome = "confirm_outcome"
	FieldOutcomeStatus  = "outcome_status"
	FieldOverrideStatus = "override_status"

	confirmValue   = "confirm"
	changePrefix   = "change_to_"
	achievedPrefix = "achieved_"
	commentSuffix  = "_comment"
	agreed         = "agreed"
)

// Result is the outcome of Calculate. OverrideStatus is empty when the user
// confirmed the calculated status.
type Result struct {
	OutcomeStatus  Status `json:"outcome_status"`
	OverrideStatus Status `json:"override_status,omitempty"`
}

// Effective is the override when present, otherwise the calculated status.
func (r Result) Effective() Status {
	if r.OverrideStatus != "" {
		return r.OverrideStatus
	}
	return r.OutcomeStatus
}

// Calculate derives the outcome status from a confirmation stage submission
// and the indicator answers for the same outcome.
//
// Only achieved-level answers take part: the outcome is Achieved when every
// one of them is "agreed", and Not achieved otherwise. Partially achieved is
// only reachable through an override.
func Calculate(confirmation, answers map[string]string) Result {
	var r Result

	if v := confirmation[FieldConfirmOutcome]; v != "" {
		override := capitalize(strings.ReplaceAll(strings.ReplaceAll(v, changePrefix, ""), "_", " "))
		if override != "Confirm" {
			r.OverrideStatus = Status(override)
		}
	}

	seen := make(map[string]struct{})
	for k, v := range answers {
		if strings.HasPrefix(k, achievedPrefix) && !strings.HasSuffix(k, commentSuffix) {
			seen[v] = struct{}{}
		}
	}
	if _, ok := seen[agreed]; ok && len(seen) == 1 {
		r.OutcomeStatus = Achieved
	} else {
		r.OutcomeStatus = NotAchieved
	}
	return r
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

var texts = map[Status]string{
	Achieved: "You selected 'true' to all the achieved statements.\n" +
		"Please confirm you agree with this status, or you can choose to change the outcome.",
	NotAchieved: "You selected 'not true' to at least one of the achieved or partially achieved statements.\n" +
		"Please confirm you agree with this status, or you can choose to change the outcome.",
	PartiallyAchieved: "You selected 'partially achieved'",
}

// Text explains a calculated status to the user.
func Text(s Status) string {
	return texts[s]
}

// ToKey converts a status into its storage key ("Partially achieved" ->
// "partially_achieved").
func ToKey(s Status) (string, error) {
	switch s {
	case Achieved:
		return "achieved", nil
	case PartiallyAchieved:
		return "partially_achieved", nil
	case NotAchieved:
		return "not_achieved", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// FromKey is the inverse of ToKey.
func FromKey(key string) (Status, error) {
	switch key {
	case "achieved":
		return Achieved, nil
	case "partially_achieved":
		return PartiallyAchieved, nil
	case "not_achieved":
		return NotAchieved, nil
	}
	return "", fmt.Errorf("%w: key %q", ErrUnknownStatus, key)
}

// Parse accepts either a status or a key in any case.
func Parse(s string) (Status, error) {
	return FromKey(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_"))
}

var scores = map[Status]int{
	Achieved:          3,
	PartiallyAchieved: 2,
	NotAchieved:       1,
}

// MeetsMinimum reports whether actual is at least as strong as required.
func MeetsMinimum(actual, required Status) bool {
	a, ok := scores[actual]
	if !ok {
		return false
	}
	return a >= scores[required]
}

// Profile requirement results.
const (
	RequirementMet    = "Yes"
	RequirementNotMet = "Not met"
)

// ProfileRequirement checks s against the outcome's minimum requirement for
// the given profile. Outcomes without requirements are always met; a missing
// status never is.
func ProfileRequirement(o *framework.Outcome, profile string, s Status) string {
	if len(o.MinProfileRequirement) == 0 {
		return RequirementMet
	}
	if s == "" {
		return RequirementNotMet
	}
	raw, ok := o.MinProfileRequirement[profile]
	if !ok {
		return RequirementMet
	}
	required, err := Parse(raw)
	if err != nil {
		return RequirementNotMet
	}
	if MeetsMinimum(s, required) {
		return RequirementMet
	}
	return RequirementNotMet
}
