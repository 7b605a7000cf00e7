package route

import (
	"fmt"
	"strings"

	"github.com/co-cddo/webcaf/internal/form"
	"github.com/co-cddo/webcaf/internal/status"
)

// ConfirmationChoices returns the override choices worth showing once the
// calculated status is known: changing to the status already calculated is
// dropped.
func ConfirmationChoices(page *PageDescriptor, calculated status.Status) []form.Choice {
	in, ok := page.Form.Input(FieldConfirmOutcome)
	if !ok {
		return nil
	}
	redundant := "Change to " + string(calculated)
	out := make([]form.Choice, 0, len(in.Choices))
	for _, c := range in.Choices {
		if strings.EqualFold(c.Label, redundant) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FriendlyErrors rewrites field errors on an indicators page so they point at
// the level tab and question number the user sees. Other pages are returned
// as is.
func FriendlyErrors(page *PageDescriptor, errs form.FieldErrors) form.FieldErrors {
	if page.Stage != StageIndicators || len(errs) == 0 {
		return errs
	}

	out := make(form.FieldErrors, len(errs))
	for name, msg := range errs {
		in, ok := page.Form.Input(name)
		if !ok {
			out[name] = msg
			continue
		}
		question := name
		prefix := "Need an answer for"
		if in.Parent != "" {
			question = in.Parent
			prefix = "Need a justification for"
		}
		out[name] = fmt.Sprintf("%s %s question %d", prefix, categoryName(question), humanIndex(page.Form, question))
	}
	return out
}

func levelPrefix(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	return prefix
}

func categoryName(name string) string {
	switch levelPrefix(name) {
	case "achieved":
		return string(status.Achieved)
	case "partially-achieved":
		return string(status.PartiallyAchieved)
	}
	return string(status.NotAchieved)
}

// humanIndex is the 1-based position of name among the questions of its
// level, or -1 when it is not a question on the form.
func humanIndex(d *form.Descriptor, name string) int {
	prefix := levelPrefix(name)
	n := 0
	for _, in := range d.Inputs {
		if in.Parent != "" || levelPrefix(in.Name) != prefix {
			continue
		}
		n++
		if in.Name == name {
			return n
		}
	}
	return -1
}
