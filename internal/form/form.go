// Package form turns abstract field definitions into input descriptors that a
// renderer can display and a handler can validate.
package form

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownFieldType = errors.New("unknown field type")
	ErrDuplicateField   = errors.New("duplicate field name")
	ErrInvalidChoice    = errors.New("invalid choice value")
)

var validate = validator.New()

// FieldType names the kind of value a field collects.
type FieldType string

const (
	TypeBoolean                  FieldType = "boolean"
	TypeChoice                   FieldType = "choice"
	TypeChoiceWithJustifications FieldType = "choice_with_justifications"
	TypeText                     FieldType = "text"
	TypeHidden                   FieldType = "hidden"
)

// Choice is one selectable option.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
	// NeedsJustification adds a free-text sub-field for this option.
	NeedsJustification bool `json:"needs_justification,omitempty"`
}

// FieldDefinition describes a field independently of how it is rendered.
type FieldDefinition struct {
	Name      string
	Label     string
	Type      FieldType
	Required  bool
	Choices   []Choice
	Initial   string
	Widget    string // "radio" presents a choice field as radios
	MaxLength int
	Rows      int
}

// InputKind is the control used to collect a value.
type InputKind string

const (
	KindCheckbox InputKind = "checkbox"
	KindSelect   InputKind = "select"
	KindRadio    InputKind = "radio"
	KindTextarea InputKind = "textarea"
	KindHidden   InputKind = "hidden"
)

// Input is a single validated control.
type Input struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Kind      InputKind `json:"kind"`
	Required  bool      `json:"required"`
	Choices   []Choice  `json:"choices,omitempty"`
	Initial   string    `json:"initial,omitempty"`
	MaxLength int       `json:"max_length,omitempty"`
	Rows      int       `json:"rows,omitempty"`
	// Parent and ParentValue are set on justification sub-fields: the input
	// becomes required when Parent is submitted with ParentValue.
	Parent      string `json:"parent,omitempty"`
	ParentValue string `json:"parent_value,omitempty"`
}

// Descriptor is the ordered set of inputs for one page.
type Descriptor struct {
	Inputs []Input `json:"inputs"`
	index  map[string]int
}

// JustificationName is the name of the free-text sub-field attached to option
// value of field name.
func JustificationName(name, value string) string {
	return name + "_" + value + "_comment"
}

// Build maps definitions onto inputs. Unknown types and repeated names fail.
func Build(defs []FieldDefinition) (*Descriptor, error) {
	d := &Descriptor{index: make(map[string]int, len(defs))}

	for _, def := range defs {
		switch def.Type {
		case TypeBoolean:
			if err := d.add(Input{Name: def.Name, Label: def.Label, Kind: KindCheckbox, Required: def.Required}); err != nil {
				return nil, err
			}
		case TypeChoice:
			if err := checkChoices(def); err != nil {
				return nil, err
			}
			kind := KindSelect
			if def.Widget == "radio" {
				kind = KindRadio
			}
			if err := d.add(Input{
				Name: def.Name, Label: def.Label, Kind: kind, Required: def.Required,
				Choices: slices.Clone(def.Choices), Initial: def.Initial,
			}); err != nil {
				return nil, err
			}
		case TypeChoiceWithJustifications:
			if err := checkChoices(def); err != nil {
				return nil, err
			}
			if err := d.add(Input{
				Name: def.Name, Label: def.Label, Kind: KindRadio, Required: def.Required,
				Choices: slices.Clone(def.Choices), Initial: def.Initial,
			}); err != nil {
				return nil, err
			}
			for _, c := range def.Choices {
				if !c.NeedsJustification {
					continue
				}
				if err := d.add(Input{
					Name:        JustificationName(def.Name, c.Value),
					Label:       "Extra information",
					Kind:        KindTextarea,
					Parent:      def.Name,
					ParentValue: c.Value,
				}); err != nil {
					return nil, err
				}
			}
		case TypeText:
			if err := d.add(Input{
				Name: def.Name, Label: def.Label, Kind: KindTextarea, Required: def.Required,
				Initial: def.Initial, MaxLength: def.MaxLength, Rows: def.Rows,
			}); err != nil {
				return nil, err
			}
		case TypeHidden:
			if err := d.add(Input{Name: def.Name, Kind: KindHidden, Initial: def.Initial}); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %q on field %q", ErrUnknownFieldType, def.Type, def.Name)
		}
	}
	return d, nil
}

// checkChoices rejects values that cannot be expressed as a oneof rule.
func checkChoices(def FieldDefinition) error {
	for _, c := range def.Choices {
		if c.Value == "" || strings.ContainsRune(c.Value, '\'') {
			return fmt.Errorf("%w: %q on field %q", ErrInvalidChoice, c.Value, def.Name)
		}
	}
	return nil
}

func (d *Descriptor) add(in Input) error {
	if _, dup := d.index[in.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateField, in.Name)
	}
	d.index[in.Name] = len(d.Inputs)
	d.Inputs = append(d.Inputs, in)
	return nil
}

// Input returns the input with the given name.
func (d *Descriptor) Input(name string) (Input, bool) {
	i, ok := d.index[name]
	if !ok {
		return Input{}, false
	}
	return d.Inputs[i], true
}

// Names lists input names in declaration order.
func (d *Descriptor) Names() []string {
	names := make([]string, len(d.Inputs))
	for i, in := range d.Inputs {
		names[i] = in.Name
	}
	return names
}

// FieldErrors maps an input name to a message for the user.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := slices.Sorted(maps.Keys(e))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return strings.Join(parts, "; ")
}

const msgRequired = "This field is required."

// Validate checks submitted values against the descriptor and returns the
// cleaned data for every input. Values for names the descriptor does not
// know are dropped. The error is nil or a FieldErrors.
func (d *Descriptor) Validate(values map[string]string) (map[string]string, error) {
	cleaned := make(map[string]string, len(d.Inputs))
	errs := FieldErrors{}

	for _, in := range d.Inputs {
		raw := values[in.Name]

		switch in.Kind {
		case KindCheckbox:
			checked := isChecked(raw)
			if in.Required {
				errs.check(in, checked, "required")
			}
			cleaned[in.Name] = fmt.Sprint(checked)

		case KindSelect, KindRadio:
			v := strings.TrimSpace(raw)
			errs.check(in, v, choiceRules(in))
			cleaned[in.Name] = v

		case KindTextarea:
			v := strings.TrimSpace(raw)
			required := in.Required
			if in.Parent != "" {
				required = strings.TrimSpace(values[in.Parent]) == in.ParentValue
			}
			errs.check(in, v, textRules(required, in.MaxLength))
			cleaned[in.Name] = v

		case KindHidden:
			cleaned[in.Name] = raw
		}
	}

	if len(errs) > 0 {
		return cleaned, errs
	}
	return cleaned, nil
}

// tagEscaper hides characters the validator reads as tag separators.
var tagEscaper = strings.NewReplacer(",", "0x2C", "|", "0x7C")

func choiceRules(in Input) string {
	rules := []string{"omitempty"}
	if in.Required {
		rules[0] = "required"
	}
	if len(in.Choices) > 0 {
		quoted := make([]string, len(in.Choices))
		for i, c := range in.Choices {
			quoted[i] = "'" + tagEscaper.Replace(c.Value) + "'"
		}
		rules = append(rules, "oneof="+strings.Join(quoted, " "))
	}
	return strings.Join(rules, ",")
}

func textRules(required bool, maxLength int) string {
	rules := []string{"omitempty"}
	if required {
		rules[0] = "required"
	}
	if maxLength > 0 {
		rules = append(rules, fmt.Sprintf("max=%d", maxLength))
	}
	return strings.Join(rules, ",")
}

// check runs value through rules and records the first failure for in.
func (e FieldErrors) check(in Input, value any, rules string) {
	err := validate.Var(value, rules)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		e[in.Name] = err.Error()
		return
	}
	v := fmt.Sprint(value)
	switch verrs[0].Tag() {
	case "required":
		e[in.Name] = msgRequired
	case "oneof":
		e[in.Name] = fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", v)
	case "max":
		e[in.Name] = fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", in.MaxLength, utf8.RuneCountInString(v))
	default:
		e[in.Name] = verrs[0].Error()
	}
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}
