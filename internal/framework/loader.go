// Package framework loads the assessment framework document into an ordered,
// read-only model.
package framework

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema marks a structurally invalid framework document.
var ErrInvalidSchema = errors.New("invalid framework document")

//go:embed schema.json
var schemaJSON []byte

var documentSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
})

// Load reads and parses the framework document at path.
func Load(path string) (*Framework, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading framework: %w", err)
	}

	fw, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading framework %s: %w", path, err)
	}

	c := fw.Counts()
	slog.Info("framework loaded",
		"path", path,
		"objectives", c.Objectives,
		"principles", c.Principles,
		"outcomes", c.Outcomes,
		"indicators", c.Indicators,
	)
	return fw, nil
}

// Parse builds a Framework from YAML. Mapping order in the document becomes
// slice order in the model.
func Parse(data []byte) (*Framework, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidSchema)
	}
	doc := root.Content[0]

	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	p := &parser{
		principles: make(map[string]string),
		outcomes:   make(map[string]string),
	}
	fw, err := p.framework(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return fw, nil
}

func validateDocument(doc *yaml.Node) error {
	var generic any
	if err := doc.Decode(&generic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	schema, err := documentSchema()
	if err != nil {
		return fmt.Errorf("compiling framework schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(normalize(generic)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidSchema, strings.Join(msgs, "; "))
	}
	return nil
}

// normalize turns YAML's interface-keyed maps into string-keyed ones so the
// value can be checked as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	}
	return v
}

type entry struct {
	key   string
	value *yaml.Node
}

// entries returns the key/value pairs of a mapping node in document order.
func entries(node *yaml.Node, path string) ([]entry, error) {
	if node == nil || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping (line %d)", path, node.Line)
	}
	out := make([]entry, 0, len(node.Content)/2)
	seen := make(map[string]int, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i]
		if line, dup := seen[k.Value]; dup {
			return nil, fmt.Errorf("%s: duplicate key %q (lines %d and %d)", path, k.Value, line, k.Line)
		}
		seen[k.Value] = k.Line
		out = append(out, entry{key: k.Value, value: node.Content[i+1]})
	}
	return out, nil
}

func child(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

type header struct {
	Code        string `yaml:"code"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

func (h header) code(key string) string {
	if h.Code != "" {
		return h.Code
	}
	return key
}

type parser struct {
	// key -> owning path, for keys that must be unique document-wide
	principles map[string]string
	outcomes   map[string]string
}

func (p *parser) framework(doc *yaml.Node) (*Framework, error) {
	objs, err := entries(child(doc, "objectives"), "objectives")
	if err != nil {
		return nil, err
	}
	fw := &Framework{Objectives: make([]*Objective, 0, len(objs))}
	for _, e := range objs {
		obj, err := p.objective(e)
		if err != nil {
			return nil, err
		}
		fw.Objectives = append(fw.Objectives, obj)
	}
	return fw, nil
}

func (p *parser) objective(e entry) (*Objective, error) {
	path := "objectives." + e.key
	var h header
	if err := e.value.Decode(&h); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	obj := &Objective{Key: e.key, Code: h.code(e.key), Title: h.Title, Description: h.Description}

	principles, err := entries(child(e.value, "principles"), path+".principles")
	if err != nil {
		return nil, err
	}
	for _, pe := range principles {
		if owner, dup := p.principles[pe.key]; dup {
			return nil, fmt.Errorf("%s: principle %q already defined under %s", path, pe.key, owner)
		}
		p.principles[pe.key] = path
		pr, err := p.principle(pe, path)
		if err != nil {
			return nil, err
		}
		obj.Principles = append(obj.Principles, pr)
	}
	return obj, nil
}

func (p *parser) principle(e entry, parent string) (*Principle, error) {
	path := parent + ".principles." + e.key
	var h header
	if err := e.value.Decode(&h); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	pr := &Principle{Key: e.key, Code: h.code(e.key), Title: h.Title, Description: h.Description}

	outcomes, err := entries(child(e.value, "outcomes"), path+".outcomes")
	if err != nil {
		return nil, err
	}
	for _, oe := range outcomes {
		if owner, dup := p.outcomes[oe.key]; dup {
			return nil, fmt.Errorf("%s: outcome %q already defined under %s", path, oe.key, owner)
		}
		p.outcomes[oe.key] = path
		o, err := outcome(oe, path)
		if err != nil {
			return nil, err
		}
		pr.Outcomes = append(pr.Outcomes, o)
	}
	return pr, nil
}

func outcome(e entry, parent string) (*Outcome, error) {
	path := parent + ".outcomes." + e.key
	var raw struct {
		header              `yaml:",inline"`
		Scope               string            `yaml:"scope"`
		AssessmentQuestions []string          `yaml:"assessment_questions"`
		MinProfile          map[string]string `yaml:"min_profile_requirement"`
	}
	if err := e.value.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	o := &Outcome{
		Key:                   e.key,
		Code:                  raw.code(e.key),
		Title:                 raw.Title,
		Description:           raw.Description,
		Scope:                 raw.Scope,
		AssessmentQuestions:   raw.AssessmentQuestions,
		MinProfileRequirement: raw.MinProfile,
	}

	indicators := child(e.value, "indicators")
	for _, level := range Levels {
		group, err := indicatorGroup(child(indicators, string(level)), path+".indicators."+string(level))
		if err != nil {
			return nil, err
		}
		o.Indicators.set(level, group)
	}
	return o, nil
}

func indicatorGroup(node *yaml.Node, path string) ([]Indicator, error) {
	items, err := entries(node, path)
	if err != nil {
		return nil, err
	}
	group := make([]Indicator, 0, len(items))
	for _, it := range items {
		var raw struct {
			Description string `yaml:"description"`
			NCSCIndex   string `yaml:"ncsc-index"`
		}
		if err := it.value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%s.%s: %v", path, it.key, err)
		}
		group = append(group, Indicator{Key: it.key, Description: raw.Description, NCSCIndex: raw.NCSCIndex})
	}
	return group, nil
}
