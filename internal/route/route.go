package route

import (
	"errors"
	"fmt"

	"github.com/co-cddo/webcaf/internal/form"
	"github.com/co-cddo/webcaf/internal/framework"
)

var (
	ErrDuplicatePage = errors.New("duplicate page id")
	ErrUnknownPage   = errors.New("unknown page id")
)

// Templates used to render each kind of page.
const (
	TemplateTitle        = "title"
	TemplateIndicators   = "indicators"
	TemplateConfirmation = "confirmation"
)

// Behavior controls what a submission on the page does.
type Behavior struct {
	StoresAnswers       bool `json:"stores_answers"`
	ComputesStatus      bool `json:"computes_status"`
	ResetsConfirmation  bool `json:"resets_confirmation"`
	OffersNextObjective bool `json:"offers_next_objective"`
}

// DefaultBehavior is the behavior of a page of the given kind.
func DefaultBehavior(kind StageKind) Behavior {
	switch kind {
	case StageObjective:
		return Behavior{OffersNextObjective: true}
	case StageIndicators:
		return Behavior{StoresAnswers: true, ResetsConfirmation: true}
	case StageConfirmation:
		return Behavior{StoresAnswers: true, ComputesStatus: true}
	}
	return Behavior{}
}

// Breadcrumb is one step in a page's ancestry.
type Breadcrumb struct {
	PageID string `json:"page_id"`
	Text   string `json:"text"`
}

// Metadata is display context for a page.
type Metadata struct {
	Code           string `json:"code,omitempty"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	ObjectiveCode  string `json:"objective_code,omitempty"`
	ObjectiveTitle string `json:"objective_title,omitempty"`
	PrincipleCode  string `json:"principle_code,omitempty"`
}

// PageDescriptor is everything the serving layer needs for one page.
type PageDescriptor struct {
	ID            string           `json:"id"`
	Stage         StageKind        `json:"stage"`
	Template      string           `json:"template"`
	OwnerKey      string           `json:"owner_key,omitempty"`
	SuccessTarget string           `json:"success_target"`
	Breadcrumbs   []Breadcrumb     `json:"breadcrumbs"`
	Metadata      Metadata         `json:"metadata"`
	Form          *form.Descriptor `json:"form"`
	Behavior      Behavior         `json:"behavior"`

	Fields  []form.FieldDefinition `json:"-"`
	Outcome *framework.Outcome     `json:"-"`
}

// CompileOptions adjusts compilation.
type CompileOptions struct {
	// Behaviors replaces the default behavior of individual pages.
	Behaviors map[string]Behavior
}

// Route is the compiled, immutable page table for one framework.
type Route struct {
	fw       *framework.Framework
	sequence []string
	pages    map[string]*PageDescriptor
	parents  ParentMap
	exit     string
}

// Compile derives the page table from fw. The last page leads to exitTarget.
func Compile(fw *framework.Framework, exitTarget string, opts CompileOptions) (*Route, error) {
	stages, parents := Flatten(fw)
	seq := NavigationSequence(stages)

	r := &Route{
		fw:       fw,
		sequence: seq,
		pages:    make(map[string]*PageDescriptor, len(stages)),
		parents:  parents,
		exit:     exitTarget,
	}

	for i, st := range stages {
		if _, dup := r.pages[st.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePage, st.ID)
		}

		page, err := r.describe(st)
		if err != nil {
			return nil, err
		}
		if st.Kind == StageIndicators {
			page.SuccessTarget = PageID(StageConfirmation, st.Key)
		} else if i+1 < len(seq) {
			page.SuccessTarget = seq[i+1]
		} else {
			page.SuccessTarget = exitTarget
		}
		r.pages[st.ID] = page
	}

	for id, b := range opts.Behaviors {
		page, ok := r.pages[id]
		if !ok {
			return nil, fmt.Errorf("behavior override: %w: %s", ErrUnknownPage, id)
		}
		page.Behavior = b
	}

	for _, id := range seq {
		r.pages[id].Breadcrumbs = r.Breadcrumbs(id)
	}
	return r, nil
}

func (r *Route) describe(st Stage) (*PageDescriptor, error) {
	page := &PageDescriptor{
		ID:       st.ID,
		Stage:    st.Kind,
		Behavior: DefaultBehavior(st.Kind),
	}

	switch st.Kind {
	case StageObjective:
		page.Template = TemplateTitle
		page.Metadata = Metadata{Code: st.Objective.Code, Title: st.Objective.Title, Description: st.Objective.Description}
	case StagePrinciple:
		page.Template = TemplateTitle
		page.Metadata = Metadata{
			Code: st.Principle.Code, Title: st.Principle.Title, Description: st.Principle.Description,
			ObjectiveCode: st.Objective.Code, ObjectiveTitle: st.Objective.Title,
		}
	case StageIndicators, StageConfirmation:
		page.OwnerKey = st.Key
		page.Outcome = st.Outcome
		page.Metadata = Metadata{
			Code: st.Outcome.Code, Title: st.Outcome.Title, Description: st.Outcome.Description,
			ObjectiveCode: st.Objective.Code, ObjectiveTitle: st.Objective.Title,
			PrincipleCode: st.Principle.Code,
		}
		if st.Kind == StageIndicators {
			page.Template = TemplateIndicators
			page.Fields = IndicatorFields(st.Outcome)
		} else {
			page.Template = TemplateConfirmation
			page.Fields = ConfirmationFields(st.Outcome)
		}
	}

	d, err := form.Build(page.Fields)
	if err != nil {
		return nil, fmt.Errorf("building form for %s: %w", st.ID, err)
	}
	page.Form = d
	return page, nil
}

// Framework returns the framework the route was compiled from.
func (r *Route) Framework() *framework.Framework { return r.fw }

// ExitTarget is the success target of the last page.
func (r *Route) ExitTarget() string { return r.exit }

// Sequence returns the page identifiers in navigation order.
func (r *Route) Sequence() []string {
	out := make([]string, len(r.sequence))
	copy(out, r.sequence)
	return out
}

// Len is the number of pages.
func (r *Route) Len() int { return len(r.sequence) }

// Page looks up a page.
func (r *Route) Page(id string) (*PageDescriptor, bool) {
	p, ok := r.pages[id]
	return p, ok
}

// Pages returns every page in navigation order.
func (r *Route) Pages() []*PageDescriptor {
	out := make([]*PageDescriptor, len(r.sequence))
	for i, id := range r.sequence {
		out[i] = r.pages[id]
	}
	return out
}

// Next returns the success target of a page.
func (r *Route) Next(id string) (string, bool) {
	p, ok := r.pages[id]
	if !ok {
		return "", false
	}
	return p.SuccessTarget, true
}

// Parents returns the parent map.
func (r *Route) Parents() ParentMap { return r.parents }

// Breadcrumbs returns the ancestry of a page from the root down to the page
// itself. Unknown pages yield nil.
func (r *Route) Breadcrumbs(id string) []Breadcrumb {
	entry, ok := r.parents[id]
	if !ok {
		return nil
	}

	chain := []Breadcrumb{{PageID: id, Text: entry.Text}}
	for cur := entry.PageID; cur != ""; {
		if cur == RootPageID {
			chain = append(chain, Breadcrumb{PageID: RootPageID, Text: rootText})
			break
		}
		p, ok := r.parents[cur]
		if !ok {
			break
		}
		chain = append(chain, Breadcrumb{PageID: cur, Text: p.Text})
		cur = p.PageID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// NextObjective returns the objective page following the objective that owns
// id, if there is one.
func (r *Route) NextObjective(id string) (string, bool) {
	objID := r.objectiveOf(id)
	if objID == "" {
		return "", false
	}
	seen := false
	for _, pid := range r.sequence {
		if r.pages[pid].Stage != StageObjective {
			continue
		}
		if seen {
			return pid, true
		}
		seen = pid == objID
	}
	return "", false
}

func (r *Route) objectiveOf(id string) string {
	for cur := id; cur != "" && cur != RootPageID; {
		p, ok := r.parents[cur]
		if !ok {
			return ""
		}
		if p.PageID == RootPageID {
			return cur
		}
		cur = p.PageID
	}
	return ""
}
