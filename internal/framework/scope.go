package framework

// Scope restricts a framework to the outcomes relevant to one kind of assessment.
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeOrganisation Scope = "organisation"
	ScopeSystem       Scope = "system"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeAll, ScopeOrganisation, ScopeSystem:
		return true
	}
	return false
}

// FilterByScope returns a copy of f holding only outcomes with the given
// scope. Principles left without outcomes and objectives left without
// principles are dropped. ScopeAll returns f unchanged.
func (f *Framework) FilterByScope(scope Scope) *Framework {
	if scope == ScopeAll || scope == "" {
		return f
	}

	out := &Framework{}
	for _, obj := range f.Objectives {
		var principles []*Principle
		for _, p := range obj.Principles {
			var outcomes []*Outcome
			for _, o := range p.Outcomes {
				if o.Scope == string(scope) {
					outcomes = append(outcomes, o)
				}
			}
			if len(outcomes) == 0 {
				continue
			}
			cp := *p
			cp.Outcomes = outcomes
			principles = append(principles, &cp)
		}
		if len(principles) == 0 {
			continue
		}
		co := *obj
		co.Principles = principles
		out.Objectives = append(out.Objectives, &co)
	}
	return out
}
