package framework

// Level is an indicator group within an outcome.
type Level string

const (
	LevelNotAchieved       Level = "not-achieved"
	LevelPartiallyAchieved Level = "partially-achieved"
	LevelAchieved          Level = "achieved"
)

// Levels lists indicator groups in the order they are presented.
var Levels = []Level{LevelNotAchieved, LevelPartiallyAchieved, LevelAchieved}

// Framework is the assessment schema: objectives, principles, outcomes and
// indicators in document order. It is read-only once loaded.
type Framework struct {
	Objectives []*Objective
}

// Objective is the broadest level of the framework (e.g., "A").
type Objective struct {
	Key         string
	Code        string
	Title       string
	Description string
	Principles  []*Principle
}

// Principle groups related outcomes within an objective (e.g., "A1").
type Principle struct {
	Key         string
	Code        string
	Title       string
	Description string
	Outcomes    []*Outcome
}

// Outcome is the leaf assessable unit (e.g., "A1.a").
type Outcome struct {
	Key         string
	Code        string
	Title       string
	Description string
	// Scope is "organisation" or "system" when the document sets it.
	Scope                 string
	AssessmentQuestions   []string
	MinProfileRequirement map[string]string
	Indicators            Indicators
}

// Indicators holds the three indicator groups of an outcome. Any group may be empty.
type Indicators struct {
	NotAchieved       []Indicator
	PartiallyAchieved []Indicator
	Achieved          []Indicator
}

// Indicator is a single assessable statement.
type Indicator struct {
	Key         string
	Description string
	NCSCIndex   string
}

// Group returns the indicators at the given level.
func (i Indicators) Group(level Level) []Indicator {
	switch level {
	case LevelNotAchieved:
		return i.NotAchieved
	case LevelPartiallyAchieved:
		return i.PartiallyAchieved
	case LevelAchieved:
		return i.Achieved
	}
	return nil
}

func (i *Indicators) set(level Level, group []Indicator) {
	switch level {
	case LevelNotAchieved:
		i.NotAchieved = group
	case LevelPartiallyAchieved:
		i.PartiallyAchieved = group
	case LevelAchieved:
		i.Achieved = group
	}
}

// HasPartiallyAchieved reports whether the outcome can be partially achieved.
func (o *Outcome) HasPartiallyAchieved() bool {
	return len(o.Indicators.PartiallyAchieved) > 0
}

// Counts summarises the size of a framework.
type Counts struct {
	Objectives int
	Principles int
	Outcomes   int
	Indicators int
}

// Counts returns the number of entities at each level.
func (f *Framework) Counts() Counts {
	var c Counts
	c.Objectives = len(f.Objectives)
	for _, obj := range f.Objectives {
		c.Principles += len(obj.Principles)
		for _, p := range obj.Principles {
			c.Outcomes += len(p.Outcomes)
			for _, o := range p.Outcomes {
				for _, level := range Levels {
					c.Indicators += len(o.Indicators.Group(level))
				}
			}
		}
	}
	return c
}

// Objective returns the objective with the given key.
func (f *Framework) Objective(key string) (*Objective, bool) {
	for _, obj := range f.Objectives {
		if obj.Key == key {
			return obj, true
		}
	}
	return nil, false
}

// Location is an outcome together with its ancestors.
type Location struct {
	Objective *Objective
	Principle *Principle
	Outcome   *Outcome
}

// Locate finds an outcome by key.
func (f *Framework) Locate(outcomeKey string) (Location, bool) {
	for _, obj := range f.Objectives {
		for _, p := range obj.Principles {
			for _, o := range p.Outcomes {
				if o.Key == outcomeKey {
					return Location{Objective: obj, Principle: p, Outcome: o}, true
				}
			}
		}
	}
	return Location{}, false
}
