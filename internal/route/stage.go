// Package route compiles a framework into the ordered set of pages an
// assessor steps through.
package route

import "github.com/co-cddo/webcaf/internal/framework"

// StageKind is the kind of page a stage renders.
type StageKind string

const (
	StageObjective    StageKind = "objective"
	StagePrinciple    StageKind = "principle"
	StageIndicators   StageKind = "indicators"
	StageConfirmation StageKind = "confirmation"
)

// IsOutcome reports whether pages of this kind belong to an outcome.
func (k StageKind) IsOutcome() bool {
	return k == StageIndicators || k == StageConfirmation
}

// RootPageID is the synthetic parent of every objective page.
const RootPageID = "root"

const rootText = "Root"

// PageID derives the stable identifier of a stage.
func PageID(kind StageKind, key string) string {
	return string(kind) + "_" + key
}

// Stage is one navigable page derived from the framework.
type Stage struct {
	ID        string
	Kind      StageKind
	Key       string
	Objective *framework.Objective
	Principle *framework.Principle
	Outcome   *framework.Outcome
}

// Title is the title of the entity the stage presents.
func (s Stage) Title() string {
	switch {
	case s.Outcome != nil:
		return s.Outcome.Title
	case s.Principle != nil:
		return s.Principle.Title
	case s.Objective != nil:
		return s.Objective.Title
	}
	return ""
}

// Parent links a page to the page above it.
type Parent struct {
	PageID string `json:"parent"`
	Text   string `json:"text"`
}

// ParentMap maps a page to its parent and the breadcrumb text for the page
// itself.
type ParentMap map[string]Parent

// Flatten walks the framework depth first in document order. Each outcome
// yields its indicators stage followed by its confirmation stage; both hang
// off the principle.
func Flatten(fw *framework.Framework) ([]Stage, ParentMap) {
	var stages []Stage
	parents := make(ParentMap)

	for _, obj := range fw.Objectives {
		objID := PageID(StageObjective, obj.Key)
		stages = append(stages, Stage{ID: objID, Kind: StageObjective, Key: obj.Key, Objective: obj})
		parents[objID] = Parent{PageID: RootPageID, Text: obj.Title}

		for _, p := range obj.Principles {
			pID := PageID(StagePrinciple, p.Key)
			stages = append(stages, Stage{ID: pID, Kind: StagePrinciple, Key: p.Key, Objective: obj, Principle: p})
			parents[pID] = Parent{PageID: objID, Text: p.Title}

			for _, o := range p.Outcomes {
				indID := PageID(StageIndicators, o.Key)
				confID := PageID(StageConfirmation, o.Key)
				stages = append(stages,
					Stage{ID: indID, Kind: StageIndicators, Key: o.Key, Objective: obj, Principle: p, Outcome: o},
					Stage{ID: confID, Kind: StageConfirmation, Key: o.Key, Objective: obj, Principle: p, Outcome: o},
				)
				parents[indID] = Parent{PageID: pID, Text: o.Title}
				parents[confID] = Parent{PageID: pID, Text: o.Title + " outcome"}
			}
		}
	}
	return stages, parents
}

// NavigationSequence lists the page identifiers of stages in order.
func NavigationSequence(stages []Stage) []string {
	seq := make([]string, len(stages))
	for i, s := range stages {
		seq[i] = s.ID
	}
	return seq
}
