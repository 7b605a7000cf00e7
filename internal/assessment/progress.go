package assessment

import (
	"github.com/co-cddo/webcaf/internal/route"
	"github.com/co-cddo/webcaf/internal/status"
)

// OutcomeProgress is the state of one outcome.
type OutcomeProgress struct {
	Key       string        `json:"key"`
	Code      string        `json:"code"`
	Title     string        `json:"title"`
	Answered  bool          `json:"answered"`
	Confirmed bool          `json:"confirmed"`
	Status    status.Status `json:"status,omitempty"`
}

// PrincipleProgress groups outcome progress under a principle.
type PrincipleProgress struct {
	Key      string            `json:"key"`
	Code     string            `json:"code"`
	Title    string            `json:"title"`
	Outcomes []OutcomeProgress `json:"outcomes"`
	Complete bool              `json:"complete"`
}

// ObjectiveProgress groups principle progress under an objective.
type ObjectiveProgress struct {
	Key        string              `json:"key"`
	Code       string              `json:"code"`
	Title      string              `json:"title"`
	Principles []PrincipleProgress `json:"principles"`
	Confirmed  int                 `json:"confirmed"`
	Total      int                 `json:"total"`
	Complete   bool                `json:"complete"`
}

// Progress is the completion summary of an assessment.
type Progress struct {
	AssessmentID int64               `json:"assessment_id"`
	Reference    string              `json:"reference"`
	Objectives   []ObjectiveProgress `json:"objectives"`
	Confirmed    int                 `json:"confirmed"`
	Total        int                 `json:"total"`
	Complete     bool                `json:"complete"`
}

// BuildProgress summarises how far an assessment has got through the route.
// An outcome counts once its confirmation holds a confirm_outcome answer; an
// objective is complete when all of its outcomes are.
func BuildProgress(r *route.Route, a *Assessment) *Progress {
	p := &Progress{AssessmentID: a.ID, Reference: a.Reference, Complete: true}

	for _, obj := range r.Framework().Objectives {
		op := ObjectiveProgress{Key: obj.Key, Code: obj.Code, Title: obj.Title, Complete: true}
		for _, pr := range obj.Principles {
			pp := PrincipleProgress{Key: pr.Key, Code: pr.Code, Title: pr.Title, Complete: true}
			for _, o := range pr.Outcomes {
				section := a.Section(o.Key)
				oc := OutcomeProgress{
					Key:       o.Key,
					Code:      o.Code,
					Title:     o.Title,
					Answered:  len(section.Indicators) > 0,
					Confirmed: section.Confirmation[route.FieldConfirmOutcome] != "",
				}
				if oc.Confirmed {
					res := status.Result{
						OutcomeStatus:  status.Status(section.Confirmation[status.FieldOutcomeStatus]),
						OverrideStatus: status.Status(section.Confirmation[status.FieldOverrideStatus]),
					}
					oc.Status = res.Effective()
					op.Confirmed++
				} else {
					pp.Complete = false
				}
				op.Total++
				pp.Outcomes = append(pp.Outcomes, oc)
			}
			if !pp.Complete {
				op.Complete = false
			}
			op.Principles = append(op.Principles, pp)
		}
		if !op.Complete {
			p.Complete = false
		}
		p.Confirmed += op.Confirmed
		p.Total += op.Total
		p.Objectives = append(p.Objectives, op)
	}
	return p
}
