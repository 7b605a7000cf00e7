// Package assessment stores assessment answers and drives page submissions.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/co-cddo/webcaf/internal/reference"
)

var (
	ErrNotFound   = errors.New("assessment not found")
	ErrWrongStage = errors.New("page does not accept answers")
)

// StatusDraft is the status of an assessment still being filled in.
const StatusDraft = "draft"

// Section holds the answers for one outcome, keyed by stage.
type Section struct {
	Indicators   map[string]string `json:"indicators,omitempty"`
	Confirmation map[string]string `json:"confirmation,omitempty"`
}

func (s Section) clone() Section {
	return Section{Indicators: maps.Clone(s.Indicators), Confirmation: maps.Clone(s.Confirmation)}
}

// Assessment is one self-assessment against a framework.
type Assessment struct {
	ID            int64              `json:"id"`
	Reference     string             `json:"reference"`
	FrameworkID   string             `json:"framework"`
	SystemName    string             `json:"system_name,omitempty"`
	Profile       string             `json:"caf_profile,omitempty"`
	Status        string             `json:"status"`
	Data          map[string]Section `json:"assessments_data"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	LastUpdatedBy string             `json:"last_updated_by,omitempty"`
}

// Section returns the stored answers for an outcome.
func (a *Assessment) Section(outcomeKey string) Section {
	return a.Data[outcomeKey]
}

func (a *Assessment) clone() *Assessment {
	cp := *a
	cp.Data = make(map[string]Section, len(a.Data))
	for k, s := range a.Data {
		cp.Data[k] = s.clone()
	}
	return &cp
}

// Store persists assessments. Writes are last-writer-wins per outcome.
type Store interface {
	CreateAssessment(ctx context.Context, a Assessment) (*Assessment, error)
	GetAssessment(ctx context.Context, id int64) (*Assessment, error)
	SaveSection(ctx context.Context, id int64, outcomeKey string, section Section, user string) error
}

// Reference derives the public reference of an assessment from its ID.
func Reference(id int64) (string, error) {
	if id < 0 {
		return "", fmt.Errorf("negative assessment id %d", id)
	}
	ref, err := reference.Generate(uint64(id), reference.WithProfile(reference.ProfileAssessment))
	if err != nil {
		return "", fmt.Errorf("assessment reference: %w", err)
	}
	return ref, nil
}
