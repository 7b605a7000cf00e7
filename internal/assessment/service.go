package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/co-cddo/webcaf/internal/form"
	"github.com/co-cddo/webcaf/internal/route"
	"github.com/co-cddo/webcaf/internal/status"
)

// keptOnReset lists confirmation values that survive a change of indicator
// answers: the outcome summary is kept, the status choice and its
// justifications are asked for again.
var keptOnReset = []string{route.FieldSupportingComments}

// Notifier is told when an assessment changes.
type Notifier interface {
	AssessmentUpdated(ctx context.Context, id int64)
}

// Service applies page submissions to stored assessments.
type Service struct {
	route       *route.Route
	store       Store
	events      EventLogger
	notifier    Notifier
	frameworkID string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEventLogger records audit events.
func WithEventLogger(l EventLogger) ServiceOption {
	return func(s *Service) { s.events = l }
}

// WithNotifier reports assessment changes.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithFrameworkID sets the framework recorded on new assessments.
func WithFrameworkID(id string) ServiceOption {
	return func(s *Service) { s.frameworkID = id }
}

// NewService creates a service over a compiled route and a store.
func NewService(r *route.Route, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		route:  r,
		store:  store,
		events: NopEventLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Route returns the compiled route the service serves.
func (s *Service) Route() *route.Route { return s.route }

// Create starts a new draft assessment.
func (s *Service) Create(ctx context.Context, a Assessment) (*Assessment, error) {
	if a.FrameworkID == "" {
		a.FrameworkID = s.frameworkID
	}
	created, err := s.store.CreateAssessment(ctx, a)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, Event{
		AssessmentID: created.ID,
		UserID:       a.LastUpdatedBy,
		EventType:    EventAssessmentCreated,
		Data:         map[string]any{"reference": created.Reference, "framework": created.FrameworkID},
	})
	slog.Info("assessment created", "assessment_id", created.ID, "reference", created.Reference)
	return created, nil
}

// Get loads an assessment.
func (s *Service) Get(ctx context.Context, id int64) (*Assessment, error) {
	return s.store.GetAssessment(ctx, id)
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	// Target is the page (or exit target) to continue to.
	Target            string         `json:"target"`
	Status            *status.Result `json:"status,omitempty"`
	ConfirmationReset bool           `json:"confirmation_reset,omitempty"`
}

// Submit validates values for one page and stores them. Invalid input is
// reported as a form.FieldErrors error with user-facing messages.
func (s *Service) Submit(ctx context.Context, id int64, pageID string, values map[string]string, user string) (*SubmitResult, error) {
	page, ok := s.route.Page(pageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", route.ErrUnknownPage, pageID)
	}

	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}

	cleaned, err := page.Form.Validate(values)
	if err != nil {
		var fe form.FieldErrors
		if errors.As(err, &fe) {
			return nil, route.FriendlyErrors(page, fe)
		}
		return nil, err
	}

	result := &SubmitResult{Target: page.SuccessTarget}
	if !page.Behavior.StoresAnswers {
		return result, nil
	}
	if page.OwnerKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrWrongStage, pageID)
	}

	section := a.Section(page.OwnerKey).clone()
	switch page.Stage {
	case route.StageIndicators:
		changed := !maps.Equal(section.Indicators, cleaned)
		if changed && page.Behavior.ResetsConfirmation && len(section.Confirmation) > 0 {
			section.Confirmation = resetConfirmation(section.Confirmation)
			result.ConfirmationReset = true
			slog.Info("confirmation reset", "assessment_id", id, "outcome", page.OwnerKey)
		}
		section.Indicators = cleaned

	case route.StageConfirmation:
		if page.Behavior.ComputesStatus {
			r := status.Calculate(cleaned, section.Indicators)
			cleaned[status.FieldOutcomeStatus] = string(r.OutcomeStatus)
			if r.OverrideStatus != "" {
				cleaned[status.FieldOverrideStatus] = string(r.OverrideStatus)
			}
			result.Status = &r
		}
		section.Confirmation = cleaned

	default:
		return nil, fmt.Errorf("%w: %s", ErrWrongStage, pageID)
	}

	if err := s.store.SaveSection(ctx, id, page.OwnerKey, section, user); err != nil {
		return nil, fmt.Errorf("saving %s: %w", pageID, err)
	}

	slog.Info("section saved",
		"assessment_id", id,
		"outcome", page.OwnerKey,
		"stage", page.Stage,
		"user", user,
	)
	s.logEvent(ctx, Event{
		AssessmentID: id,
		UserID:       user,
		EventType:    EventSectionSaved,
		Data:         map[string]any{"outcome": page.OwnerKey, "stage": string(page.Stage)},
	})
	if result.ConfirmationReset {
		s.logEvent(ctx, Event{
			AssessmentID: id,
			UserID:       user,
			EventType:    EventConfirmationReset,
			Data:         map[string]any{"outcome": page.OwnerKey},
		})
	}
	if result.Status != nil {
		s.logEvent(ctx, Event{
			AssessmentID: id,
			UserID:       user,
			EventType:    EventStatusCalculated,
			Data: map[string]any{
				"outcome":         page.OwnerKey,
				"outcome_status":  string(result.Status.OutcomeStatus),
				"override_status": string(result.Status.OverrideStatus),
			},
		})
	}
	if s.notifier != nil {
		s.notifier.AssessmentUpdated(ctx, id)
	}
	return result, nil
}

func resetConfirmation(confirmation map[string]string) map[string]string {
	kept := map[string]string{}
	for _, k := range keptOnReset {
		if v, ok := confirmation[k]; ok {
			kept[k] = v
		}
	}
	return kept
}

// PageView is a page with the values already saved for it.
type PageView struct {
	Page          *route.PageDescriptor `json:"page"`
	Values        map[string]string     `json:"values"`
	Status        *status.Result        `json:"status,omitempty"`
	StatusText    string                `json:"status_text,omitempty"`
	Choices       []form.Choice         `json:"choices,omitempty"`
	NextObjective string                `json:"next_objective,omitempty"`
}

// View loads a page for an assessment. Confirmation pages carry the status
// calculated from the saved indicator answers and the override choices that
// still make sense.
func (s *Service) View(ctx context.Context, id int64, pageID string) (*PageView, error) {
	page, ok := s.route.Page(pageID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", route.ErrUnknownPage, pageID)
	}
	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}

	v := &PageView{Page: page, Values: map[string]string{}}
	section := a.Section(page.OwnerKey)
	switch page.Stage {
	case route.StageIndicators:
		maps.Copy(v.Values, section.Indicators)
	case route.StageConfirmation:
		maps.Copy(v.Values, section.Confirmation)
		r := status.Calculate(nil, section.Indicators)
		v.Status = &r
		v.StatusText = status.Text(r.OutcomeStatus)
		v.Choices = route.ConfirmationChoices(page, r.OutcomeStatus)
	}
	if page.Behavior.OffersNextObjective {
		v.NextObjective, _ = s.route.NextObjective(pageID)
	}
	return v, nil
}

// Progress loads an assessment and summarises its completion.
func (s *Service) Progress(ctx context.Context, id int64) (*Progress, error) {
	a, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildProgress(s.route, a), nil
}

func (s *Service) logEvent(ctx context.Context, e Event) {
	if err := s.events.LogEvent(ctx, e); err != nil {
		slog.Warn("failed to log event", "type", e.EventType, "assessment_id", e.AssessmentID, "error", err)
	}
}
