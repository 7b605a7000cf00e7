package framework_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/co-cddo/webcaf/internal/framework"
)

const testFramework = `
objectives:
  B:
    code: B
    title: Protecting against cyber attack
    description: Proportionate security measures are in place.
    principles:
      B2:
        code: B2
        title: Identity and access control
        outcomes:
          B2.b:
            code: B2.b
            title: Device management
            scope: system
            min_profile_requirement:
              baseline: Partially achieved
              enhanced: Achieved
            indicators:
              not-achieved:
                B2.b.1:
                  description: Users can connect from any device.
              achieved:
                B2.b.2:
                  description: Only authorised devices can connect.
                  ncsc-index: B2.b.A.1
          B2.a:
            code: B2.a
            title: Identity verification
            scope: organisation
            indicators:
              not-achieved:
                B2.a.1:
                  description: Initial identity verification is not robust.
              partially-achieved:
                B2.a.2:
                  description: Some users are verified.
              achieved:
                B2.a.3:
                  description: All users are verified.
  A:
    title: Managing security risk
    principles:
      A1:
        title: Governance
        outcomes:
          A1.a:
            title: Board direction
            scope: organisation
            indicators:
              achieved:
                A1.a.1:
                  description: The board has direction.
`

func TestParse_PreservesDocumentOrder(t *testing.T) {
	fw, err := framework.Parse([]byte(testFramework))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var got []string
	for _, obj := range fw.Objectives {
		got = append(got, obj.Key)
		for _, p := range obj.Principles {
			got = append(got, p.Key)
			for _, o := range p.Outcomes {
				got = append(got, o.Key)
			}
		}
	}
	want := "B B2 B2.b B2.a A A1 A1.a"
	if strings.Join(got, " ") != want {
		t.Errorf("order = %q, want %q", strings.Join(got, " "), want)
	}
}

func TestParse_Fields(t *testing.T) {
	fw, err := framework.Parse([]byte(testFramework))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	loc, ok := fw.Locate("B2.b")
	if !ok {
		t.Fatal("Locate(B2.b) not found")
	}
	if loc.Objective.Key != "B" || loc.Principle.Key != "B2" {
		t.Errorf("Locate(B2.b) parents = %s/%s, want B/B2", loc.Objective.Key, loc.Principle.Key)
	}
	o := loc.Outcome
	if o.Title != "Device management" {
		t.Errorf("Title = %q, want %q", o.Title, "Device management")
	}
	if o.Scope != "system" {
		t.Errorf("Scope = %q, want system", o.Scope)
	}
	if o.MinProfileRequirement["enhanced"] != "Achieved" {
		t.Errorf("MinProfileRequirement[enhanced] = %q, want Achieved", o.MinProfileRequirement["enhanced"])
	}
	if len(o.Indicators.NotAchieved) != 1 || len(o.Indicators.Achieved) != 1 {
		t.Errorf("indicator groups = %d/%d, want 1/1", len(o.Indicators.NotAchieved), len(o.Indicators.Achieved))
	}
	if o.HasPartiallyAchieved() {
		t.Error("HasPartiallyAchieved() = true, want false")
	}
	if got := o.Indicators.Achieved[0].NCSCIndex; got != "B2.b.A.1" {
		t.Errorf("NCSCIndex = %q, want B2.b.A.1", got)
	}
}

func TestParse_CodeDefaultsToKey(t *testing.T) {
	fw, err := framework.Parse([]byte(testFramework))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	obj, ok := fw.Objective("A")
	if !ok {
		t.Fatal("Objective(A) not found")
	}
	if obj.Code != "A" {
		t.Errorf("Code = %q, want A", obj.Code)
	}
}

func TestFramework_Counts(t *testing.T) {
	fw, err := framework.Parse([]byte(testFramework))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := fw.Counts()
	want := framework.Counts{Objectives: 2, Principles: 2, Outcomes: 3, Indicators: 6}
	if got != want {
		t.Errorf("Counts() = %+v, want %+v", got, want)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"not yaml", "objectives: [unclosed"},
		{"no objectives", "title: nothing\n"},
		{"objective without title", `
objectives:
  A:
    principles: {}
`},
		{"principle without outcomes", `
objectives:
  A:
    title: A
    principles:
      A1:
        title: A1
`},
		{"indicator without description", `
objectives:
  A:
    title: A
    principles:
      A1:
        title: A1
        outcomes:
          A1.a:
            title: A1.a
            indicators:
              achieved:
                A1.a.1: {}
`},
		{"unknown indicator level", `
objectives:
  A:
    title: A
    principles:
      A1:
        title: A1
        outcomes:
          A1.a:
            title: A1.a
            indicators:
              mostly-achieved: {}
`},
		{"duplicate objective", `
objectives:
  A:
    title: A
    principles: {}
  A:
    title: again
    principles: {}
`},
		{"outcome in two principles", `
objectives:
  A:
    title: A
    principles:
      A1:
        title: A1
        outcomes:
          X:
            title: X
            indicators: {}
      A2:
        title: A2
        outcomes:
          X:
            title: X again
            indicators: {}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := framework.Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() error = nil, want error")
			}
			if !errors.Is(err, framework.ErrInvalidSchema) {
				t.Errorf("Parse() error = %v, want ErrInvalidSchema", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caf.yaml")
	if err := os.WriteFile(path, []byte(testFramework), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := framework.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(fw.Objectives) != 2 {
		t.Errorf("len(Objectives) = %d, want 2", len(fw.Objectives))
	}
}

func TestLoad_BundledDocument(t *testing.T) {
	fw, err := framework.Load(filepath.Join("..", "..", "frameworks", "cyber-assessment-framework-v3.2.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := framework.Counts{Objectives: 2, Principles: 2, Outcomes: 3, Indicators: 11}
	if got := fw.Counts(); got != want {
		t.Errorf("Counts() = %+v, want %+v", got, want)
	}
	loc, ok := fw.Locate("B1.a")
	if !ok || !loc.Outcome.HasPartiallyAchieved() || loc.Outcome.Indicators.Achieved[0].NCSCIndex != "A1" {
		t.Errorf("Locate(B1.a) = %+v, want partially achievable outcome with indexed indicators", loc.Outcome)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := framework.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() error = nil, want error")
	}
}

func TestFilterByScope(t *testing.T) {
	fw, err := framework.Parse([]byte(testFramework))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		scope framework.Scope
		want  framework.Counts
	}{
		{framework.ScopeAll, framework.Counts{Objectives: 2, Principles: 2, Outcomes: 3, Indicators: 6}},
		{framework.ScopeOrganisation, framework.Counts{Objectives: 2, Principles: 2, Outcomes: 2, Indicators: 4}},
		{framework.ScopeSystem, framework.Counts{Objectives: 1, Principles: 1, Outcomes: 1, Indicators: 2}},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			got := fw.FilterByScope(tt.scope).Counts()
			if got != tt.want {
				t.Errorf("FilterByScope(%s).Counts() = %+v, want %+v", tt.scope, got, tt.want)
			}
		})
	}

	if got := fw.Counts().Outcomes; got != 3 {
		t.Errorf("receiver mutated: Outcomes = %d, want 3", got)
	}
}

func TestScope_Valid(t *testing.T) {
	for _, s := range []framework.Scope{"all", "organisation", "system"} {
		if !s.Valid() {
			t.Errorf("Scope(%q).Valid() = false, want true", s)
		}
	}
	if framework.Scope("team").Valid() {
		t.Error(`Scope("team").Valid() = true, want false`)
	}
}
