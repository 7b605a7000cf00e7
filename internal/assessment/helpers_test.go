package assessment_test

import (
	"testing"

	"github.com/co-cddo/webcaf/internal/framework"
	"github.com/co-cddo/webcaf/internal/route"
)

const testFramework = `
objectives:
  A:
    code: A
    title: Managing security risk
    principles:
      A1:
        code: A1
        title: Governance
        outcomes:
          A1.a:
            code: A1.a
            title: Board direction
            min_profile_requirement:
              baseline: Achieved
            indicators:
              not-achieved:
                A1.a.1:
                  description: No direction.
              achieved:
                A1.a.2:
                  description: The board has direction.
                A1.a.3:
                  description: Direction is reviewed.
  B:
    code: B
    title: Protecting against cyber attack
    principles:
      B1:
        code: B1
        title: Policies
        outcomes:
          B1.a:
            code: B1.a
            title: Policy development
            indicators:
              partially-achieved:
                B1.a.1:
                  description: Some policy exists.
              achieved:
                B1.a.2:
                  description: Policy is complete.
`

func testRoute(t *testing.T) *route.Route {
	t.Helper()
	fw, err := framework.Parse([]byte(testFramework))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r, err := route.Compile(fw, "index", route.CompileOptions{})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return r
}

func allAgreed() map[string]string {
	return map[string]string{
		"not-achieved_A1.a.1":                "agreed",
		"not-achieved_A1.a.1_agreed_comment": "we have a board",
		"achieved_A1.a.2":                    "agreed",
		"achieved_A1.a.3":                    "agreed",
	}
}
