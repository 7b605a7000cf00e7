package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
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
            indicators:
              achieved:
                A1.a.1:
                  description: The board has direction.
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFramework(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caf.yaml")
	if err := os.WriteFile(path, []byte(testFramework), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestReferenceCmd(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{args: []string{"reference", "0"}, want: "ZBV31"},
		{args: []string{"reference", "1", "--profile", "assessment"}, want: "8BNL1"},
		{args: []string{"reference", "2", "--profile", "assessment"}, want: "553M1"},
		{args: []string{"reference", "1", "--profile", "nope"}, wantErr: true},
		{args: []string{"reference", "-3"}, wantErr: true},
		{args: []string{"reference"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := run(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && strings.TrimSpace(out) != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestRoutesCmd(t *testing.T) {
	out, err := run(t, "routes", "--framework", writeFramework(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"objective_A", "principle_A1", "indicators_A1.a", "confirmation_A1.a", "Board direction"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "routes", "--framework", writeFramework(t), "--scope", "tenant"); err == nil {
		t.Error("routes with unknown scope should fail")
	}
}

func TestValidateCmd(t *testing.T) {
	out, err := run(t, "validate", "--framework", writeFramework(t))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "indicators") {
		t.Errorf("output missing counts:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("objectives: []\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := run(t, "validate", "--framework", bad); err == nil {
		t.Error("validate should fail for an invalid document")
	}
}

func TestTemplateCmd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "template.xlsx")
	if _, err := run(t, "template", "--framework", writeFramework(t), "--out", out); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("template is not a zip archive")
	}

	if _, err := run(t, "template", "--framework", writeFramework(t)); err == nil {
		t.Error("template without --out should fail")
	}
}
