package reference_test

import (
	"errors"
	"testing"

	"github.com/co-cddo/webcaf/internal/reference"
)

func TestGenerate_FirstReferenceIsFullyPopulated(t *testing.T) {
	got, err := reference.Generate(0)
	if err != nil {
		t.Fatalf("Generate(0) error = %v", err)
	}
	if got != "ZBV31" {
		t.Errorf("Generate(0) = %q, want ZBV31", got)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	tests := []struct {
		start uint64
		want  []string
	}{
		{0, []string{"ZBV31", "D1361", "TP981", "8DJB1", "P2RD1"}},
		{999, []string{"VRB4H", "9GK6H", "Q4S8H", "5T0CH", "LH7FH", "16GHH"}},
		{10000000, []string{"9GWBQ", "Q44FQ", "5TBHQ", "LHKKQ", "16SMQ"}},
	}

	for _, tt := range tests {
		for i, want := range tt.want {
			key := tt.start + uint64(i)
			got, err := reference.Generate(key)
			if err != nil {
				t.Fatalf("Generate(%d) error = %v", key, err)
			}
			if got != want {
				t.Errorf("Generate(%d) = %q, want %q", key, got, want)
			}
		}
	}
}

func TestGenerate_Length(t *testing.T) {
	for n := 1; n < 10; n++ {
		got, err := reference.Generate(0, reference.WithLength(n))
		if err != nil {
			t.Fatalf("Generate(0, length=%d) error = %v", n, err)
		}
		if len(got) != n {
			t.Errorf("len(Generate(0, length=%d)) = %d, want %d", n, len(got), n)
		}
	}
}

func TestGenerate_Range(t *testing.T) {
	tests := []struct {
		name    string
		key     uint64
		length  int
		wantErr bool
	}{
		{"max five chars", 24299999, 5, false},
		{"capacity five chars", 24300000, 5, true},
		{"past capacity five chars", 30000000, 5, true},
		{"max four chars", 809999, 4, false},
		{"capacity four chars", 810000, 4, true},
		{"well past four chars", 2000000, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reference.Generate(tt.key, reference.WithLength(tt.length))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Generate(%d) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, reference.ErrRange) {
				t.Errorf("error = %v, want ErrRange", err)
			}
		})
	}
}

func TestGenerate_WrapsAroundAtCapacity(t *testing.T) {
	first, _ := reference.Generate(0)
	wrapped, err := reference.GenerateUnchecked(24300000)
	if err != nil {
		t.Fatalf("GenerateUnchecked() error = %v", err)
	}
	if wrapped != first {
		t.Errorf("GenerateUnchecked(30^5) = %q, want %q", wrapped, first)
	}

	alphabet := "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	first, _ = reference.Generate(0, reference.WithLength(4), reference.WithAlphabet(alphabet))
	if first != "5T83" {
		t.Errorf("Generate(0, 36 chars) = %q, want 5T83", first)
	}
	wrapped, _ = reference.GenerateUnchecked(1679616, reference.WithLength(4), reference.WithAlphabet(alphabet))
	if wrapped != first {
		t.Errorf("GenerateUnchecked(36^4) = %q, want %q", wrapped, first)
	}
}

func TestGenerate_Profiles(t *testing.T) {
	tests := []struct {
		profile reference.Profile
		want    string
	}{
		{reference.ProfileAssessment, "CH7L1"},
		{reference.ProfileSystem, "KLL32"},
		{reference.ProfileOrganisation, "1WNW1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			got, err := reference.Generate(0, reference.WithProfile(tt.profile))
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Generate(0, %s) = %q, want %q", tt.profile, got, tt.want)
			}
		})
	}
}

func TestGenerate_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []reference.Option
		want error
	}{
		{"unknown profile", []reference.Option{reference.WithProfile("nope")}, reference.ErrUnknownProfile},
		{"repeated character", []reference.Option{reference.WithAlphabet("ABCA")}, reference.ErrInvalidAlphabet},
		{"single character", []reference.Option{reference.WithAlphabet("A")}, reference.ErrInvalidAlphabet},
		{"zero length", []reference.Option{reference.WithLength(0)}, reference.ErrRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reference.Generate(0, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerate_NoCollisionsInSmallSpace(t *testing.T) {
	opts := []reference.Option{reference.WithLength(3)}
	capacity, err := reference.Capacity(opts...)
	if err != nil {
		t.Fatalf("Capacity() error = %v", err)
	}
	if capacity != 27000 {
		t.Fatalf("Capacity() = %d, want 27000", capacity)
	}

	seen := make(map[string]uint64, capacity)
	for key := range capacity {
		ref, err := reference.Generate(key, opts...)
		if err != nil {
			t.Fatalf("Generate(%d) error = %v", key, err)
		}
		if prev, ok := seen[ref]; ok {
			t.Fatalf("Generate(%d) = %q, already produced by %d", key, ref, prev)
		}
		seen[ref] = key
	}
}
