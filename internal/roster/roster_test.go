package roster

import (
	"slices"
	"testing"
)

func TestResolveDefaults(t *testing.T) {
	r := New(Config{})
	if got := r.Resolve(Generate); !slices.Equal(got, DefaultGenerateModels) {
		t.Errorf("Resolve(Generate) = %v, want %v", got, DefaultGenerateModels)
	}
	if got := r.Resolve(Enhance); !slices.Equal(got, DefaultEnhanceModels) {
		t.Errorf("Resolve(Enhance) = %v, want %v", got, DefaultEnhanceModels)
	}
}

func TestResolveOverrideChain(t *testing.T) {
	r := New(Config{
		Generate: []string{"x/gen", " ", "shared/one"},
		Generic:  []string{"shared/one", "shared/two"},
	})

	got := r.Resolve(Generate)
	want := append([]string{"x/gen", "shared/one", "shared/two"}, DefaultGenerateModels...)
	if !slices.Equal(got, want) {
		t.Errorf("Resolve(Generate) = %v, want %v", got, want)
	}

	// Enhance has no kind override and picks up the generic one first.
	got = r.Resolve(Enhance)
	if got[0] != "shared/one" || got[1] != "shared/two" {
		t.Errorf("Resolve(Enhance) = %v, want generic override first", got)
	}
}

func TestResolveDeduplicatesAgainstDefaults(t *testing.T) {
	r := New(Config{Generic: []string{DefaultGenerateModels[1]}})
	got := r.Resolve(Generate)
	if len(got) != len(DefaultGenerateModels) {
		t.Fatalf("Resolve(Generate) = %v, want %d unique entries", got, len(DefaultGenerateModels))
	}
	if got[0] != DefaultGenerateModels[1] {
		t.Errorf("first entry = %q, want configured model %q", got[0], DefaultGenerateModels[1])
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	r := New(Config{})
	got := r.Resolve(Generate)
	got[0] = "mutated"
	if r.Resolve(Generate)[0] == "mutated" {
		t.Fatal("Resolve exposed internal slice")
	}
}

func TestResolveUnknownKind(t *testing.T) {
	r := New(Config{})
	if got := r.Resolve("translate"); len(got) == 0 {
		t.Fatal("Resolve(unknown) returned an empty list")
	}
}
