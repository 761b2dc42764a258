package dict

import (
	"slices"
	"testing"

	"github.com/mirkobrombin/go-toolkit/v1/types"
)

func sample() map[string]any {
	var nilSlice []int
	return map[string]any{
		"name":   "ann",
		"age":    0,
		"email":  types.Unset,
		"phone":  nil,
		"tags":   nilSlice,
		"parent": (*int)(nil),
	}
}

func TestValidAndUnset(t *testing.T) {
	valid := Valid(sample())
	if _, ok := valid["email"]; ok || len(valid) != 5 {
		t.Fatalf("unexpected valid entries %v", valid)
	}
	unset := Unset(sample())
	if len(unset) != 1 || unset["email"] != types.Unset {
		t.Fatalf("unexpected unset entries %v", unset)
	}
}

func TestNotNil(t *testing.T) {
	got := NotNil(sample())
	keys := Keys(got)
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"age", "email", "name"}) {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestFilterDoesNotMutate(t *testing.T) {
	in := map[string]int{"a": 1, "b": 2}
	out := Filter(in, func(_ string, v int) bool { return v > 1 })
	if len(in) != 2 || len(out) != 1 || out["b"] != 2 {
		t.Fatalf("unexpected filter result %v / %v", in, out)
	}
}
