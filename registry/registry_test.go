package registry

import (
	"slices"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func opNames(c Classification) []string {
	var names []string
	for _, op := range c.MutableOps {
		names = append(names, op.Name)
	}
	return names
}

func TestClassifyText(t *testing.T) {
	c, ok := Default().Classify("Text")
	if !ok {
		t.Fatal("Text not classified")
	}
	names := opNames(c)
	for _, want := range []string{"splitText", "appendData", "data", "appendChild", "textContent", "before", "remove"} {
		if !slices.Contains(names, want) {
			t.Errorf("Text: missing %q", want)
		}
	}
	for _, reject := range []string{"substringData", "cloneNode", "contains", "addEventListener", "append"} {
		if slices.Contains(names, reject) {
			t.Errorf("Text: %q must not be mutating", reject)
		}
	}
	if names[0] != "splitText" {
		t.Errorf("first op: got %q, want the most derived level first", names[0])
	}
	if len(c.NestedMutables) != 0 {
		t.Errorf("Text nested: got %v", c.NestedMutables)
	}
}

func TestClassifyKinds(t *testing.T) {
	c, _ := Default().Classify("HTMLScriptElement")
	kinds := make(map[string]Kind)
	for _, op := range c.MutableOps {
		if _, dup := kinds[op.Name]; dup {
			t.Errorf("duplicate op %q", op.Name)
		}
		kinds[op.Name] = op.Kind
	}
	want := map[string]Kind{"type": KindSetter, "innerHTML": KindSetter, "setAttribute": KindMethod, "appendChild": KindMethod}
	for name, k := range want {
		if kinds[name] != k {
			t.Errorf("%s: got %q, want %q", name, kinds[name], k)
		}
	}
	if _, ok := kinds["getAttribute"]; ok {
		t.Error("getAttribute classified as mutating")
	}
}

func TestNestedMutables(t *testing.T) {
	tests := []struct {
		iface string
		want  []string
	}{
		{"HTMLElement", []string{"attributes", "classList", "dataset", "style"}},
		{"SVGElement", []string{"attributes", "classList", "dataset", "style"}},
		{"Element", []string{"attributes", "classList"}},
		{"HTMLStyleElement", []string{"attributes", "classList", "dataset", "sheet", "style"}},
		{"HTMLInputElement", []string{"attributes", "classList", "dataset", "files", "style"}},
		{"ShadowRoot", nil},
	}
	for _, tt := range tests {
		c, ok := Default().Classify(tt.iface)
		if !ok {
			t.Fatalf("%s not classified", tt.iface)
		}
		var got []string
		for k := range c.NestedMutables {
			got = append(got, k)
		}
		sort.Strings(got)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s nested (-want +got):\n%s", tt.iface, diff)
		}
	}
	c, _ := Default().Classify("HTMLElement")
	if diff := cmp.Diff([]string{"add", "remove", "toggle", "replace"}, c.NestedMutables["classList"]); diff != "" {
		t.Errorf("classList methods (-want +got):\n%s", diff)
	}
}

func TestIsMutating(t *testing.T) {
	r := Default()
	tests := []struct {
		iface string
		path  []string
		kind  Kind
		want  bool
	}{
		{"HTMLElement", []string{"appendChild"}, KindMethod, true},
		{"HTMLElement", []string{"querySelector"}, KindMethod, false},
		{"HTMLElement", []string{"hidden"}, KindSetter, true},
		{"Element", []string{"hidden"}, KindSetter, false},
		{"HTMLElement", []string{"classList", "add"}, KindMethod, true},
		{"HTMLElement", []string{"classList", "contains"}, KindMethod, false},
		{"HTMLElement", []string{"classList", "value"}, KindAssign, true},
		{"HTMLElement", []string{"classList", "length"}, KindAssign, false},
		{"HTMLElement", []string{"style", "backgroundColor"}, KindAssign, true},
		{"HTMLElement", []string{"style", "color"}, KindDelete, true},
		{"HTMLElement", []string{"dataset", "userId"}, KindAssign, true},
		{"HTMLElement", []string{"attributes", "x"}, KindAssign, false},
		{"Element", []string{"style", "color"}, KindAssign, false},
		{"HTMLStyleElement", []string{"sheet", "insertRule"}, KindMethod, true},
		{"HTMLInputElement", []string{"files", "push"}, KindMethod, true},
		{"Location", []string{"hash"}, KindSetter, true},
		{"Location", []string{"toString"}, KindMethod, false},
		{"Document", []string{"title"}, KindSetter, true},
		{"Document", []string{"createElement"}, KindMethod, false},
		{"Unknown", []string{"appendChild"}, KindMethod, false},
	}
	for _, tt := range tests {
		if got := r.IsMutating(tt.iface, tt.path, tt.kind); got != tt.want {
			t.Errorf("IsMutating(%s, %v, %s): got %v, want %v", tt.iface, tt.path, tt.kind, got, tt.want)
		}
	}
}

func TestWalkVisitsLevelsOnce(t *testing.T) {
	walked := Default().Walked()
	seen := make(map[string]bool)
	for _, l := range walked {
		if seen[l] {
			t.Errorf("level %q walked twice", l)
		}
		seen[l] = true
	}
	for _, stop := range []string{"EventTarget", "URLUtils"} {
		if seen[stop] {
			t.Errorf("stop level %q walked", stop)
		}
	}
	for _, mixin := range []string{"ParentNode", "ChildNode", "Node"} {
		if !seen[mixin] {
			t.Errorf("level %q never walked", mixin)
		}
	}
	if slices.Contains(Default().Interfaces(), "EventTarget") {
		t.Error("stop level classified")
	}
}

func TestClassifyReturnsCopy(t *testing.T) {
	c, _ := Default().Classify("HTMLElement")
	c.MutableOps[0].Name = "tampered"
	c.NestedMutables["classList"][0] = "tampered"
	again, _ := Default().Classify("HTMLElement")
	if again.MutableOps[0].Name == "tampered" || again.NestedMutables["classList"][0] == "tampered" {
		t.Error("Classify leaked internal state")
	}
}

func TestBuildRejectsBadTables(t *testing.T) {
	if _, err := build([]level{{name: "A", parents: []string{"B"}}}); err == nil {
		t.Error("unknown parent: want error")
	}
	if _, err := build([]level{{name: "A"}, {name: "A"}}); err == nil {
		t.Error("duplicate level: want error")
	}
	if _, err := build([]level{{name: "A", members: composites("mystery")}}); err == nil {
		t.Error("composite without rule: want error")
	}
}
