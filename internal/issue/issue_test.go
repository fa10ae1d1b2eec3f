// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"
	"strings"
	"testing"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("Values() returned %d pages, want %d", len(values), len(issues))
	}
	for i, v := range values {
		if v.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, v.Id(), i+1)
		}
	}
}

func TestAllIssuesHaveContent(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, i := range Values() {
		if strings.TrimSpace(string(i.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty body", i.Id())
		}
		if i.Name() == "" || strings.ContainsAny(i.Name(), " _") {
			t.Errorf("issue %d has a bad slug %q", i.Id(), i.Name())
		}
		if seen[i.Name()] {
			t.Errorf("duplicate slug %q", i.Name())
		}
		seen[i.Name()] = true
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	got, ok := Lookup("helper-unavailable")
	if !ok || got.Id() != HelperUnavailableId {
		t.Errorf("Lookup(helper-unavailable) = %v, %v", got, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup(nope) should fail")
	}
	if Get(0) != nil {
		t.Error("Get(0) should be nil")
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	names := Names()
	if !slices.Contains(names, "watcher-failed") || names[0] != "helper-unavailable" {
		t.Errorf("Names() = %v", names)
	}
}

func TestAllIssuesAreRenderable(t *testing.T) {
	t.Parallel()

	for _, i := range Values() {
		out, err := i.Render("notty")
		if err != nil {
			t.Errorf("Render(%s) error: %v", i.Name(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Render(%s) produced no output", i.Name())
		}
	}
}

func TestIssue_RenderAppendsLinks(t *testing.T) {
	t.Parallel()

	i := &Issue{id: 99, name: "x", mdMsg: "# Title", extLinks: []HttpLink{"https://example.com/doc"}}
	out, err := i.Render("notty")
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(out, "See also") || !strings.Contains(out, "https://example.com/doc") {
		t.Errorf("rendered page lacks links:\n%s", out)
	}

	links := i.ExtLinks()
	links[0] = "mutated"
	if i.ExtLinks()[0] != "https://example.com/doc" {
		t.Error("ExtLinks() must return a copy")
	}
}
