package proxy

import "testing"

func TestClassifierDecodedAndRawForms(t *testing.T) {
	c := NewClassifier(Rule{Kind: KindPrefix, Value: "/@vite/"})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"plain marker", "/@vite/client", true},
		{"percent encoded marker", "/%40vite/client", true},
		{"unrelated path", "/api/users", false},
		{"root", "/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Matches(tt.path); got != tt.want {
				t.Fatalf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassifierMatchesRawFormWhenDecodedDiffers(t *testing.T) {
	// A rule written against the encoded form still matches even though
	// the decoded path looks different.
	c := NewClassifier(Rule{Kind: KindPrefix, Value: "/%40odd/"})
	if !c.Matches("/%40odd/mod.js") {
		t.Fatal("Matches should accept the raw form of the path")
	}
}

func TestClassifierUndecodablePathFallsBackToRaw(t *testing.T) {
	c := NewClassifier(Rule{Kind: KindPrefix, Value: "/%zz/"})
	if !c.Matches("/%zz/thing") {
		t.Fatal("Matches should fall back to the raw path when decoding fails")
	}
}

func TestClassifierEvaluatesRulesInOrder(t *testing.T) {
	calls := 0
	c := NewClassifier(
		Rule{Kind: KindPrefix, Value: "/assets/"},
		Rule{Kind: KindPredicate, Value: "counter", Match: func(string) bool {
			calls++
			return true
		}},
	)
	if !c.Matches("/assets/app.js") {
		t.Fatal("expected the prefix rule to match")
	}
	if calls != 0 {
		t.Fatalf("later rule evaluated %d times, want 0", calls)
	}
}

func TestExactRuleRequiresFullPath(t *testing.T) {
	c := NewClassifier(Rule{Kind: KindExact, Value: "/__vite_ping"})
	if !c.Matches("/__vite_ping") {
		t.Fatal("exact rule should match its own path")
	}
	if c.Matches("/__vite_ping/extra") {
		t.Fatal("exact rule matched a longer path")
	}
}

func TestDefaultRulesVite(t *testing.T) {
	c := NewClassifier(DefaultRules("vite", []string{"src"})...)

	tests := []struct {
		path string
		want bool
	}{
		{"/@vite/client", true},
		{"/@id/__x00__virtual:config", true},
		{"/@fs/home/dev/app/lib.ts", true},
		{"/@react-refresh", true},
		{"/node_modules/.vite/deps/react.js", true},
		{"/__vite_ping", true},
		{"/src/main.tsx", true},
		{"/@custom-plugin/virtual", true},
		{"/api/users", false},
		{"/", false},
		{"/srcery", false},
	}
	for _, tt := range tests {
		if got := c.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestDefaultRulesCommandFamilyHasNoBuiltins(t *testing.T) {
	rules := DefaultRules("command", []string{"app"})
	if len(rules) != 1 {
		t.Fatalf("len(rules) = %d, want 1", len(rules))
	}
	c := NewClassifier(rules...)
	if !c.Matches("/app/index.js") {
		t.Fatal("source dir rule should match")
	}
	if c.Matches("/@vite/client") {
		t.Fatal("command family should not inherit vite rules")
	}
}

func TestConfigRuleHelpers(t *testing.T) {
	rules := append(PrefixRules([]string{"/custom/", ""}), ExactRules([]string{"/healthz", ""})...)
	if len(rules) != 2 {
		t.Fatalf("len(rules) = %d, want 2 (empty patterns dropped)", len(rules))
	}
	c := NewClassifier(rules...)
	if !c.Matches("/custom/widget.js") {
		t.Fatal("prefix helper rule should match")
	}
	if !c.Matches("/healthz") {
		t.Fatal("exact helper rule should match")
	}
	if c.Matches("/healthz2") {
		t.Fatal("exact helper rule matched a different path")
	}
}
