package rules_test

import (
	"testing"

	"github.com/elevy30/ai-nebius-git-summarize/internal/rules"
)

func TestIsExcluded(t *testing.T) {
	ruleSet := rules.DefaultRuleSet()
	testCases := []struct {
		name     string
		path     string
		expected bool
	}{
		{name: "plain source file", path: "src/app.py", expected: false},
		{name: "top level readme", path: "README.md", expected: false},
		{name: "node_modules at root", path: "node_modules/foo.js", expected: true},
		{name: "node_modules nested deep", path: "packages/web/node_modules/lodash/index.js", expected: true},
		{name: "excluded directory name as filename", path: "node_modules", expected: false},
		{name: "git internals", path: ".git/config", expected: true},
		{name: "python cache", path: "app/__pycache__/module.cpython-311.pyc", expected: true},
		{name: "lock file", path: "package-lock.json", expected: true},
		{name: "nested lock file", path: "services/api/go.sum", expected: true},
		{name: "macos metadata", path: "assets/.DS_Store", expected: true},
		{name: "image extension", path: "docs/logo.png", expected: true},
		{name: "uppercase image extension", path: "docs/LOGO.PNG", expected: true},
		{name: "source map", path: "dist-trimmed/bundle.js.map", expected: true},
		{name: "minified script", path: "static/vendor.min.js", expected: true},
		{name: "minified stylesheet", path: "static/site.min.css", expected: true},
		{name: "webpack chunk", path: "static/js/2.chunk.js", expected: true},
		{name: "filename without extension", path: "Makefile", expected: false},
		{name: "dotfile", path: ".gitignore", expected: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result := ruleSet.IsExcluded(testCase.path)
			if result != testCase.expected {
				t.Fatalf("IsExcluded(%q): expected %v, got %v", testCase.path, testCase.expected, result)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	ruleSet := rules.DefaultRuleSet()
	testCases := []struct {
		name     string
		path     string
		expected rules.Tier
	}{
		{name: "readme markdown", path: "README.md", expected: rules.TierReadme},
		{name: "readme lowercase", path: "readme.rst", expected: rules.TierReadme},
		{name: "readme inside tests directory", path: "tests/README.md", expected: rules.TierReadme},
		{name: "package manifest", path: "package.json", expected: rules.TierConfig},
		{name: "nested manifest", path: "services/api/go.mod", expected: rules.TierConfig},
		{name: "dockerfile", path: "Dockerfile", expected: rules.TierConfig},
		{name: "workflow file", path: ".github/workflows/ci.yml", expected: rules.TierConfig},
		{name: "entry point source", path: "src/main.py", expected: rules.TierSource},
		{name: "regular source", path: "src/handlers/users.go", expected: rules.TierSource},
		{name: "markdown documentation", path: "docs/guide.md", expected: rules.TierSource},
		{name: "test directory", path: "tests/test_app.py", expected: rules.TierTest},
		{name: "spec directory", path: "docs/spec/index.md", expected: rules.TierTest},
		{name: "test filename prefix", path: "test_helpers.py", expected: rules.TierTest},
		{name: "javascript test suffix", path: "src/app.test.js", expected: rules.TierTest},
		{name: "typescript spec suffix", path: "src/app.spec.ts", expected: rules.TierTest},
		{name: "unknown extension", path: "data/records.csvx", expected: rules.TierSkip},
		{name: "license without extension", path: "LICENSE", expected: rules.TierSkip},
		{name: "yaml data file", path: "config/settings.yaml", expected: rules.TierSource},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result := ruleSet.Classify(testCase.path)
			if result != testCase.expected {
				t.Fatalf("Classify(%q): expected %d, got %d", testCase.path, testCase.expected, result)
			}
		})
	}
}

func TestClassifyOrdersTiers(t *testing.T) {
	ruleSet := rules.DefaultRuleSet()
	orderedPaths := []string{"README.md", "package.json", "src/app.py", "unit/test_app.py"}
	for pathIndex := 1; pathIndex < len(orderedPaths); pathIndex++ {
		previousTier := ruleSet.Classify(orderedPaths[pathIndex-1])
		currentTier := ruleSet.Classify(orderedPaths[pathIndex])
		if previousTier >= currentTier {
			t.Fatalf("expected Classify(%q)=%d < Classify(%q)=%d",
				orderedPaths[pathIndex-1], previousTier, orderedPaths[pathIndex], currentTier)
		}
	}
}

func TestIsEntryPoint(t *testing.T) {
	ruleSet := rules.DefaultRuleSet()
	testCases := []struct {
		name     string
		path     string
		expected bool
	}{
		{name: "go entry point", path: "main.go", expected: true},
		{name: "nested entry point", path: "cmd/server/main.go", expected: true},
		{name: "javascript index", path: "src/index.js", expected: true},
		{name: "helper file", path: "src/helpers.go", expected: false},
		{name: "uppercase is not an entry point", path: "MAIN.GO", expected: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result := ruleSet.IsEntryPoint(testCase.path)
			if result != testCase.expected {
				t.Fatalf("IsEntryPoint(%q): expected %v, got %v", testCase.path, testCase.expected, result)
			}
		})
	}
}
