// Package rules defines the fixed classification data and the pure
// predicates deciding which repository files are excluded from analysis,
// which priority tier eligible files belong to, and which filenames count
// as program entry points. Rule sets are built once at startup and treated
// as read-only by every consumer.
package rules

// Tier orders files by analysis value. Lower values are selected first.
type Tier int

// Priority tiers, from README files down to test code. TierSkip marks files
// that stay visible in the directory tree but are never fetched.
const (
	TierReadme Tier = 1
	TierConfig Tier = 2
	TierSource Tier = 3
	TierTest   Tier = 4
	TierSkip   Tier = 99
)

// RuleSet holds the immutable matching data consulted by IsExcluded,
// Classify, and IsEntryPoint. Callers must not mutate the contained sets;
// ApplyOverlay returns extended copies instead.
type RuleSet struct {
	ExcludedDirectories     map[string]struct{}
	ExcludedExtensions      map[string]struct{}
	ExcludedFilenames       map[string]struct{}
	ManifestFilenames       map[string]struct{}
	ConfigDirectoryPrefixes []string
	EntryPointFilenames     map[string]struct{}
	SourceExtensions        map[string]struct{}
}

// DefaultRuleSet returns the built-in rule data.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		ExcludedDirectories:     defaultExcludedDirectories,
		ExcludedExtensions:      defaultExcludedExtensions,
		ExcludedFilenames:       defaultExcludedFilenames,
		ManifestFilenames:       defaultManifestFilenames,
		ConfigDirectoryPrefixes: defaultConfigDirectoryPrefixes,
		EntryPointFilenames:     defaultEntryPointFilenames,
		SourceExtensions:        defaultSourceExtensions,
	}
}

var defaultExcludedDirectories = newStringSet(
	"node_modules", "vendor", ".git", "dist", "build", "__pycache__",
	".venv", "venv", "env", ".idea", ".vscode", ".tox", ".mypy_cache",
	".pytest_cache", ".next", ".nuxt", "target", "bin", "obj",
	"coverage", ".coverage", "htmlcov", ".eggs", ".gradle",
	".terraform", ".serverless",
)

var defaultExcludedExtensions = newStringSet(
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".svg", ".bmp", ".webp",
	".woff", ".woff2", ".ttf", ".eot", ".otf",
	".mp3", ".mp4", ".avi", ".mov", ".wav",
	".zip", ".tar", ".gz", ".bz2", ".rar", ".7z",
	".pdf", ".doc", ".docx", ".xls", ".xlsx",
	".exe", ".dll", ".so", ".dylib", ".pyc", ".pyo", ".class", ".o",
	".wasm",
	".sqlite", ".db",
	".map",
)

var defaultExcludedFilenames = newStringSet(
	"package-lock.json", "yarn.lock", "poetry.lock", "Cargo.lock",
	"Gemfile.lock", "composer.lock", "go.sum", "pnpm-lock.yaml",
	"npm-shrinkwrap.json", ".DS_Store", "Thumbs.db",
)

var defaultManifestFilenames = newStringSet(
	"package.json", "pyproject.toml", "setup.py", "setup.cfg",
	"Cargo.toml", "go.mod", "pom.xml", "build.gradle", "build.gradle.kts",
	"Makefile", "CMakeLists.txt", "Dockerfile", "docker-compose.yml",
	"docker-compose.yaml", "requirements.txt", "Gemfile", "Pipfile",
	"tsconfig.json", "tox.ini", ".eslintrc.json", ".eslintrc.js",
	"webpack.config.js", "vite.config.ts", "vite.config.js",
	"next.config.js", "next.config.mjs",
)

var defaultConfigDirectoryPrefixes = []string{
	".github/workflows/",
}

var defaultEntryPointFilenames = newStringSet(
	"main.py", "app.py", "index.ts", "index.js", "main.ts", "main.js",
	"server.py", "server.ts", "server.js", "main.go", "main.rs",
	"lib.rs", "mod.rs", "index.py",
)

var defaultSourceExtensions = newStringSet(
	".py", ".js", ".ts", ".jsx", ".tsx", ".go", ".rs", ".java",
	".kt", ".rb", ".php", ".c", ".cpp", ".h", ".hpp", ".cs",
	".swift", ".scala", ".clj", ".ex", ".exs", ".hs", ".lua",
	".r", ".jl", ".sh", ".bash", ".zsh", ".fish",
	".yaml", ".yml", ".toml", ".json", ".xml", ".html", ".css",
	".scss", ".less", ".sql", ".graphql", ".proto", ".tf",
	".md", ".rst", ".txt",
)

func newStringSet(values ...string) map[string]struct{} {
	stringSet := make(map[string]struct{}, len(values))
	for _, value := range values {
		stringSet[value] = struct{}{}
	}
	return stringSet
}
