package rules

import "strings"

const (
	pathSegmentSeparator     = "/"
	readmeFilenamePrefix     = "README"
	minifiedScriptSuffix     = ".min.js"
	minifiedStylesheetSuffix = ".min.css"
	chunkFilenameMarker      = ".chunk."
	testFilenamePrefix       = "test_"
)

var testDirectoryMarkers = []string{"/test", "/tests", "/spec"}

var testFilenameSuffixes = []string{
	"_test.py", ".test.js", ".test.ts", ".spec.js", ".spec.ts",
}

// IsExcluded reports whether a repository path is categorically ineligible
// for analysis: it sits under an excluded directory at any depth, carries an
// excluded filename or extension, or looks like minified or chunked build
// output. Paths that match no rule are not excluded.
func (ruleSet RuleSet) IsExcluded(filePath string) bool {
	pathSegments := strings.Split(filePath, pathSegmentSeparator)
	for _, directoryName := range pathSegments[:len(pathSegments)-1] {
		if _, isExcluded := ruleSet.ExcludedDirectories[directoryName]; isExcluded {
			return true
		}
	}

	fileName := pathSegments[len(pathSegments)-1]
	if _, isExcluded := ruleSet.ExcludedFilenames[fileName]; isExcluded {
		return true
	}

	if extension := lowercaseExtension(fileName); extension != "" {
		if _, isExcluded := ruleSet.ExcludedExtensions[extension]; isExcluded {
			return true
		}
	}

	if strings.HasSuffix(fileName, minifiedScriptSuffix) || strings.HasSuffix(fileName, minifiedStylesheetSuffix) {
		return true
	}

	return strings.Contains(fileName, chunkFilenameMarker)
}

// Classify assigns a priority tier to a path that already passed IsExcluded.
// The first matching rule wins: README files outrank manifests, manifests
// outrank the test-marker demotion, so a README inside a tests directory is
// still TierReadme.
func (ruleSet RuleSet) Classify(filePath string) Tier {
	pathSegments := strings.Split(filePath, pathSegmentSeparator)
	fileName := pathSegments[len(pathSegments)-1]

	if strings.HasPrefix(strings.ToUpper(fileName), readmeFilenamePrefix) {
		return TierReadme
	}

	if _, isManifest := ruleSet.ManifestFilenames[fileName]; isManifest {
		return TierConfig
	}
	for _, directoryPrefix := range ruleSet.ConfigDirectoryPrefixes {
		if strings.HasPrefix(filePath, directoryPrefix) {
			return TierConfig
		}
	}

	extension := lowercaseExtension(fileName)
	_, isSourceExtension := ruleSet.SourceExtensions[extension]
	_, isEntryPointName := ruleSet.EntryPointFilenames[fileName]
	if !isSourceExtension && !isEntryPointName {
		return TierSkip
	}

	if isTestPath(filePath, fileName) {
		return TierTest
	}

	return TierSource
}

// IsEntryPoint reports whether the path's filename is a conventional program
// entry point such as main.go or index.js.
func (ruleSet RuleSet) IsEntryPoint(filePath string) bool {
	pathSegments := strings.Split(filePath, pathSegmentSeparator)
	fileName := pathSegments[len(pathSegments)-1]
	_, isEntryPointName := ruleSet.EntryPointFilenames[fileName]
	return isEntryPointName
}

func isTestPath(filePath string, fileName string) bool {
	lowercasePath := strings.ToLower(filePath)
	for _, directoryMarker := range testDirectoryMarkers {
		if strings.Contains(lowercasePath, directoryMarker) {
			return true
		}
	}
	if strings.HasPrefix(fileName, testFilenamePrefix) {
		return true
	}
	for _, filenameSuffix := range testFilenameSuffixes {
		if strings.HasSuffix(fileName, filenameSuffix) {
			return true
		}
	}
	return false
}

func lowercaseExtension(fileName string) string {
	lastDotIndex := strings.LastIndex(fileName, ".")
	if lastDotIndex == -1 {
		return ""
	}
	return strings.ToLower(fileName[lastDotIndex:])
}
