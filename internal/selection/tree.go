package selection

import (
	"sort"
	"strings"
)

const treeIndentUnit = "  "

// BuildTree renders a flat list of file paths as an indented directory tree.
// Paths are sorted lexicographically, each directory is emitted once with a
// trailing slash at two spaces of indent per depth level, and files follow at
// their own depth. Ancestor directories are tracked by their full joined
// path, so two branches sharing a leaf directory name never collide. Empty
// input yields the empty string.
func BuildTree(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	sortedPaths := make([]string, len(paths))
	copy(sortedPaths, paths)
	sort.Strings(sortedPaths)

	seenDirectories := make(map[string]struct{})
	treeLines := make([]string, 0, len(sortedPaths))
	for _, filePath := range sortedPaths {
		pathSegments := strings.Split(filePath, pathSegmentSeparator)
		for segmentIndex := 0; segmentIndex < len(pathSegments)-1; segmentIndex++ {
			directoryPath := strings.Join(pathSegments[:segmentIndex+1], pathSegmentSeparator)
			if _, alreadySeen := seenDirectories[directoryPath]; alreadySeen {
				continue
			}
			seenDirectories[directoryPath] = struct{}{}
			treeLines = append(treeLines, strings.Repeat(treeIndentUnit, segmentIndex)+pathSegments[segmentIndex]+pathSegmentSeparator)
		}
		fileDepth := len(pathSegments) - 1
		treeLines = append(treeLines, strings.Repeat(treeIndentUnit, fileDepth)+pathSegments[fileDepth])
	}

	return strings.Join(treeLines, "\n")
}
