// Package localrepo lists analyzable files from a directory on disk,
// mirroring the shape of the GitHub tree listing so the same selection and
// tree-building pipeline applies to both sources.
package localrepo

import (
	"fmt"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/elevy30/ai-nebius-git-summarize/internal/rules"
	"github.com/elevy30/ai-nebius-git-summarize/internal/selection"
)

const gitIgnoreFileName = ".gitignore"

// List walks root and returns the file entries for selection plus the
// non-excluded relative paths that feed tree building. Directories named in
// the rule set's exclusions are skipped during descent, and a .gitignore at
// the root is honored when present. Returned paths use forward slashes
// regardless of platform.
func List(root string, ruleSet rules.RuleSet) ([]selection.FileEntry, []string, error) {
	absoluteRoot, absErr := filepath.Abs(root)
	if absErr != nil {
		return nil, nil, fmt.Errorf("resolve root %s: %w", root, absErr)
	}
	rootInfo, statErr := os.Stat(absoluteRoot)
	if statErr != nil {
		return nil, nil, fmt.Errorf("stat root %s: %w", root, statErr)
	}
	if !rootInfo.IsDir() {
		return nil, nil, fmt.Errorf("root %s is not a directory", root)
	}

	gitIgnore := loadGitIgnore(absoluteRoot)

	var fileEntries []selection.FileEntry
	var treePaths []string
	walkErr := filepath.Walk(absoluteRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == absoluteRoot {
			return nil
		}
		relativePath, relErr := filepath.Rel(absoluteRoot, path)
		if relErr != nil {
			return relErr
		}
		slashPath := filepath.ToSlash(relativePath)

		if info.IsDir() {
			if _, excluded := ruleSet.ExcludedDirectories[info.Name()]; excluded {
				return filepath.SkipDir
			}
			if gitIgnore != nil && gitIgnore.MatchesPath(slashPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if gitIgnore != nil && gitIgnore.MatchesPath(slashPath) {
			return nil
		}
		fileEntries = append(fileEntries, selection.FileEntry{Path: slashPath, Size: info.Size()})
		if !ruleSet.IsExcluded(slashPath) {
			treePaths = append(treePaths, slashPath)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}
	return fileEntries, treePaths, nil
}

func loadGitIgnore(root string) *ignore.GitIgnore {
	gitIgnorePath := filepath.Join(root, gitIgnoreFileName)
	if _, statErr := os.Stat(gitIgnorePath); statErr != nil {
		return nil
	}
	compiled, compileErr := ignore.CompileIgnoreFile(gitIgnorePath)
	if compileErr != nil {
		return nil
	}
	return compiled
}
