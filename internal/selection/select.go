// Package selection ranks eligible repository files by analysis value and
// greedily packs them under a character budget. It also reconstructs the
// indented directory-tree text shown to the text-generation consumer. Both
// operations are pure: identical inputs produce identical outputs in any
// order and across processes.
package selection

import (
	"sort"
	"strings"

	"github.com/elevy30/ai-nebius-git-summarize/internal/rules"
)

const pathSegmentSeparator = "/"

// FileEntry is one file from the repository listing. Size is the reported
// byte count and serves as the character estimate during budget accounting;
// a missing size is simply zero.
type FileEntry struct {
	Path string
	Size int64
}

type rankedEntry struct {
	entry          FileEntry
	tier           rules.Tier
	entryPointRank int
	depth          int
}

// Select filters, ranks, and packs file entries under the character budget.
//
// Entries that are excluded or classified TierSkip are dropped. The rest are
// ordered by (tier, entry-point boost, path depth, size, path) ascending and
// scanned greedily: a candidate that would overflow the budget is skipped
// while the scan continues, since a smaller file further down the order may
// still fit. The very first candidate is always accepted even when it alone
// exceeds the budget, so a non-empty eligible set always yields a non-empty
// selection. The returned order is the acceptance order and doubles as the
// rendering order downstream.
func Select(entries []FileEntry, budget int64, ruleSet rules.RuleSet) []FileEntry {
	eligibleEntries := make([]rankedEntry, 0, len(entries))
	for _, entry := range entries {
		if ruleSet.IsExcluded(entry.Path) {
			continue
		}
		classifiedTier := ruleSet.Classify(entry.Path)
		if classifiedTier == rules.TierSkip {
			continue
		}
		entryPointRank := 1
		if ruleSet.IsEntryPoint(entry.Path) {
			entryPointRank = 0
		}
		eligibleEntries = append(eligibleEntries, rankedEntry{
			entry:          entry,
			tier:           classifiedTier,
			entryPointRank: entryPointRank,
			depth:          strings.Count(entry.Path, pathSegmentSeparator),
		})
	}

	sort.SliceStable(eligibleEntries, func(firstIndex, secondIndex int) bool {
		first, second := eligibleEntries[firstIndex], eligibleEntries[secondIndex]
		if first.tier != second.tier {
			return first.tier < second.tier
		}
		if first.entryPointRank != second.entryPointRank {
			return first.entryPointRank < second.entryPointRank
		}
		if first.depth != second.depth {
			return first.depth < second.depth
		}
		if first.entry.Size != second.entry.Size {
			return first.entry.Size < second.entry.Size
		}
		return first.entry.Path < second.entry.Path
	})

	selectedEntries := make([]FileEntry, 0, len(eligibleEntries))
	var usedCharacters int64
	for _, candidate := range eligibleEntries {
		if usedCharacters+candidate.entry.Size > budget && len(selectedEntries) > 0 {
			continue
		}
		selectedEntries = append(selectedEntries, candidate.entry)
		usedCharacters += candidate.entry.Size
	}
	return selectedEntries
}
