package selection

const (
	// treeReserveCharacters is held back from the overall limit to cover the
	// rendered directory tree section and prompt framing.
	treeReserveCharacters = 2000
	// minimumContentBudget guarantees room for at least one meaningful file
	// even when the tree alone exhausts the overall limit.
	minimumContentBudget = 10000
)

// ContentBudget returns the character budget available to file contents
// after reserving space for the directory tree of the given length.
func ContentBudget(maxContentChars int64, treeLength int) int64 {
	budget := maxContentChars - int64(treeLength) - treeReserveCharacters
	if budget < minimumContentBudget {
		return minimumContentBudget
	}
	return budget
}
