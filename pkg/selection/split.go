package selection

// Fold is one forward-chaining split: train on [0, TestStart), test on [TestStart, TestEnd)
type Fold struct {
	TestStart int
	TestEnd   int
}

// Splits returns k folds over n time-ordered rows. Each test block holds
// n/(k+1) rows and the blocks end at the last row; training always uses every
// earlier row. Returns nil when n is too short for k non-empty blocks.
func Splits(n, k int) []Fold {
	if k < 1 {
		return nil
	}

	size := n / (k + 1)
	if size == 0 {
		return nil
	}

	folds := make([]Fold, 0, k)
	for start := n - k*size; start < n; start += size {
		folds = append(folds, Fold{TestStart: start, TestEnd: start + size})
	}

	return folds
}
