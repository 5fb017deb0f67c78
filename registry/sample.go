package registry

// sampleIndices picks k distinct indices from [0, n) with a partial
// Fisher-Yates shuffle: O(n) time, no rejection loop, uniform without
// replacement. intn is injected so tests can fix the sequence.
func sampleIndices(n int, k int, intn func(n int) int) []int {
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
