package sensor

import "slices"

// TrimmedMean sorts samples, drops the single lowest and highest value and
// returns the integer average of the rest. With two or fewer samples there
// is nothing left to average and ok is false. samples is not modified.
func TrimmedMean(samples []int) (mean int, ok bool) {
	if len(samples) <= 2 {
		return 0, false
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	inner := sorted[1 : len(sorted)-1]

	sum := 0
	for _, v := range inner {
		sum += v
	}
	return sum / len(inner), true
}
