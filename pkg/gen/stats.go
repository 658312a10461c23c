package gen

import "math"

// ArgMax returns the key with the highest value.
// Ties go to the smallest key, so the result does not depend on map iteration order.
// ok is false if m is empty.
func ArgMax[K Ordered, V Integer | Float](m map[K]V) (key K, value V, ok bool) {
	for k, v := range m {
		if !ok || v > value || (v == value && k < key) {
			key = k
			value = v
			ok = true
		}
	}
	return
}

// Mean returns the arithmetic mean of src, or zero if src is empty
func Mean[T Integer | Float](src []T) float64 {
	if len(src) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range src {
		sum += float64(v)
	}
	return sum / float64(len(src))
}

// RoundTo rounds v to the given number of decimal places (half away from zero)
func RoundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
