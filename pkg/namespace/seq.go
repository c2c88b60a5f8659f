package namespace

import "iter"

// Filtered returns the elements of seq for which keep returns true, in order.
// Elements are pulled from seq only as the consumer asks for them.
func Filtered[E any](seq iter.Seq[E], keep func(E) bool) iter.Seq[E] {
	return func(yield func(E) bool) {
		for e := range seq {
			if keep(e) && !yield(e) {
				return
			}
		}
	}
}

// First returns the first element of seq.
func First[E any](seq iter.Seq[E]) (E, bool) {
	for e := range seq {
		return e, true
	}
	var zero E
	return zero, false
}
