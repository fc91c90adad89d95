// Package dedup decides whether an observed clipboard value is a new change.
//
// The comparison is an exact string equality check. No whitespace or
// encoding normalization is applied: two values that differ in any byte are
// distinct changes. The caller owns the last-seen value and is responsible
// for updating it after a forwarded change.
package dedup

// Changed reports whether observed should be forwarded, i.e. it differs
// from the last value the caller has seen. Pure function, no side effects.
func Changed(observed, lastSeen string) bool {
	return observed != lastSeen
}
