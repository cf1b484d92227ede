// Package workqueue selects which prepared books the next batch should
// publish: catalog order, minus completed books, truncated to the batch size.
package workqueue

// CompletionIndex reports whether a prepared directory has already completed
// the upload pipeline.
type CompletionIndex interface {
	Contains(name string) bool
}

// Pending returns every prepared directory name not yet recorded as
// completed, preserving order.
func Pending(prepared []string, done CompletionIndex) []string {
	var out []string
	for _, name := range prepared {
		if done.Contains(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// NextBatch returns up to limit pending directory names in catalog order.
// A limit of zero or less returns nothing.
func NextBatch(prepared []string, done CompletionIndex, limit int) []string {
	if limit <= 0 {
		return nil
	}
	pending := Pending(prepared, done)
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}
