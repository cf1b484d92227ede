// Package scheduler coordinates publication batches. A batch opens one
// browser session, authenticates once, and walks the pending work queue in
// catalog order with randomized delays between books. The daemon wraps the
// scheduler with a daily trigger and a lock file so only one instance
// publishes at a time.
package scheduler
