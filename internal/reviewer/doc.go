// Package reviewer drains the artwork queue interactively.
//
// Entries are processed in batches, art types in their fixed review order.
// Live library state is re-checked both before presenting a choice and again
// before applying it; anything whose scan-time assumption no longer holds is
// marked stale instead of applied. Progress is persisted into the owning
// scan session after every item, so cancelling mid-batch pauses the session
// and a later run resumes from the first remaining pending item without
// replaying applied work.
package reviewer
