// Package processor drains the queue without a human in the loop. It fills
// empty art slots with the top-ranked candidate that survives the language
// policy, and refuses to touch anything else: candidate-mode upgrades stay
// queued for the reviewer, and a slot that gained a value since the scan is
// marked stale rather than overwritten.
package processor
