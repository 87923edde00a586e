// Package queue persists the artwork work queue and scan sessions in SQLite.
//
// The Store is the only writer of queue state. Entries track one library
// item each and own a set of per-art-type sub-rows; scan sessions record
// the scope, counters, and detail log of one scan-and-review episode so an
// interrupted run can resume exactly where it stopped.
package queue
