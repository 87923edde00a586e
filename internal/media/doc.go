// Package media defines the vocabulary shared by every pipeline component:
// media types, art types, their fixed review ordering, per-type default
// dimensions, and the language policy attached to each artwork slot.
//
// Keep new art types registered here so parsing, ordering, and policy stay in
// one place; components must never compare raw strings against slot names.
package media
