// Package providers holds the artwork provider clients and the normalized
// Candidate record they all emit.
//
// Each client issues a single multi-type request per item (never one request
// per art type) through the shared rate-limited fetcher, then maps the
// provider's own slot vocabulary onto library art types. Provider quirks stop
// at this boundary: everything downstream works with Candidate values only.
package providers
