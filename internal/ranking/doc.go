// Package ranking orders artwork candidates by quality.
//
// Rank is deliberately pure: filtering by source preference, Bayesian-smoothed
// popularity scoring, and the language-tier composite sort all derive from the
// inputs alone, and stable sorting keeps equal-keyed candidates in their
// original order. The same package houses the language policy filter the
// unattended processor applies before auto-selecting.
package ranking
