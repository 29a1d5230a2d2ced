/*
Package search implements one node's share of the mask cluster search: a
bounded top-K collector of scored masks and the recursive round expander
that feeds it.

Expansion walks the active 4-bit lanes of a source mask and substitutes
every table approximation per lane, bounded by a budget on the number of
active lanes. Each completed candidate is scored by back-propagating it
against the previous round's mask set, summing the expected linear
potential over all single-round trails that connect them. Candidates
scoring below approx.Tiny are discarded; the rest compete for a slot in
the collector, which keeps the best Limit masks seen and evicts the
worst on overflow.

All expansion tasks of a round run concurrently and share one collector;
its single mutex makes the membership-check, evict and insert sequence
atomic.
*/
package search
