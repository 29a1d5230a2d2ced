// Package approx builds the linear approximation tables of a 4-bit S-box
// consumed by the mask search.
//
// A table row collects, for one 4-bit parity mask, every output mask whose
// parity correlates with it under the S-box, sorted by descending correlation
// magnitude and truncated below Tiny. The forward table is indexed by input
// mask and drives round expansion; the backward table is the transposed view
// indexed by output mask and drives back-propagation. Squaring a table via
// ELP turns signed correlations into expected-linear-potential weights.
package approx
