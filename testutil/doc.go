// Package testutil provides shared fixtures for cryptagraph tests.
//
// The helpers stay deliberately small: a reduced cipher whose round sets
// can be computed by hand, and a silent logger for tests that exercise
// noisy paths. Package-specific fixtures live next to the tests that use
// them.
package testutil
