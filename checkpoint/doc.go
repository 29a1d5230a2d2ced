// Package checkpoint persists finalized search rounds: flat mask files
// for offline analysis tooling, and a round store (PostgreSQL or
// in-memory) that the root node writes after every round and reads back
// when resuming an interrupted search.
package checkpoint
