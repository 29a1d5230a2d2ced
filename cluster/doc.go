/*
Package cluster coordinates a multi-node mask search over a reduction
tree.

Ranks are arranged in a rooted tree with a fixed fan-out: rank 0 is the
root, rank r's children are r*fanout+1 through r*fanout+fanout, and its
parent is (r-1)/fanout. Every round runs the same sequence on every
rank:

  - the root distributes the previous round's finalized mask set down
    the tree (a barrier first keeps the ranks in lockstep),
  - each rank expands its contiguous slice of the set locally,
  - partial results are merged up the tree into the root's collector,
  - the root flattens the merge, applies the cipher's bit permutation,
    logs and checkpoints the finalized round.

Frames move over a point-to-point Transport; LocalWorld wires all ranks
through in-process channels for tests and the single-binary mode, while
HTTPTransport runs the same protocol between nodes over HTTP. All
transfers are validated against the configured set limit and a SHA3-256
body digest. A violation is fatal: the protocol has no retries, a node
that observes a bad frame or a round mismatch shuts down.
*/
package cluster
