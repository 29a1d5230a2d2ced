package cluster

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/psve/cryptagraph/metrics"
	"github.com/psve/cryptagraph/search"
)

// ErrRoundMismatch reports a barrier token for a different round than
// the one this rank is in. The ranks have diverged, the search cannot
// continue.
var ErrRoundMismatch = errors.New("barrier round mismatch")

const (
	barrierGather  = 0x1
	barrierRelease = 0x2

	barrierTokenSize = 8 + 1
)

// Comm runs the tree collectives of one rank over a point-to-point
// transport.
type Comm struct {
	topo  Topology
	tr    Transport
	limit int
	log   *slog.Logger
}

// NewComm wires a rank's topology and transport together. The limit
// bounds every frame moved by the collectives.
func NewComm(topo Topology, tr Transport, limit int, log *slog.Logger) *Comm {
	return &Comm{topo: topo, tr: tr, limit: limit, log: log}
}

// Barrier blocks until all ranks have entered the barrier for epoch.
// Gather tokens flow leaf-to-root, release tokens root-to-leaf; a token
// for another epoch means the ranks have desynchronized and is fatal.
func (c *Comm) Barrier(ctx context.Context, epoch uint64) error {
	for range c.topo.Children() {
		if err := c.recvToken(ctx, epoch, barrierGather); err != nil {
			return err
		}
	}
	if !c.topo.IsRoot() {
		if err := c.sendToken(ctx, c.topo.Parent(), epoch, barrierGather); err != nil {
			return err
		}
		if err := c.recvToken(ctx, epoch, barrierRelease); err != nil {
			return err
		}
	}
	for _, child := range c.topo.Children() {
		if err := c.sendToken(ctx, child, epoch, barrierRelease); err != nil {
			return err
		}
	}
	return nil
}

// Broadcast distributes the root's flattened list down the tree and
// returns it on every rank. Every hop revalidates the frame against the
// set limit and its digest before forwarding.
func (c *Comm) Broadcast(ctx context.Context, list []search.ScoredMask) ([]search.ScoredMask, error) {
	var frame []byte
	if c.topo.IsRoot() {
		if len(list) > c.limit {
			return nil, fmt.Errorf("%w: broadcasting %d entries over limit %d", ErrFrameTooLarge, len(list), c.limit)
		}
		frame = EncodeFrame(list)
	} else {
		from, payload, err := c.tr.Recv(ctx, KindBroadcast)
		if err != nil {
			return nil, err
		}
		metrics.RecordFrameReceived(KindBroadcast.String())
		decoded, err := DecodeFrame(payload, c.limit)
		if err != nil {
			metrics.RecordProtocolViolation()
			return nil, fmt.Errorf("broadcast frame from rank %d: %w", from, err)
		}
		list, frame = decoded, payload
	}

	for _, child := range c.topo.Children() {
		if err := c.tr.Send(ctx, child, KindBroadcast, frame); err != nil {
			return nil, fmt.Errorf("broadcast to rank %d: %w", child, err)
		}
		metrics.RecordFrameSent(KindBroadcast.String())
	}
	return list, nil
}

// Reduce merges each child's flattened partial result into collect, then
// on non-root ranks flattens the merge and ships it to the parent,
// leaving the local collector empty. On the root the merged collector is
// left in place for finalization.
func (c *Comm) Reduce(ctx context.Context, collect *search.Collector) error {
	for range c.topo.Children() {
		from, payload, err := c.tr.Recv(ctx, KindReduce)
		if err != nil {
			return err
		}
		metrics.RecordFrameReceived(KindReduce.String())
		list, err := DecodeFrame(payload, c.limit)
		if err != nil {
			metrics.RecordProtocolViolation()
			return fmt.Errorf("reduce frame from rank %d: %w", from, err)
		}
		c.log.Debug("Merging child result", "from", from, "masks", len(list))
		for _, sm := range list {
			collect.Add(sm.Mask, sm.ELP)
		}
	}

	if c.topo.IsRoot() {
		return nil
	}
	parent := c.topo.Parent()
	if err := c.tr.Send(ctx, parent, KindReduce, EncodeFrame(collect.Flatten())); err != nil {
		return fmt.Errorf("reduce to rank %d: %w", parent, err)
	}
	metrics.RecordFrameSent(KindReduce.String())
	return nil
}

func (c *Comm) sendToken(ctx context.Context, to int, epoch uint64, phase byte) error {
	token := binary.BigEndian.AppendUint64(make([]byte, 0, barrierTokenSize), epoch)
	token = append(token, phase)
	if err := c.tr.Send(ctx, to, KindBarrier, token); err != nil {
		return err
	}
	metrics.RecordFrameSent(KindBarrier.String())
	return nil
}

func (c *Comm) recvToken(ctx context.Context, epoch uint64, phase byte) error {
	from, payload, err := c.tr.Recv(ctx, KindBarrier)
	if err != nil {
		return err
	}
	metrics.RecordFrameReceived(KindBarrier.String())
	if len(payload) != barrierTokenSize || payload[8] != phase {
		metrics.RecordProtocolViolation()
		return fmt.Errorf("malformed barrier token from rank %d", from)
	}
	if got := binary.BigEndian.Uint64(payload[:8]); got != epoch {
		metrics.RecordProtocolViolation()
		return fmt.Errorf("%w: rank %d is at round %d, expected %d", ErrRoundMismatch, from, got, epoch)
	}
	return nil
}
