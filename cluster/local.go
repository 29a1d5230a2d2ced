package cluster

import (
	"context"
	"fmt"
)

type envelope struct {
	from    int
	payload []byte
}

// LocalWorld connects all ranks of one process through rendezvous
// channels, one per destination rank and kind. It backs the
// single-binary search mode and the cluster tests.
type LocalWorld struct {
	queues [][]chan envelope
}

// NewLocalWorld builds the fabric for world ranks.
func NewLocalWorld(world int) *LocalWorld {
	queues := make([][]chan envelope, world)
	for rank := range queues {
		queues[rank] = make([]chan envelope, kindCount)
		for k := range queues[rank] {
			queues[rank][k] = make(chan envelope)
		}
	}
	return &LocalWorld{queues: queues}
}

// Size returns the world size.
func (w *LocalWorld) Size() int {
	return len(w.queues)
}

// Rank returns the transport endpoint of one rank.
func (w *LocalWorld) Rank(rank int) Transport {
	return &localTransport{world: w, rank: rank}
}

type localTransport struct {
	world *LocalWorld
	rank  int
}

func (t *localTransport) Send(ctx context.Context, to int, kind Kind, payload []byte) error {
	if to < 0 || to >= len(t.world.queues) {
		return fmt.Errorf("send to unknown rank %d", to)
	}
	select {
	case t.world.queues[to][kindIndex(kind)] <- envelope{from: t.rank, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *localTransport) Recv(ctx context.Context, kind Kind) (int, []byte, error) {
	select {
	case env := <-t.world.queues[t.rank][kindIndex(kind)]:
		return env.from, env.payload, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (t *localTransport) Close() error {
	return nil
}
