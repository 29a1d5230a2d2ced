package cluster

import (
	"context"
	"fmt"
)

// Kind separates the collective message streams multiplexed over one
// transport.
type Kind uint8

const (
	KindReduce Kind = iota + 1
	KindBarrier
	KindBroadcast

	kindCount = 3
)

func (k Kind) String() string {
	switch k {
	case KindReduce:
		return "reduce"
	case KindBarrier:
		return "barrier"
	case KindBroadcast:
		return "broadcast"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind resolves a wire name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "reduce":
		return KindReduce, nil
	case "barrier":
		return KindBarrier, nil
	case "broadcast":
		return KindBroadcast, nil
	}
	return 0, fmt.Errorf("unknown frame kind %q", s)
}

func kindIndex(k Kind) int {
	return int(k) - 1
}

// Transport moves opaque frames between ranks. Sends block until the
// destination rank has consumed the frame; Recv blocks for the next
// frame of one kind from any peer. Frames from a single peer arrive in
// send order per kind. Collective progress carries no timeouts, only
// context cancellation unblocks a stalled call.
type Transport interface {
	Send(ctx context.Context, to int, kind Kind, payload []byte) error
	Recv(ctx context.Context, kind Kind) (from int, payload []byte, err error)
	Close() error
}
