package cluster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/psve/cryptagraph/search"
	"github.com/psve/cryptagraph/testutil"
)

// startHTTPWorld boots world HTTP transports behind httptest servers and
// fills in the shared peer table.
func startHTTPWorld(t *testing.T, world, fanout, limit int) []*HTTPTransport {
	t.Helper()

	peers := make([]string, world)
	transports := make([]*HTTPTransport, world)
	for rank := 0; rank < world; rank++ {
		tr, err := NewHTTPTransport(&HTTPTransportConfig{
			Topology: Topology{Rank: rank, World: world, Fanout: fanout},
			Peers:    peers,
			Limit:    limit,
			Log:      testutil.DiscardLogger(),
		})
		require.NoError(t, err)
		transports[rank] = tr
		t.Cleanup(func() { tr.Close() })

		router := chi.NewRouter()
		router.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		tr.RegisterRoutes(router)

		srv := httptest.NewServer(router)
		t.Cleanup(srv.Close)
		peers[rank] = srv.URL
	}
	return transports
}

func TestHTTPTransportSendRecv(t *testing.T) {
	transports := startHTTPWorld(t, 2, 2, 16)
	ctx := context.Background()

	payload := EncodeFrame([]search.ScoredMask{{Mask: 0xbeef, ELP: 0.5}})
	g := new(errgroup.Group)
	g.Go(func() error {
		return transports[0].Send(ctx, 1, KindReduce, payload)
	})

	from, got, err := transports[1].Recv(ctx, KindReduce)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.Equal(t, payload, got)
	require.NoError(t, g.Wait())

	// And the other way around.
	g.Go(func() error {
		return transports[1].Send(ctx, 0, KindBroadcast, payload)
	})
	from, got, err = transports[0].Recv(ctx, KindBroadcast)
	require.NoError(t, err)
	assert.Equal(t, 1, from)
	assert.Equal(t, payload, got)
	require.NoError(t, g.Wait())
}

func TestHTTPTransportSendBlocksUntilConsumed(t *testing.T) {
	transports := startHTTPWorld(t, 2, 2, 16)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = transports[0].Send(ctx, 1, KindReduce, EncodeFrame(nil))
	}()

	select {
	case <-done:
		t.Fatal("send returned before the peer consumed the frame")
	case <-time.After(100 * time.Millisecond):
	}

	_, _, err := transports[1].Recv(ctx, KindReduce)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHTTPTransportCollectives(t *testing.T) {
	const world = 3
	transports := startHTTPWorld(t, world, 2, 16)
	fixture := []search.ScoredMask{{Mask: 0x5, ELP: 0.25}, {Mask: 0xf, ELP: 0.75}}

	g := new(errgroup.Group)
	results := make([][]search.ScoredMask, world)
	for rank := 0; rank < world; rank++ {
		comm := NewComm(Topology{Rank: rank, World: world, Fanout: 2}, transports[rank], 16, testutil.DiscardLogger())
		g.Go(func() error {
			ctx := context.Background()
			if err := comm.Barrier(ctx, 1); err != nil {
				return err
			}
			var in []search.ScoredMask
			if rank == Root {
				in = fixture
			}
			out, err := comm.Broadcast(ctx, in)
			results[rank] = out
			return err
		})
	}
	require.NoError(t, g.Wait())

	for rank := 0; rank < world; rank++ {
		assert.Equal(t, fixture, results[rank], "rank %d", rank)
	}
}

func TestHTTPTransportRejectsOversizedFrame(t *testing.T) {
	transports := startHTTPWorld(t, 2, 2, 1)

	big := EncodeFrame([]search.ScoredMask{
		{Mask: 1, ELP: 1}, {Mask: 2, ELP: 1}, {Mask: 3, ELP: 1},
	})
	err := transports[0].Send(context.Background(), 1, KindReduce, big)
	require.ErrorContains(t, err, "refused")
}

func TestHTTPTransportRejectsBadRequests(t *testing.T) {
	transports := startHTTPWorld(t, 2, 2, 16)
	base := transports[0].cfg.Peers[1]

	// Unknown frame kind.
	req, err := http.NewRequest(http.MethodPost, base+"/v1/frame/gossip", nil)
	require.NoError(t, err)
	req.Header.Set(rankHeader, "0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing sender rank.
	resp, err = http.Post(base+"/v1/frame/reduce", "application/octet-stream", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Sender rank outside the world.
	req, err = http.NewRequest(http.MethodPost, base+"/v1/frame/reduce", nil)
	require.NoError(t, err)
	req.Header.Set(rankHeader, "7")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPTransportWaitReady(t *testing.T) {
	transports := startHTTPWorld(t, 2, 2, 16)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, transports[0].WaitReady(ctx))
	require.NoError(t, transports[1].WaitReady(ctx))
}

func TestHTTPTransportWaitReadyTimesOut(t *testing.T) {
	peers := []string{"http://127.0.0.1:1"}
	tr, err := NewHTTPTransport(&HTTPTransportConfig{
		Topology: Topology{Rank: 0, World: 1, Fanout: 2},
		Peers:    peers,
		Limit:    16,
		Log:      testutil.DiscardLogger(),
	})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, tr.WaitReady(ctx), context.DeadlineExceeded)
}

func TestHTTPTransportClose(t *testing.T) {
	transports := startHTTPWorld(t, 2, 2, 16)

	errCh := make(chan error, 1)
	go func() {
		_, _, err := transports[0].Recv(context.Background(), KindBarrier)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, transports[0].Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Recv did not unblock on Close")
	}
}
