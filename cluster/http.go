package cluster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/psve/cryptagraph/metrics"
)

// rankHeader carries the sender's rank on every frame post.
const rankHeader = "X-Cryptagraph-Rank"

// readyProbeInterval paces WaitReady's sweeps over the peer list.
const readyProbeInterval = 250 * time.Millisecond

// HTTPTransportConfig wires one rank into an HTTP cluster.
type HTTPTransportConfig struct {
	Topology Topology
	// Peers holds the base URL of every rank, indexed by rank.
	Peers []string
	// Limit bounds the size of any accepted frame.
	Limit int
	Log   *slog.Logger
}

// HTTPTransport runs the collective protocol between nodes over HTTP.
// Frames are posted to /v1/frame/{kind} on the destination node; the
// post does not return until the destination's round loop has consumed
// the frame, which gives Send the blocking semantics the collectives
// rely on. Register the handler on the node's router via RegisterRoutes.
type HTTPTransport struct {
	cfg    *HTTPTransportConfig
	log    *slog.Logger
	client *http.Client

	queues    []chan envelope
	closed    chan struct{}
	closeOnce sync.Once
}

// NewHTTPTransport validates the peer table and returns the transport.
func NewHTTPTransport(cfg *HTTPTransportConfig) (*HTTPTransport, error) {
	if err := cfg.Topology.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Peers) != cfg.Topology.World {
		return nil, fmt.Errorf("%d peers for world of %d", len(cfg.Peers), cfg.Topology.World)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	queues := make([]chan envelope, kindCount)
	for k := range queues {
		queues[k] = make(chan envelope)
	}
	return &HTTPTransport{
		cfg: cfg,
		log: log,
		// No client timeout: a frame post blocks until the peer's round
		// loop consumes it.
		client: &http.Client{},
		queues: queues,
		closed: make(chan struct{}),
	}, nil
}

// RegisterRoutes mounts the frame endpoint on the node's router.
func (t *HTTPTransport) RegisterRoutes(r chi.Router) {
	r.Post("/v1/frame/{kind}", t.handleFrame)
}

func (t *HTTPTransport) handleFrame(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	from, err := strconv.Atoi(r.Header.Get(rankHeader))
	if err != nil || from < 0 || from >= t.cfg.Topology.World || from == t.cfg.Topology.Rank {
		http.Error(w, "bad sender rank", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes(t.cfg.Limit)))
	if err != nil {
		metrics.RecordProtocolViolation()
		t.log.Error("Rejecting oversized frame", "from", from, "kind", kind.String())
		http.Error(w, "frame too large", http.StatusRequestEntityTooLarge)
		return
	}

	select {
	case t.queues[kindIndex(kind)] <- envelope{from: from, payload: body}:
		w.WriteHeader(http.StatusOK)
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
	case <-t.closed:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	}
}

func (t *HTTPTransport) Send(ctx context.Context, to int, kind Kind, payload []byte) error {
	if to < 0 || to >= len(t.cfg.Peers) {
		return fmt.Errorf("send to unknown rank %d", to)
	}
	url := fmt.Sprintf("%s/v1/frame/%s", t.cfg.Peers[to], kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(rankHeader, strconv.Itoa(t.cfg.Topology.Rank))

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s frame to rank %d: %w", kind, to, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("rank %d refused %s frame: %s: %s", to, kind, resp.Status, bytes.TrimSpace(msg))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (t *HTTPTransport) Recv(ctx context.Context, kind Kind) (int, []byte, error) {
	select {
	case env := <-t.queues[kindIndex(kind)]:
		return env.from, env.payload, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-t.closed:
		return 0, nil, fmt.Errorf("transport closed")
	}
}

// WaitReady blocks until every peer answers its liveness probe, so no
// rank starts posting frames into the void during cluster bring-up.
func (t *HTTPTransport) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyProbeInterval)
	defer ticker.Stop()

	for {
		down := t.probePeers(ctx)
		if down == -1 {
			return nil
		}
		t.log.Debug("Waiting for peer", "rank", down, "url", t.cfg.Peers[down])
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// probePeers returns the first unreachable rank, or -1 when all answer.
func (t *HTTPTransport) probePeers(ctx context.Context) int {
	for rank, base := range t.cfg.Peers {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		ok := t.probe(probeCtx, base)
		cancel()
		if !ok {
			return rank
		}
	}
	return -1
}

func (t *HTTPTransport) probe(ctx context.Context, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/livez", nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Close unblocks all pending operations and drops idle connections.
func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	t.client.CloseIdleConnections()
	return nil
}
