package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/psve/cryptagraph/cluster"
)

// NodeHandler exposes a read-only view of a running search node. These
// endpoints serve dashboards and operators, not peers: frame exchange
// between ranks goes through cluster.HTTPTransport on its own routes.
type NodeHandler struct {
	Node *cluster.Node
}

func NewNodeHandler(node *cluster.Node) *NodeHandler {
	return &NodeHandler{Node: node}
}

func (h *NodeHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Get("/api/v1/status", h.handleStatus)
		r.Get("/api/v1/result", h.handleResult)
	})
}

func (h *NodeHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Node.Status())
}

type resultEntry struct {
	Mask string  `json:"mask"`
	ELP  float64 `json:"elp"`
}

type resultResponse struct {
	Done  bool          `json:"done"`
	Count int           `json:"count"`
	Masks []resultEntry `json:"masks"`
}

// handleResult returns the best masks of the finished search, strongest
// first. The list is empty until the final round has been reduced.
func (h *NodeHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, fmt.Sprintf("Invalid limit: %q", v), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	masks := h.Node.Result()
	// Result is ordered weakest first; keep the tail and flip it.
	if len(masks) > limit {
		masks = masks[len(masks)-limit:]
	}
	for i, j := 0, len(masks)-1; i < j; i, j = i+1, j-1 {
		masks[i], masks[j] = masks[j], masks[i]
	}

	resp := resultResponse{
		Done:  h.Node.Status().Done,
		Count: len(masks),
		Masks: make([]resultEntry, 0, len(masks)),
	}
	for _, m := range masks {
		resp.Masks = append(resp.Masks, resultEntry{
			Mask: fmt.Sprintf("%016x", m.Mask),
			ELP:  m.ELP,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
