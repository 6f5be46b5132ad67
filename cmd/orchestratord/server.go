package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowkit-ai/graphrunner/graph"
	"github.com/flowkit-ai/graphrunner/registry"
)

// server wires the registry's start/subscribe/cancel surface onto the
// run-submission protocol's three HTTP endpoints (spec.md §6).
type server struct {
	reg     *registry.Registry
	metrics *graph.Metrics
	log     *slog.Logger
}

func newServer(reg *registry.Registry, metrics *graph.Metrics, log *slog.Logger) *server {
	return &server{reg: reg, metrics: metrics, log: log}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", s.handleStartRun)
	mux.HandleFunc("GET /runs/{runId}/events", s.handleSubscribe)
	mux.HandleFunc("POST /runs/{runId}/cancel", s.handleCancel)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type startRunRequest struct {
	Graph json.RawMessage `json:"graph"`
	Input struct {
		Text string         `json:"text"`
		JSON any            `json:"json,omitempty"`
		Meta map[string]any `json:"meta,omitempty"`
	} `json:"input"`
}

type startRunResponse struct {
	RunID string `json:"runId"`
}

// handleStartRun parses a submitted graph document and its initial input,
// builds a Graph, and starts it in the background, returning the minted
// run ID. The client then attaches to /runs/{runId}/events to watch it.
func (s *server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	var req startRunRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	g, err := graph.ParseGraph(req.Graph)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := graph.NodePayload{Text: req.Input.Text, JSON: req.Input.JSON, Meta: req.Input.Meta}
	runID := s.reg.Start(context.Background(), g, input, graph.WithMetrics(s.metrics))

	s.log.Info("run started", "runId", runID, "graphId", g.ID)
	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: runID})
}

// handleSubscribe streams runId's event log as server-sent events. Per the
// run-submission protocol, the first frame is a synthetic "connected" event
// so the client can distinguish "attached, stream empty so far" from
// "never attached".
func (s *server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	events, unsubscribe, err := s.reg.Subscribe(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	defer unsubscribe()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "data: %s\n\n", mustJSON(map[string]string{"type": "connected", "runId": runID}))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", mustJSON(ev))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// handleCancel requests cooperative cancellation of runId. It is idempotent:
// cancelling an already-terminated run simply has no further effect.
func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")
	if err := s.reg.Cancel(runID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Info("run cancel requested", "runId", runID)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"runError","error":"encode failure"}`)
	}
	return data
}
