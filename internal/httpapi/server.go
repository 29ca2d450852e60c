// Package httpapi implements the gateway's wire surface: POST /infer and
// GET /logs (spec §4.7 "HTTP Surface + SSE Fan-out"). Routing uses the
// standard library's net/http.ServeMux; no example repo in the pack wires
// a third-party HTTP framework for a surface this small, so stdlib is the
// grounded choice here (see DESIGN.md).
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/scriptmaster/wasinn-gateway/internal/imagepipeline"
	"github.com/scriptmaster/wasinn-gateway/internal/logx"
	"github.com/scriptmaster/wasinn-gateway/internal/session"
	"github.com/scriptmaster/wasinn-gateway/internal/worker"
)

// submitter is the subset of *worker.Worker the HTTP layer depends on; it
// exists so tests can substitute a fake worker without spinning up a real
// sandbox.Engine.
type submitter interface {
	Submit(ctx context.Context, req worker.Request) (worker.Result, error)
}

// Server wires the /infer and /logs handlers to a Worker.
type Server struct {
	worker      submitter
	broadcaster *Broadcaster
	mux         *http.ServeMux
}

// NewServer constructs a Server backed by w, broadcasting token events and
// the [TEXT_DONE] marker through b.
func NewServer(w submitter, b *Broadcaster) *Server {
	s := &Server{worker: w, broadcaster: b, mux: http.NewServeMux()}
	s.mux.HandleFunc("/infer", s.handleInfer)
	s.mux.HandleFunc("/logs", s.handleLogs)
	s.mux.HandleFunc("/", s.handleCORSPreflight)
	return s
}

// ServeHTTP makes Server an http.Handler, wrapping every response in
// permissive CORS headers (spec §4.7: "OPTIONS * -> 200 with permissive
// CORS").
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleCORSPreflight(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}

// inferRequest is the wire shape of POST /infer's body (spec §6
// "Wire — HTTP").
type inferRequest struct {
	Model  string `json:"model"`
	Image  string `json:"image,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	// MaxTokens is a pointer so an absent field (nil) is distinguishable
	// from an explicit 0 (spec §8: "max_token = 0 -> no iterations;
	// terminal response only").
	MaxTokens *int `json:"max_tokens,omitempty"`
}

type imageResponse struct {
	Label       uint32  `json:"label"`
	Probability float32 `json:"probability"`
}

type textResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, invalidRequest("POST /infer only"))
		return
	}

	var body inferRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, invalidRequest("malformed JSON body"))
		return
	}
	if body.Model == "" {
		writeAPIError(w, invalidRequest("\"model\" is required"))
		return
	}

	reqID := uuid.NewString()

	switch {
	case body.Image != "":
		s.serveImage(r.Context(), w, reqID, body)
	case body.Prompt != "":
		s.serveText(r.Context(), w, reqID, body)
	default:
		writeAPIError(w, invalidRequest("request must set either \"image\" or \"prompt\""))
	}
}

func (s *Server) serveImage(ctx context.Context, w http.ResponseWriter, reqID string, body inferRequest) {
	jpegBytes, err := base64.StdEncoding.DecodeString(body.Image)
	if err != nil {
		writeAPIError(w, invalidImage("\"image\" is not valid base64", err))
		return
	}

	result, err := s.worker.Submit(ctx, worker.Request{
		ID: reqID,
		Image: &worker.ImageRequest{
			RegistryID: body.Model,
			JPEGBytes:  jpegBytes,
		},
	})
	if err != nil {
		writeAPIError(w, classifyWorkerError(err))
		return
	}

	writeJSON(w, http.StatusOK, imageResponse{
		Label:       result.Image.Label,
		Probability: result.Image.Probability,
	})
}

func (s *Server) serveText(ctx context.Context, w http.ResponseWriter, reqID string, body inferRequest) {
	sink := session.NewSink()
	ch, unsub := sink.Subscribe(logBroadcastCapacity)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for tok := range ch {
			s.broadcaster.Broadcast(fmt.Sprintf("[TEXT_TOKEN]%s", tok))
		}
	}()

	result, err := s.worker.Submit(ctx, worker.Request{
		ID: reqID,
		Text: &worker.TextRequest{
			RegistryID: body.Model,
			Messages:   []worker.ChatMessage{{Role: "user", Content: body.Prompt}},
			MaxToken:   body.MaxTokens,
			Sink:       sink,
		},
	})
	unsub() // closes ch, letting the forwarding goroutine above drain and exit
	<-done
	s.broadcaster.Broadcast("[TEXT_DONE]")

	if err != nil {
		writeAPIError(w, classifyWorkerError(err))
		return
	}

	text := result.Text.Completion
	if text == "" {
		text = "Inference completed"
	}
	writeJSON(w, http.StatusOK, textResponse{Text: text})
}

// handleLogs streams the broadcast channel as SSE frames (spec §6
// "Wire — SSE").
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, inferenceFailed("streaming unsupported", nil))
		return
	}

	ch, unsub := s.broadcaster.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func classifyWorkerError(err error) *APIError {
	if errors.Is(err, imagepipeline.ErrInvalidImage) {
		return invalidImage("image could not be decoded", err)
	}
	return inferenceFailed("inference failed", err)
}

func writeAPIError(w http.ResponseWriter, apiErr *APIError) {
	writeJSON(w, apiErr.Status(), errorResponse{Error: string(apiErr.Kind), Message: apiErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logx.Errorf("httpapi: encode response: %v", err)
	}
}
