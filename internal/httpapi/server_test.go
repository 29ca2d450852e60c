package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scriptmaster/wasinn-gateway/internal/worker"
)

type fakeSubmitter struct {
	submit func(ctx context.Context, req worker.Request) (worker.Result, error)
}

func (f *fakeSubmitter) Submit(ctx context.Context, req worker.Request) (worker.Result, error) {
	return f.submit(ctx, req)
}

func postInfer(t *testing.T, s *Server, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/infer", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// Scenario 1: image happy path (spec §8.1).
func TestServer_ImageHappyPath(t *testing.T) {
	fake := &fakeSubmitter{submit: func(ctx context.Context, req worker.Request) (worker.Result, error) {
		require.NotNil(t, req.Image)
		require.Equal(t, "mobilenet", req.Image.RegistryID)
		return worker.Result{Image: &worker.ImageResult{Label: 207, Probability: 0.91}}, nil
	}}
	s := NewServer(fake, NewBroadcaster())

	rec := postInfer(t, s, map[string]any{
		"model": "mobilenet",
		"image": base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes")),
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp imageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint32(207), resp.Label)
	require.Greater(t, resp.Probability, float32(0.5))
}

// Scenario 2: malformed base64 image (spec §8.2).
func TestServer_ImageMalformedBase64(t *testing.T) {
	fake := &fakeSubmitter{submit: func(ctx context.Context, req worker.Request) (worker.Result, error) {
		t.Fatal("worker should not be invoked for malformed input")
		return worker.Result{}, nil
	}}
	s := NewServer(fake, NewBroadcaster())

	rec := postInfer(t, s, map[string]any{
		"model": "mobilenet",
		"image": "!!!not-base64!!!",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(KindInvalidImage), resp.Error)
}

// Scenario 3: text happy path streams over /logs and returns non-empty
// terminal text (spec §8.3).
func TestServer_TextHappyPathStreamsOverLogs(t *testing.T) {
	fake := &fakeSubmitter{submit: func(ctx context.Context, req worker.Request) (worker.Result, error) {
		require.NotNil(t, req.Text)
		for _, tok := range []string{"Paris", " is", " the", " capital"} {
			req.Text.Sink.Broadcast(tok)
		}
		return worker.Result{Text: &worker.TextResult{Completion: "Paris is the capital", TokenCount: 4, StopReason: "eos"}}, nil
	}}
	broadcaster := NewBroadcaster()
	s := NewServer(fake, broadcaster)

	logsCh, unsub := broadcaster.Subscribe()
	defer unsub()

	rec := postInfer(t, s, map[string]any{
		"model":      "llama3.1-8b-instruct",
		"prompt":     "What is the capital of France?",
		"max_tokens": 8,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp textResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Text)

	var frames []string
	timeout := time.After(time.Second)
drain:
	for {
		select {
		case f := <-logsCh:
			frames = append(frames, f)
			if f == "[TEXT_DONE]" {
				break drain
			}
		case <-timeout:
			break drain
		}
	}
	require.Contains(t, frames, "[TEXT_DONE]")
	sawToken := false
	for _, f := range frames {
		if strings.HasPrefix(f, "[TEXT_TOKEN]") {
			sawToken = true
		}
	}
	require.True(t, sawToken, "expected at least one [TEXT_TOKEN] frame, got %v", frames)
}

// Scenario 5: unknown model surfaces as inference_failed (spec §8.5).
func TestServer_UnknownModelIsInferenceFailed(t *testing.T) {
	fake := &fakeSubmitter{submit: func(ctx context.Context, req worker.Request) (worker.Result, error) {
		return worker.Result{}, errors.New(`unknown model "does-not-exist"`)
	}}
	s := NewServer(fake, NewBroadcaster())

	rec := postInfer(t, s, map[string]any{
		"model":  "does-not-exist",
		"prompt": "hi",
	})

	require.GreaterOrEqual(t, rec.Code, 500)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(KindInferenceFailed), resp.Error)
}

func TestServer_MissingModelIsInvalidRequest(t *testing.T) {
	fake := &fakeSubmitter{submit: func(ctx context.Context, req worker.Request) (worker.Result, error) {
		t.Fatal("worker should not be invoked without a model")
		return worker.Result{}, nil
	}}
	s := NewServer(fake, NewBroadcaster())

	rec := postInfer(t, s, map[string]any{"prompt": "hi"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_OptionsGetsPermissiveCORS(t *testing.T) {
	s := NewServer(&fakeSubmitter{}, NewBroadcaster())
	req := httptest.NewRequest(http.MethodOptions, "/infer", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_LogsSetsSSEHeaders(t *testing.T) {
	s := NewServer(&fakeSubmitter{}, NewBroadcaster())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/logs", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}
