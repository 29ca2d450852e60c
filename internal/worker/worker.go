package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/scriptmaster/wasinn-gateway/internal/chatformat"
	"github.com/scriptmaster/wasinn-gateway/internal/imagepipeline"
	"github.com/scriptmaster/wasinn-gateway/internal/modelhub"
	"github.com/scriptmaster/wasinn-gateway/internal/nnsi"
	"github.com/scriptmaster/wasinn-gateway/internal/registry"
	"github.com/scriptmaster/wasinn-gateway/internal/sandbox"
	"github.com/scriptmaster/wasinn-gateway/internal/session"
	"github.com/scriptmaster/wasinn-gateway/internal/tokenizerx"
)

// textSessionID is the fixed session_id every text Store uses. Each
// sandbox.Store drives exactly one chat completion, so there is never a
// second session competing for the slot (spec §4.4 "Registration").
const textSessionID = uint64(1)

// Worker runs each Request on the submitting goroutine, driving one
// sandbox.Store end-to-end, with at most PoolSize requests in flight at
// once (a semaphore, not a request queue). Callers waiting for a free slot
// are not served in a guaranteed FIFO order.
type Worker struct {
	engine     *sandbox.Engine
	registry   *registry.Registry
	tokenizers *tokenizerx.Pool
	templates  map[string]*chatformat.Renderer

	sem             chan struct{}
	requestTimeout  time.Duration
	maxTokenCeiling int
	defaultMaxToken int
}

// Config bundles the tunables internal/config loads from viper.
type Config struct {
	PoolSize        int
	RequestTimeout  time.Duration
	MaxTokenCeiling int
	DefaultMaxToken int
}

// New constructs a Worker. engine and reg must already have their guests
// loaded and models registered, respectively.
func New(engine *sandbox.Engine, reg *registry.Registry, cfg Config) *Worker {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.MaxTokenCeiling <= 0 {
		cfg.MaxTokenCeiling = 512
	}
	if cfg.DefaultMaxToken <= 0 {
		cfg.DefaultMaxToken = 64
	}
	return &Worker{
		engine:          engine,
		registry:        reg,
		tokenizers:      tokenizerx.NewPool(),
		templates:       make(map[string]*chatformat.Renderer),
		sem:             make(chan struct{}, cfg.PoolSize),
		requestTimeout:  cfg.RequestTimeout,
		maxTokenCeiling: cfg.MaxTokenCeiling,
		defaultMaxToken: cfg.DefaultMaxToken,
	}
}

// resolveMaxToken applies spec §8's max_token boundary rule: an absent
// value (nil) falls back to the configured default; an explicit value is
// clamped to the ceiling but never bumped up, so an explicit 0 stays 0
// ("no iterations; terminal response only") instead of being treated the
// same as "absent".
func (w *Worker) resolveMaxToken(requested *int) int {
	if requested == nil {
		return w.defaultMaxToken
	}
	if *requested <= 0 {
		return 0
	}
	if *requested > w.maxTokenCeiling {
		return w.maxTokenCeiling
	}
	return *requested
}

// Submit blocks until a pool slot is free, then runs req to completion or
// until ctx (optionally bounded further by the configured request timeout)
// is done.
func (w *Worker) Submit(ctx context.Context, req Request) (Result, error) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-w.sem }()

	if w.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.requestTimeout)
		defer cancel()
	}

	switch {
	case req.Image != nil:
		res, err := w.runImage(ctx, req.Image)
		if err != nil {
			return Result{}, err
		}
		return Result{Image: res}, nil
	case req.Text != nil:
		res, err := w.runText(ctx, req.Text)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: res}, nil
	default:
		return Result{}, fmt.Errorf("worker: request %q carries neither image nor text payload", req.ID)
	}
}

func (w *Worker) runImage(ctx context.Context, req *ImageRequest) (*ImageResult, error) {
	graph, ok := w.registry.Get(req.RegistryID)
	if !ok {
		return nil, fmt.Errorf("worker: unknown model %q", req.RegistryID)
	}
	kind, ok := graph.Kind().(registry.ImageNetKind)
	if !ok {
		return nil, fmt.Errorf("worker: model %q is not an image classifier", req.RegistryID)
	}

	data, dims, err := imagepipeline.Preprocess(req.JPEGBytes, kind.Normalization)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	store, err := w.engine.NewStore(ctx, sandbox.GuestImage, modelhub.Dir(req.RegistryID), noopDecode)
	if err != nil {
		return nil, fmt.Errorf("worker: open sandbox: %w", err)
	}
	defer store.Close(ctx)

	// The guest resolves its own Graph handle via load_by_name and reads
	// its own output tensor via get_output, so it needs the registry id
	// and the model-family output tag the host already knows (spec §4.4
	// "Registration": "the guest resolves the Graph by config.model_id").
	modelIDPtr, err := store.WriteBytes(ctx, []byte(req.RegistryID))
	if err != nil {
		return nil, fmt.Errorf("worker: stage model id: %w", err)
	}
	outputTagPtr, err := store.WriteBytes(ctx, []byte(kind.OutputTag))
	if err != nil {
		return nil, fmt.Errorf("worker: stage output tag: %w", err)
	}
	dataPtr, err := store.WriteBytes(ctx, nnsi.EncodeFloat32s(data))
	if err != nil {
		return nil, fmt.Errorf("worker: stage image tensor: %w", err)
	}

	results, err := store.CallExport(ctx, "classify_image",
		uint64(modelIDPtr), uint64(len(req.RegistryID)),
		uint64(outputTagPtr), uint64(len(kind.OutputTag)), uint64(kind.Layout),
		uint64(dataPtr), uint64(len(data)*4), uint64(dims[2]), uint64(dims[3]))
	if err != nil {
		return nil, fmt.Errorf("worker: classify_image: %w", err)
	}
	if results[0] == 0 {
		return nil, fmt.Errorf("worker: guest reported classification failure for %q", req.RegistryID)
	}

	packed, err := readGuestResult(ctx, store, "classify_result_size", "classify_result_read")
	if err != nil {
		return nil, fmt.Errorf("worker: read classify result: %w", err)
	}
	return decodeImageResult(packed, kind.OutputTag)
}

func (w *Worker) runText(ctx context.Context, req *TextRequest) (*TextResult, error) {
	graph, ok := w.registry.Get(req.RegistryID)
	if !ok {
		return nil, fmt.Errorf("worker: unknown model %q", req.RegistryID)
	}
	kind, ok := graph.Kind().(registry.TextModelKind)
	if !ok {
		return nil, fmt.Errorf("worker: model %q is not a text model", req.RegistryID)
	}

	modelDir := modelhub.Dir(req.RegistryID)
	tok, err := w.tokenizers.Get(modelDir)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	renderer, err := w.template(modelDir)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	messages := make([]chatformat.ChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatformat.ChatMessage{Role: chatformat.MessageRole(m.Role), Content: m.Content}
	}
	prompt, err := renderer.Render(messages)
	if err != nil {
		return nil, fmt.Errorf("worker: render chat template: %w", err)
	}
	inputIDs, err := tok.Encode(prompt, true)
	if err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}

	maxToken := w.resolveMaxToken(req.MaxToken)
	if maxToken > 0 && kind.SeqLenCeiling > 0 {
		if room := kind.SeqLenCeiling - len(inputIDs); room < maxToken {
			maxToken = room
		}
		if maxToken <= 0 {
			return nil, fmt.Errorf("worker: prompt for %q already exceeds its sequence length ceiling", req.RegistryID)
		}
	}

	var produced []int64
	decode := func(modelID string, token uint32) (string, error) {
		produced = append(produced, int64(token))
		return tok.DecodeToken(token)
	}

	store, err := w.engine.NewStore(ctx, sandbox.GuestChat, modelDir, decode)
	if err != nil {
		return nil, fmt.Errorf("worker: open sandbox: %w", err)
	}
	defer store.Close(ctx)

	sink := req.Sink
	if sink == nil {
		sink = session.NewSink()
	}
	store.Arena().Register(textSessionID, session.Config{
		ModelID:  req.RegistryID,
		MaxToken: maxToken,
	}, sink)
	defer sink.Close()

	modelIDPtr, err := store.WriteBytes(ctx, []byte(req.RegistryID))
	if err != nil {
		return nil, fmt.Errorf("worker: stage model id: %w", err)
	}
	idBytes := nnsi.EncodeInt64s(inputIDs)
	inputPtr, err := store.WriteBytes(ctx, idBytes)
	if err != nil {
		return nil, fmt.Errorf("worker: stage input ids: %w", err)
	}

	results, err := store.CallExport(ctx, "infer_text",
		textSessionID, uint64(modelIDPtr), uint64(len(req.RegistryID)),
		uint64(inputPtr), uint64(len(inputIDs)), uint64(maxToken))
	if err != nil {
		return nil, fmt.Errorf("worker: infer_text: %w", err)
	}
	stopReason := stopReasonFromStatus(uint32(results[0]))

	packed, err := readGuestResult(ctx, store, "completion_size", "completion_read")
	if err != nil {
		return nil, fmt.Errorf("worker: read completion: %w", err)
	}

	return &TextResult{
		Completion: string(packed),
		TokenCount: len(produced),
		StopReason: stopReason,
	}, nil
}

func (w *Worker) template(modelDir string) (*chatformat.Renderer, error) {
	if r, ok := w.templates[modelDir]; ok {
		return r, nil
	}
	r, err := chatformat.Load(modelDir)
	if err != nil {
		return nil, err
	}
	w.templates[modelDir] = r
	return r, nil
}

func noopDecode(modelID string, token uint32) (string, error) {
	return "", nil
}

func stopReasonFromStatus(status uint32) string {
	switch status {
	case 2:
		return "eos"
	case 3:
		return "max_token"
	case 4:
		return "host_stop"
	default:
		return "eos"
	}
}

// readGuestResult follows the same two-call size/read protocol internal/nnsi
// uses for output tensors: call sizeExport to learn the buffer length, then
// readExport to copy it out of guest memory.
func readGuestResult(ctx context.Context, store *sandbox.Store, sizeExport, readExport string) ([]byte, error) {
	sizeResults, err := store.CallExport(ctx, sizeExport)
	if err != nil {
		return nil, err
	}
	length := uint32(sizeResults[0])
	if length == 0 {
		return nil, nil
	}

	destPtr, err := store.WriteBytes(ctx, make([]byte, length))
	if err != nil {
		return nil, err
	}
	statusResults, err := store.CallExport(ctx, readExport, uint64(destPtr), uint64(length))
	if err != nil {
		return nil, err
	}
	if statusResults[0] == 0 {
		return nil, fmt.Errorf("guest %q reported failure", readExport)
	}
	data, ok := store.ReadBytes(destPtr, length)
	if !ok {
		return nil, fmt.Errorf("guest result out of bounds")
	}
	return data, nil
}
