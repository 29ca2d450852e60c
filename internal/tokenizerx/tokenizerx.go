// Package tokenizerx wraps sugarme/tokenizer the way the teacher's
// AutoTokenizer did, but loads tokenizer.json from a local model
// directory (populated by internal/modelhub) instead of always reaching
// out to the Hub, and exposes a Pool so internal/worker can load each
// model's tokenizer once and reuse it across requests.
package tokenizerx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer is a loaded BPE tokenizer for one model.
type Tokenizer struct {
	tok *tokenizer.Tokenizer
}

// Load reads tokenizer.json (and its sanitized copy) from modelDir.
func Load(modelDir string) (*Tokenizer, error) {
	origPath := filepath.Join(modelDir, "tokenizer.json")
	if _, err := os.Stat(origPath); err != nil {
		return nil, fmt.Errorf("tokenizerx: %w", err)
	}

	sanitizedPath, err := sanitizeTokenizerJSON(origPath)
	if err != nil {
		return nil, fmt.Errorf("tokenizerx: sanitize: %w", err)
	}

	tok, err := pretrained.FromFile(sanitizedPath)
	if err != nil {
		return nil, fmt.Errorf("tokenizerx: load: %w", err)
	}
	return &Tokenizer{tok: tok}, nil
}

// Encode turns text into token ids.
func (t *Tokenizer) Encode(text string, addSpecialTokens bool) ([]int64, error) {
	enc, err := t.tok.EncodeSingle(text, addSpecialTokens)
	if err != nil {
		return nil, fmt.Errorf("tokenizerx: encode: %w", err)
	}
	out := make([]int64, len(enc.Ids))
	for i, v := range enc.Ids {
		out[i] = int64(v)
	}
	return out, nil
}

// Decode turns token ids back into text.
func (t *Tokenizer) Decode(ids []int64) string {
	uids := make([]int, len(ids))
	for i, v := range ids {
		uids[i] = int(v)
	}
	return t.tok.Decode(uids, true)
}

// DecodeToken decodes a single token id, used by internal/callback to
// render each streamed token as it arrives.
func (t *Tokenizer) DecodeToken(id uint32) (string, error) {
	return t.tok.Decode([]int{int(id)}, true), nil
}

// VocabSize reports the tokenizer's vocabulary size.
func (t *Tokenizer) VocabSize() int {
	return t.tok.GetVocabSize(true)
}

// Pool loads and caches one Tokenizer per model directory so repeated
// requests against the same model reuse the parsed vocabulary
// (spec Design Notes: "tokenizers are expensive to parse; amortize across
// requests for the same model").
type Pool struct {
	mu    sync.Mutex
	byDir map[string]*Tokenizer
}

// NewPool constructs an empty tokenizer pool.
func NewPool() *Pool {
	return &Pool{byDir: make(map[string]*Tokenizer)}
}

// Get returns the cached Tokenizer for modelDir, loading it on first use.
func (p *Pool) Get(modelDir string) (*Tokenizer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.byDir[modelDir]; ok {
		return t, nil
	}
	t, err := Load(modelDir)
	if err != nil {
		return nil, err
	}
	p.byDir[modelDir] = t
	return t, nil
}

// sanitizeTokenizerJSON rewrites unsupported regex patterns (Go's RE2
// engine has no negative lookahead) into an equivalent the sugarme parser
// accepts, writing the result alongside the original (adapted from the
// teacher's tokenizer.go:sanitizeTokenizerJSON).
func sanitizeTokenizerJSON(origPath string) (string, error) {
	raw, err := os.ReadFile(origPath)
	if err != nil {
		return "", err
	}

	content := string(raw)
	content = strings.ReplaceAll(content, `\s+(?!\S)`, `\s+`)
	content = strings.ReplaceAll(content, `\\s+(?!\\S)`, `\\s+`)

	dir := filepath.Dir(origPath)
	sanitizedPath := filepath.Join(dir, "tokenizer_sanitized.json")
	if err := os.WriteFile(sanitizedPath, []byte(content), 0o644); err != nil {
		return "", err
	}
	return sanitizedPath, nil
}
