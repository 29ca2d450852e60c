// Package chatformat renders chat messages into the flat prompt text a
// text-generation guest tokenizes and feeds to the model, using the
// model's own chat_template.jinja when the hub directory carries one and
// falling back to a Llama-3-instruct-style template otherwise (adapted
// from the teacher's chat_template_jinja.go, which rendered a different
// model family's default template).
package chatformat

import (
	"fmt"
	"os"
	"path/filepath"

	pongo "github.com/flosch/pongo2/v6"
)

// MessageRole enumerates the roles a ChatMessage may carry.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one turn of a conversation (spec §2 "Text request").
type ChatMessage struct {
	Role    MessageRole
	Content string
}

// Renderer compiles one model directory's chat template once and renders
// any number of conversations against it.
type Renderer struct {
	tpl *pongo.Template
}

// Load reads modelDir/chat_template.jinja if present, otherwise compiles
// the built-in Llama-3-instruct-style default.
func Load(modelDir string) (*Renderer, error) {
	raw := []byte(defaultLlama3Template)
	path := filepath.Join(modelDir, "chat_template.jinja")
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		raw = b
	}

	tpl, err := pongo.FromString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("chatformat: compile template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// Render turns messages into the flat prompt text the tokenizer should
// encode, appending the assistant generation-prompt header.
func (r *Renderer) Render(messages []ChatMessage) (string, error) {
	jmsgs := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		jmsgs = append(jmsgs, map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}
	out, err := r.tpl.Execute(pongo.Context{
		"messages":              jmsgs,
		"add_generation_prompt": true,
	})
	if err != nil {
		return "", fmt.Errorf("chatformat: render: %w", err)
	}
	return out, nil
}

// defaultLlama3Template mirrors the header framing Llama-3-instruct chat
// models expect: <|start_header_id|>role<|end_header_id|> ... <|eot_id|>,
// ending with an open assistant header to cue generation.
const defaultLlama3Template = `<|begin_of_text|>{% for message in messages %}<|start_header_id|>{{ message.role }}<|end_header_id|>

{{ message.content }}<|eot_id|>{% endfor %}{% if add_generation_prompt %}<|start_header_id|>assistant<|end_header_id|>

{% endif %}`
