// Package dialog is a local stand-in for the external dialogue runtime. It
// supplies reply templates, maps typed phrases to transition events and
// drives follow-ups for front-ends that have no runtime of their own.
package dialog

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/blurt/internal/conversation"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is the template for one transition.
type Prompt struct {
	Speech      string `yaml:"speech"`
	DisplayText string `yaml:"display_text,omitempty"`
}

// Catalog holds the templates and trigger phrases per event.
type Catalog struct {
	Prompts    map[string]Prompt   `yaml:"prompts"`
	Utterances map[string][]string `yaml:"utterances"`

	phrases map[string]string
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("built-in prompt catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalog, rejecting unknown fields and event names outside
// the transition catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}

	known := map[string]bool{}
	for _, t := range conversation.Catalog() {
		known[t.Event] = true
	}
	for _, event := range sortedKeys(c.Prompts) {
		if !known[event] {
			return nil, fmt.Errorf("prompt for unknown event %q", event)
		}
	}

	c.phrases = map[string]string{}
	for _, event := range sortedKeys(c.Utterances) {
		if !known[event] {
			return nil, fmt.Errorf("utterances for unknown event %q", event)
		}
		for _, p := range c.Utterances[event] {
			key := normalise(p)
			if prev, dup := c.phrases[key]; dup && prev != event {
				return nil, fmt.Errorf("phrase %q bound to both %s and %s", p, prev, event)
			}
			c.phrases[key] = event
		}
	}
	return &c, nil
}

// Template returns the reply template for event. A missing prompt yields an
// empty template.
func (c *Catalog) Template(event string) conversation.Reply {
	p := c.Prompts[event]
	return conversation.Reply{Speech: p.Speech, DisplayText: p.DisplayText}
}

// Match maps typed text to an event.
func (c *Catalog) Match(text string) (string, bool) {
	event, ok := c.phrases[normalise(text)]
	return event, ok
}

func normalise(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?")
	return strings.Join(strings.Fields(s), " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
