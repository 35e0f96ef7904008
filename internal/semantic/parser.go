package semantic

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var ErrNoParser = errors.New("no parser registered for file")

// Parser extracts a Model from one file. Implementations must be safe for
// concurrent use.
type Parser interface {
	Language() string
	Extensions() []string
	Capabilities() Capabilities
	Parse(path string, content []byte) (*Model, error)
}

type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]Parser),
	}
}

func (r *Registry) Register(p Parser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ext := range p.Extensions() {
		ext = strings.ToLower(ext)
		if existing, ok := r.parsers[ext]; ok {
			return fmt.Errorf("extension %s already handled by %s parser", ext, existing.Language())
		}
		r.parsers[ext] = p
	}
	return nil
}

func (r *Registry) ForPath(path string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

func (r *Registry) Supports(path string) bool {
	_, ok := r.ForPath(path)
	return ok
}

// Parse dispatches to the parser for path and stamps the path onto the model.
func (r *Registry) Parse(path string, content []byte) (*Model, error) {
	p, ok := r.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoParser, path)
	}

	m, err := p.Parse(path, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	m.Path = path
	if m.Language == "" {
		m.Language = p.Language()
	}
	m.Capabilities = p.Capabilities()
	if m.Text == "" {
		m.Text = string(content)
	}
	if m.LineCount == 0 {
		m.LineCount = CountLines(m.Text)
	}
	return m, nil
}

func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
