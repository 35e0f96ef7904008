package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
)

var log = logger.ForComponent("registry")

type Registry struct {
	architectures map[string]*Architecture
	mixins        map[string]*Mixin
	checksum      string
}

func New() *Registry {
	return &Registry{
		architectures: make(map[string]*Architecture),
		mixins:        make(map[string]*Mixin),
	}
}

func (r *Registry) Register(arch *Architecture) error {
	if arch.ID == "" {
		return fmt.Errorf("architecture id cannot be empty")
	}
	if _, exists := r.architectures[arch.ID]; exists {
		return fmt.Errorf("architecture %q: %w", arch.ID, ErrDuplicateID)
	}
	r.architectures[arch.ID] = arch
	return nil
}

func (r *Registry) RegisterMixin(m *Mixin) error {
	if m.ID == "" {
		return fmt.Errorf("mixin id cannot be empty")
	}
	if _, exists := r.mixins[m.ID]; exists {
		return fmt.Errorf("mixin %q: %w", m.ID, ErrDuplicateID)
	}
	if m.Inline == "" {
		m.Inline = InlineAllowed
	}
	r.mixins[m.ID] = m
	return nil
}

func (r *Registry) Get(id string) (*Architecture, error) {
	arch, exists := r.architectures[id]
	if !exists {
		return nil, &UnresolvedReferenceError{Kind: "architecture", ID: id}
	}
	return arch, nil
}

func (r *Registry) Mixin(id string) (*Mixin, error) {
	m, exists := r.mixins[id]
	if !exists {
		return nil, &UnresolvedReferenceError{Kind: "mixin", ID: id}
	}
	return m, nil
}

// IDs returns architecture ids sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.architectures))
	for id := range r.architectures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) MixinIDs() []string {
	ids := make([]string, 0, len(r.mixins))
	for id := range r.mixins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Checksum is a digest of the registry documents it was loaded from. It is
// empty for registries built in code.
func (r *Registry) Checksum() string {
	return r.checksum
}

// Validate resolves every architecture so configuration errors surface at
// load time instead of on the first file that uses a broken id.
func (r *Registry) Validate() error {
	for _, id := range r.IDs() {
		if _, err := r.Resolve(id, nil); err != nil {
			return err
		}
	}
	return nil
}

func isMixinDocument(rel string) bool {
	base := filepath.Base(rel)
	if strings.HasPrefix(base, "_mixins") || strings.HasPrefix(base, "mixins.") {
		return true
	}
	dir := filepath.ToSlash(filepath.Dir(rel))
	return dir == "mixins" || strings.HasPrefix(dir, "mixins/") || strings.Contains(dir, "/mixins")
}

// LoadDir reads every *.yaml/*.yml document under dir. Documents under a
// mixins/ directory, or named _mixins*.yaml or mixins.yaml, hold mixins; all
// others hold architectures. Each document maps ids to definitions.
func LoadDir(dir string) (*Registry, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", dir, err)
	}
	sort.Strings(files)

	reg := New()
	h := sha256.New()
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load registry: %w", err)
		}
		rel, _ := filepath.Rel(dir, path)
		h.Write([]byte(filepath.ToSlash(rel)))
		h.Write([]byte{0})
		h.Write(data)

		if isMixinDocument(rel) {
			err = reg.loadMixins(rel, data)
		} else {
			err = reg.loadArchitectures(rel, data)
		}
		if err != nil {
			return nil, err
		}
	}
	reg.checksum = hex.EncodeToString(h.Sum(nil))

	log.Info("registry loaded", "dir", dir, "architectures", len(reg.architectures), "mixins", len(reg.mixins))
	return reg, nil
}

// Parse loads one architecture document and one mixin document from memory.
// Either may be nil.
func Parse(architectures, mixins []byte) (*Registry, error) {
	reg := New()
	if mixins != nil {
		if err := reg.loadMixins("mixins", mixins); err != nil {
			return nil, err
		}
	}
	if architectures != nil {
		if err := reg.loadArchitectures("registry", architectures); err != nil {
			return nil, err
		}
	}
	h := sha256.New()
	h.Write(architectures)
	h.Write([]byte{0})
	h.Write(mixins)
	reg.checksum = hex.EncodeToString(h.Sum(nil))
	return reg, nil
}

func (r *Registry) loadArchitectures(name string, data []byte) error {
	var doc map[string]rawArchitecture
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	for _, id := range sortedKeys(doc) {
		raw := doc[id]
		constraints, err := buildConstraints(id, id, raw.Constraints)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		arch := &Architecture{
			ID:                 id,
			Description:        raw.Description,
			Rationale:          raw.Rationale,
			Inherits:           strings.TrimSpace(raw.Inherits),
			Mixins:             raw.Mixins,
			Constraints:        constraints,
			Hints:              raw.Hints,
			ExcludeConstraints: raw.ExcludeConstraints,
			Singleton:          raw.Singleton,
			FilePattern:        raw.FilePattern,
			DefaultPath:        raw.DefaultPath,
			Version:            raw.Version,
			Deprecated:         raw.Deprecated,
			DeprecatedReason:   raw.DeprecatedReason,
			ReplacedBy:         raw.ReplacedBy,
		}
		if err := r.Register(arch); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (r *Registry) loadMixins(name string, data []byte) error {
	var doc map[string]rawMixin
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	for _, id := range sortedKeys(doc) {
		raw := doc[id]
		mode := InlineMode(raw.Inline)
		switch mode {
		case "":
			mode = InlineAllowed
		case InlineAllowed, InlineOnly, InlineForbidden:
		default:
			return fmt.Errorf("%s: mixin %q: unknown inline mode %q", name, id, raw.Inline)
		}
		constraints, err := buildConstraints("mixin "+id, "mixin:"+id, raw.Constraints)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		m := &Mixin{
			ID:          id,
			Description: raw.Description,
			Constraints: constraints,
			Hints:       raw.Hints,
			Inline:      mode,
		}
		if err := r.RegisterMixin(m); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
