package project

import (
	"fmt"
	"time"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/cache"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/config"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/header"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic/golang"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic/script"
)

// DefaultParsers registers the bundled Go, TypeScript, JavaScript and
// Python parsers.
func DefaultParsers() *semantic.Registry {
	reg := semantic.NewRegistry()
	for _, p := range []semantic.Parser{golang.New(), script.NewTypeScript(), script.NewJavaScript(), script.NewPython()} {
		if err := reg.Register(p); err != nil {
			panic(err)
		}
	}
	return reg
}

// Open loads the registry named by cfg and wires engine, parsers and cache.
// Registry load errors abort; a broken cache store only disables
// persistence. Call Close when done.
func Open(cfg *config.Config, now func() time.Time) (*Analyzer, error) {
	if now == nil {
		now = time.Now
	}
	reg, err := registry.LoadDir(cfg.Abs(cfg.Registry))
	if err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		log.Warn("registry has configuration errors, affected files will report them", "error", err)
	}

	eng := engine.New(reg, engine.Options{
		Untagged: engine.UntaggedPolicy(cfg.Untagged),
		Overrides: header.Policy{
			MaxPerFile:     cfg.Overrides.MaxPerFile,
			RequireExpiry:  cfg.Overrides.RequireExpiry,
			MaxExpiryDays:  cfg.Overrides.MaxExpiryDays,
			ExpiringWithin: cfg.Overrides.ExpiringWithin,
		},
		Now: now,
	})

	var mgr *cache.Manager
	if cfg.Cache.Enabled {
		mgr, err = openCache(cfg, reg.Checksum(), now())
		if err != nil {
			return nil, err
		}
	}

	return New(Options{
		Root:        cfg.Root,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
		Workers:     cfg.Workers,
		MaxFileSize: cfg.MaxFileSize,
		GoModule:    cfg.GoModule,
		Layers:      cfg.Layers,
		Packages:    cfg.Packages,
	}, eng, DefaultParsers(), mgr), nil
}

// openCache stamps the cache with the current date as well: override
// status changes with the calendar even when no file does.
func openCache(cfg *config.Config, registryChecksum string, today time.Time) (*cache.Manager, error) {
	store, err := cache.OpenStore(cfg.Abs(cfg.Cache.Path))
	if err != nil {
		log.Warn("cache store unavailable, caching in memory only", "error", err)
		store = nil
	}
	mgr, err := cache.NewManager(cache.Options{
		RegistryChecksum: registryChecksum,
		ConfigChecksum:   cfg.Checksum() + "@" + today.Format(header.DateLayout),
		MaxEntries:       cfg.Cache.MaxEntries,
		Store:            store,
	})
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return mgr, nil
}

func (a *Analyzer) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}
