// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package extension

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/oops"

	"github.com/tickbridge/tickbridge/pkg/errutil"
)

// Loader turns a discovered manifest into a live Extension.
type Loader interface {
	Load(ctx context.Context, m *Manifest, dir string) (Extension, error)
}

// Installer receives loaded extensions, typically the running server.
type Installer interface {
	RegisterExtension(ext Extension) error
}

// Discovered is a validated manifest and the directory it came from.
type Discovered struct {
	Manifest *Manifest
	Dir      string
}

// Manager discovers extensions on disk and loads them.
type Manager struct {
	dir     string
	loaders map[Runtime]Loader
	logger  *slog.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLoader sets the loader for a runtime.
func WithLoader(rt Runtime, l Loader) ManagerOption {
	return func(m *Manager) {
		m.loaders[rt] = l
	}
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager for the extensions directory dir.
func NewManager(dir string, opts ...ManagerOption) *Manager {
	m := &Manager{
		dir:     dir,
		loaders: make(map[Runtime]Loader),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Discover finds valid extensions, one per subdirectory holding an
// extension.yaml, sorted by ID. Invalid ones are logged and skipped.
// A missing directory yields no extensions.
func (m *Manager) Discover(_ context.Context) ([]*Discovered, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.Code(CodeDiscoveryFailed).In("extension").With("dir", m.dir).Wrapf(err, "read extensions directory")
	}

	var found []*Discovered
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		extDir := filepath.Join(m.dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(extDir, ManifestFile)) //nolint:gosec // path built from ReadDir entries
		if err != nil {
			m.logger.Warn("skipping extension without manifest", "dir", entry.Name(), "error", err)
			continue
		}
		if err := ValidateSchema(data); err != nil {
			m.logger.Warn("skipping extension with invalid manifest", append(errutil.Attrs(err), "dir", entry.Name())...)
			continue
		}
		manifest, err := ParseManifest(data)
		if err != nil {
			m.logger.Warn("skipping extension with invalid manifest", append(errutil.Attrs(err), "dir", entry.Name())...)
			continue
		}
		found = append(found, &Discovered{Manifest: manifest, Dir: extDir})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Manifest.ID < found[j].Manifest.ID })
	return found, nil
}

// LoadAll discovers, loads and installs every extension. Individual
// failures are logged and skipped; the count of installed extensions is
// returned.
func (m *Manager) LoadAll(ctx context.Context, into Installer) (int, error) {
	discovered, err := m.Discover(ctx)
	if err != nil {
		return 0, err
	}

	installed := 0
	for _, d := range discovered {
		ext, err := m.load(ctx, d)
		if err != nil {
			errutil.LogError(m.logger.With("extension_id", d.Manifest.ID), "failed to load extension", err)
			continue
		}
		if err := into.RegisterExtension(ext); err != nil {
			errutil.LogError(m.logger.With("extension_id", d.Manifest.ID), "failed to install extension", err)
			if c, ok := ext.(interface{ Close() }); ok {
				c.Close()
			}
			continue
		}
		installed++
	}
	return installed, nil
}

func (m *Manager) load(ctx context.Context, d *Discovered) (Extension, error) {
	loader, ok := m.loaders[d.Manifest.Runtime]
	if !ok {
		return nil, oops.Code(CodeUnsupportedLoader).
			In("extension").
			With("runtime", string(d.Manifest.Runtime)).
			Errorf("no loader configured for runtime %q", d.Manifest.Runtime)
	}
	ext, err := loader.Load(ctx, d.Manifest, d.Dir)
	if err != nil {
		return nil, oops.In("extension").With("dir", d.Dir).Wrap(err)
	}
	return ext, nil
}
