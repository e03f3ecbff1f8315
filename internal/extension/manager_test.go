// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package extension_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickbridge/tickbridge/internal/extension"
)

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o750))
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func writeExtension(t *testing.T, root, dir, manifest string) {
	t.Helper()
	mkdirAll(t, filepath.Join(root, dir))
	writeFile(t, filepath.Join(root, dir, extension.ManifestFile), manifest)
}

type fakeLoader struct {
	fail map[string]bool
}

func (l *fakeLoader) Load(_ context.Context, m *extension.Manifest, _ string) (extension.Extension, error) {
	if l.fail[m.ID] {
		return nil, errors.New("load failed")
	}
	return &staticExtension{id: m.ID, name: m.Name, version: m.Version}, nil
}

type recordingInstaller struct {
	reg *extension.Registry
}

func (i *recordingInstaller) RegisterExtension(ext extension.Extension) error {
	return i.reg.Register(ext)
}

func manifestFor(id string) string {
	return "id: " + id + "\nname: " + id + "\nversion: 1.0.0\nruntime: lua\nlua:\n  entry: main.lua\n"
}

func TestManager_DiscoverSkipsInvalid(t *testing.T) {
	root := t.TempDir()
	writeExtension(t, root, "zeta", manifestFor("zeta"))
	writeExtension(t, root, "alpha", manifestFor("alpha"))
	writeExtension(t, root, "broken", "id: [")
	mkdirAll(t, filepath.Join(root, "empty"))
	writeFile(t, filepath.Join(root, "stray.txt"), "not a dir")

	found, err := extension.NewManager(root, extension.WithManagerLogger(discardLogger())).Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, found, 2)
	assert.Equal(t, "alpha", found[0].Manifest.ID)
	assert.Equal(t, filepath.Join(root, "alpha"), found[0].Dir)
	assert.Equal(t, "zeta", found[1].Manifest.ID)
}

func TestManager_DiscoverMissingDir(t *testing.T) {
	found, err := extension.NewManager(filepath.Join(t.TempDir(), "nope")).Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestManager_LoadAll(t *testing.T) {
	root := t.TempDir()
	writeExtension(t, root, "one", manifestFor("one"))
	writeExtension(t, root, "two", manifestFor("two"))
	writeExtension(t, root, "bad", manifestFor("bad"))

	reg := extension.NewRegistry(discardLogger())
	mgr := extension.NewManager(root,
		extension.WithManagerLogger(discardLogger()),
		extension.WithLoader(extension.RuntimeLua, &fakeLoader{fail: map[string]bool{"bad": true}}))

	n, err := mgr.LoadAll(context.Background(), &recordingInstaller{reg: reg})
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, reg.Len())
}

func TestManager_LoadAllWithoutLoader(t *testing.T) {
	root := t.TempDir()
	writeExtension(t, root, "one", manifestFor("one"))

	reg := extension.NewRegistry(discardLogger())
	n, err := extension.NewManager(root, extension.WithManagerLogger(discardLogger())).
		LoadAll(context.Background(), &recordingInstaller{reg: reg})

	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
