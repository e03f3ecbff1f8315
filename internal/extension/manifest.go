// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package extension

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// APIVersion is the extension API this build provides. Manifests may pin a
// compatible range with "requires".
const APIVersion = "1.0.0"

// ManifestFile is the file name discovered in each extension directory.
const ManifestFile = "extension.yaml"

// Runtime identifies how an extension's code is executed.
type Runtime string

// Supported runtimes.
const (
	RuntimeLua Runtime = "lua"
)

// Manifest is the contents of an extension.yaml file.
type Manifest struct {
	ID          string     `yaml:"id" json:"id" jsonschema:"required,pattern=^[a-z]([a-z0-9-]*[a-z0-9])?$,maxLength=64"`
	Name        string     `yaml:"name" json:"name" jsonschema:"required"`
	Version     string     `yaml:"version" json:"version" jsonschema:"required"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Requires    string     `yaml:"requires,omitempty" json:"requires,omitempty" jsonschema:"description=semver constraint on the host extension API"`
	Runtime     Runtime    `yaml:"runtime" json:"runtime" jsonschema:"required,enum=lua"`
	Events      []string   `yaml:"events,omitempty" json:"events,omitempty"`
	Lua         *LuaConfig `yaml:"lua,omitempty" json:"lua,omitempty"`
}

// LuaConfig holds Lua-specific configuration.
type LuaConfig struct {
	Entry string `yaml:"entry" json:"entry" jsonschema:"required"`
}

const maxIDLength = 64

// idPattern: lowercase letter first, then lowercase letters, digits or
// hyphens, not ending in a hyphen.
var idPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates extension.yaml contents.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, ErrInvalidManifest("", "manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code(CodeInvalidManifest).In("extension").Wrapf(err, "invalid YAML")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest constraints, including API compatibility.
func (m *Manifest) Validate() error {
	if m.ID == "" || !idPattern.MatchString(m.ID) {
		return ErrInvalidManifest("id", "id %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.ID)
	}
	if len(m.ID) > maxIDLength {
		return ErrInvalidManifest("id", "id must be %d characters or less, got %d", maxIDLength, len(m.ID))
	}
	if m.Name == "" {
		return ErrInvalidManifest("name", "name is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return ErrInvalidManifest("version", "version %q is not semver: %v", m.Version, err)
	}
	if err := m.checkAPI(); err != nil {
		return err
	}

	switch m.Runtime {
	case RuntimeLua:
		if m.Lua == nil || m.Lua.Entry == "" {
			return ErrInvalidManifest("lua.entry", "lua.entry is required when runtime is lua")
		}
	default:
		return ErrInvalidManifest("runtime", "runtime must be 'lua', got %q", m.Runtime)
	}

	for _, ev := range m.Events {
		if ev == "" {
			return ErrInvalidManifest("events", "event names must not be empty")
		}
	}
	return nil
}

func (m *Manifest) checkAPI() error {
	if m.Requires == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return ErrInvalidManifest("requires", "requires %q is not a semver constraint: %v", m.Requires, err)
	}
	if !c.Check(semver.MustParse(APIVersion)) {
		return oops.Code(CodeIncompatibleAPI).
			In("extension").
			With("extension_id", m.ID).
			With("requires", m.Requires).
			With("api_version", APIVersion).
			Errorf("extension %s requires API %s, host provides %s", m.ID, m.Requires, APIVersion)
	}
	return nil
}
