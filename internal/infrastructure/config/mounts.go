package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/agentfs/agentfs/internal/shared/pathutil"
)

// MountTable describes the backend topology loaded from YAML.
type MountTable struct {
	// Default is the backend kind serving paths no mount claims.
	// Supported kinds: memory, disk.
	Default DefaultMount `yaml:"default"`

	Mounts []Mount `yaml:"mounts"`
}

// DefaultMount configures the fallback backend.
type DefaultMount struct {
	Kind string `yaml:"kind"`
	Root string `yaml:"root,omitempty"`
}

// Mount binds a path prefix to a backend.
type Mount struct {
	Prefix string `yaml:"prefix"`
	Kind   string `yaml:"kind"`

	// Root is the host directory for disk mounts.
	Root string `yaml:"root,omitempty"`

	// Virtual routes disk writes to an in-memory overlay.
	Virtual bool `yaml:"virtual,omitempty"`
}

// LoadMounts parses a mount table from path and validates it.
func LoadMounts(path string) (*MountTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}

	var table MountTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse mount table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// DefaultMounts returns the topology used when no mount table is configured:
// a single in-memory backend at the root.
func DefaultMounts() *MountTable {
	return &MountTable{Default: DefaultMount{Kind: "memory"}}
}

// Validate checks kinds, prefixes, and per-kind requirements.
func (t *MountTable) Validate() error {
	if t.Default.Kind == "" {
		t.Default.Kind = "memory"
	}
	if err := validateKind(t.Default.Kind, t.Default.Root); err != nil {
		return fmt.Errorf("default mount: %w", err)
	}

	seen := make(map[string]struct{}, len(t.Mounts))
	for i, m := range t.Mounts {
		prefix, err := pathutil.Validate(m.Prefix)
		if err != nil {
			return fmt.Errorf("mount %d: invalid prefix %q: %w", i, m.Prefix, err)
		}
		if prefix == pathutil.Separator {
			return fmt.Errorf("mount %d: prefix %q shadows the default backend", i, m.Prefix)
		}
		if _, dup := seen[prefix]; dup {
			return fmt.Errorf("mount %d: duplicate prefix %q", i, prefix)
		}
		seen[prefix] = struct{}{}

		if err := validateKind(m.Kind, m.Root); err != nil {
			return fmt.Errorf("mount %d (%s): %w", i, m.Prefix, err)
		}
	}
	return nil
}

func validateKind(kind, root string) error {
	switch kind {
	case "memory":
		return nil
	case "disk":
		if root == "" {
			return fmt.Errorf("disk mount requires a root directory")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend kind %q", kind)
	}
}
