// Package config loads ambient settings for the pool/writer/reader stack
// from a TOML file, the way the teacher's own config layer loads
// supplementary manifests (Cargo.toml, pyproject.toml) via the same
// library. Unlike the teacher's full project-config system (gitignore
// rules, build-artifact detection, semantic scoring knobs), this module's
// surface is small: dialect selection, promotion behavior, and the writer
// flags a caller wants turned on by default.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every ambient knob this module exposes to a caller that
// doesn't want to build a Pool/Writer by hand.
type Config struct {
	Pool   Pool   `toml:"pool"`
	Writer Writer `toml:"writer"`
	Page   Page   `toml:"page"`
}

// Pool controls Pool construction.
type Pool struct {
	// Disttype selects the EVR comparison dialect: "rpm", "deb", or "apk".
	Disttype string `toml:"disttype"`
	// PromoteEpoch, when set, ignores an epoch on the first EVR if the
	// second has none; when unset, a missing epoch compares as 0.
	PromoteEpoch bool `toml:"promote_epoch"`
}

// Writer controls Writer construction.
type Writer struct {
	// Flags lists the writer flag names to OR together: "legacy",
	// "no_storage_solvable", "keep_type_deleted".
	Flags []string `toml:"flags"`
}

// Page holds the page-store setting.
type Page struct {
	// CapacityBytes is a resident-page budget in decompressed bytes.
	// Nothing in this module reads it; the reader's page store keeps a
	// fixed window of pages.
	CapacityBytes int `toml:"capacity_bytes"`
}

// Default returns the settings this module uses when no config file is
// present: RPM dialect, epoch promotion on, no writer flags, and
// CapacityBytes of 8 MiB.
func Default() *Config {
	return &Config{
		Pool: Pool{
			Disttype:     "rpm",
			PromoteEpoch: true,
		},
		Writer: Writer{},
		Page: Page{
			CapacityBytes: 8 << 20,
		},
	}
}

// Load reads and parses a TOML config file at path. A missing file is not
// an error; Default() is returned instead, matching the teacher's
// "absent config falls back to defaults" convention.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// WriterFlagBits translates Writer.Flags names into the bitmask
// writer.Config.Flags expects. Unknown names are ignored rather than
// rejected, so a config written against a newer version of this module
// degrades gracefully on an older binary.
func (w Writer) WriterFlagBits() uint32 {
	const (
		flagLegacy            = 1 << 0
		flagNoStorageSolvable = 1 << 1
		flagKeepTypeDeleted   = 1 << 2
	)
	var bits uint32
	for _, name := range w.Flags {
		switch name {
		case "legacy":
			bits |= flagLegacy
		case "no_storage_solvable":
			bits |= flagNoStorageSolvable
		case "keep_type_deleted":
			bits |= flagKeepTypeDeleted
		}
	}
	return bits
}
