package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ErrExists is returned by WriteDefault when the file exists and force is
// not set.
var ErrExists = errors.New("config file already exists")

const header = "# quill configuration. Durations use Go syntax: 500ms, 3s, 168h.\n"

// Format renders cfg as YAML.
func Format(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("format config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("format config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path atomically,
// creating parent directories.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	body, err := Format(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append([]byte(header), body...))); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
