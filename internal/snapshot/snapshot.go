// Package snapshot encodes kernel snapshots for the console and for
// post-mortem files.
package snapshot

import (
	"fmt"
	"io"
	"os"

	"github.com/sugawarayuuta/sonnet"
	"gopkg.in/yaml.v3"

	"rksys/internal/sched"
)

// Format is an output encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" or "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "yaml", "yml":
		return YAML, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("snapshot: unknown format %q", s)
	}
}

// Marshal encodes s in format f.
func Marshal(s sched.Snapshot, f Format) ([]byte, error) {
	switch f {
	case YAML:
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("yaml marshal: %w", err)
		}
		return data, nil
	case JSON:
		data, err := sonnet.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("json marshal: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown format %q", f)
	}
}

// Unmarshal decodes a snapshot written by Marshal.
func Unmarshal(data []byte, f Format) (sched.Snapshot, error) {
	var s sched.Snapshot
	switch f {
	case YAML:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("yaml unmarshal: %w", err)
		}
	case JSON:
		if err := sonnet.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("json unmarshal: %w", err)
		}
	default:
		return s, fmt.Errorf("snapshot: unknown format %q", f)
	}
	return s, nil
}

// Write encodes s to w.
func Write(w io.Writer, s sched.Snapshot, f Format) error {
	data, err := Marshal(s, f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Save writes s to path.
func Save(path string, s sched.Snapshot, f Format) error {
	data, err := Marshal(s, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
