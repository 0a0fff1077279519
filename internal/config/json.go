package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// LoadEnvOverrides reads a flat JSON object of environment overrides.
// Values are stringified. A missing or empty path yields no overrides.
func LoadEnvOverrides(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = stringify(v)
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// LoadNUMAMap reads a JSON object of node name to CPU id arrays.
// Malformed entries are skipped, negative ids dropped, and a missing or
// non-object file yields an empty map.
func LoadNUMAMap(path string, logger *slog.Logger) map[string][]int {
	out := make(map[string][]int)
	if path == "" {
		return out
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read NUMA map", "path", path, "error", err)
		}
		return out
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn(`NUMA map must be a JSON object: {"node0": [0,1,...], ...}`, "path", path, "error", err)
		return out
	}

	for name, msg := range raw {
		var ids []int
		if err := json.Unmarshal(msg, &ids); err != nil {
			logger.Debug("Skipping malformed NUMA entry", "node", name, "error", err)
			continue
		}
		cpus := ids[:0]
		for _, id := range ids {
			if id >= 0 {
				cpus = append(cpus, id)
			}
		}
		if len(cpus) > 0 {
			out[name] = cpus
		}
	}
	return out
}
