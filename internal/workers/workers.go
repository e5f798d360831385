package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var ErrUnknownTool = errors.New("unknown tool")

type ToolDef struct {
	Name        string
	Description string
}

// Worker is a named group of tools callable over MCP or HTTP.
type Worker interface {
	GetTools() []ToolDef
	Execute(ctx context.Context, name string, input json.RawMessage) ([]byte, error)
}

// decode unmarshals tool input, treating an empty body as {}.
func decode(input json.RawMessage, v any) error {
	if len(strings.TrimSpace(string(input))) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}
	return nil
}

// resolvePath keeps paths inside basePath. An empty basePath allows any path.
func resolvePath(basePath, path string) (string, error) {
	if basePath == "" {
		return filepath.Clean(path), nil
	}
	full := filepath.Clean(path)
	if !filepath.IsAbs(full) {
		full = filepath.Join(basePath, path)
	}
	rel, err := filepath.Rel(basePath, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes %s", path, basePath)
	}
	return full, nil
}
