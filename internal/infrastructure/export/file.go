package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nav-agent/internal/application/port/output"
	"nav-agent/internal/domain/entity"
)

var _ output.WorkflowExporter = (*FileExporter)(nil)

// FileExporter writes each workflow as indented JSON under dir.
type FileExporter struct {
	dir string
}

func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{dir: dir}
}

func (e *FileExporter) Export(ctx context.Context, wf *entity.Workflow) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal workflow: %w", err)
	}

	name := fmt.Sprintf("workflow_%s_%s.json", safeName(wf.Context.SessionID), wf.ExportedAt.Format("20060102T150405Z"))
	path := filepath.Join(e.dir, name)

	tmp, err := os.CreateTemp(e.dir, ".workflow-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write workflow: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close workflow: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename workflow: %w", err)
	}
	return path, nil
}

func safeName(id string) string {
	if id == "" {
		return "session"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
