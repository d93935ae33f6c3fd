package compose

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File names used for the three buffers when they live on disk.
const (
	MarkupFile = "index.html"
	StylesFile = "style.css"
	ScriptFile = "script.js"
)

// FileNames maps editor tab ids to the file shown in the file indicator.
var FileNames = map[string]string{
	"html": MarkupFile,
	"css":  StylesFile,
	"js":   ScriptFile,
}

// LoadSourceSet reads index.html, style.css and script.js from dir.
// A missing file is treated as an empty buffer.
func LoadSourceSet(dir string) (SourceSet, error) {
	var set SourceSet
	targets := []struct {
		name string
		dst  *string
	}{
		{MarkupFile, &set.Markup},
		{StylesFile, &set.Styles},
		{ScriptFile, &set.Script},
	}

	for _, t := range targets {
		data, err := os.ReadFile(filepath.Join(dir, t.name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return SourceSet{}, fmt.Errorf("failed to read %s: %w", t.name, err)
		}
		*t.dst = string(data)
	}

	return set, nil
}

// WriteSourceSet writes the three buffers into dir, creating it if needed.
func WriteSourceSet(dir string, set SourceSet) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	files := map[string]string{
		MarkupFile: set.Markup,
		StylesFile: set.Styles,
		ScriptFile: set.Script,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

// ExportFile writes the composed document for set into dir under
// ExportFileName and returns the path written.
func ExportFile(dir string, set SourceSet) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, ExportFileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export: %w", err)
	}
	if err := Export(f, set); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, f.Close()
}
