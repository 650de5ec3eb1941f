package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Output file names.
const (
	FacilitiesFile  = "facilities.json"
	PricesFile      = "prices.json"
	AnomaliesFile   = "anomalies.json"
	MigrationFile   = "id-migration.json"
	DefaultFileMode = 0o644
)

// File is one named output document.
type File struct {
	Name  string
	Value any
}

// Render encodes v as indented JSON with a trailing newline. HTML
// characters are not escaped; item names contain & and <> often enough.
func Render(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write renders every file in memory, writes each to a temporary file in
// dir and renames them into place only when all writes succeeded. On error
// no existing output is touched.
func Write(dir string, files ...File) error {
	rendered := make([][]byte, len(files))
	for i, f := range files {
		data, err := Render(f.Value)
		if err != nil {
			return fmt.Errorf("render %s: %w", f.Name, err)
		}
		rendered[i] = data
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	temps := make([]string, 0, len(files))
	cleanup := func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}
	for i, f := range files {
		tmp, err := writeTemp(dir, f.Name, rendered[i])
		if err != nil {
			cleanup()
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
		temps = append(temps, tmp)
	}

	for i, f := range files {
		if err := os.Rename(temps[i], filepath.Join(dir, f.Name)); err != nil {
			cleanup()
			return fmt.Errorf("rename %s: %w", f.Name, err)
		}
	}
	return nil
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if err := os.Chmod(f.Name(), DefaultFileMode); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
