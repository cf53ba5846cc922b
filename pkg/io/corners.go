package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/mendel/pkg/corner"
	"github.com/matzehuels/mendel/pkg/errors"
)

// Corner file formats.
const (
	FormatJSON = "json"
	FormatTOML = "toml"
)

type tomlCorners struct {
	Corner []corner.Corner `toml:"corner"`
}

// FormatFromPath picks a corner file format from the extension of path.
// Anything other than .toml is treated as JSON.
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatJSON
}

// ReadCorners decodes a corner list in the given format.
func ReadCorners(r io.Reader, format string) ([]corner.Corner, error) {
	var cs []corner.Corner
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&cs); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode corners")
		}
	case FormatTOML:
		var doc tomlCorners
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode corners")
		}
		cs = doc.Corner
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported corner format %q", format)
	}
	return cs, nil
}

// WriteCorners encodes cs in the given format.
func WriteCorners(w io.Writer, cs []corner.Corner, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cs)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(tomlCorners{Corner: cs})
	default:
		return errors.New(errors.ErrCodeUnsupported, "unsupported corner format %q", format)
	}
}

// ImportCorners reads a corner file, choosing the format by extension.
func ImportCorners(path string) ([]corner.Corner, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "corner file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open corners: %w", err)
	}
	defer f.Close()
	return ReadCorners(f, FormatFromPath(path))
}

// ExportCorners writes cs to path, choosing the format by extension.
func ExportCorners(cs []corner.Corner, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create corners: %w", err)
	}
	if err := WriteCorners(f, cs, FormatFromPath(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
