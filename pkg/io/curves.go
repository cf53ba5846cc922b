package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/mendel/pkg/errors"
	"github.com/matzehuels/mendel/pkg/sink"
)

// ReadCurves decodes a curve document written by sink.RenderJSON.
func ReadCurves(r io.Reader) (*sink.Document, error) {
	var doc sink.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode curves")
	}
	if doc.Width <= 0 || doc.Height <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "curve document has no size (%dx%d)", doc.Width, doc.Height)
	}
	return &doc, nil
}

// ImportCurves reads a curve document from path.
func ImportCurves(path string) (*sink.Document, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "curve file %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open curves: %w", err)
	}
	defer f.Close()
	return ReadCurves(f)
}
