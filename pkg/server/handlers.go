package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/matzehuels/mendel/pkg/corner"
	"github.com/matzehuels/mendel/pkg/errors"
	mio "github.com/matzehuels/mendel/pkg/io"
	"github.com/matzehuels/mendel/pkg/pipeline"
	"github.com/matzehuels/mendel/pkg/raster"
)

var contentTypes = map[string]string{
	pipeline.FormatSVG:  "image/svg+xml",
	pipeline.FormatJSON: "application/json",
	pipeline.FormatPNG:  "image/png",
}

func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	img, err := s.readImage(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatJSON
	}
	if err := pipeline.ValidateFormat(format); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts.Formats = []string{format}

	in := pipeline.Input{Image: img}
	if raw := r.FormValue("corners"); raw != "" {
		cs, err := mio.ReadCorners(strings.NewReader(raw), mio.FormatJSON)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		in.Corners = cs
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "waiting for a free worker slot"))
		return
	}
	defer s.sem.Release(1)

	result, err := s.runner.Execute(r.Context(), in, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("X-Run-ID", result.RunID)
	w.Header().Set("X-Segments", strconv.Itoa(result.Stats.Segments))
	w.Header().Set("X-Converged", strconv.Itoa(result.Stats.Converged))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Artifacts[format])
}

type cornersResponse struct {
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Corners []corner.Corner `json:"corners"`
}

func (s *Server) handleCorners(w http.ResponseWriter, r *http.Request) {
	img, err := s.readImage(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := s.requestOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	if v := q.Get("threshold"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "threshold must be an integer"))
			return
		}
		opts.Corners.Threshold = t
		opts.Corners.Suppress = q.Get("suppress") != "false"
	}

	cs, err := s.runner.DetectCorners(r.Context(), img, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cornersResponse{Width: img.Width(), Height: img.Height(), Corners: cs})
}

// readImage parses the multipart form and decodes its "image" file.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (*raster.Gray, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "expected a multipart form")
	}
	f, _, err := r.FormFile("image")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "missing image file")
	}
	defer f.Close()

	img, _, err := raster.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, s.cfg.checkImage(img)
}

// requestOptions merges the optional "options" JSON field over the server
// defaults and checks the result against the server's work limits.
func (s *Server) requestOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.cfg.Defaults
	raw := r.FormValue("options")
	if raw == "" {
		return opts, s.cfg.checkOptions(opts)
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return opts, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode options")
	}
	return opts, s.cfg.checkOptions(opts)
}
