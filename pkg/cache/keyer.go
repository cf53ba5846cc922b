package cache

// Keyer builds cache keys. Implementations must return the same key for the
// same inputs across processes.
type Keyer interface {
	// SegmentKey identifies one solved segment on one image.
	SegmentKey(imageHash string, opts SegmentKeyOpts) string

	// CornersKey identifies a corner detection result on one image.
	CornersKey(imageHash string, opts CornersKeyOpts) string

	// ArtifactKey identifies a rendered output of one run.
	ArtifactKey(runHash string, opts ArtifactKeyOpts) string
}

// SegmentKeyOpts holds everything besides the image that determines a
// solved segment.
type SegmentKeyOpts struct {
	StartX float64 `json:"sx"`
	StartY float64 `json:"sy"`
	EndX   float64 `json:"ex"`
	EndY   float64 `json:"ey"`
	Seed   uint64  `json:"seed"`

	// Params is any JSON-encodable value describing the search tuning
	// (population sizes, threshold, fitness weights, sampling step).
	Params any `json:"params"`
}

// CornersKeyOpts holds the detector settings.
type CornersKeyOpts struct {
	Threshold int  `json:"threshold"`
	Suppress  bool `json:"suppress"`
}

// ArtifactKeyOpts holds the rendering settings.
type ArtifactKeyOpts struct {
	Format      string  `json:"format"`
	ShowCorners bool    `json:"show_corners"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
}

// DefaultKeyer produces "kind:sha256" keys. Artifact keys also carry the
// format, as in "artifact:svg:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SegmentKey implements Keyer.
func (DefaultKeyer) SegmentKey(imageHash string, opts SegmentKeyOpts) string {
	return hashKey("segment", imageHash, opts)
}

// CornersKey implements Keyer.
func (DefaultKeyer) CornersKey(imageHash string, opts CornersKeyOpts) string {
	return hashKey("corners", imageHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(runHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact:"+opts.Format, runHash, opts)
}

var _ Keyer = DefaultKeyer{}
