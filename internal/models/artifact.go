// Package models defines the domain types shared by the asset tools.
package models

// Artifact kinds.
const (
	KindArchive = "archive"
	KindEntry   = "entry"
	KindRaster  = "raster"
)

// Artifact is one thing a run produced: an archive, an entry inside it,
// or a rendered raster image.
type Artifact struct {
	Kind     string `json:"kind"`
	Path     string `json:"path"`
	Source   string `json:"source,omitempty"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}
