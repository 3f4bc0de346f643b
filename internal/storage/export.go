package storage

import (
	"encoding/json"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/verletsim/internal/sim"
)

// ExportData bundles a stored run into one document.
type ExportData struct {
	Run    RunMetadata      `json:"run"`
	Frames []sim.FrameStats `json:"frames"`
}

// Export writes a stored run to w as indented JSON, or as the frame table
// in CSV when format is "csv".
func (s *Store) Export(w io.Writer, runID, format string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(runID)
	if err != nil {
		return err
	}

	if format == "csv" {
		return gocsv.Marshal(&frames, w)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: *meta, Frames: frames})
}
