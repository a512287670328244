// Package artifact reads and writes the portable run artifact that
// decouples a crawl from its analysis. A scrape step writes the JSON
// payload to disk; an ingest step consumes it later, possibly on another
// machine.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/nichewatch/nichewatch/internal/model"
)

// RunMeta carries the scope and timing of the crawl that produced the
// artifact.
type RunMeta struct {
	Platform    string    `json:"platform"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// Artifact is one crawl's worth of normalized product facts.
type Artifact struct {
	RunID    string          `json:"run_id"`
	RunMeta  RunMeta         `json:"run_meta"`
	Products []model.Product `json:"products"`
}

// Write marshals the artifact to path, creating parent directories. The
// file is written to a temp sibling and renamed so a crash never leaves a
// half-written artifact behind.
func Write(path string, a *Artifact) error {
	if a.RunID == "" {
		a.RunID = uuid.New().String()
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return eris.Wrap(err, "artifact: marshal")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "artifact: create directory %s", dir)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "artifact: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "artifact: rename %s", path)
	}
	return nil
}

// Read loads an artifact from path. An artifact missing its run_id gets a
// fresh one so ingestion can always key the run.
func Read(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read %s", path)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, eris.Wrapf(err, "artifact: parse %s", path)
	}
	if a.RunID == "" {
		a.RunID = uuid.New().String()
	}
	return &a, nil
}
