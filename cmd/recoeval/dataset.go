package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"reco-chatbot/pkg"
)

// record is one synthetic patient: the prompt the simulated patient plays,
// the resulting transcript and, once summarised, its summary.
type record struct {
	Prompt     string                 `json:"prompt"`
	Transcript []string               `json:"chat_transcript,omitempty"`
	Summary    *pkg.TranscriptSummary `json:"summary,omitempty"`
}

// dataset maps patient IDs to records.  It is stored as a single JSON
// object.
type dataset map[string]*record

func loadDataset(path string) (dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	var d dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	for id, r := range d {
		if r == nil {
			return nil, fmt.Errorf("dataset %s: entry %q is null", path, id)
		}
	}
	return d, nil
}

// loadDatasets merges every dataset matching a glob such as
// "data/**/patients_*.json".  A patient ID may appear in one file only.
func loadDatasets(pattern string) (dataset, error) {
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("dataset pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no dataset matches %s", pattern)
	}
	merged := dataset{}
	seen := map[string]string{}
	for _, p := range paths {
		d, err := loadDataset(p)
		if err != nil {
			return nil, err
		}
		for id, r := range d {
			if prev, dup := seen[id]; dup {
				return nil, fmt.Errorf("patient %q appears in both %s and %s", id, prev, p)
			}
			seen[id] = p
			merged[id] = r
		}
	}
	return merged, nil
}

func (d dataset) save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding dataset: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing dataset to %s: %w", path, err)
	}
	return nil
}

// ids returns the patient IDs in a stable order.
func (d dataset) ids() []string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// selectIDs narrows ids to only when it is non-empty.
func (d dataset) selectIDs(only []string) ([]string, error) {
	if len(only) == 0 {
		return d.ids(), nil
	}
	for _, id := range only {
		if _, ok := d[id]; !ok {
			return nil, fmt.Errorf("unknown patient %q", id)
		}
	}
	return only, nil
}
