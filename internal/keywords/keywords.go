// Package keywords loads the tracked keyword list for an ingestion run.
package keywords

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/satyamrathirar/popularity-vision/internal/model"
)

// Source yields the keyword set for a run mode.
type Source interface {
	Load(mode model.Mode) ([]string, error)
}

// fileSource reads keywords from a YAML file of the form:
//
//	keywords:
//	  - n8n slack workflow
//	  - n8n google sheets
type fileSource struct {
	path        string
	maxKeywords map[model.Mode]int
}

// NewFileSource creates a Source backed by a YAML file. maxKeywords bounds
// the list per mode; a zero or missing bound means the full list.
func NewFileSource(path string, maxKeywords map[model.Mode]int) Source {
	return &fileSource{path: path, maxKeywords: maxKeywords}
}

func (s *fileSource) Load(mode model.Mode) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "keywords: read %s", s.path)
	}

	var doc struct {
		Keywords []string `yaml:"keywords"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "keywords: parse %s", s.path)
	}

	// Dedupe while preserving file order.
	seen := make(map[string]bool, len(doc.Keywords))
	var kws []string
	for _, kw := range doc.Keywords {
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		kws = append(kws, kw)
	}

	if len(kws) == 0 {
		return nil, eris.Errorf("keywords: %s contains no keywords", s.path)
	}

	if max := s.maxKeywords[mode]; max > 0 && len(kws) > max {
		kws = kws[:max]
	}
	return kws, nil
}

// Static returns a Source that always yields the given keywords, used in
// tests and for ad-hoc CLI overrides.
func Static(kws ...string) Source {
	return staticSource(kws)
}

type staticSource []string

func (s staticSource) Load(model.Mode) ([]string, error) {
	if len(s) == 0 {
		return nil, eris.New("keywords: empty static list")
	}
	return []string(s), nil
}
