package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Feature step kinds.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
)

// Artifact is the serialized form of a fitted pipeline: per-column feature
// steps followed by a logistic classifier over the encoded vector.
type Artifact struct {
	Name       string        `json:"name" yaml:"name"`
	Version    string        `json:"version" yaml:"version"`
	Features   []FeatureStep `json:"features" yaml:"features"`
	Classifier Logistic      `json:"classifier" yaml:"classifier"`
}

// FeatureStep encodes one input column.
//
// Numeric steps emit (x - Mean) / Scale, substituting Impute (or Mean when
// unset) for empty cells. Categorical steps emit a one-hot block over
// Categories; values outside the list encode to all zeros.
type FeatureStep struct {
	Column     string   `json:"column" yaml:"column"`
	Kind       string   `json:"kind" yaml:"kind"`
	Mean       float64  `json:"mean,omitempty" yaml:"mean,omitempty"`
	Scale      float64  `json:"scale,omitempty" yaml:"scale,omitempty"`
	Impute     *float64 `json:"impute,omitempty" yaml:"impute,omitempty"`
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Logistic is a fitted binary logistic regression head.
type Logistic struct {
	Weights []float64 `json:"weights" yaml:"weights"`
	Bias    float64   `json:"bias" yaml:"bias"`
}

// width is the number of encoded features the step produces.
func (s FeatureStep) width() int {
	if s.Kind == KindCategorical {
		return len(s.Categories)
	}
	return 1
}

// Load reads and compiles the artifact at path. YAML is used for .yaml/.yml
// files and JSON for everything else. Any failure wraps ErrArtifactLoad.
func Load(path string) (*Pipeline, error) {
	a, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	p, err := Compile(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrArtifactLoad, path, err)
	}
	return p, nil
}

// ReadArtifact reads and decodes the artifact at path without compiling it.
func ReadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrArtifactLoad, err)
	}
	a, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %s: %w", ErrArtifactLoad, path, err)
	}
	return a, nil
}

// Decode parses artifact bytes. Unknown fields are rejected so a file from a
// different producer fails loudly instead of scoring with defaults.
func Decode(data []byte, ext string) (Artifact, error) {
	var a Artifact
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&a); err != nil {
			return Artifact{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&a); err != nil {
			return Artifact{}, err
		}
	}
	return a, nil
}

// Validate checks the artifact is internally consistent.
func (a Artifact) Validate() error {
	if len(a.Features) == 0 {
		return fmt.Errorf("%w: no feature steps", ErrInvalidArtifact)
	}
	width := 0
	seen := make(map[string]struct{}, len(a.Features))
	for i, f := range a.Features {
		if strings.TrimSpace(f.Column) == "" {
			return fmt.Errorf("%w: feature %d has no column", ErrInvalidArtifact, i)
		}
		if _, dup := seen[f.Column]; dup {
			return fmt.Errorf("%w: column %q encoded twice", ErrInvalidArtifact, f.Column)
		}
		seen[f.Column] = struct{}{}
		switch f.Kind {
		case KindNumeric:
			if f.Scale == 0 {
				return fmt.Errorf("%w: numeric column %q has zero scale", ErrInvalidArtifact, f.Column)
			}
		case KindCategorical:
			if len(f.Categories) == 0 {
				return fmt.Errorf("%w: categorical column %q has no categories", ErrInvalidArtifact, f.Column)
			}
		default:
			return fmt.Errorf("%w: column %q has unknown kind %q", ErrInvalidArtifact, f.Column, f.Kind)
		}
		width += f.width()
	}
	if len(a.Classifier.Weights) != width {
		return fmt.Errorf("%w: classifier has %d weights for %d encoded features", ErrInvalidArtifact, len(a.Classifier.Weights), width)
	}
	return nil
}
