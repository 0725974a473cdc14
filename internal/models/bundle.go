// Package models manages on-disk model bundles: a directory holding a
// bundle.yaml manifest, a tokens.txt symbol table and whatever files the
// backend needs.
package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emmett/streamvox/internal/model"
	"github.com/emmett/streamvox/internal/symbols"
)

// BundleFile is the manifest name inside a bundle directory
const BundleFile = "bundle.yaml"

// StubBundleName is the catalog name of the generated stub bundle
const StubBundleName = "stub-energy"

// Bundle is the parsed manifest of a model bundle
type Bundle struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Language    string            `yaml:"language,omitempty"`
	Backend     string            `yaml:"backend"`
	Tokens      string            `yaml:"tokens"`
	Options     map[string]string `yaml:"options,omitempty"`

	// Feature front end the model was trained with
	SampleRate  float64 `yaml:"sample_rate,omitempty"`
	FeatureBins int     `yaml:"feature_bins,omitempty"`

	Dir string `yaml:"-"`
}

// Loaded is an opened bundle ready for decoding
type Loaded struct {
	Bundle  *Bundle
	Model   model.Model
	Symbols *symbols.Table
}

// LoadBundle reads and validates the manifest of an installed bundle
func (s *Store) LoadBundle(name string) (*Bundle, error) {
	dir := filepath.Join(s.Dir, name)
	data, err := os.ReadFile(filepath.Join(dir, BundleFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle manifest: %w", err)
	}

	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle manifest: %w", err)
	}
	if b.Backend == "" {
		return nil, fmt.Errorf("bundle %s: backend is required", name)
	}
	if b.Tokens == "" {
		b.Tokens = "tokens.txt"
	}
	if b.Name == "" {
		b.Name = name
	}
	b.Dir = dir
	return &b, nil
}

// Open loads the bundle's symbol table and opens its model through the
// backend registry.
func (s *Store) Open(name string) (*Loaded, error) {
	b, err := s.LoadBundle(name)
	if err != nil {
		return nil, err
	}

	table, err := symbols.Load(filepath.Join(b.Dir, b.Tokens))
	if err != nil {
		return nil, err
	}

	m, err := model.Open(b.Backend, b.Dir, b.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to open model %s: %w", name, err)
	}

	meta := m.Meta()
	if table.Len() < meta.VocabSize {
		return nil, fmt.Errorf("bundle %s: symbol table has %d entries, model vocabulary is %d", name, table.Len(), meta.VocabSize)
	}
	if b.FeatureBins != 0 && b.FeatureBins != meta.FeatureDim {
		return nil, fmt.Errorf("bundle %s: feature_bins %d does not match model dimension %d", name, b.FeatureBins, meta.FeatureDim)
	}
	return &Loaded{Bundle: b, Model: m, Symbols: table}, nil
}

// InstallStub writes a bundle for the stub backend
func (s *Store) InstallStub(name string) error {
	dir := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}

	const bins = 80
	b := Bundle{
		Name:        name,
		Description: "energy driven stub transducer",
		Backend:     model.StubBackend,
		Tokens:      "tokens.txt",
		Options: map[string]string{
			"feature_dim": strconv.Itoa(bins),
			"threshold":   "8",
		},
		SampleRate:  16000,
		FeatureBins: bins,
	}
	data, err := yaml.Marshal(&b)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, BundleFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write bundle manifest: %w", err)
	}

	var tokens strings.Builder
	for id, sym := range model.StubVocabulary() {
		fmt.Fprintf(&tokens, "%s %d\n", sym, id)
	}
	if err := os.WriteFile(filepath.Join(dir, b.Tokens), []byte(tokens.String()), 0644); err != nil {
		return fmt.Errorf("failed to write symbol table: %w", err)
	}
	return nil
}
