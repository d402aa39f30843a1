package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	domterm "github.com/kailas-cloud/intentgate/internal/domain/term"
)

// File is the seed document: vocabulary and labeled exemplars.
type File struct {
	Terms     []TermEntry     `yaml:"terms"`
	Exemplars []ExemplarEntry `yaml:"exemplars"`
}

// TermEntry maps one localized surface form to its base term.
type TermEntry struct {
	Base      string `yaml:"base"`
	Localized string `yaml:"localized"`
	Language  string `yaml:"language"`
}

// ExemplarEntry is a labeled sample. Texts without an embedding are embedded in one batch per domain.
type ExemplarEntry struct {
	Domain    string    `yaml:"domain"`
	Text      string    `yaml:"text"`
	Embedding []float32 `yaml:"embedding"`
}

// Stats counts what a seed run wrote.
type Stats struct {
	Terms     int
	Exemplars int
}

type termWriter interface {
	Upsert(ctx context.Context, baseTerm, localized, language string) error
}

type exemplarWriter interface {
	AddExemplar(ctx context.Context, domainID, text string, embedding []float32) (string, error)
	AddExemplarTexts(ctx context.Context, domainID string, texts []string) ([]string, error)
}

// ReadFile parses a seed document.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return File{}, fmt.Errorf("read seed %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return f, f.validate()
}

func (f File) validate() error {
	var errs []error
	for i, t := range f.Terms {
		if t.Base == "" || t.Localized == "" {
			errs = append(errs, fmt.Errorf("terms[%d]: base and localized are required", i))
		}
		if !domterm.ValidLanguage(t.Language) {
			errs = append(errs, fmt.Errorf("terms[%d]: invalid language %q", i, t.Language))
		}
	}
	for i, e := range f.Exemplars {
		if e.Domain == "" || e.Text == "" {
			errs = append(errs, fmt.Errorf("exemplars[%d]: domain and text are required", i))
		}
	}
	return errors.Join(errs...)
}

// Apply writes terms then exemplars. It stops at the first error.
func Apply(ctx context.Context, f File, terms termWriter, exemplars exemplarWriter) (Stats, error) {
	var st Stats
	for _, t := range f.Terms {
		if err := terms.Upsert(ctx, t.Base, t.Localized, t.Language); err != nil {
			return st, fmt.Errorf("term %q: %w", t.Localized, err)
		}
		st.Terms++
	}

	pending := make(map[string][]string)
	var order []string
	for _, e := range f.Exemplars {
		if len(e.Embedding) > 0 {
			if _, err := exemplars.AddExemplar(ctx, e.Domain, e.Text, e.Embedding); err != nil {
				return st, fmt.Errorf("exemplar %q: %w", e.Text, err)
			}
			st.Exemplars++
			continue
		}
		if _, ok := pending[e.Domain]; !ok {
			order = append(order, e.Domain)
		}
		pending[e.Domain] = append(pending[e.Domain], e.Text)
	}

	for _, d := range order {
		ids, err := exemplars.AddExemplarTexts(ctx, d, pending[d])
		st.Exemplars += len(ids)
		if err != nil {
			return st, fmt.Errorf("exemplars for %s: %w", d, err)
		}
	}
	return st, nil
}
