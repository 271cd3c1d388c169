package generator

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML alternative to in-source directives, for projects
// that keep generation config out of their type declarations:
//
//	pairs:
//	  - type: Rectangle
//	    interface: Shape
//	  - type: Rectangle
//	    interface: Labeled
type Manifest struct {
	Pairs []Pair `yaml:"pairs"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pairs, err := readManifest(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, nil
}

func readManifest(r io.Reader) ([]Pair, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty manifest: %w", ErrBadManifest)
		}
		return nil, fmt.Errorf("%v: %w", err, ErrBadManifest)
	}
	for i, p := range m.Pairs {
		if p.Type == "" || p.Interface == "" {
			return nil, fmt.Errorf("pair %d lacks type or interface: %w", i, ErrBadManifest)
		}
	}
	return m.Pairs, nil
}
