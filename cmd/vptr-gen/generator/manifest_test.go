package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadManifest(t *testing.T) {
	pairs, err := readManifest(strings.NewReader(`
pairs:
  - type: Rectangle
    interface: Shape
  - type: Rectangle
    interface: Labeled
  - type: File
    interface: io.Closer
`))
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{Type: "Rectangle", Interface: "Shape"},
		{Type: "Rectangle", Interface: "Labeled"},
		{Type: "File", Interface: "io.Closer"},
	}, pairs)
}

func TestReadManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"unknownField", "pairs:\n  - type: A\n    interface: B\n    offset: 8\n"},
		{"missingInterface", "pairs:\n  - type: A\n"},
		{"missingType", "pairs:\n  - interface: B\n"},
		{"notYAML", "pairs: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readManifest(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, ErrBadManifest)
		})
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest("does/not/exist.yaml")
	assert.Error(t, err)
}
