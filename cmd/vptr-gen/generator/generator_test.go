package generator

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// load type-checks a fixture source string in memory. The vptr import can
// never resolve before generation has run, so checker diagnostics are
// collected and discarded; the generator is designed to work on such
// partially resolved packages.
func load(t *testing.T, src string) *Package {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "fixture.go", src, parser.ParseComments)
	require.NoError(t, err)

	info := &types.Info{
		Types:      map[ast.Expr]types.TypeAndValue{},
		Defs:       map[*ast.Ident]types.Object{},
		Uses:       map[*ast.Ident]types.Object{},
		Selections: map[*ast.SelectorExpr]*types.Selection{},
		Scopes:     map[ast.Node]*types.Scope{},
		Instances:  map[*ast.Ident]types.Instance{},
	}
	conf := types.Config{
		Importer: importer.ForCompiler(fset, "source", nil),
		Error:    func(error) {},
	}
	tpkg := types.NewPackage("example.com/fixture", "fixture")
	_ = types.NewChecker(&conf, fset, tpkg, info).Files([]*ast.File{file})

	return &Package{
		Name:  "fixture",
		Path:  "example.com/fixture",
		Fset:  fset,
		Files: []*ast.File{file},
		Types: tpkg,
	}
}

const rectSrc = `package fixture

import "github.com/thinwire/vptr"

type Shape interface {
	Area() float64
}

type Labeled interface {
	Label() string
}

//vptr:implements Shape, Labeled
type Rect struct {
	W, H  float64
	shape vptr.Field[ShapeVTable]
	label vptr.Field[LabeledVTable]
}

func (r *Rect) Area() float64 { return r.W * r.H }
func (r *Rect) Label() string { return "rect" }
func (r *Rect) Destroy()      { r.W = 0 }
`

func TestScanDirectives(t *testing.T) {
	pairs, err := scanDirectives(load(t, rectSrc))
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{Type: "Rect", Interface: "Shape"},
		{Type: "Rect", Interface: "Labeled"},
	}, pairs)
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		text    string
		names   []string
		ok      bool
		wantErr bool
	}{
		{"//vptr:implements Shape", []string{"Shape"}, true, false},
		{"//vptr:implements Shape, Labeled", []string{"Shape", "Labeled"}, true, false},
		{"//vptr:implements\tio.Closer", []string{"io.Closer"}, true, false},
		{"//vptr:implementsFoo", nil, false, false},
		{"// ordinary comment", nil, false, false},
		{"//vptr:implements", nil, false, true},
		{"//vptr:implements  ", nil, false, true},
		{"//vptr:implements Shape,,Labeled", nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			names, ok, err := parseDirective(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadDirective)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestGenerate(t *testing.T) {
	src, err := New(Options{}).Generate(load(t, rectSrc))
	require.NoError(t, err)
	out := string(src)

	assert.Contains(t, out, "// Code generated by vptr-gen. DO NOT EDIT.")
	assert.Contains(t, out, "type ShapeVTable struct {")
	assert.Contains(t, out, "Area func(self unsafe.Pointer) float64")
	assert.Contains(t, out, "type ShapeRef struct{ vptr.Handle[ShapeVTable] }")
	assert.Contains(t, out, "var _ Shape = (*Rect)(nil)")
	assert.Contains(t, out, "var _ Labeled = (*Rect)(nil)")
	assert.Contains(t, out, "var rectShapeDesc = vptr.Register[Rect](unsafe.Offsetof(Rect{}.shape), ShapeVTable{")
	assert.Contains(t, out, "Area: func(self unsafe.Pointer) float64 { return (*Rect)(self).Area() },")
	assert.Contains(t, out, "func (v *Rect) AsShape() ShapeRef { return ShapeRef{v.shape.Handle()} }")
	assert.Contains(t, out, "func (v *Rect) BindDispatch() *Rect {")
	assert.Contains(t, out, "v.label.Bind(rectLabeledDesc)")
	assert.Contains(t, out, "v.shape.Bind(rectShapeDesc)")

	// The niladic Destroy method becomes the destruction slot.
	assert.Contains(t, out, "}, func(v *Rect) { v.Destroy() })")

	// The output must itself parse.
	fset := token.NewFileSet()
	_, err = parser.ParseFile(fset, "vptr_gen.go", src, 0)
	require.NoError(t, err)
}

func TestGenerateNoPairs(t *testing.T) {
	src, err := New(Options{}).Generate(load(t, "package fixture\n"))
	require.NoError(t, err)
	assert.Nil(t, src)
}

func TestGenerateZeroMethodInterface(t *testing.T) {
	const src = `package fixture

import "github.com/thinwire/vptr"

type Marker interface{}

//vptr:implements Marker
type Tagged struct {
	m vptr.Field[MarkerVTable]
}
`
	out, err := New(Options{}).Generate(load(t, src))
	require.NoError(t, err)
	assert.Contains(t, string(out), "type MarkerVTable struct{}")
	assert.Contains(t, string(out), "vptr.Register[Tagged](unsafe.Offsetof(Tagged{}.m), MarkerVTable{}, nil)")
}

func TestGenerateImportedInterface(t *testing.T) {
	const src = `package fixture

import (
	"io"

	"github.com/thinwire/vptr"
)

//vptr:implements io.Closer
type File struct {
	fd     int
	closer vptr.Field[IoCloserVTable]
}

func (f *File) Close() error { return nil }

var _ = io.Discard
`
	out, err := New(Options{}).Generate(load(t, src))
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "type IoCloserVTable struct {")
	assert.Contains(t, s, "Close func(self unsafe.Pointer) error")
	assert.Contains(t, s, "var _ io.Closer = (*File)(nil)")
	assert.Contains(t, s, "\"io\"")
}

func TestGenerateSignatureShapes(t *testing.T) {
	const src = `package fixture

import "github.com/thinwire/vptr"

type Codec interface {
	Reset()
	Join(sep string, parts ...string) (string, error)
}

//vptr:implements Codec
type Joiner struct {
	codec vptr.Field[CodecVTable]
}

func (j *Joiner) Reset() {}
func (j *Joiner) Join(sep string, parts ...string) (string, error) {
	return "", nil
}
`
	out, err := New(Options{}).Generate(load(t, src))
	require.NoError(t, err)
	s := string(out)
	// The struct fields are column aligned by gofmt, so match from the func
	// keyword onward.
	assert.Contains(t, s, "func(self unsafe.Pointer, a0 string, a1 ...string) (string, error)")
	assert.Contains(t, s, "Reset func(self unsafe.Pointer)")
	assert.Contains(t, s, "return tab.Join(self, a0, a1...)")
	assert.Contains(t, s, "tab.Reset(self)")
	assert.Contains(t, s, "Reset: func(self unsafe.Pointer) { (*Joiner)(self).Reset() },")
}

func TestResolveErrors(t *testing.T) {
	const src = `package fixture

import "github.com/thinwire/vptr"

type Shape interface {
	Area() float64
}

type NotIface struct{}

type Alias = int

//vptr:implements Shape
type NoMethod struct {
	shape vptr.Field[ShapeVTable]
}

//vptr:implements Shape
type NoField struct{}

//vptr:implements Shape
type TwoFields struct {
	a vptr.Field[ShapeVTable]
	b vptr.Field[ShapeVTable]
}

func (n *NoField) Area() float64   { return 0 }
func (f *TwoFields) Area() float64 { return 0 }
`
	pkg := load(t, src)
	g := New(Options{})

	tests := []struct {
		name  string
		extra Pair
		want  error
	}{
		{"missingMethod", Pair{Type: "NoMethod", Interface: "Shape"}, ErrMissingMethod},
		{"missingField", Pair{Type: "NoField", Interface: "Shape"}, ErrMissingField},
		{"duplicateField", Pair{Type: "TwoFields", Interface: "Shape"}, ErrDuplicateField},
		{"unknownType", Pair{Type: "Nope", Interface: "Shape"}, ErrUnknownType},
		{"unknownInterface", Pair{Type: "NoField", Interface: "Nope"}, ErrUnknownType},
		{"notAnInterface", Pair{Type: "NoField", Interface: "NotIface"}, ErrNotAnInterface},
		{"notAStruct", Pair{Type: "Alias", Interface: "Shape"}, ErrNotAStruct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.resolve(pkg, tt.extra)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerateDuplicatePair(t *testing.T) {
	_, err := New(Options{}).Generate(load(t, rectSrc), Pair{Type: "Rect", Interface: "Shape"})
	assert.ErrorIs(t, err, ErrDuplicatePair)
}
