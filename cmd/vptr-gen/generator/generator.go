// Package generator wires concrete types up for single-word dynamic
// dispatch. For every declared (type, interface) pair in a package it
// verifies the build-time contract — the type implements the interface and
// declares exactly one embedded dispatch field for it — and emits the
// method-table record, the descriptor registration, a typed single-pointer
// reference, and a binder that initializes every field.
package generator

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/packages"
)

// DefaultVPtrPath is the import path of the runtime package the generated
// code dispatches through.
const DefaultVPtrPath = "github.com/thinwire/vptr"

// Pair declares that one concrete type dispatches one interface through an
// embedded field. Interface is an identifier in the package scope, or
// pkgname.Ident for an interface imported by the package.
type Pair struct {
	Type      string `yaml:"type"`
	Interface string `yaml:"interface"`
}

type Options struct {
	// VPtrPath overrides the runtime package import path. Used by the
	// generator's own tests; defaults to DefaultVPtrPath.
	VPtrPath string
	Logger   *zap.Logger
}

type Generator struct {
	vptrPath string
	log      *zap.Logger
}

func New(opts Options) *Generator {
	if opts.VPtrPath == "" {
		opts.VPtrPath = DefaultVPtrPath
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Generator{vptrPath: opts.VPtrPath, log: opts.Logger}
}

// Package is the slice of a loaded package the generator operates on.
type Package struct {
	Name  string
	Path  string
	Fset  *token.FileSet
	Files []*ast.File
	Types *types.Package
}

// FromPackages adapts a go/packages load result.
func FromPackages(p *packages.Package) *Package {
	return &Package{
		Name:  p.Name,
		Path:  p.PkgPath,
		Fset:  p.Fset,
		Files: p.Syntax,
		Types: p.Types,
	}
}

// binding is a fully resolved pair.
type binding struct {
	pair      Pair
	concrete  *types.Named
	iface     *types.Interface
	ifacePkg  *types.Package // non-nil when the interface is imported
	ifaceName string         // identifier stem for generated names, e.g. "Shape" or "IoCloser"
	ifaceExpr string         // source expression for the interface type, e.g. "Shape" or "io.Closer"
	fieldName string
	hasDrop   bool // *T declares a niladic Destroy method wired as the destruction slot
}

// Generate resolves the package's directive-declared pairs plus any extra
// pairs (typically from a manifest) and returns the formatted generated
// file, or nil when the package declares no pairs.
func (g *Generator) Generate(pkg *Package, extra ...Pair) ([]byte, error) {
	pairs, err := scanDirectives(pkg)
	if err != nil {
		return nil, err
	}
	pairs = append(pairs, extra...)
	if len(pairs) == 0 {
		return nil, nil
	}

	seen := map[Pair]bool{}
	for _, p := range pairs {
		if seen[p] {
			return nil, fmt.Errorf("%s/%s: %w", p.Type, p.Interface, ErrDuplicatePair)
		}
		seen[p] = true
	}

	bindings := make([]*binding, 0, len(pairs))
	for _, p := range pairs {
		b, err := g.resolve(pkg, p)
		if err != nil {
			return nil, err
		}
		g.log.Debug("resolved pair",
			zap.String("type", p.Type),
			zap.String("interface", p.Interface),
			zap.String("field", b.fieldName))
		bindings = append(bindings, b)
	}

	slices.SortFunc(bindings, func(a, b *binding) int {
		if a.pair.Type != b.pair.Type {
			return strings.Compare(a.pair.Type, b.pair.Type)
		}
		return strings.Compare(a.ifaceName, b.ifaceName)
	})

	return g.emit(pkg, bindings)
}

func (g *Generator) resolve(pkg *Package, p Pair) (*binding, error) {
	obj := pkg.Types.Scope().Lookup(p.Type)
	if obj == nil {
		return nil, fmt.Errorf("%s: %w", p.Type, ErrUnknownType)
	}
	named, ok := obj.Type().(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p.Type, ErrNotAStruct)
	}
	if _, ok := named.Underlying().(*types.Struct); !ok {
		return nil, fmt.Errorf("%s: %w", p.Type, ErrNotAStruct)
	}

	b := &binding{pair: p, concrete: named}
	if err := g.resolveInterface(pkg, b); err != nil {
		return nil, err
	}

	ptr := types.NewPointer(named)
	if !types.Implements(ptr, b.iface) {
		if m, _ := types.MissingMethod(ptr, b.iface, true); m != nil {
			return nil, fmt.Errorf("%s does not satisfy %s: missing or mismatched method %s: %w",
				p.Type, p.Interface, m.Name(), ErrMissingMethod)
		}
		return nil, fmt.Errorf("%s does not satisfy %s: %w", p.Type, p.Interface, ErrMissingMethod)
	}

	if err := g.findField(pkg, b); err != nil {
		return nil, err
	}

	b.hasDrop = hasDestroy(ptr, pkg.Types)
	return b, nil
}

func (g *Generator) resolveInterface(pkg *Package, b *binding) error {
	name := b.pair.Interface
	var obj types.Object
	if pkgName, ident, ok := strings.Cut(name, "."); ok {
		for _, imp := range pkg.Types.Imports() {
			if imp.Name() == pkgName {
				obj = imp.Scope().Lookup(ident)
				b.ifacePkg = imp
				break
			}
		}
		b.ifaceName = exported(pkgName) + exported(ident)
		b.ifaceExpr = name
	} else {
		obj = pkg.Types.Scope().Lookup(name)
		b.ifaceName = name
		b.ifaceExpr = name
	}
	if obj == nil {
		return fmt.Errorf("%s: %w", name, ErrUnknownType)
	}
	iface, ok := obj.Type().Underlying().(*types.Interface)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotAnInterface)
	}
	b.iface = iface
	return nil
}

// findField locates the concrete type's embedded dispatch field for the
// pair's interface. The match is syntactic — a field of type
// vptr.Field[<Iface>VTable] — because the vtable type it references is
// itself generated and may not resolve until after generation.
func (g *Generator) findField(pkg *Package, b *binding) error {
	spec, file := typeSpec(pkg, b.pair.Type)
	if spec == nil {
		return fmt.Errorf("%s: %w", b.pair.Type, ErrUnknownType)
	}
	st, ok := spec.Type.(*ast.StructType)
	if !ok {
		return fmt.Errorf("%s: %w", b.pair.Type, ErrNotAStruct)
	}

	vptrName := importName(file, g.vptrPath)
	want := vtableTypeName(b)
	for _, f := range st.Fields.List {
		if !isFieldDecl(f.Type, vptrName, want) {
			continue
		}
		if len(f.Names) != 1 {
			return fmt.Errorf("%s.%s for %s: %w", b.pair.Type, want, b.pair.Interface, ErrDuplicateField)
		}
		if b.fieldName != "" {
			return fmt.Errorf("%s: fields %s and %s both carry %s: %w",
				b.pair.Type, b.fieldName, f.Names[0].Name, want, ErrDuplicateField)
		}
		b.fieldName = f.Names[0].Name
	}
	if b.fieldName == "" {
		return fmt.Errorf("%s declares no field of type %s.Field[%s]: %w",
			b.pair.Type, vptrName, want, ErrMissingField)
	}
	return nil
}

// isFieldDecl matches the type expression vptr.Field[WantVTable].
func isFieldDecl(expr ast.Expr, vptrName, want string) bool {
	idx, ok := expr.(*ast.IndexExpr)
	if !ok {
		return false
	}
	sel, ok := idx.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Field" {
		return false
	}
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok || pkgIdent.Name != vptrName {
		return false
	}
	arg, ok := idx.Index.(*ast.Ident)
	return ok && arg.Name == want
}

func typeSpec(pkg *Package, name string) (*ast.TypeSpec, *ast.File) {
	for _, file := range pkg.Files {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok && ts.Name.Name == name {
					return ts, file
				}
			}
		}
	}
	return nil, nil
}

// importName returns the file-local name of the runtime package import.
func importName(file *ast.File, path string) string {
	for _, imp := range file.Imports {
		if strings.Trim(imp.Path.Value, `"`) != path {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		if i := strings.LastIndex(path, "/"); i >= 0 {
			return path[i+1:]
		}
		return path
	}
	return "vptr"
}

// hasDestroy reports whether *T declares a niladic Destroy method, the
// convention wired into the table's destruction slot.
func hasDestroy(ptr *types.Pointer, pkg *types.Package) bool {
	obj, _, _ := types.LookupFieldOrMethod(ptr, true, pkg, "Destroy")
	fn, ok := obj.(*types.Func)
	if !ok {
		return false
	}
	sig := fn.Type().(*types.Signature)
	return sig.Params().Len() == 0 && sig.Results().Len() == 0
}

// methods returns the interface's method list in canonical order (sorted by
// identifier), which fixes the slot order of the generated vtable record.
func methods(iface *types.Interface) []*types.Func {
	out := make([]*types.Func, 0, iface.NumMethods())
	for i := 0; i < iface.NumMethods(); i++ {
		out = append(out, iface.Method(i))
	}
	slices.SortFunc(out, func(a, b *types.Func) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}

func vtableTypeName(b *binding) string { return b.ifaceName + "VTable" }
func refTypeName(b *binding) string    { return b.ifaceName + "Ref" }

func descVarName(b *binding) string {
	return unexported(b.pair.Type) + b.ifaceName + "Desc"
}

func exported(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}

func unexported(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[n:]
}
