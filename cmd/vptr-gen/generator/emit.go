package generator

import (
	"fmt"
	"go/format"
	"go/types"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type emitter struct {
	pkg      *Package
	vptrPath string
	body     strings.Builder
	imports  map[string]string // import path -> package name, from rendered signatures
}

func (g *Generator) emit(pkg *Package, bindings []*binding) ([]byte, error) {
	e := &emitter{pkg: pkg, vptrPath: g.vptrPath, imports: map[string]string{}}

	// Imported interfaces appear in the emitted implementation assertions,
	// not just in signatures, so record their packages up front.
	for _, b := range bindings {
		if b.ifacePkg != nil {
			e.imports[b.ifacePkg.Path()] = b.ifacePkg.Name()
		}
	}

	// One vtable/ref declaration per interface, however many types bind it.
	byIface := map[string]*binding{}
	for _, b := range bindings {
		if _, ok := byIface[b.ifaceName]; !ok {
			byIface[b.ifaceName] = b
		}
	}
	ifaceNames := maps.Keys(byIface)
	slices.Sort(ifaceNames)
	for _, name := range ifaceNames {
		e.writeInterface(byIface[name])
	}

	// Bindings arrive sorted by (type, interface); group per concrete type.
	for i := 0; i < len(bindings); {
		j := i
		for j < len(bindings) && bindings[j].pair.Type == bindings[i].pair.Type {
			j++
		}
		e.writeType(bindings[i:j])
		i = j
	}

	var w strings.Builder
	fmt.Fprintf(&w, "// Code generated by vptr-gen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&w, "package %s\n\n", pkg.Name)
	e.writeImports(&w)
	w.WriteString(e.body.String())

	src, err := format.Source([]byte(w.String()))
	if err != nil {
		return nil, fmt.Errorf("formatting generated source for %s: %w", pkg.Path, err)
	}
	return src, nil
}

func (e *emitter) writeImports(w *strings.Builder) {
	fmt.Fprintln(w, "import (")
	fmt.Fprintln(w, "\t\"unsafe\"")
	fmt.Fprintln(w)

	paths := maps.Keys(e.imports)
	paths = append(paths, e.vptrPath)
	slices.Sort(paths)
	paths = slices.Compact(paths)
	for _, path := range paths {
		name := e.imports[path]
		if path == e.vptrPath {
			name = e.vptrName()
		}
		if name == pathBase(path) {
			fmt.Fprintf(w, "\t%q\n", path)
		} else {
			fmt.Fprintf(w, "\t%s %q\n", name, path)
		}
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintln(w)
}

func (e *emitter) writeInterface(b *binding) {
	w := &e.body
	vt := vtableTypeName(b)
	ref := refTypeName(b)
	ms := methods(b.iface)

	fmt.Fprintf(w, "// %s is the method-entry record for %s. Slots are ordered by method\n", vt, b.ifaceExpr)
	fmt.Fprintf(w, "// identifier; every slot takes the object base address as its receiver.\n")
	if len(ms) == 0 {
		fmt.Fprintf(w, "type %s struct{}\n\n", vt)
	} else {
		fmt.Fprintf(w, "type %s struct {\n", vt)
		for _, m := range ms {
			sig := m.Type().(*types.Signature)
			decl, _ := e.params(sig)
			fmt.Fprintf(w, "\t%s func(self unsafe.Pointer%s)%s\n", m.Name(), prepend(decl), e.results(sig))
		}
		fmt.Fprintf(w, "}\n\n")
	}

	fmt.Fprintf(w, "// %s is a single-pointer dynamic reference to a %s implementation.\n", ref, b.ifaceExpr)
	fmt.Fprintf(w, "type %s struct{ %s.Handle[%s] }\n\n", ref, e.vptrName(), vt)

	for _, m := range ms {
		sig := m.Type().(*types.Signature)
		decl, call := e.params(sig)
		fmt.Fprintf(w, "func (r %s) %s(%s)%s {\n", ref, m.Name(), decl, e.results(sig))
		fmt.Fprintf(w, "\ttab, self := r.Resolve()\n")
		if sig.Results().Len() == 0 {
			fmt.Fprintf(w, "\ttab.%s(self%s)\n", m.Name(), prepend(call))
		} else {
			fmt.Fprintf(w, "\treturn tab.%s(self%s)\n", m.Name(), prepend(call))
		}
		fmt.Fprintf(w, "}\n\n")
	}
}

func (e *emitter) writeType(group []*binding) {
	w := &e.body
	tname := group[0].pair.Type

	for _, b := range group {
		fmt.Fprintf(w, "var _ %s = (*%s)(nil)\n\n", b.ifaceExpr, tname)

		drop := "nil"
		if b.hasDrop {
			drop = fmt.Sprintf("func(v *%s) { v.Destroy() }", tname)
		}
		ms := methods(b.iface)
		if len(ms) == 0 {
			fmt.Fprintf(w, "var %s = %s.Register[%s](unsafe.Offsetof(%s{}.%s), %s{}, %s)\n\n",
				descVarName(b), e.vptrName(), tname, tname, b.fieldName, vtableTypeName(b), drop)
		} else {
			fmt.Fprintf(w, "var %s = %s.Register[%s](unsafe.Offsetof(%s{}.%s), %s{\n",
				descVarName(b), e.vptrName(), tname, tname, b.fieldName, vtableTypeName(b))
			for _, m := range ms {
				sig := m.Type().(*types.Signature)
				decl, call := e.params(sig)
				invoke := fmt.Sprintf("(*%s)(self).%s(%s)", tname, m.Name(), call)
				if sig.Results().Len() == 0 {
					fmt.Fprintf(w, "\t%s: func(self unsafe.Pointer%s)%s { %s },\n",
						m.Name(), prepend(decl), e.results(sig), invoke)
				} else {
					fmt.Fprintf(w, "\t%s: func(self unsafe.Pointer%s)%s { return %s },\n",
						m.Name(), prepend(decl), e.results(sig), invoke)
				}
			}
			fmt.Fprintf(w, "}, %s)\n\n", drop)
		}

		fmt.Fprintf(w, "// As%s returns the single-pointer %s reference for v. The dispatch fields\n", b.ifaceName, b.ifaceExpr)
		fmt.Fprintf(w, "// of v must already be bound.\n")
		fmt.Fprintf(w, "func (v *%s) As%s() %s { return %s{v.%s.Handle()} }\n\n",
			tname, b.ifaceName, refTypeName(b), refTypeName(b), b.fieldName)
	}

	fmt.Fprintf(w, "// BindDispatch points every embedded dispatch field of v at its registered\n")
	fmt.Fprintf(w, "// descriptor. Constructors must call it before the instance escapes.\n")
	fmt.Fprintf(w, "func (v *%s) BindDispatch() *%s {\n", tname, tname)
	for _, b := range group {
		fmt.Fprintf(w, "\tv.%s.Bind(%s)\n", b.fieldName, descVarName(b))
	}
	fmt.Fprintf(w, "\treturn v\n}\n\n")
}

// params renders an interface method's parameter list with positional names
// and the matching call-site argument list.
func (e *emitter) params(sig *types.Signature) (decl, call string) {
	n := sig.Params().Len()
	ds := make([]string, 0, n)
	cs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := sig.Params().At(i)
		name := fmt.Sprintf("a%d", i)
		if sig.Variadic() && i == n-1 {
			elem := p.Type().(*types.Slice).Elem()
			ds = append(ds, name+" ..."+types.TypeString(elem, e.qualify))
			cs = append(cs, name+"...")
		} else {
			ds = append(ds, name+" "+types.TypeString(p.Type(), e.qualify))
			cs = append(cs, name)
		}
	}
	return strings.Join(ds, ", "), strings.Join(cs, ", ")
}

func (e *emitter) results(sig *types.Signature) string {
	res := sig.Results()
	switch res.Len() {
	case 0:
		return ""
	case 1:
		return " " + types.TypeString(res.At(0).Type(), e.qualify)
	default:
		rs := make([]string, 0, res.Len())
		for i := 0; i < res.Len(); i++ {
			rs = append(rs, types.TypeString(res.At(i).Type(), e.qualify))
		}
		return " (" + strings.Join(rs, ", ") + ")"
	}
}

// qualify is the types.TypeString qualifier; it records every foreign
// package a signature mentions so the import block can cover it.
func (e *emitter) qualify(p *types.Package) string {
	if p == e.pkg.Types {
		return ""
	}
	e.imports[p.Path()] = p.Name()
	return p.Name()
}

func (e *emitter) vptrName() string { return pathBase(e.vptrPath) }

func pathBase(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func prepend(list string) string {
	if list == "" {
		return ""
	}
	return ", " + list
}
