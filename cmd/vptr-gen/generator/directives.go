package generator

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"
)

// Directive is the comment form declaring pairs in source, placed in the
// doc comment of a struct type declaration:
//
//	//vptr:implements Shape, Labeled
//	type Rectangle struct { ... }
const Directive = "//vptr:implements"

func scanDirectives(pkg *Package) ([]Pair, error) {
	var pairs []Pair
	for _, file := range pkg.Files {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				if doc == nil {
					continue
				}
				for _, c := range doc.List {
					names, ok, err := parseDirective(c.Text)
					if err != nil {
						return nil, fmt.Errorf("%s: %w", pkg.Fset.Position(c.Pos()), err)
					}
					if !ok {
						continue
					}
					for _, name := range names {
						pairs = append(pairs, Pair{Type: ts.Name.Name, Interface: name})
					}
				}
			}
		}
	}
	return pairs, nil
}

func parseDirective(text string) ([]string, bool, error) {
	if !strings.HasPrefix(text, Directive) {
		return nil, false, nil
	}
	rest := strings.TrimPrefix(text, Directive)
	if rest == "" {
		return nil, false, fmt.Errorf("no interface named: %w", ErrBadDirective)
	}
	if rest[0] != ' ' && rest[0] != '\t' {
		// Some other directive, e.g. //vptr:implementsfoo.
		return nil, false, nil
	}
	var names []string
	for _, name := range strings.Split(rest, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, false, fmt.Errorf("empty interface name: %w", ErrBadDirective)
		}
		names = append(names, name)
	}
	return names, true, nil
}
