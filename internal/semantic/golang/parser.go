// Package golang is the reference Go parser. It reads declarations, imports
// and call sites with go/parser; it never type-checks.
package golang

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Language() string { return "go" }

func (p *Parser) Extensions() []string { return []string{".go"} }

// Go has no class inheritance, annotations, or declared interface
// satisfaction; exported identifiers carry visibility.
func (p *Parser) Capabilities() semantic.Capabilities {
	return semantic.Capabilities{Visibility: true}
}

func (p *Parser) Parse(path string, content []byte) (*semantic.Model, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	m := &semantic.Model{
		Path:     path,
		Language: p.Language(),
		Text:     string(content),
	}
	m.LineCount = semantic.CountLines(m.Text)

	for _, imp := range file.Imports {
		spec, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		entry := semantic.Import{
			Specifier: spec,
			Line:      fset.Position(imp.Pos()).Line,
		}
		if imp.Name != nil {
			entry.Names = []string{imp.Name.Name}
		} else {
			entry.Names = []string{spec[strings.LastIndex(spec, "/")+1:]}
		}
		m.Imports = append(m.Imports, entry)
	}

	types := make(map[string]int)
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		for _, spec := range gd.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				td := extractType(fset, s)
				types[td.Name] = len(m.Types)
				m.Types = append(m.Types, td)
				if s.Name.IsExported() {
					m.Exports = append(m.Exports, semantic.Export{Name: s.Name.Name, Kind: td.Kind, Line: td.Line})
				}
			case *ast.ValueSpec:
				kind := "var"
				if gd.Tok == token.CONST {
					kind = "const"
				}
				for _, name := range s.Names {
					if name.IsExported() {
						m.Exports = append(m.Exports, semantic.Export{Name: name.Name, Kind: kind, Line: fset.Position(name.Pos()).Line})
					}
				}
			}
		}
	}

	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		line := fset.Position(fd.Pos()).Line
		if fd.Recv == nil || len(fd.Recv.List) == 0 {
			if fd.Name.IsExported() {
				m.Exports = append(m.Exports, semantic.Export{Name: fd.Name.Name, Kind: "function", Line: line})
			}
			continue
		}
		recv := receiverName(fd.Recv.List[0].Type)
		idx, ok := types[recv]
		if !ok {
			// Receiver declared in another file of the package.
			idx = len(m.Types)
			types[recv] = idx
			m.Types = append(m.Types, semantic.TypeDecl{Name: recv, Kind: "struct", Line: line})
		}
		m.Types[idx].Methods = append(m.Types[idx].Methods, semantic.Method{
			Name:       fd.Name.Name,
			Visibility: visibility(fd.Name),
			Line:       line,
		})
	}

	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if name := exprName(call.Fun); name != "" {
			m.Calls = append(m.Calls, semantic.Call{Callee: name, Line: fset.Position(call.Pos()).Line})
		}
		return true
	})

	return m, nil
}

func extractType(fset *token.FileSet, s *ast.TypeSpec) semantic.TypeDecl {
	td := semantic.TypeDecl{
		Name: s.Name.Name,
		Line: fset.Position(s.Pos()).Line,
	}
	switch t := s.Type.(type) {
	case *ast.StructType:
		td.Kind = "struct"
		// The first embedded type is the closest Go has to a base class.
		for _, f := range t.Fields.List {
			if len(f.Names) == 0 {
				td.Extends = exprName(f.Type)
				break
			}
		}
	case *ast.InterfaceType:
		td.Kind = "interface"
		for _, f := range t.Methods.List {
			for _, name := range f.Names {
				td.Methods = append(td.Methods, semantic.Method{
					Name:       name.Name,
					Visibility: visibility(name),
					Line:       fset.Position(name.Pos()).Line,
				})
			}
		}
	default:
		td.Kind = "type"
	}
	return td
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

func exprName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return exprName(t.X)
	case *ast.SelectorExpr:
		if x := exprName(t.X); x != "" {
			return x + "." + t.Sel.Name
		}
		return t.Sel.Name
	case *ast.IndexExpr:
		return exprName(t.X)
	}
	return ""
}

func visibility(id *ast.Ident) semantic.Visibility {
	if id.IsExported() {
		return semantic.VisibilityPublic
	}
	return semantic.VisibilityPrivate
}
