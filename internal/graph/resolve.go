package graph

import (
	"path"
	"sort"
	"strings"
)

var probeExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go"}

// Resolver maps import specifiers to project-relative file paths. Anything
// it cannot map is external.
type Resolver struct {
	files      map[string]bool
	dirs       map[string][]string
	modulePath string
}

// NewResolver indexes the project's files. modulePath is the Go module path
// used to resolve Go package imports and may be empty.
func NewResolver(files []string, modulePath string) *Resolver {
	r := &Resolver{
		files:      make(map[string]bool, len(files)),
		dirs:       make(map[string][]string),
		modulePath: strings.TrimSuffix(modulePath, "/"),
	}
	for _, f := range files {
		r.files[f] = true
		dir := path.Dir(f)
		r.dirs[dir] = append(r.dirs[dir], f)
	}
	for dir := range r.dirs {
		sort.Strings(r.dirs[dir])
	}
	return r
}

// Resolve returns the files spec refers to when imported from the file at
// from. A Go package import resolves to every non-test file of the package.
func (r *Resolver) Resolve(from, language, spec string) []string {
	switch language {
	case "go":
		return r.resolveGo(spec)
	case "python":
		return r.resolvePython(from, spec)
	}
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".." {
		return r.probe(path.Join(path.Dir(from), spec))
	}
	if strings.HasPrefix(spec, "/") {
		return r.probe(strings.TrimPrefix(path.Clean(spec), "/"))
	}
	return nil
}

func (r *Resolver) probe(base string) []string {
	if strings.HasPrefix(base, "../") || base == ".." {
		return nil
	}
	if r.files[base] {
		return []string{base}
	}
	// ESM sources often import "./x.js" for a file authored as x.ts.
	if ext := path.Ext(base); ext == ".js" || ext == ".mjs" || ext == ".cjs" {
		stem := strings.TrimSuffix(base, ext)
		for _, alt := range []string{".ts", ".tsx", ".mts", ".cts"} {
			if r.files[stem+alt] {
				return []string{stem + alt}
			}
		}
	}
	for _, ext := range probeExtensions {
		if r.files[base+ext] {
			return []string{base + ext}
		}
	}
	for _, ext := range probeExtensions {
		if idx := path.Join(base, "index"+ext); r.files[idx] {
			return []string{idx}
		}
	}
	return nil
}

func (r *Resolver) resolveGo(spec string) []string {
	if r.modulePath == "" {
		return nil
	}
	var dir string
	switch {
	case spec == r.modulePath:
		dir = "."
	case strings.HasPrefix(spec, r.modulePath+"/"):
		dir = strings.TrimPrefix(spec, r.modulePath+"/")
	default:
		return nil
	}

	var out []string
	for _, f := range r.dirs[dir] {
		if strings.HasSuffix(f, ".go") && !strings.HasSuffix(f, "_test.go") {
			out = append(out, f)
		}
	}
	return out
}

func (r *Resolver) resolvePython(from, spec string) []string {
	var base string
	if strings.HasPrefix(spec, ".") {
		dots := len(spec) - len(strings.TrimLeft(spec, "."))
		dir := path.Dir(from)
		for i := 1; i < dots; i++ {
			dir = path.Dir(dir)
		}
		rest := strings.ReplaceAll(spec[dots:], ".", "/")
		base = path.Join(dir, rest)
	} else {
		base = strings.ReplaceAll(spec, ".", "/")
	}

	if r.files[base+".py"] {
		return []string{base + ".py"}
	}
	if init := path.Join(base, "__init__.py"); r.files[init] {
		return []string{init}
	}
	return nil
}
