package script

import (
	"regexp"
	"strings"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

var ecmaPatterns = struct {
	importFrom    *regexp.Regexp
	importBare    *regexp.Regexp
	require       *regexp.Regexp
	dynamicImport *regexp.Regexp
	reexport      *regexp.Regexp
	exportDecl    *regexp.Regexp
	exportList    *regexp.Regexp
	class         *regexp.Regexp
	decorator     *regexp.Regexp
	method        *regexp.Regexp
	funcDecl      *regexp.Regexp
}{
	importFrom:    regexp.MustCompile(`^\s*import\s+(?:type\s+)?(.+?)\s+from\s+['"]([^'"]+)['"]`),
	importBare:    regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
	require:       regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`),
	dynamicImport: regexp.MustCompile(`\bimport\(\s*['"]([^'"]+)['"]\s*\)`),
	reexport:      regexp.MustCompile(`^\s*export\s+(?:type\s+)?(?:\*|\{([^}]*)\})\s*from\s+['"]([^'"]+)['"]`),
	exportDecl:    regexp.MustCompile(`^\s*export\s+(?:default\s+)?(?:declare\s+)?(?:async\s+)?(?:abstract\s+)?(function\*?|class|interface|type|const|let|var|enum)\s+([A-Za-z_$][\w$]*)`),
	exportList:    regexp.MustCompile(`^\s*export\s+(?:type\s+)?\{([^}]*)\}\s*;?\s*$`),
	class:         regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:declare\s+)?(?:abstract\s+)?(class|interface)\s+([A-Za-z_$][\w$]*)(?:\s*<[^>{]*>)?(?:\s+extends\s+([\w$.]+(?:\s*,\s*[\w$.]+)*))?(?:\s+implements\s+([\w$.,\s]+?))?\s*\{?\s*$`),
	decorator:     regexp.MustCompile(`^\s*@([A-Za-z_$][\w$.]*)`),
	funcDecl:      regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\*?\s+([A-Za-z_$][\w$]*)`),
	method:        regexp.MustCompile(`^\s*(?:(public|private|protected)\s+)?(?:static\s+)?(?:readonly\s+)?(?:async\s+)?(?:get\s+|set\s+)?(#?[A-Za-z_$][\w$]*)\s*(?:<[^>]*>)?\s*\(`),
}

func parseECMA(m *semantic.Model, lines []string) {
	var pending []string
	depth := 0
	classIdx := -1
	classDepth := 0
	inBlockComment := false

	for i, raw := range lines {
		lineNum := i + 1
		line := raw

		if inBlockComment {
			end := strings.Index(line, "*/")
			if end < 0 {
				continue
			}
			line = line[end+2:]
			inBlockComment = false
		}
		if start := strings.Index(line, "/*"); start >= 0 {
			if end := strings.Index(line[start:], "*/"); end >= 0 {
				line = line[:start] + line[start+end+2:]
			} else {
				line = line[:start]
				inBlockComment = true
			}
		}
		line = stripLineComment(line, "//")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if mm := ecmaPatterns.importFrom.FindStringSubmatch(line); mm != nil {
			m.Imports = append(m.Imports, semantic.Import{Specifier: mm[2], Names: importNames(mm[1]), Line: lineNum})
		} else if mm := ecmaPatterns.importBare.FindStringSubmatch(line); mm != nil {
			m.Imports = append(m.Imports, semantic.Import{Specifier: mm[1], Line: lineNum})
		} else if mm := ecmaPatterns.reexport.FindStringSubmatch(line); mm != nil {
			names := splitNames(mm[1])
			m.Imports = append(m.Imports, semantic.Import{Specifier: mm[2], Names: names, Line: lineNum})
			for _, n := range names {
				m.Exports = append(m.Exports, semantic.Export{Name: n, Kind: "reexport", Line: lineNum})
			}
		} else {
			for _, mm := range ecmaPatterns.require.FindAllStringSubmatch(line, -1) {
				m.Imports = append(m.Imports, semantic.Import{Specifier: mm[1], Line: lineNum})
			}
			for _, mm := range ecmaPatterns.dynamicImport.FindAllStringSubmatch(line, -1) {
				m.Imports = append(m.Imports, semantic.Import{Specifier: mm[1], Line: lineNum})
			}
		}

		if mm := ecmaPatterns.exportDecl.FindStringSubmatch(line); mm != nil {
			m.Exports = append(m.Exports, semantic.Export{Name: mm[2], Kind: strings.TrimSuffix(mm[1], "*"), Line: lineNum})
		} else if mm := ecmaPatterns.exportList.FindStringSubmatch(line); mm != nil {
			for _, n := range splitNames(mm[1]) {
				m.Exports = append(m.Exports, semantic.Export{Name: n, Kind: "binding", Line: lineNum})
			}
		}

		declared := ""
		switch {
		case ecmaPatterns.decorator.MatchString(line) && !strings.Contains(line, "class "):
			pending = append(pending, ecmaPatterns.decorator.FindStringSubmatch(line)[1])
		case ecmaPatterns.class.MatchString(line):
			mm := ecmaPatterns.class.FindStringSubmatch(line)
			td := semantic.TypeDecl{Name: mm[2], Kind: mm[1], Annotations: pending, Line: lineNum}
			bases := splitNames(mm[3])
			if mm[1] == "interface" {
				td.Implements = bases
			} else if len(bases) > 0 {
				td.Extends = bases[0]
			}
			td.Implements = append(td.Implements, splitNames(mm[4])...)
			pending = nil
			m.Types = append(m.Types, td)
			classIdx = len(m.Types) - 1
			classDepth = depth
			declared = td.Name
		case classIdx >= 0 && depth == classDepth+1:
			if mm := ecmaPatterns.method.FindStringSubmatch(line); mm != nil && !nonCalls[mm[2]] {
				name := mm[2]
				vis := semantic.VisibilityPublic
				switch {
				case mm[1] == "private" || strings.HasPrefix(name, "#"):
					vis = semantic.VisibilityPrivate
				case mm[1] == "protected":
					vis = semantic.VisibilityProtected
				}
				m.Types[classIdx].Methods = append(m.Types[classIdx].Methods, semantic.Method{
					Name:        strings.TrimPrefix(name, "#"),
					Visibility:  vis,
					Annotations: pending,
					Line:        lineNum,
				})
				pending = nil
				declared = strings.TrimPrefix(name, "#")
			}
		}
		if mm := ecmaPatterns.funcDecl.FindStringSubmatch(line); mm != nil {
			declared = mm[1]
		}

		if !strings.HasPrefix(strings.TrimSpace(line), "import ") {
			m.Calls = append(m.Calls, extractCalls(line, lineNum, declared)...)
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if classIdx >= 0 && depth <= classDepth && strings.Contains(line, "}") {
			classIdx = -1
		}
	}
}

func importNames(clause string) []string {
	var names []string
	clause = strings.TrimSpace(clause)
	if open := strings.Index(clause, "{"); open >= 0 {
		if close := strings.Index(clause, "}"); close > open {
			names = append(names, splitNames(clause[open+1:close])...)
		}
		clause = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(clause[:open]), ","))
	}
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "* as ") {
			names = append(names, strings.TrimSpace(part[5:]))
		} else if part != "" {
			names = append(names, part)
		}
	}
	return names
}
