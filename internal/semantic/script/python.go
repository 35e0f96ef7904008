package script

import (
	"regexp"
	"strings"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

var pyPatterns = struct {
	importPlain *regexp.Regexp
	importFrom  *regexp.Regexp
	class       *regexp.Regexp
	def         *regexp.Regexp
	decorator   *regexp.Regexp
	assignment  *regexp.Regexp
}{
	importPlain: regexp.MustCompile(`^import\s+(.+)$`),
	importFrom:  regexp.MustCompile(`^from\s+([.\w]+)\s+import\s+(.+)$`),
	class:       regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\((.*)\))?\s*:`),
	def:         regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`),
	decorator:   regexp.MustCompile(`^@([A-Za-z_][\w.]*)`),
	assignment:  regexp.MustCompile(`^([A-Z][A-Z0-9_]*)\s*(?::[^=]+)?=`),
}

type pyClass struct {
	idx    int
	indent int
}

func parsePython(m *semantic.Model, lines []string) {
	var pending []string
	var classes []pyClass
	inDocstring := ""

	for i := 0; i < len(lines); i++ {
		lineNum := i + 1
		raw := strings.TrimRight(lines[i], "\r")

		if inDocstring != "" {
			if strings.Contains(raw, inDocstring) {
				inDocstring = ""
			}
			continue
		}

		line := stripLineComment(raw, "#")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, q := range []string{`"""`, `'''`} {
			if strings.HasPrefix(trimmed, q) {
				if strings.Count(trimmed, q) == 1 {
					inDocstring = q
				}
				trimmed = ""
				break
			}
		}
		if trimmed == "" {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		for len(classes) > 0 && indent <= classes[len(classes)-1].indent {
			classes = classes[:len(classes)-1]
		}

		// Parenthesised import lists continue until the closing paren.
		if strings.HasPrefix(trimmed, "from ") && strings.HasSuffix(trimmed, "(") {
			for i+1 < len(lines) && !strings.Contains(trimmed, ")") {
				i++
				trimmed += " " + strings.TrimSpace(stripLineComment(lines[i], "#"))
			}
			trimmed = strings.NewReplacer("(", "", ")", "").Replace(trimmed)
		}

		declared := ""
		switch {
		case pyPatterns.importFrom.MatchString(trimmed):
			mm := pyPatterns.importFrom.FindStringSubmatch(trimmed)
			m.Imports = append(m.Imports, semantic.Import{Specifier: mm[1], Names: splitNames(mm[2]), Line: lineNum})
			continue
		case pyPatterns.importPlain.MatchString(trimmed):
			mm := pyPatterns.importPlain.FindStringSubmatch(trimmed)
			for _, part := range strings.Split(mm[1], ",") {
				fields := strings.Fields(part)
				if len(fields) == 0 {
					continue
				}
				imp := semantic.Import{Specifier: fields[0], Line: lineNum}
				if len(fields) == 3 && fields[1] == "as" {
					imp.Names = []string{fields[2]}
				}
				m.Imports = append(m.Imports, imp)
			}
			continue
		case pyPatterns.decorator.MatchString(trimmed):
			pending = append(pending, pyPatterns.decorator.FindStringSubmatch(trimmed)[1])
			continue
		case pyPatterns.class.MatchString(trimmed):
			mm := pyPatterns.class.FindStringSubmatch(trimmed)
			td := semantic.TypeDecl{Name: mm[1], Kind: "class", Annotations: pending, Line: lineNum}
			var bases []string
			for _, b := range strings.Split(mm[2], ",") {
				b = strings.TrimSpace(b)
				if b == "" || strings.Contains(b, "=") {
					continue
				}
				bases = append(bases, b)
			}
			if len(bases) > 0 {
				td.Extends = bases[0]
				td.Implements = bases[1:]
			}
			pending = nil
			m.Types = append(m.Types, td)
			classes = append(classes, pyClass{idx: len(m.Types) - 1, indent: indent})
			if indent == 0 && !strings.HasPrefix(td.Name, "_") {
				m.Exports = append(m.Exports, semantic.Export{Name: td.Name, Kind: "class", Line: lineNum})
			}
			declared = td.Name
		case pyPatterns.def.MatchString(trimmed):
			name := pyPatterns.def.FindStringSubmatch(trimmed)[1]
			declared = name
			if len(classes) > 0 {
				c := classes[len(classes)-1]
				m.Types[c.idx].Methods = append(m.Types[c.idx].Methods, semantic.Method{
					Name:        name,
					Visibility:  pyVisibility(name),
					Annotations: pending,
					Line:        lineNum,
				})
			} else if indent == 0 && !strings.HasPrefix(name, "_") {
				m.Exports = append(m.Exports, semantic.Export{Name: name, Kind: "function", Line: lineNum})
			}
			pending = nil
		case indent == 0 && pyPatterns.assignment.MatchString(trimmed):
			name := pyPatterns.assignment.FindStringSubmatch(trimmed)[1]
			m.Exports = append(m.Exports, semantic.Export{Name: name, Kind: "const", Line: lineNum})
		}

		m.Calls = append(m.Calls, extractCalls(trimmed, lineNum, declared)...)
	}
}

func pyVisibility(name string) semantic.Visibility {
	switch {
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__"):
		return semantic.VisibilityPublic
	case strings.HasPrefix(name, "__"):
		return semantic.VisibilityPrivate
	case strings.HasPrefix(name, "_"):
		return semantic.VisibilityProtected
	default:
		return semantic.VisibilityPublic
	}
}
