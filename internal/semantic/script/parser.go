// Package script extracts semantic models from TypeScript, JavaScript and
// Python with line patterns. It is deliberately shallow: imports, exports,
// classes with their bases, decorators and methods, and call sites.
package script

import (
	"regexp"
	"strings"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

type dialect int

const (
	dialectECMA dialect = iota
	dialectPython
)

type Parser struct {
	language   string
	extensions []string
	caps       semantic.Capabilities
	dialect    dialect
}

func NewTypeScript() *Parser {
	return &Parser{
		language:   "typescript",
		extensions: []string{".ts", ".tsx", ".mts", ".cts"},
		caps:       semantic.Capabilities{Inheritance: true, Interfaces: true, Annotations: true, Visibility: true},
		dialect:    dialectECMA,
	}
}

func NewJavaScript() *Parser {
	return &Parser{
		language:   "javascript",
		extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		caps:       semantic.Capabilities{Inheritance: true, Annotations: true, Visibility: true},
		dialect:    dialectECMA,
	}
}

func NewPython() *Parser {
	return &Parser{
		language:   "python",
		extensions: []string{".py"},
		caps:       semantic.Capabilities{Inheritance: true, Annotations: true, Visibility: true},
		dialect:    dialectPython,
	}
}

func (p *Parser) Language() string { return p.language }

func (p *Parser) Extensions() []string { return p.extensions }

func (p *Parser) Capabilities() semantic.Capabilities { return p.caps }

func (p *Parser) Parse(path string, content []byte) (*semantic.Model, error) {
	text := string(content)
	m := &semantic.Model{
		Path:         path,
		Language:     p.language,
		Capabilities: p.caps,
		Text:         text,
		LineCount:    semantic.CountLines(text),
	}

	lines := strings.Split(text, "\n")
	switch p.dialect {
	case dialectPython:
		parsePython(m, lines)
	default:
		parseECMA(m, lines)
	}
	return m, nil
}

var callPattern = regexp.MustCompile(`([A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*)\s*\(`)

var nonCalls = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "catch": true,
	"function": true, "return": true, "typeof": true, "elif": true,
	"def": true, "class": true, "with": true, "except": true,
	"constructor": true, "not": true, "and": true, "or": true, "in": true,
	"await": true, "async": true, "yield": true, "lambda": true, "assert": true,
}

func extractCalls(line string, lineNum int, declared string) []semantic.Call {
	var calls []semantic.Call
	for _, match := range callPattern.FindAllStringSubmatchIndex(line, -1) {
		name := line[match[2]:match[3]]
		if nonCalls[name] || name == declared {
			continue
		}
		calls = append(calls, semantic.Call{Callee: name, Line: lineNum})
	}
	return calls
}

// stripLineComment drops a trailing line comment outside of string literals.
func stripLineComment(line, marker string) string {
	inQuote := byte(0)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == '\\' {
				i++
			} else if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			inQuote = c
		case strings.HasPrefix(line[i:], marker):
			return line[:i]
		}
	}
	return line
}

func splitNames(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.Index(part, " as "); i >= 0 {
			part = strings.TrimSpace(part[i+4:])
		}
		part = strings.TrimPrefix(part, "type ")
		names = append(names, strings.TrimSpace(part))
	}
	return names
}
