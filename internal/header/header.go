// Package header reads the leading comment block of a source file: the
// architecture tag, inline mixins and override annotations.
package header

import (
	"bufio"
	"strings"
)

type Header struct {
	ArchID       string
	InlineMixins []string
	Overrides    []Override
	// Line of the @arch marker, 0 when untagged.
	Line int
}

var commentPrefixes = []string{"///", "//", "#", "--", "*", ";"}

// Parse scans comment lines from the top of text and stops at the first line
// of code. Block comments, Python docstrings and a shebang are accepted.
func Parse(text string) Header {
	var (
		h       Header
		current *Override
		inBlock string
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := strings.TrimSpace(scanner.Text())

		var body string
		switch {
		case inBlock != "":
			if i := strings.Index(raw, inBlock); i >= 0 {
				body = raw[:i]
				inBlock = ""
			} else {
				body = raw
			}
		case raw == "":
			continue
		case lineNum == 1 && strings.HasPrefix(raw, "#!"):
			continue
		case strings.HasPrefix(raw, "/*"):
			body = strings.TrimPrefix(strings.TrimPrefix(raw, "/*"), "*")
			if i := strings.Index(body, "*/"); i >= 0 {
				body = body[:i]
			} else {
				inBlock = "*/"
			}
		case strings.HasPrefix(raw, `"""`) || strings.HasPrefix(raw, "'''"):
			delim := raw[:3]
			body = raw[3:]
			if i := strings.Index(body, delim); i >= 0 {
				body = body[:i]
			} else {
				inBlock = delim
			}
		default:
			prefix := ""
			for _, p := range commentPrefixes {
				if strings.HasPrefix(raw, p) {
					prefix = p
					break
				}
			}
			if prefix == "" {
				return h
			}
			body = raw[len(prefix):]
		}

		body = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(body), "*"))
		current = h.apply(body, lineNum, current)
	}
	return h
}

func (h *Header) apply(body string, line int, current *Override) *Override {
	if !strings.HasPrefix(body, "@") {
		return current
	}
	marker, rest, _ := strings.Cut(body, " ")
	rest = strings.TrimSpace(rest)

	switch marker {
	case "@arch":
		if h.ArchID != "" {
			return current
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return current
		}
		h.ArchID = fields[0]
		h.Line = line
		for _, f := range fields[1:] {
			if m := strings.TrimPrefix(f, "+"); m != f && m != "" {
				h.InlineMixins = append(h.InlineMixins, m)
			}
		}
	case "@override":
		h.Overrides = append(h.Overrides, newOverride(rest, line))
		return &h.Overrides[len(h.Overrides)-1]
	case "@reason":
		if current != nil {
			current.Reason = rest
		}
	case "@expires":
		if current != nil {
			current.Expires = rest
		}
	case "@ticket":
		if current != nil {
			current.Ticket = rest
		}
	case "@approved_by":
		if current != nil {
			current.ApprovedBy = rest
		}
	}
	return current
}
