// Package coverage checks that every value declared on a source side has a
// counterpart among target files, e.g. every event type has a handler.
package coverage

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

const valuePlaceholder = "${value}"

type File struct {
	Path  string
	Model *semantic.Model
}

type Gap struct {
	Value          string `json:"value"`
	SourceFile     string `json:"source_file"`
	SourceLine     int    `json:"source_line,omitempty"`
	ExpectedTarget string `json:"expected_target"`
}

type Result struct {
	Key     string  `json:"key"`
	Total   int     `json:"total"`
	Covered int     `json:"covered"`
	Percent float64 `json:"percent"`
	Gaps    []Gap   `json:"gaps"`
}

type Summary struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Covered int      `json:"covered"`
	Percent float64  `json:"percent"`
}

type sourceValue struct {
	value string
	file  string
	line  int
}

// Validate runs one require_coverage constraint over the project's files.
func Validate(key string, cv registry.CoverageValue, files []File) Result {
	res := Result{Key: key, Gaps: []Gap{}}

	var targets []File
	for _, f := range files {
		if match(cv.InTargetFiles, f.Path) {
			targets = append(targets, f)
		}
	}

	for _, sv := range extract(cv, files) {
		res.Total++
		expected := strings.ReplaceAll(cv.TargetPattern, valuePlaceholder, Transform(cv.Transform, sv.value))
		if found(expected, targets) {
			res.Covered++
			continue
		}
		res.Gaps = append(res.Gaps, Gap{
			Value:          sv.value,
			SourceFile:     sv.file,
			SourceLine:     sv.line,
			ExpectedTarget: expected,
		})
	}
	res.Percent = percent(res.Covered, res.Total)
	return res
}

// Summarize aggregates by summing counts across constraints.
func Summarize(results []Result) Summary {
	s := Summary{Results: results}
	for _, r := range results {
		s.Total += r.Total
		s.Covered += r.Covered
	}
	s.Percent = percent(s.Covered, s.Total)
	return s
}

func percent(covered, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(covered) * 100 / float64(total)
}

func match(pattern, p string) bool {
	ok, err := doublestar.Match(pattern, p)
	return err == nil && ok
}

func extract(cv registry.CoverageValue, files []File) []sourceValue {
	seen := make(map[string]bool)
	var out []sourceValue
	add := func(v sourceValue) {
		if v.value == "" || seen[v.value] {
			return
		}
		if cv.SourceRe != nil && cv.SourceType != registry.SourceStringLiterals && !cv.SourceRe.MatchString(v.value) {
			return
		}
		seen[v.value] = true
		out = append(out, v)
	}

	for _, f := range files {
		if !match(cv.InFiles, f.Path) || f.Model == nil {
			continue
		}
		switch cv.SourceType {
		case registry.SourceExportNames:
			for _, e := range f.Model.Exports {
				add(sourceValue{e.Name, f.Path, e.Line})
			}
		case registry.SourceFileNames:
			base := path.Base(f.Path)
			add(sourceValue{strings.TrimSuffix(base, path.Ext(base)), f.Path, 0})
		case registry.SourceStringLiterals:
			text := f.Model.Text
			if cv.SourceRe != nil && !cv.SourceRe.MatchString(text) {
				continue
			}
			for _, loc := range cv.ExtractRe.FindAllStringSubmatchIndex(text, -1) {
				start, end := loc[0], loc[1]
				if len(loc) >= 4 && loc[2] >= 0 {
					start, end = loc[2], loc[3]
				}
				add(sourceValue{text[start:end], f.Path, strings.Count(text[:start], "\n") + 1})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].value < out[j].value })
	return out
}

// found looks for expected as a whole identifier in target contents or in a
// target file name.
func found(expected string, targets []File) bool {
	re := identifierPattern(expected)
	for _, t := range targets {
		if strings.Contains(path.Base(t.Path), expected) {
			return true
		}
		if t.Model != nil && re.MatchString(t.Model.Text) {
			return true
		}
	}
	return false
}

func identifierPattern(s string) *regexp.Regexp {
	expr := regexp.QuoteMeta(s)
	if s != "" && isWord(s[0]) {
		expr = `(?:^|[^\w$])` + expr
	}
	if s != "" && isWord(s[len(s)-1]) {
		expr += `(?:$|[^\w$])`
	}
	return regexp.MustCompile(expr)
}

func isWord(b byte) bool {
	return b == '_' || b == '$' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
