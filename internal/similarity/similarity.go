// Package similarity flags files of the same architecture whose structure
// is nearly identical.
package similarity

import (
	"errors"
	"math"
	"sort"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

var log = logger.ForComponent("similarity")

var ErrNoModel = errors.New("no semantic model")

const (
	weightExports = 0.30
	weightMethods = 0.25
	weightClasses = 0.15
	weightImports = 0.20
	weightLines   = 0.10
)

// Signature is a fixed-shape fingerprint of a file. It never holds content.
type Signature struct {
	File      string   `json:"file"`
	ArchID    string   `json:"arch_id"`
	Exports   []string `json:"exports"`
	Methods   []string `json:"methods"`
	Classes   []string `json:"classes"`
	Imports   []string `json:"imports"`
	LineCount int      `json:"line_count"`
}

func Extract(m *semantic.Model, archID string) (Signature, error) {
	if m == nil {
		return Signature{}, ErrNoModel
	}
	sig := Signature{File: m.Path, ArchID: archID, LineCount: m.LineCount}
	sig.Exports = uniq(m.ExportNames())
	sig.Imports = uniq(m.ImportSpecifiers())
	var classes, methods []string
	for _, t := range m.Types {
		classes = append(classes, t.Name)
		for _, meth := range t.Methods {
			methods = append(methods, meth.Name)
		}
	}
	sig.Classes = uniq(classes)
	sig.Methods = uniq(methods)
	return sig, nil
}

type Input struct {
	Path   string
	ArchID string
	Model  *semantic.Model
}

// ExtractAll builds signatures for every input. A file whose signature
// cannot be built is logged and skipped.
func ExtractAll(inputs []Input) []Signature {
	sigs := make([]Signature, 0, len(inputs))
	for _, in := range inputs {
		sig, err := Extract(in.Model, in.ArchID)
		if err != nil {
			log.Warn("skipping file for similarity", "path", in.Path, "error", err)
			continue
		}
		sig.File = in.Path
		sigs = append(sigs, sig)
	}
	return sigs
}

// Score is a weighted Jaccard overlap of exports, methods, classes and
// imports, blended with line-count proximity. Dimensions empty on both sides
// are left out. Files sharing no structure score 0 whatever their length.
func Score(a, b Signature) float64 {
	var sum, weights float64
	dims := []struct {
		x, y   []string
		weight float64
	}{
		{a.Exports, b.Exports, weightExports},
		{a.Methods, b.Methods, weightMethods},
		{a.Classes, b.Classes, weightClasses},
		{a.Imports, b.Imports, weightImports},
	}
	for _, d := range dims {
		if len(d.x) == 0 && len(d.y) == 0 {
			continue
		}
		sum += d.weight * jaccard(d.x, d.y)
		weights += d.weight
	}
	if weights == 0 || sum == 0 {
		return 0
	}
	structural := sum / weights
	return math.Min(1, (1-weightLines)*structural+weightLines*lineProximity(a.LineCount, b.LineCount))
}

func jaccard(x, y []string) float64 {
	set := make(map[string]bool, len(x))
	for _, v := range x {
		set[v] = true
	}
	inter := 0
	union := len(set)
	for _, v := range y {
		if set[v] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func lineProximity(a, b int) float64 {
	if a == b {
		return 1
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}

type Pair struct {
	FileA     string   `json:"file_a"`
	FileB     string   `json:"file_b"`
	ArchID    string   `json:"arch_id"`
	Score     float64  `json:"score"`
	Threshold float64  `json:"threshold"`
	Shared    []string `json:"shared,omitempty"`
}

const epsilon = 1e-9

// Analyze compares every pair of files within each architecture that has a
// threshold and returns the pairs scoring at or above it.
func Analyze(sigs []Signature, thresholds map[string]float64) []Pair {
	byArch := make(map[string][]Signature)
	for _, s := range sigs {
		if _, ok := thresholds[s.ArchID]; ok {
			byArch[s.ArchID] = append(byArch[s.ArchID], s)
		}
	}

	archIDs := make([]string, 0, len(byArch))
	for id := range byArch {
		archIDs = append(archIDs, id)
	}
	sort.Strings(archIDs)

	var pairs []Pair
	for _, id := range archIDs {
		group := byArch[id]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].File < group[j].File })
		threshold := thresholds[id]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				score := Score(group[i], group[j])
				if score+epsilon < threshold || score == 0 {
					continue
				}
				pairs = append(pairs, Pair{
					FileA:     group[i].File,
					FileB:     group[j].File,
					ArchID:    id,
					Score:     math.Round(score*1000) / 1000,
					Threshold: threshold,
					Shared:    shared(group[i], group[j]),
				})
			}
		}
	}
	return pairs
}

func shared(a, b Signature) []string {
	set := make(map[string]bool)
	for _, list := range [][]string{a.Exports, a.Methods, a.Classes} {
		for _, v := range list {
			set[v] = true
		}
	}
	var out []string
	seen := make(map[string]bool)
	for _, list := range [][]string{b.Exports, b.Methods, b.Classes} {
		for _, v := range list {
			if set[v] && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
