package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMixins = `
tested:
  description: must have tests
  constraints:
    - rule: require_import
      value: testing
      severity: warning
  hints: [write tests]
logged:
  inline: only
  constraints:
    - rule: require_call
      value: log.*
no_inline:
  inline: forbidden
  constraints:
    - rule: max_file_lines
      value: 400
`

const testArchitectures = `
base:
  description: root
  constraints:
    - rule: forbid_import
      value: [axios, request]
    - rule: max_file_lines
      value: 500
  hints: [keep files small]
service:
  inherits: base
  mixins: [tested]
  constraints:
    - rule: forbid_call
      value: console.log
      severity: warning
service.strict:
  inherits: service
  exclude_constraints: ["forbid_import:request"]
  constraints:
    - rule: max_file_lines
      value: 200
      override: true
service.loose:
  inherits: service
  exclude_constraints: [forbid_import]
`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Parse([]byte(testArchitectures), []byte(testMixins))
	require.NoError(t, err)
	return reg
}

func keys(cs []Constraint) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Key())
	}
	return out
}

func TestResolveInheritsParentConstraints(t *testing.T) {
	reg := loadTestRegistry(t)

	parent, err := reg.Resolve("base", nil)
	require.NoError(t, err)
	child, err := reg.Resolve("service", nil)
	require.NoError(t, err)

	childKeys := keys(child.Constraints)
	for _, k := range keys(parent.Constraints) {
		assert.Contains(t, childKeys, k)
	}
	assert.Equal(t, []string{"service", "base"}, child.Chain)
	assert.Equal(t, []string{"tested"}, child.AppliedMixins)
	assert.Equal(t, []string{
		"forbid_import:axios",
		"forbid_import:request",
		"max_file_lines:500",
		"require_import:testing",
		"forbid_call:console.log",
	}, childKeys)
	assert.Equal(t, []string{"keep files small", "write tests"}, child.Hints)
	assert.Empty(t, child.Conflicts)
}

func TestResolveExclusionsAndOverride(t *testing.T) {
	reg := loadTestRegistry(t)

	strict, err := reg.Resolve("service.strict", nil)
	require.NoError(t, err)
	ks := keys(strict.Constraints)
	assert.Contains(t, ks, "forbid_import:axios")
	assert.NotContains(t, ks, "forbid_import:request")
	assert.Contains(t, ks, "max_file_lines:200")
	assert.NotContains(t, ks, "max_file_lines:500")

	loose, err := reg.Resolve("service.loose", nil)
	require.NoError(t, err)
	for _, c := range loose.Constraints {
		assert.NotEqual(t, RuleForbidImport, c.Rule)
	}
}

func TestResolveChildReplacesSameKey(t *testing.T) {
	reg, err := Parse([]byte(`
a:
  constraints:
    - rule: forbid_import
      value: lodash
b:
  inherits: a
  constraints:
    - rule: forbid_import
      value: lodash
      severity: warning
`), nil)
	require.NoError(t, err)

	res, err := reg.Resolve("b", nil)
	require.NoError(t, err)
	require.Len(t, res.Constraints, 1)
	assert.Equal(t, SeverityWarning, res.Constraints[0].Severity)
	assert.Equal(t, "b", res.Constraints[0].Source)
	assert.Empty(t, res.Conflicts)
}

func TestResolveOverrideReplacesAncestorRule(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "list override keeps every item",
			doc: `
base:
  constraints:
    - rule: forbid_import
      value: [request]
child:
  inherits: base
  constraints:
    - rule: forbid_import
      value: [axios, lodash]
      override: true
`,
			want: []string{"forbid_import:axios", "forbid_import:lodash"},
		},
		{
			name: "scalar override under a list",
			doc: `
base:
  constraints:
    - rule: forbid_import
      value: [axios, request]
    - rule: max_file_lines
      value: 500
child:
  inherits: base
  constraints:
    - rule: forbid_import
      value: got
      override: true
`,
			want: []string{"max_file_lines:500", "forbid_import:got"},
		},
		{
			name: "list override after a plain list in the same architecture",
			doc: `
base:
  constraints:
    - rule: forbid_call
      value: [eval]
child:
  inherits: base
  constraints:
    - rule: forbid_call
      value: [exec, spawn]
      override: true
    - rule: forbid_call
      value: [fork]
`,
			want: []string{"forbid_call:exec", "forbid_call:spawn", "forbid_call:fork"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Parse([]byte(tt.doc), nil)
			require.NoError(t, err)
			res, err := reg.Resolve("child", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(res.Constraints))
		})
	}
}

func TestResolveKeepsCoverageWithSharedTarget(t *testing.T) {
	reg, err := Parse([]byte(`
handlers:
  constraints:
    - rule: require_coverage
      value:
        source_type: export_names
        in_files: "src/events/**/*.ts"
        target_pattern: "handle${value}"
        in_target_files: "src/handlers/**/*.ts"
    - rule: require_coverage
      value:
        source_type: export_names
        in_files: "src/commands/**/*.ts"
        target_pattern: "handle${value}"
        in_target_files: "src/handlers/**/*.ts"
`), nil)
	require.NoError(t, err)

	res, err := reg.Resolve("handlers", nil)
	require.NoError(t, err)
	require.Len(t, res.Constraints, 2)
	assert.Equal(t, "src/events/**/*.ts", res.Constraints[0].Value.(CoverageValue).InFiles)
	assert.Equal(t, "src/commands/**/*.ts", res.Constraints[1].Value.(CoverageValue).InFiles)
}

func TestResolveCycle(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		id   string
	}{
		{"self", "a:\n  inherits: a\n", "a"},
		{"mutual", "a:\n  inherits: b\nb:\n  inherits: a\n", "a"},
		{"indirect", "a:\n  inherits: b\nb:\n  inherits: c\nc:\n  inherits: b\n", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Parse([]byte(tt.doc), nil)
			require.NoError(t, err)

			_, err = reg.Resolve(tt.id, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCycle))
			var ce *CycleError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.id, ce.Chain[0])
		})
	}
}

func TestResolveUnresolvedReferences(t *testing.T) {
	reg, err := Parse([]byte(`
orphan:
  inherits: missing
mixed:
  mixins: [ghost]
`), nil)
	require.NoError(t, err)

	_, err = reg.Resolve("orphan", nil)
	var ue *UnresolvedReferenceError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "missing", ue.ID)
	assert.Equal(t, "architecture", ue.Kind)

	_, err = reg.Resolve("mixed", nil)
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "ghost", ue.ID)
	assert.Equal(t, "mixin", ue.Kind)

	_, err = reg.Resolve("nope", nil)
	assert.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestResolveInlineModes(t *testing.T) {
	reg := loadTestRegistry(t)

	res, err := reg.Resolve("base", []string{"logged"})
	require.NoError(t, err)
	assert.Contains(t, keys(res.Constraints), "require_call:log.*")
	assert.Equal(t, []string{"logged"}, res.AppliedMixins)

	_, err = reg.Resolve("base", []string{"no_inline"})
	assert.ErrorIs(t, err, ErrInlineMode)

	bad, err := Parse([]byte("x:\n  mixins: [logged]\n"), []byte(testMixins))
	require.NoError(t, err)
	_, err = bad.Resolve("x", nil)
	var ie *InlineModeError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, InlineOnly, ie.Mode)
	assert.Equal(t, "logged", ie.MixinID)
}

func TestResolveConflicts(t *testing.T) {
	reg, err := Parse([]byte(`
a:
  mixins: [m1, m2]
  constraints:
    - rule: require_import
      value: zod
    - rule: forbid_import
      value: zod
`), []byte(`
m1:
  constraints:
    - rule: forbid_call
      value: eval
m2:
  constraints:
    - rule: forbid_call
      value: eval
      severity: warning
`))
	require.NoError(t, err)

	res, err := reg.Resolve("a", nil)
	require.NoError(t, err)

	var kinds []ConflictKind
	for _, c := range res.Conflicts {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, ConflictSeverity)
	assert.Contains(t, kinds, ConflictContradiction)
}

func TestMalformedConstraints(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown rule", "a:\n  constraints:\n    - rule: forbid_everything\n      value: x\n", ErrUnknownRule},
		{"bad limit", "a:\n  constraints:\n    - rule: max_file_lines\n      value: lots\n", ErrMalformedConstraint},
		{"bad regex", "a:\n  constraints:\n    - rule: forbid_pattern\n      value: \"(\"\n", ErrMalformedConstraint},
		{"missing value", "a:\n  constraints:\n    - rule: forbid_import\n", ErrMalformedConstraint},
		{"bad severity", "a:\n  constraints:\n    - rule: forbid_import\n      value: x\n      severity: fatal\n", ErrMalformedConstraint},
		{"coverage scalar", "a:\n  constraints:\n    - rule: require_coverage\n      value: x\n", ErrMalformedConstraint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var ce *ConstraintError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "a", ce.Owner)
		})
	}
}

func TestSimilarityThresholdFallback(t *testing.T) {
	reg, err := Parse([]byte(`
a:
  constraints:
    - rule: max_similarity
      value: high
b:
  constraints:
    - rule: max_similarity
      value: 0.65
`), nil)
	require.NoError(t, err)

	a, err := reg.Get("a")
	require.NoError(t, err)
	v := a.Constraints[0].Value.(SimilarityValue)
	assert.True(t, v.Defaulted)
	assert.Equal(t, DefaultSimilarityThreshold, v.Threshold)

	b, err := reg.Get("b")
	require.NoError(t, err)
	v = b.Constraints[0].Value.(SimilarityValue)
	assert.False(t, v.Defaulted)
	assert.InDelta(t, 0.65, v.Threshold, 1e-9)
}

func TestCoverageConstraintDecodes(t *testing.T) {
	reg, err := Parse([]byte(`
events:
  constraints:
    - rule: require_coverage
      value:
        source_type: export_names
        in_files: "src/events/**/*.ts"
        source_pattern: "Event$"
        transform: PascalCase
        target_pattern: "handle${value}"
        in_target_files: "src/handlers/**/*.ts"
`), nil)
	require.NoError(t, err)

	arch, err := reg.Get("events")
	require.NoError(t, err)
	require.Len(t, arch.Constraints, 1)
	cv, ok := arch.Constraints[0].Value.(CoverageValue)
	require.True(t, ok)
	assert.Equal(t, SourceExportNames, cv.SourceType)
	assert.NotNil(t, cv.SourceRe)
	assert.Equal(t, "require_coverage:handle${value}", arch.Constraints[0].Key())
}

func TestRegistryValidate(t *testing.T) {
	reg := loadTestRegistry(t)
	assert.NoError(t, reg.Validate())

	broken, err := Parse([]byte("a:\n  inherits: b\nb:\n  inherits: a\n"), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, broken.Validate(), ErrCycle)
}

func TestMatchID(t *testing.T) {
	assert.True(t, MatchID("domain.model", "domain.model"))
	assert.True(t, MatchID("domain.*", "domain.model"))
	assert.False(t, MatchID("domain.*", "domain.model.user"))
	assert.True(t, MatchID("domain.**", "domain.model.user"))
	assert.False(t, MatchID("domain", "domain.model"))
	assert.True(t, MatchID("**", "anything.at.all"))
}
