package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/graph"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

func file(path, arch string, specs ...string) graph.File {
	m := &semantic.Model{Path: path, Language: "typescript"}
	for i, s := range specs {
		m.Imports = append(m.Imports, semantic.Import{Specifier: s, Line: i + 1})
	}
	return graph.File{Path: path, ArchID: arch, Model: m}
}

func testGraph() *graph.Graph {
	return graph.Build([]graph.File{
		file("src/api/users.ts", "api.controller", "../domain/user", "../infra/db"),
		file("src/domain/user.ts", "domain.entity", "../infra/db"),
		file("src/infra/db.ts", "infra.db"),
		file("src/scripts/seed.ts", "", "../infra/db"),
	}, "")
}

func TestValidateLayers(t *testing.T) {
	layers := []Layer{
		{Name: "api", Architectures: []string{"api.*"}, CanImport: []string{"domain"}},
		{Name: "domain", Architectures: []string{"domain.**"}},
		{Name: "infra", Architectures: []string{"infra.*"}, CanImport: []string{"domain"}},
	}
	report := ValidateLayers(testGraph(), layers)

	assert.False(t, report.Passed)
	require.Len(t, report.Violations, 2)
	assert.Equal(t, Violation{
		SourceFile: "src/api/users.ts", SourceGroup: "api",
		TargetFile: "src/infra/db.ts", TargetGroup: "infra",
		ImportPath: "../infra/db", Line: 2,
	}, report.Violations[0])
	assert.Equal(t, "src/domain/user.ts", report.Violations[1].SourceFile)
	assert.Contains(t, report.Violations[0].Message(), "may not import")
}

func TestValidatePackages(t *testing.T) {
	pkgs := []Package{
		{Name: "src", Path: "src", CanImport: []string{"*"}},
		{Name: "api", Path: "src/api", CanImport: []string{"domain", "infra"}},
		{Name: "domain", Path: "src/domain/"},
		{Name: "infra", Path: "src/infra"},
	}
	report := ValidatePackages(testGraph(), pkgs)

	require.Len(t, report.Violations, 1)
	assert.Equal(t, "domain", report.Violations[0].SourceGroup)
	assert.Equal(t, "infra", report.Violations[0].TargetGroup)
}

func TestNoGroupsPasses(t *testing.T) {
	report := ValidateLayers(testGraph(), nil)
	assert.True(t, report.Passed)
	assert.Empty(t, report.Violations)
}
