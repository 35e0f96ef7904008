package coverage

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

func model(path, text string, exports ...string) File {
	m := &semantic.Model{Path: path, Text: text}
	for i, e := range exports {
		m.Exports = append(m.Exports, semantic.Export{Name: e, Line: i + 1})
	}
	return File{Path: path, Model: m}
}

func TestMissingHandlerIsAGap(t *testing.T) {
	files := []File{
		model("src/events/delete.ts", "", "DeleteEvent"),
		model("src/events/create.ts", "", "CreateEvent"),
		model("src/handlers/delete.ts", "export function handleDeleteEvent(e) {}\n"),
	}
	cv := registry.CoverageValue{
		SourceType:    registry.SourceExportNames,
		InFiles:       "src/events/**",
		TargetPattern: "handle${value}",
		InTargetFiles: "src/handlers/**",
	}

	res := Validate("require_coverage:handle${value}", cv, files)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Covered)
	assert.InDelta(t, 50.0, res.Percent, 1e-9)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, Gap{
		Value:          "CreateEvent",
		SourceFile:     "src/events/create.ts",
		SourceLine:     1,
		ExpectedTarget: "handleCreateEvent",
	}, res.Gaps[0])
}

func TestIdentifierBoundaries(t *testing.T) {
	files := []File{
		model("src/events/a.ts", "", "Save"),
		model("src/handlers/a.ts", "handleSaveAll()\n"),
	}
	cv := registry.CoverageValue{
		SourceType: registry.SourceExportNames, InFiles: "src/events/**",
		TargetPattern: "handle${value}", InTargetFiles: "src/handlers/**",
	}
	res := Validate("k", cv, files)
	assert.Equal(t, 0, res.Covered)
}

func TestStringLiteralsAndTransform(t *testing.T) {
	files := []File{
		model("src/routes.ts", "route('user-created');\nroute('order-shipped');\n"),
		model("src/handlers/index.ts", "export const onUserCreated = () => {};\n"),
	}
	cv := registry.CoverageValue{
		SourceType:    registry.SourceStringLiterals,
		InFiles:       "src/routes.ts",
		ExtractValues: `route\('([^']+)'\)`,
		ExtractRe:     regexp.MustCompile(`route\('([^']+)'\)`),
		Transform:     "PascalCase",
		TargetPattern: "on${value}",
		InTargetFiles: "src/handlers/**",
	}

	res := Validate("k", cv, files)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Covered)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, "order-shipped", res.Gaps[0].Value)
	assert.Equal(t, 2, res.Gaps[0].SourceLine)
	assert.Equal(t, "onOrderShipped", res.Gaps[0].ExpectedTarget)
}

func TestFileNamesMatchTargetPaths(t *testing.T) {
	files := []File{
		model("src/models/user.ts", ""),
		model("src/models/order.ts", ""),
		model("tests/user.test.ts", ""),
	}
	cv := registry.CoverageValue{
		SourceType: registry.SourceFileNames, InFiles: "src/models/*.ts",
		TargetPattern: "${value}.test.ts", InTargetFiles: "tests/**",
	}
	res := Validate("k", cv, files)
	assert.Equal(t, 1, res.Covered)
	require.Len(t, res.Gaps, 1)
	assert.Equal(t, "order", res.Gaps[0].Value)
}

func TestSourcePatternFilters(t *testing.T) {
	files := []File{model("src/events/a.ts", "", "DeleteEvent", "helper")}
	cv := registry.CoverageValue{
		SourceType: registry.SourceExportNames, InFiles: "src/**",
		SourcePattern: "Event$", SourceRe: regexp.MustCompile("Event$"),
		TargetPattern: "handle${value}", InTargetFiles: "none/**",
	}
	res := Validate("k", cv, files)
	assert.Equal(t, 1, res.Total)
}

func TestSummarizeSumsCounts(t *testing.T) {
	s := Summarize([]Result{
		{Total: 1, Covered: 1, Percent: 100},
		{Total: 3, Covered: 0, Percent: 0},
	})
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Covered)
	assert.InDelta(t, 25.0, s.Percent, 1e-9)

	assert.InDelta(t, 100.0, Summarize(nil).Percent, 1e-9)
}

func TestTransform(t *testing.T) {
	tests := []struct{ style, in, want string }{
		{"PascalCase", "user-created", "UserCreated"},
		{"PascalCase", "DeleteEvent", "DeleteEvent"},
		{"camelCase", "UserCreated", "userCreated"},
		{"snake_case", "UserCreatedEvent", "user_created_event"},
		{"kebab-case", "userCreated", "user-created"},
		{"UPPER_CASE", "userCreated", "USER_CREATED"},
		{"lowercase", "User_Created", "usercreated"},
		{"snake_case", "HTTPServer", "http_server"},
		{"", "As-Is", "As-Is"},
		{"none", "As-Is", "As-Is"},
	}
	for _, tt := range tests {
		t.Run(tt.style+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Transform(tt.style, tt.in))
		})
	}
}
