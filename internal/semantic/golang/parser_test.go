package golang

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/semantic"
)

func parseFixture(t *testing.T) *semantic.Model {
	t.Helper()
	content, err := os.ReadFile("testdata/http_handler.go")
	require.NoError(t, err)
	m, err := New().Parse("api/http_handler.go", content)
	require.NoError(t, err)
	return m
}

func TestParse_Imports(t *testing.T) {
	m := parseFixture(t)

	assert.Equal(t, []string{"context", "encoding/json", "fmt", "net/http", "time"}, m.ImportSpecifiers())
	assert.Equal(t, []string{"json"}, m.Imports[1].Names)
	assert.Equal(t, 5, m.Imports[0].Line)
}

func TestParse_TypesAndMethods(t *testing.T) {
	m := parseFixture(t)

	byName := make(map[string]semantic.TypeDecl)
	for _, td := range m.Types {
		byName[td.Name] = td
	}

	require.Contains(t, byName, "UserService")
	assert.Equal(t, "interface", byName["UserService"].Kind)
	assert.Len(t, byName["UserService"].Methods, 4)

	handler := byName["Handler"]
	assert.Equal(t, "struct", handler.Kind)
	var public, private []string
	for _, meth := range handler.Methods {
		if meth.Visibility == semantic.VisibilityPublic {
			public = append(public, meth.Name)
		} else {
			private = append(private, meth.Name)
		}
	}
	assert.Equal(t, []string{"GetUser", "ListUsers", "CreateUser"}, public)
	assert.Equal(t, []string{"healthCheck"}, private)
}

func TestParse_ExportsAndCalls(t *testing.T) {
	m := parseFixture(t)

	exports := m.ExportNames()
	assert.Contains(t, exports, "NewHandler")
	assert.Contains(t, exports, "UserService")
	assert.Contains(t, exports, "RequestIDKey")
	assert.Contains(t, exports, "MaxPageSize")
	assert.NotContains(t, exports, "contextKey")

	var callees []string
	for _, c := range m.Calls {
		callees = append(callees, c.Callee)
	}
	assert.Contains(t, callees, "http.Error")
	assert.Contains(t, callees, "json.NewEncoder")
	assert.Contains(t, callees, "h.svc.GetUser")
}

func TestParse_Capabilities(t *testing.T) {
	caps := New().Capabilities()
	assert.True(t, caps.Visibility)
	assert.False(t, caps.Inheritance)
	assert.False(t, caps.Annotations)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := New().Parse("broken.go", []byte("package x\nfunc {"))
	assert.Error(t, err)
}
