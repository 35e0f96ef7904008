package header

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeScriptBlock(t *testing.T) {
	src := `/**
 * @arch service.payment +tested +logged
 *
 * @override forbid_import:axios
 * @reason legacy gateway client
 * @expires 2099-01-01
 * @ticket PAY-12
 * @approved_by alice
 */
import axios from 'axios';
// @override forbid_call:eval
`
	h := Parse(src)
	assert.Equal(t, "service.payment", h.ArchID)
	assert.Equal(t, 2, h.Line)
	assert.Equal(t, []string{"tested", "logged"}, h.InlineMixins)
	require.Len(t, h.Overrides, 1)

	o := h.Overrides[0]
	assert.Equal(t, "forbid_import", o.Rule)
	assert.Equal(t, "axios", o.Value)
	assert.Equal(t, "legacy gateway client", o.Reason)
	assert.Equal(t, "2099-01-01", o.Expires)
	assert.Equal(t, "PAY-12", o.Ticket)
	assert.Equal(t, "alice", o.ApprovedBy)
	assert.Equal(t, 4, o.Line)
}

func TestParseLineComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		arch string
	}{
		{"go", "// @arch domain.repo\n\npackage repo\n", "domain.repo"},
		{"python", "#!/usr/bin/env python\n# @arch api.handler\nimport os\n", "api.handler"},
		{"docstring", "\"\"\"\n@arch api.view\n\"\"\"\nimport os\n", "api.view"},
		{"after code", "package x\n// @arch late\n", ""},
		{"none", "const a = 1\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.arch, Parse(tt.src).ArchID)
		})
	}
}

func TestParseMultipleOverrides(t *testing.T) {
	src := `// @arch svc
// @override forbid_import:axios
// @reason one
// @override max_file_lines:500
// @reason two
// @override broken
`
	h := Parse(src)
	require.Len(t, h.Overrides, 3)
	assert.Equal(t, "one", h.Overrides[0].Reason)
	assert.Equal(t, "two", h.Overrides[1].Reason)
	assert.Equal(t, "max_file_lines:500", h.Overrides[1].Key())
	assert.Equal(t, "broken", h.Overrides[2].Rule)
}

func TestEvaluateStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	policy := Policy{MaxExpiryDays: 365, ExpiringWithin: 7}

	tests := []struct {
		name string
		o    Override
		want Status
	}{
		{"active no expiry", Override{Rule: "forbid_import", Value: "axios", Reason: "r"}, StatusActive},
		{"active future", Override{Rule: "forbid_import", Value: "axios", Reason: "r", Expires: "2026-06-01"}, StatusActive},
		{"expiring", Override{Rule: "forbid_import", Value: "axios", Reason: "r", Expires: "2026-03-15"}, StatusExpiring},
		{"expires today", Override{Rule: "forbid_import", Value: "axios", Reason: "r", Expires: "2026-03-10"}, StatusExpiring},
		{"expired", Override{Rule: "forbid_import", Value: "axios", Reason: "r", Expires: "2026-03-09"}, StatusExpired},
		{"missing reason", Override{Rule: "forbid_import", Value: "axios", Expires: "2026-06-01"}, StatusInvalid},
		{"malformed key", Override{Rule: "broken", Reason: "r"}, StatusInvalid},
		{"unknown rule", Override{Rule: "forbid_everything", Value: "x", Reason: "r"}, StatusInvalid},
		{"bad date", Override{Rule: "forbid_import", Value: "axios", Reason: "r", Expires: "next week"}, StatusInvalid},
		{"too far", Override{Rule: "forbid_import", Value: "axios", Reason: "r", Expires: "2030-01-01"}, StatusInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate([]Override{tt.o}, policy, now)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Status, got[0].Problem)
		})
	}
}

func TestEvaluateRequireExpiry(t *testing.T) {
	got := Evaluate([]Override{{Rule: "forbid_import", Value: "x", Reason: "r"}}, Policy{RequireExpiry: true}, time.Now())
	assert.Equal(t, StatusInvalid, got[0].Status)
	assert.Equal(t, "missing @expires", got[0].Problem)
}

func TestEvaluateMaxPerFile(t *testing.T) {
	in := []Override{
		{Rule: "forbid_import", Value: "a", Reason: "r"},
		{Rule: "forbid_import", Value: "b"},
		{Rule: "forbid_import", Value: "c", Reason: "r"},
		{Rule: "forbid_import", Value: "d", Reason: "r"},
	}
	got := Evaluate(in, Policy{MaxPerFile: 2}, time.Now())

	assert.Equal(t, StatusActive, got[0].Status)
	assert.Equal(t, StatusInvalid, got[1].Status)
	assert.Equal(t, StatusActive, got[2].Status)
	assert.Equal(t, StatusInvalid, got[3].Status)
	assert.Contains(t, got[3].Problem, "maximum of 2")
	assert.Empty(t, in[0].Status)
}
