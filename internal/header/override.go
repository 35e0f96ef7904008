package header

import (
	"fmt"
	"strings"
	"time"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusExpiring Status = "expiring"
	StatusExpired  Status = "expired"
	StatusInvalid  Status = "invalid"
)

const DateLayout = "2006-01-02"

type Override struct {
	Rule       string `json:"rule"`
	Value      string `json:"value"`
	Reason     string `json:"reason,omitempty"`
	Expires    string `json:"expires,omitempty"`
	Ticket     string `json:"ticket,omitempty"`
	ApprovedBy string `json:"approved_by,omitempty"`
	Line       int    `json:"line"`
	Status     Status `json:"status"`
	// Problem explains an invalid or expired status.
	Problem string `json:"problem,omitempty"`
}

func newOverride(spec string, line int) Override {
	spec = strings.TrimSpace(spec)
	o := Override{Line: line}
	rule, value, ok := strings.Cut(spec, ":")
	if !ok {
		o.Rule = spec
		return o
	}
	o.Rule = strings.TrimSpace(rule)
	o.Value = strings.TrimSpace(value)
	return o
}

// Key is the rule:value the override suppresses.
func (o Override) Key() string {
	return o.Rule + ":" + o.Value
}

// Suppresses reports whether the override is in force. Expiring overrides
// still suppress.
func (o Override) Suppresses() bool {
	return o.Status == StatusActive || o.Status == StatusExpiring
}

type Policy struct {
	MaxPerFile     int
	RequireExpiry  bool
	MaxExpiryDays  int
	ExpiringWithin int // days
}

func DefaultPolicy() Policy {
	return Policy{MaxPerFile: 3, MaxExpiryDays: 180, ExpiringWithin: 14}
}

// Evaluate returns copies of overrides with Status and Problem set as of now.
// Overrides in force beyond MaxPerFile are marked invalid in file order.
func Evaluate(overrides []Override, policy Policy, now time.Time) []Override {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]Override, len(overrides))
	inForce := 0
	for i, o := range overrides {
		o.Status, o.Problem = status(o, policy, today)
		if o.Suppresses() {
			inForce++
			if policy.MaxPerFile > 0 && inForce > policy.MaxPerFile {
				o.Status = StatusInvalid
				o.Problem = fmt.Sprintf("exceeds the maximum of %d overrides per file", policy.MaxPerFile)
			}
		}
		out[i] = o
	}
	return out
}

func status(o Override, policy Policy, today time.Time) (Status, string) {
	if o.Rule == "" || o.Value == "" {
		return StatusInvalid, fmt.Sprintf("malformed override %q, expected rule:value", o.Key())
	}
	if _, err := registry.ParseRule(o.Rule); err != nil {
		return StatusInvalid, fmt.Sprintf("unknown rule %q", o.Rule)
	}
	if strings.TrimSpace(o.Reason) == "" {
		return StatusInvalid, "missing @reason"
	}

	if o.Expires == "" {
		if policy.RequireExpiry {
			return StatusInvalid, "missing @expires"
		}
		return StatusActive, ""
	}
	expires, err := time.Parse(DateLayout, o.Expires)
	if err != nil {
		return StatusInvalid, fmt.Sprintf("invalid @expires %q, expected YYYY-MM-DD", o.Expires)
	}
	if policy.MaxExpiryDays > 0 && expires.After(today.AddDate(0, 0, policy.MaxExpiryDays)) {
		return StatusInvalid, fmt.Sprintf("@expires is more than %d days away", policy.MaxExpiryDays)
	}
	if expires.Before(today) {
		return StatusExpired, fmt.Sprintf("expired on %s", o.Expires)
	}
	if policy.ExpiringWithin > 0 && !expires.After(today.AddDate(0, 0, policy.ExpiringWithin)) {
		return StatusExpiring, ""
	}
	return StatusActive, ""
}
