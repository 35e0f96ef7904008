package registry

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchID matches a dotted architecture id against a pattern where '*'
// stays within one segment and '**' spans segments: "domain.*" matches
// "domain.model" but not "domain.model.user".
func MatchID(pattern, id string) bool {
	if pattern == id || pattern == "**" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?[{") {
		return false
	}
	ok, err := doublestar.Match(strings.ReplaceAll(pattern, ".", "/"), strings.ReplaceAll(id, ".", "/"))
	return err == nil && ok
}
