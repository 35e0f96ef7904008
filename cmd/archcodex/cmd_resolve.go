package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
)

var (
	resolveJSON   bool
	resolveInline []string

	resolveCmd = &cobra.Command{
		Use:   "resolve <arch-id>",
		Short: "Print the flattened constraints of an architecture",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}
)

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print as JSON")
	resolveCmd.Flags().StringSliceVar(&resolveInline, "mixin", nil, "inline mixin to apply, as in @arch id +mixin")
}

type resolvedView struct {
	ID            string              `json:"id"`
	Chain         []string            `json:"inheritance_chain"`
	AppliedMixins []string            `json:"applied_mixins"`
	Constraints   []constraintView    `json:"constraints"`
	Hints         []string            `json:"hints,omitempty"`
	Conflicts     []registry.Conflict `json:"conflicts,omitempty"`
}

type constraintView struct {
	Rule     string            `json:"rule"`
	Value    string            `json:"value,omitempty"`
	Severity registry.Severity `json:"severity"`
	Source   string            `json:"source"`
	Why      string            `json:"why,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	reg, err := registry.LoadDir(cfg.Abs(cfg.Registry))
	if err != nil {
		return err
	}
	resolved, err := reg.Resolve(args[0], resolveInline)
	if err != nil {
		return err
	}

	view := resolvedView{
		ID:            resolved.ID,
		Chain:         resolved.Chain,
		AppliedMixins: resolved.AppliedMixins,
		Hints:         resolved.Hints,
		Conflicts:     resolved.Conflicts,
	}
	for _, c := range resolved.Constraints {
		view.Constraints = append(view.Constraints, constraintView{
			Rule:     string(c.Rule),
			Value:    c.Value.Key(),
			Severity: c.Severity,
			Source:   c.Source,
			Why:      c.Why,
		})
	}

	out := cmd.OutOrStdout()
	if resolveJSON {
		return writeJSON(out, view)
	}
	printResolved(out, view)
	return nil
}

func printResolved(w io.Writer, v resolvedView) {
	fmt.Fprintf(w, "%s\n", v.ID)
	fmt.Fprintf(w, "  chain:  %s\n", strings.Join(v.Chain, " -> "))
	if len(v.AppliedMixins) > 0 {
		fmt.Fprintf(w, "  mixins: %s\n", strings.Join(v.AppliedMixins, ", "))
	}
	fmt.Fprintln(w, "  constraints:")
	for _, c := range v.Constraints {
		key := c.Rule
		if c.Value != "" {
			key += ":" + c.Value
		}
		fmt.Fprintf(w, "    %-7s %s  (from %s)\n", c.Severity, key, c.Source)
	}
	for _, h := range v.Hints {
		fmt.Fprintf(w, "  hint: %s\n", h)
	}
	for _, c := range v.Conflicts {
		fmt.Fprintf(w, "  conflict (%s) %s: %s\n", c.Kind, c.Key, c.Message)
	}
}
