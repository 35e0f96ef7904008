package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/engine"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/project"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/registry"
)

var (
	checkJSON        bool
	checkSkipRules   []string
	checkSeverities  []string
	checkNoProject   bool
	checkFailOnWarns bool

	checkCmd = &cobra.Command{
		Use:   "check [files...]",
		Short: "Validate files against their architectures",
		Long: `Validate the given files, or the whole project when none are given.

Exit codes: 0 when every file passes, 1 when any file fails, 2 on error.`,
		RunE: runCheck,
	}
)

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the report as JSON")
	checkCmd.Flags().StringSliceVar(&checkSkipRules, "skip-rule", nil, "project-level rule to skip (repeatable)")
	checkCmd.Flags().StringSliceVar(&checkSeverities, "severity", nil, "only keep project-level findings of these severities")
	checkCmd.Flags().BoolVar(&checkNoProject, "no-project", false, "skip cross-file passes")
	checkCmd.Flags().BoolVar(&checkFailOnWarns, "strict", false, "exit 1 on warnings too")
}

func runCheck(cmd *cobra.Command, args []string) error {
	req := project.Request{
		Files:       args,
		SkipRules:   checkSkipRules,
		SkipProject: checkNoProject,
	}
	for _, s := range checkSeverities {
		sev := registry.Severity(strings.ToLower(s))
		if sev != registry.SeverityError && sev != registry.SeverityWarning {
			return fmt.Errorf("unknown severity %q", s)
		}
		req.Severities = append(req.Severities, sev)
	}

	a, err := project.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := a.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	switch {
	case report.Failed():
		return exitCodeError{exitViolations}
	case checkFailOnWarns && report.Summary.Warned > 0:
		return exitCodeError{exitViolations}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, r *project.Report) {
	for _, res := range r.Results {
		if res.Status == engine.StatusPass && len(res.OverridesActive) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s [%s] %s\n", res.Path, orNone(res.ArchID), strings.ToUpper(string(res.Status)))
		for _, v := range res.Violations {
			printViolation(w, "error", v)
		}
		for _, v := range res.Warnings {
			printViolation(w, "warn", v)
		}
		for _, o := range res.OverridesActive {
			fmt.Fprintf(w, "  override %s (expires %s): %s\n", o.Key(), orNone(o.Expires), o.Reason)
		}
	}

	for _, e := range r.Errors {
		fmt.Fprintf(w, "%s: %s\n", e.Path, e.Error)
	}
	if r.Coverage != nil {
		fmt.Fprintf(w, "coverage: %d/%d (%.1f%%)\n", r.Coverage.Covered, r.Coverage.Total, r.Coverage.Percent)
	}
	if r.Graph != nil {
		fmt.Fprintf(w, "graph: %d files, %d edges, %d cycles in %s\n", r.Graph.Files, r.Graph.Edges, r.Graph.Cycles, r.Graph.BuildTime)
	}

	s := r.Summary
	fmt.Fprintf(w, "%d files: %d passed, %d warned, %d failed (%d errors, %d warnings, %d overrides)\n",
		s.Total, s.Passed, s.Warned, s.Failed, s.Errors, s.Warnings, s.OverridesActive)
}

func printViolation(w io.Writer, level string, v engine.Violation) {
	loc := ""
	if v.Line > 0 {
		loc = fmt.Sprintf(":%d", v.Line)
	}
	fmt.Fprintf(w, "  %s%s %s: %s\n", level, loc, v.Key(), v.Message)
	if v.Why != "" {
		fmt.Fprintf(w, "    why: %s\n", v.Why)
	}
	if v.Alternative != "" {
		fmt.Fprintf(w, "    instead: %s\n", v.Alternative)
	}
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
