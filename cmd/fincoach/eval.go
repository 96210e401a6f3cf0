package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/fincoach/internal/cli"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/config"
	"github.com/Veraticus/fincoach/internal/router"
	"github.com/Veraticus/fincoach/internal/slots"
)

func evalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval FILE",
		Short: "Measure routing accuracy on a labelled corpus",
		Long: `Route every line of a labelled corpus and report accuracy.

Each non-blank line is "utterance<TAB>expected", where expected is a capability
id, "guided_fallback", "unknown_fallback", or "fallback" for either fallback
kind. Lines starting with # are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: runEval,
	}

	cmd.Flags().IntP("workers", "w", 8, "Concurrent routing workers")
	cmd.Flags().Bool("generative", false, "Enable the generative routing pass (requires an LLM provider)")
	cmd.Flags().Bool("show-misses", false, "List every misrouted utterance")

	return cmd
}

// evalCase is one labelled utterance.
type evalCase struct {
	Utterance string
	Expected  string
	Line      int
}

// evalMiss records a wrong route.
type evalMiss struct {
	Case     evalCase
	Decision router.Decision
}

// evalReport aggregates routing outcomes.
type evalReport struct {
	PassUsage map[router.Pass]int
	Kinds     map[router.Kind]int
	Misses    []evalMiss
	Total     int
	Correct   int
	Elapsed   time.Duration
}

// Accuracy is the fraction of correctly routed cases.
func (r evalReport) Accuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Total)
}

type routeFunc func(ctx context.Context, utterance string) router.Decision

func runEval(cmd *cobra.Command, args []string) error {
	workers, _ := cmd.Flags().GetInt("workers")
	generative, _ := cmd.Flags().GetBool("generative")
	showMisses, _ := cmd.Flags().GetBool("show-misses")

	ctx := cli.NewInterruptHandler(os.Stderr).HandleInterrupts(cmd.Context(), "Evaluation stopped; no report was written.")

	f, err := os.Open(config.ExpandPath(args[0]))
	if err != nil {
		return fmt.Errorf("failed to open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()

	cases, err := parseCorpus(f)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		return common.NewUserError("the corpus has no cases", common.ErrInvalidConfig)
	}

	a, err := newApp(ctx, generative)
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	route := func(ctx context.Context, utterance string) router.Decision {
		resolved := a.resolver.Resolve(utterance, slots.Context{Now: time.Now(), Snapshot: snap})
		return a.router.Route(ctx, utterance, resolved)
	}

	progress := cli.NewProgress(os.Stderr, len(cases), "Routing corpus...")
	report, err := evaluate(ctx, cases, route, workers, progress.Step)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), renderEvalReport(report, showMisses))
	return err
}

// parseCorpus reads tab-separated utterance/expected pairs.
func parseCorpus(r io.Reader) ([]evalCase, error) {
	var cases []evalCase
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		utterance, expected, ok := strings.Cut(text, "\t")
		utterance, expected = strings.TrimSpace(utterance), strings.TrimSpace(expected)
		if !ok || utterance == "" || expected == "" {
			return nil, fmt.Errorf("%w: corpus line %d: want \"utterance<TAB>expected\"", common.ErrInvalidConfig, line)
		}
		cases = append(cases, evalCase{Utterance: utterance, Expected: expected, Line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return cases, nil
}

// evaluate routes every case with at most workers in flight. step is called
// once per finished case.
func evaluate(ctx context.Context, cases []evalCase, route routeFunc, workers int, step func()) (evalReport, error) {
	start := time.Now()
	decisions := make([]router.Decision, len(cases))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decisions[i] = route(gctx, c.Utterance)
			if step != nil {
				step()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return evalReport{}, err
	}

	report := evalReport{
		PassUsage: make(map[router.Pass]int),
		Kinds:     make(map[router.Kind]int),
		Total:     len(cases),
		Elapsed:   time.Since(start),
	}
	for i, d := range decisions {
		report.Kinds[d.Kind]++
		for _, p := range d.Passes {
			report.PassUsage[p]++
		}
		if routedAs(cases[i].Expected, d) {
			report.Correct++
		} else {
			report.Misses = append(report.Misses, evalMiss{Case: cases[i], Decision: d})
		}
	}
	return report, nil
}

// routedAs reports whether d satisfies the expected label.
func routedAs(expected string, d router.Decision) bool {
	switch expected {
	case "fallback":
		return d.Kind != router.KindCapability
	case string(router.KindGuidedFallback), string(router.KindUnknownFallback):
		return string(d.Kind) == expected
	default:
		return d.Kind == router.KindCapability && d.CapabilityID == expected
	}
}

func renderEvalReport(r evalReport, showMisses bool) string {
	var b strings.Builder
	b.WriteString(cli.FormatTitle("Routing evaluation") + "\n")
	fmt.Fprintf(&b, "Accuracy: %d/%d (%.1f%%) in %s\n", r.Correct, r.Total, 100*r.Accuracy(), r.Elapsed.Round(time.Millisecond))

	b.WriteString("\nPass usage\n")
	for _, p := range []router.Pass{router.PassPattern, router.PassSemantic, router.PassGenerative} {
		fmt.Fprintf(&b, "  %-12s %5d\n", p, r.PassUsage[p])
	}

	b.WriteString("\nOutcomes\n")
	kinds := make([]string, 0, len(r.Kinds))
	for k := range r.Kinds {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %-18s %5d\n", k, r.Kinds[router.Kind(k)])
	}

	if showMisses && len(r.Misses) > 0 {
		b.WriteString("\nMisses\n")
		for _, m := range r.Misses {
			got := string(m.Decision.Kind)
			if m.Decision.CapabilityID != "" {
				got = m.Decision.CapabilityID
			}
			fmt.Fprintf(&b, "  line %d: %q expected %s, got %s (%s)\n",
				m.Case.Line, m.Case.Utterance, m.Case.Expected, got, m.Decision.Reason)
		}
	}
	return b.String()
}
