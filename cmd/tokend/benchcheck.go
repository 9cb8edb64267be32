package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

const defaultRegressionThreshold = 0.30

// trackedBenchmarks are the issuer benchmarks compared by default, with the
// units checked for each.
var trackedBenchmarks = map[string][]string{
	"BenchmarkIssue":         {"ns/op", "allocs/op"},
	"BenchmarkIssueParallel": {"ns/op"},
	"BenchmarkRenew":         {"ns/op", "allocs/op"},
}

// benchSamples maps benchmark name to unit to the values seen across runs.
type benchSamples map[string]map[string][]float64

func newBenchcheckCmd(a *app) *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "benchcheck <baseline> <candidate>",
		Short: "Fail when go test -bench output regresses against a baseline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if threshold < 0 {
				return fmt.Errorf("--threshold must be >= 0")
			}
			baseline, err := readBenchFile(args[0])
			if err != nil {
				return fmt.Errorf("parse baseline: %w", err)
			}
			candidate, err := readBenchFile(args[1])
			if err != nil {
				return fmt.Errorf("parse candidate: %w", err)
			}

			failures := compareBench(cmd.OutOrStdout(), baseline, candidate, threshold)
			for _, f := range failures {
				a.logger.Error().Msg(f)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d benchmark regressions above %+0.2f%%", len(failures), threshold*100)
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", defaultRegressionThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	return cmd
}

func readBenchFile(path string) (benchSamples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseBench(f)
}

// parseBench collects the tracked lines of go test -bench output.
func parseBench(r io.Reader) (benchSamples, error) {
	samples := benchSamples{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := benchName(fields[0])
		if _, ok := trackedBenchmarks[name]; !ok {
			continue
		}
		if samples[name] == nil {
			samples[name] = map[string][]float64{}
		}

		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], v)
		}
	}
	return samples, scanner.Err()
}

// compareBench prints one row per tracked metric and returns the failures.
func compareBench(out io.Writer, baseline, candidate benchSamples, threshold float64) []string {
	names := make([]string, 0, len(trackedBenchmarks))
	for name := range trackedBenchmarks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failures []string
	fmt.Fprintln(out, "benchmark unit baseline candidate delta")
	for _, name := range names {
		for _, unit := range trackedBenchmarks[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			baseMedian, candMedian := median(base), median(cand)
			if baseMedian <= 0 {
				if candMedian > 0 {
					failures = append(failures, fmt.Sprintf("%s %s grew from zero to %.3f", name, unit, candMedian))
				}
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			fmt.Fprintf(out, "%s %s %.3f %.3f %+0.2f%%\n", name, unit, baseMedian, candMedian, delta*100)
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%%", name, unit, delta*100))
			}
		}
	}
	return failures
}

// benchName strips the -GOMAXPROCS suffix.
func benchName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
