package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Centaurus99/Spearmint/internal/aggregate"
	"github.com/Centaurus99/Spearmint/internal/result"
	"github.com/Centaurus99/Spearmint/internal/stats"
)

// FlowSummary holds the medians of one flow across a scheme's trials.
type FlowSummary struct {
	Flow        int     `json:"flow"`
	Samples     int     `json:"samples"`
	MedianTput  float64 `json:"median_tput"`
	MedianDelay float64 `json:"median_delay"`
}

type SchemeSummary struct {
	Scheme         string        `json:"scheme"`
	Trials         int           `json:"trials"`
	CompletionRate float64       `json:"completion_rate"`
	MeanDurationS  float64       `json:"mean_duration_s"`
	Flows          []FlowSummary `json:"flows"`
}

// Generate reads the trials of one evaluation run and summarizes them per
// scheme and flow. An unreadable trial meta fails the report.
func Generate(runDir, format string, w io.Writer) error {
	metas, err := result.ReadRun(runDir)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		return fmt.Errorf("no trials found under %s", runDir)
	}
	summaries := summarize(metas)

	switch format {
	case "markdown":
		return writeMarkdown(summaries, w)
	case "json":
		return writeJSON(summaries, w)
	default:
		return writeTable(summaries, w)
	}
}

func summarize(metas []*result.TrialMeta) []SchemeSummary {
	type accum struct {
		count     int
		completed int
		duration  float64
		tput      map[int][]float64
		delay     map[int][]float64
	}
	byScheme := map[string]*accum{}

	for _, m := range metas {
		a, ok := byScheme[m.Scheme]
		if !ok {
			a = &accum{tput: map[int][]float64{}, delay: map[int][]float64{}}
			byScheme[m.Scheme] = a
		}
		a.count++
		a.duration += m.DurationS
		if m.ExitReason == result.ExitCompleted {
			a.completed++
		}
		for flow, fs := range m.Flows {
			a.tput[flow] = append(a.tput[flow], fs.Throughput)
			a.delay[flow] = append(a.delay[flow], fs.Delay)
		}
	}

	var summaries []SchemeSummary
	for name, a := range byScheme {
		s := SchemeSummary{
			Scheme:         name,
			Trials:         a.count,
			CompletionRate: float64(a.completed) / float64(a.count),
			MeanDurationS:  a.duration / float64(a.count),
		}
		for flow, tput := range a.tput {
			s.Flows = append(s.Flows, FlowSummary{
				Flow:        flow,
				Samples:     len(tput),
				MedianTput:  aggregate.Median(tput),
				MedianDelay: aggregate.Median(a.delay[flow]),
			})
		}
		sort.Slice(s.Flows, func(i, j int) bool {
			return s.Flows[i].Flow < s.Flows[j].Flow
		})
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Scheme < summaries[j].Scheme
	})
	return summaries
}

// rows flattens summaries into one row per (scheme, flow). A scheme without
// data still gets a row, with flow "-".
func rows(summaries []SchemeSummary, each func(s SchemeSummary, flow string, f FlowSummary)) {
	for _, s := range summaries {
		if len(s.Flows) == 0 {
			each(s, "-", FlowSummary{})
			continue
		}
		for _, f := range s.Flows {
			each(s, flowLabel(f.Flow), f)
		}
	}
}

func flowLabel(flow int) string {
	if flow == stats.TotalFlow {
		return "total"
	}
	return strconv.Itoa(flow)
}

func writeTable(summaries []SchemeSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHEME\tTRIALS\tCOMPLETED\tFLOW\tMEDIAN TPUT\tMEDIAN DELAY\tMEAN DURATION")
	fmt.Fprintln(tw, strings.Repeat("-", 90))
	rows(summaries, func(s SchemeSummary, flow string, f FlowSummary) {
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%s\t%.2f Mbit/s\t%.2f ms\t%.0fs\n",
			s.Scheme, s.Trials, s.CompletionRate*100, flow, f.MedianTput, f.MedianDelay, s.MeanDurationS)
	})
	return tw.Flush()
}

func writeMarkdown(summaries []SchemeSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Scheme | Trials | Completed | Flow | Median Tput (Mbit/s) | Median Delay (ms) | Mean Duration (s) |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	rows(summaries, func(s SchemeSummary, flow string, f FlowSummary) {
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %s | %.2f | %.2f | %.0f |\n",
			s.Scheme, s.Trials, s.CompletionRate*100, flow, f.MedianTput, f.MedianDelay, s.MeanDurationS)
	})
	return nil
}

func writeJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
