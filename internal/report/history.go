package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/Centaurus99/Spearmint/internal/loss"
)

type HistoryRow struct {
	Rank      int     `json:"rank"`
	Params    string  `json:"params"`
	TputLoss  float64 `json:"tput_loss"`
	DelayLoss float64 `json:"delay_loss"`
	Overall   float64 `json:"overall_median_score"`
	Time      string  `json:"time"`
}

// History ranks the evaluations of a search log by overall score and writes
// the best top of them, all of them when top is not positive.
func History(logPath, format string, w io.Writer, top int) error {
	entries, skipped, err := loss.ReadEntries(logPath)
	if err != nil {
		return err
	}
	if skipped > 0 {
		logrus.Warnf("%s: skipped %d unparsable lines", logPath, skipped)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Result.Overall < entries[j].Result.Overall
	})
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}

	rows := make([]HistoryRow, len(entries))
	for i, e := range entries {
		rows[i] = HistoryRow{
			Rank:      i + 1,
			Params:    e.Physical.String(),
			TputLoss:  e.Result.TputLoss,
			DelayLoss: e.Result.DelayLoss,
			Overall:   e.Result.Overall,
			Time:      e.Time.Format(loss.TimeLayout),
		}
	}

	switch format {
	case "markdown":
		fmt.Fprintln(w, "| # | Parameters | Tput Loss | Delay Loss | Overall | Time |")
		fmt.Fprintln(w, "|---|---|---|---|---|---|")
		for _, r := range rows {
			fmt.Fprintf(w, "| %d | %s | %.2f | %.2f | %.2f | %s |\n",
				r.Rank, r.Params, r.TputLoss, r.DelayLoss, r.Overall, r.Time)
		}
		return nil
	case "json":
		return writeJSON(rows, w)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPARAMETERS\tTPUT LOSS\tDELAY LOSS\tOVERALL\tTIME")
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%s\n",
			r.Rank, r.Params, r.TputLoss, r.DelayLoss, r.Overall, r.Time)
	}
	return tw.Flush()
}
