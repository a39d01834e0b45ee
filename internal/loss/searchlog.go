package loss

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Centaurus99/Spearmint/internal/params"
)

// TimeLayout is the UTC timestamp layout of search log entries.
const TimeLayout = "2006-01-02T15-04"

// Entry is one line of the search log.
type Entry struct {
	Physical params.Physical
	Result   Result
	Time     time.Time
}

// FormatEntry renders e as a search log line, newline included.
func FormatEntry(e Entry) string {
	return fmt.Sprintf("%s,tput_loss=%.2f,delay_loss=%.2f,overall_median_score=%.2f,time=%s\n",
		e.Physical, e.Result.TputLoss, e.Result.DelayLoss, e.Result.Overall,
		e.Time.UTC().Format(TimeLayout))
}

// ParseEntry reads back a line written by FormatEntry.
func ParseEntry(line string) (Entry, error) {
	var e Entry
	fields := map[string]string{}
	for _, kv := range strings.Split(strings.TrimSpace(line), ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return e, fmt.Errorf("malformed field %q", kv)
		}
		fields[k] = v
	}

	var err error
	float := func(key string) float64 {
		if err != nil {
			return 0
		}
		var f float64
		f, err = strconv.ParseFloat(fields[key], 64)
		if err != nil {
			err = fmt.Errorf("field %s: %w", key, err)
		}
		return f
	}
	integer := func(key string) int {
		if err != nil {
			return 0
		}
		var n int
		n, err = strconv.Atoi(fields[key])
		if err != nil {
			err = fmt.Errorf("field %s: %w", key, err)
		}
		return n
	}

	e.Physical = params.Physical{
		Bandwidth:   float("bandwidth"),
		Delay:       integer("delay"),
		UplinkQueue: integer("uplink_queue"),
		UplinkLoss:  float("uplink_loss"),
	}
	e.Result = Result{
		TputLoss:  float("tput_loss"),
		DelayLoss: float("delay_loss"),
		Overall:   float("overall_median_score"),
	}
	if err != nil {
		return e, err
	}
	e.Time, err = time.Parse(TimeLayout, fields["time"])
	if err != nil {
		return e, fmt.Errorf("field time: %w", err)
	}
	return e, nil
}

// SearchLog appends one line per evaluation and never rewrites the file.
type SearchLog struct {
	mu   sync.Mutex
	path string
}

func NewSearchLog(path string) *SearchLog {
	return &SearchLog{path: path}
}

func (l *SearchLog) Path() string {
	return l.path
}

// Append writes e with a single write on a file opened in append mode.
func (l *SearchLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening search log: %w", err)
	}
	if _, err := f.WriteString(FormatEntry(e)); err != nil {
		f.Close()
		return fmt.Errorf("appending to search log: %w", err)
	}
	return f.Close()
}

// ReadEntries returns every parsable entry of the log at path, in order.
// Unparsable lines are counted in skipped.
func ReadEntries(path string) (entries []Entry, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading search log: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseEntry(line)
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}
