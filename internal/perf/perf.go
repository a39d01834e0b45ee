// Package perf turns a worker's raw performance payload into per-flow
// statistics, whatever wire format the worker produced.
package perf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Centaurus99/Spearmint/internal/stats"
)

// ErrNoData is returned when a payload holds no usable flow.
var ErrNoData = errors.New("no performance data")

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Formats lists the accepted payload formats.
var Formats = []string{FormatText, FormatJSON, FormatCSV}

// Record is the outcome of one (scheme, trial) experiment. A record whose
// Flows is empty or whose Err is set carries no samples.
type Record struct {
	Scheme string
	Trial  int
	Worker string
	Flows  map[int]stats.FlowStats
	Err    error
}

func (r Record) HasData() bool {
	return r.Err == nil && len(r.Flows) > 0
}

// Decoder produces per-flow statistics from a raw payload.
type Decoder interface {
	Decode(payload []byte) (map[int]stats.FlowStats, error)
}

func NewDecoder(format string) (Decoder, error) {
	switch format {
	case FormatText, "":
		return textDecoder{}, nil
	case FormatJSON:
		return jsonDecoder{}, nil
	case FormatCSV:
		return csvDecoder{}, nil
	}
	return nil, fmt.Errorf("unknown report format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// textDecoder reads Pantheon's stats summary.
type textDecoder struct{}

func (textDecoder) Decode(payload []byte) (map[int]stats.FlowStats, error) {
	r := stats.ParseText(string(payload))
	if len(r.Flows) == 0 {
		return nil, ErrNoData
	}
	return r.Flows, nil
}

// jsonDecoder reads {"flows": {"1": {"tput": .., "delay": .., "loss": ..}}}.
type jsonDecoder struct{}

func (jsonDecoder) Decode(payload []byte) (map[int]stats.FlowStats, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, ErrNoData
	}
	var doc struct {
		Flows map[string]stats.FlowStats `json:"flows"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parsing json report: %w", err)
	}
	flows := make(map[int]stats.FlowStats, len(doc.Flows))
	for k, v := range doc.Flows {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			continue
		}
		flows[n] = v
	}
	if len(flows) == 0 {
		return nil, ErrNoData
	}
	return flows, nil
}

// csvDecoder reads the single-flow "scheme,tput,delay" line.
type csvDecoder struct{}

func (csvDecoder) Decode(payload []byte) (map[int]stats.FlowStats, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(string(payload)), "\n")
	if line == "" {
		return nil, ErrNoData
	}
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return nil, fmt.Errorf("parsing csv report: want scheme,tput,delay, got %q", line)
	}
	tput, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing csv throughput: %w", err)
	}
	delay, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing csv delay: %w", err)
	}
	return map[int]stats.FlowStats{1: {Throughput: tput, Delay: delay}}, nil
}
