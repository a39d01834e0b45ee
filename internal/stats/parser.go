// Package stats parses the per-flow performance summary that Pantheon's
// analysis writes for each run, e.g.
//
//	-- Total of 2 flows:
//	Average throughput: 92.03 Mbit/s
//	95th percentile per-packet one-way delay: 52.127 ms
//	Loss rate: 0.54%
//	-- Flow 1:
//	...
package stats

import (
	"regexp"
	"strconv"
	"strings"
)

// TotalFlow is the flow number under which the across-flows summary is read.
const TotalFlow = 0

type FlowStats struct {
	Throughput float64 `json:"tput"`  // Mbit/s
	Delay      float64 `json:"delay"` // 95th percentile one-way delay, ms
	Loss       float64 `json:"loss"`  // percent
}

// Report is the parsed content of one run's summary. Flows holds positive
// flow numbers only; the across-flows block, when present, is in Total.
type Report struct {
	Total *FlowStats
	Flows map[int]FlowStats
}

var (
	reTotal = regexp.MustCompile(`^-- Total of (.*?) flow`)
	reFlow  = regexp.MustCompile(`^-- Flow (.*?):`)
	reTput  = regexp.MustCompile(`^Average throughput: (.*?) Mbit/s`)
	reDelay = regexp.MustCompile(`^95th percentile (?:per-packet )?one-way delay: (.*?) ms`)
	reLoss  = regexp.MustCompile(`^Loss rate: (.*?)%`)
)

type state int

const (
	seekHeader state = iota
	expectThroughput
	expectDelay
	expectLoss
)

func (s state) String() string {
	switch s {
	case seekHeader:
		return "SeekHeader"
	case expectThroughput:
		return "ExpectThroughput"
	case expectDelay:
		return "ExpectDelay"
	case expectLoss:
		return "ExpectLoss"
	}
	return "unknown"
}

// transitions maps each block state to the metric it reads and the state
// that follows a successful read. A failed read always discards the block
// and returns to seekHeader with the same line.
var transitions = map[state]struct {
	re   *regexp.Regexp
	next state
}{
	expectThroughput: {reTput, expectDelay},
	expectDelay:      {reDelay, expectLoss},
	expectLoss:       {reLoss, seekHeader},
}

type parser struct {
	state      state
	flowNum    int
	totalFlows int
	block      int
	values     [3]float64
	report     Report
}

// Parse runs the block state machine over the lines of a summary.
// Malformed or truncated blocks are dropped; Parse never fails.
func Parse(lines []string) Report {
	p := &parser{
		totalFlows: 1,
		report:     Report{Flows: map[int]FlowStats{}},
	}
	for _, line := range lines {
		if p.done() {
			break
		}
		p.feed(strings.TrimRight(line, "\r"))
	}
	return p.report
}

// ParseText splits raw summary text into lines and parses it.
func ParseText(text string) Report {
	return Parse(strings.Split(text, "\n"))
}

func (p *parser) done() bool {
	return p.state == seekHeader && p.flowNum >= p.totalFlows
}

func (p *parser) feed(line string) {
	if p.state == seekHeader {
		p.seek(line)
		return
	}
	t := transitions[p.state]
	v, ok := matchFloat(t.re, line)
	if !ok {
		// discard and resync: the failing line may itself be a header
		p.state = seekHeader
		if !p.done() {
			p.seek(line)
		}
		return
	}
	p.values[p.state-expectThroughput] = v
	p.state = t.next
	if p.state == seekHeader {
		p.commit()
	}
}

func (p *parser) seek(line string) {
	if m := reTotal.FindStringSubmatch(line); m != nil {
		// A single-flow total repeats the flow's own block.
		if m[1] == "1" {
			return
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return
		}
		p.totalFlows = n
		p.block = TotalFlow
		p.state = expectThroughput
		return
	}
	if m := reFlow.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return
		}
		p.flowNum = n
		p.block = n
		p.state = expectThroughput
	}
}

func (p *parser) commit() {
	fs := FlowStats{Throughput: p.values[0], Delay: p.values[1], Loss: p.values[2]}
	if p.block == TotalFlow {
		p.report.Total = &fs
		return
	}
	p.report.Flows[p.block] = fs
}

func matchFloat(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
