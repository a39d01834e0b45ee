package stats_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Centaurus99/Spearmint/internal/stats"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/stats/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestParseTwoFlows(t *testing.T) {
	r := stats.ParseText(readFixture(t, "two_flows.log"))

	require.Len(t, r.Flows, 2)
	assert.Equal(t, stats.FlowStats{Throughput: 46.47, Delay: 52.059, Loss: 0.52}, r.Flows[1])
	assert.Equal(t, stats.FlowStats{Throughput: 45.62, Delay: 52.211, Loss: 0.56}, r.Flows[2])

	require.NotNil(t, r.Total)
	assert.Equal(t, 92.03, r.Total.Throughput)
	assert.Equal(t, 52.127, r.Total.Delay)
}

func TestParseSingleFlowTotalIsSkipped(t *testing.T) {
	r := stats.ParseText(readFixture(t, "one_flow.log"))

	assert.Nil(t, r.Total, "a total of 1 flow is never data")
	require.Len(t, r.Flows, 1)
	assert.Equal(t, stats.FlowStats{Throughput: 94.21, Delay: 51.846, Loss: 0.6}, r.Flows[1])
}

func TestParseTruncatedBlock(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []int
	}{
		{
			name: "missing loss line before next header",
			lines: []string{
				"-- Total of 2 flows:",
				"Average throughput: 20 Mbit/s",
				"95th percentile per-packet one-way delay: 30 ms",
				"Loss rate: 1%",
				"-- Flow 1:",
				"Average throughput: 10 Mbit/s",
				"95th percentile per-packet one-way delay: 30 ms",
				"-- Flow 2:",
				"Average throughput: 10 Mbit/s",
				"95th percentile per-packet one-way delay: 30 ms",
				"Loss rate: 1%",
			},
			want: []int{2},
		},
		{
			name: "input ends inside a block",
			lines: []string{
				"-- Flow 1:",
				"Average throughput: 10 Mbit/s",
				"95th percentile per-packet one-way delay: 30 ms",
			},
			want: nil,
		},
		{
			name: "header with no following lines",
			lines: []string{
				"-- Flow 1:",
			},
			want: nil,
		},
		{
			name: "unparsable throughput",
			lines: []string{
				"-- Flow 1:",
				"Average throughput: n/a Mbit/s",
				"95th percentile per-packet one-way delay: 30 ms",
				"Loss rate: 1%",
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := stats.Parse(tt.lines)
			var got []int
			for f := range r.Flows {
				got = append(got, f)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestParseStopsAtDeclaredFlowCount(t *testing.T) {
	lines := []string{
		"-- Flow 1:",
		"Average throughput: 10 Mbit/s",
		"95th percentile one-way delay: 30 ms",
		"Loss rate: 1%",
		"-- Flow 2:",
		"Average throughput: 11 Mbit/s",
		"95th percentile one-way delay: 31 ms",
		"Loss rate: 1%",
	}
	r := stats.Parse(lines)
	assert.Len(t, r.Flows, 1, "without a total header one flow is expected")
	assert.Contains(t, r.Flows, 1)
}

func TestParseResyncOnHeaderInsideBlock(t *testing.T) {
	lines := []string{
		"-- Total of 3 flows:",
		"Average throughput: 30 Mbit/s",
		"95th percentile per-packet one-way delay: 30 ms",
		"Loss rate: 0%",
		"-- Flow 1:",
		"-- Flow 2:",
		"Average throughput: 12 Mbit/s",
		"95th percentile per-packet one-way delay: 40 ms",
		"Loss rate: 0.5%",
		"-- Flow 3:",
		"Average throughput: 13 Mbit/s",
		"garbage",
		"Loss rate: 0.5%",
	}
	r := stats.Parse(lines)
	require.Len(t, r.Flows, 1)
	assert.Equal(t, 12.0, r.Flows[2].Throughput)
	assert.Equal(t, 0.5, r.Flows[2].Loss)
}

func TestParseHandlesCRLF(t *testing.T) {
	text := strings.ReplaceAll(readFixture(t, "two_flows.log"), "\n", "\r\n")
	r := stats.ParseText(text)
	assert.Len(t, r.Flows, 2)
}

func TestParseEmpty(t *testing.T) {
	r := stats.ParseText("")
	assert.Empty(t, r.Flows)
	assert.Nil(t, r.Total)
}
