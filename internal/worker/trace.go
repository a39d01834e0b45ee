package worker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

const (
	warmupPackets  = 50
	warmupSpacing  = 100 // ms
	traceSpanMs    = 60000
	packetsPerMbps = 5000 // MTU-sized packets per minute at 1 Mbit/s
)

// GenerateTrace writes a constant-rate mahimahi packet trace: a slow warm-up
// followed by evenly spaced delivery opportunities over one minute.
func GenerateTrace(w io.Writer, bandwidthMbps float64) error {
	buf := bufio.NewWriter(w)
	base := 0
	for i := 0; i < warmupPackets; i++ {
		base += warmupSpacing
		fmt.Fprintf(buf, "%d\n", base)
	}
	n := int(bandwidthMbps * packetsPerMbps)
	if n > 0 {
		step := float64(traceSpanMs) / float64(n)
		for i := 0; i < n; i++ {
			fmt.Fprintf(buf, "%d\n", int(float64(base)+float64(i)*step))
		}
	}
	return buf.Flush()
}

// WriteTrace generates the trace for bandwidthMbps into dir and returns its
// path. The rate is rounded to 0.01 Mbit/s first.
func WriteTrace(dir string, bandwidthMbps float64) (string, error) {
	label := strconv.FormatFloat(bandwidthMbps, 'f', 2, 64)
	rounded, _ := strconv.ParseFloat(label, 64)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating trace dir: %w", err)
	}
	path := filepath.Join(dir, label+"mbps.trace")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating trace: %w", err)
	}
	if err := GenerateTrace(f, rounded); err != nil {
		f.Close()
		return "", fmt.Errorf("writing trace: %w", err)
	}
	return path, f.Close()
}
