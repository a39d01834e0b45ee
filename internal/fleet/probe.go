package fleet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

// Probe waits until every worker accepts TCP connections on its ssh port.
// The first worker that stays unreachable for timeout fails the probe.
func Probe(ctx context.Context, workers []Worker, timeout time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		g.Go(func() error {
			port := w.Port
			if port == 0 {
				port = 22
			}
			return waitForPort(ctx, net.JoinHostPort(w.Address, strconv.Itoa(port)), timeout)
		})
	}
	return g.Wait()
}

func waitForPort(ctx context.Context, addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var d net.Dialer
	for {
		dialCtx, cancel := context.WithTimeout(ctx, time.Second)
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err == nil {
			conn.Close()
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%s not reachable after %s: %w", addr, timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}
