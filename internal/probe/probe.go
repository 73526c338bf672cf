// Package probe implements the readiness check for the web child.
// Hosting platforms health-check the bound port, so "the port accepts a
// TCP connection" is the readiness signal worth reporting.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

// WaitTCP dials addr repeatedly until a connection succeeds, the timeout
// elapses, or ctx is cancelled. The dial interval backs off from 50ms to
// 500ms.
func WaitTCP(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	delay := 50 * time.Millisecond

	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", addr, ctx.Err())
		case <-time.After(delay):
		}

		if delay < 500*time.Millisecond {
			delay *= 2
		}
	}
}
