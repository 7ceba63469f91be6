package provision

import (
	"context"
	"fmt"
	"net"
	"time"

	"ascbridge/internal/logging"
)

// WaitPort polls addr until it accepts a TCP connection, timeout elapses
// or ctx is done.
func WaitPort(ctx context.Context, addr string, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	dialer := net.Dialer{Timeout: interval}

	for attempt := 1; ; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			logging.ProvisionDebug("%s ready after %d attempts", addr, attempt)
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotReady, addr, ctx.Err())
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s did not accept connections within %v", ErrNotReady, addr, timeout)
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %s: %v", ErrNotReady, addr, ctx.Err())
		case <-t.C:
		}
	}
}
