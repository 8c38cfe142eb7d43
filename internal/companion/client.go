package companion

import (
	"context"
	"fmt"
	"net"
)

// Fetch connects to the companion socket and reads the blocklist.
func Fetch(ctx context.Context, socketPath string, maxSize int) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial companion: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return ReadBlob(conn, maxSize)
}
