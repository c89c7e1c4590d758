//go:build windows

package player

import (
	"context"
	"fmt"
	"net"
	"time"

	"gopkg.in/natefinch/npipe.v2"
)

func dialIPC(ctx context.Context, path string) (net.Conn, error) {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	conn, err := npipe.DialTimeout(path, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MPV pipe: %w", err)
	}
	return conn, nil
}

// Named pipes vanish with the process
func removeSocket(string) error {
	return nil
}
