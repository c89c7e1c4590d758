package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PizzaHomicide/kiri/internal/log"
)

// MPVEvent is one line of the mpv JSON IPC stream
type MPVEvent struct {
	Event     string          `json:"event"`
	ID        int             `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
	RequestID int             `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ipcClient talks to one running mpv instance
type ipcClient struct {
	socketPath string

	mu     sync.Mutex
	conn   net.Conn
	events chan MPVEvent

	done      chan struct{}
	closeOnce sync.Once
}

func newIPCClient(socketPath string) *ipcClient {
	return &ipcClient{
		socketPath: socketPath,
		events:     make(chan MPVEvent, 100),
		done:       make(chan struct{}),
	}
}

// SocketPath returns a fresh IPC endpoint.  Each mpv instance gets its own so a replaced instance can never answer for
// the new one.
func SocketPath() string {
	if path := os.Getenv("MPV_IPC_SOCKET"); path != "" {
		return path
	}

	name := "kiri-mpv-" + uuid.NewString()[:8]

	switch runtime.GOOS {
	case "windows":
		return `\\.\pipe\` + name
	default:
		if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
			return filepath.Join(runtimeDir, name)
		}
		return filepath.Join(os.TempDir(), name)
	}
}

// attach starts reading events from an established connection
func (c *ipcClient) attach(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readEvents(conn)
}

// WaitForConnection dials the socket until mpv has created it
func (c *ipcClient) WaitForConnection(ctx context.Context, maxAttempts int, retryDelay time.Duration) error {
	log.Debug("Waiting for MPV to create socket", "socket_path", c.socketPath, "max_attempts", maxAttempts)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if runtime.GOOS != "windows" {
			if _, err := os.Stat(c.socketPath); os.IsNotExist(err) {
				log.Trace("MPV socket does not exist yet", "attempt", attempt)
				if err := sleepCtx(ctx, retryDelay); err != nil {
					return err
				}
				continue
			}
		}

		conn, err := dialIPC(ctx, c.socketPath)
		if err == nil {
			log.Debug("Connected to MPV", "attempt", attempt)
			c.attach(conn)
			return nil
		}
		log.Debug("Failed to connect to MPV", "attempt", attempt, "error", err)

		if err := sleepCtx(ctx, retryDelay); err != nil {
			return err
		}
	}

	return fmt.Errorf("failed to connect to MPV after %d attempts", maxAttempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Close stops event delivery and closes the connection
func (c *ipcClient) Close() error {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// readEvents forwards decoded events until the connection closes, then closes the channel
func (c *ipcClient) readEvents(conn net.Conn) {
	defer close(c.events)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		log.Trace("Raw MPV event", "data", string(line))

		var event MPVEvent
		if err := json.Unmarshal(line, &event); err != nil {
			log.Warn("Failed to unmarshal MPV event", "error", err)
			continue
		}
		if event.Event == "" {
			// Command replies carry no event name
			continue
		}
		select {
		case c.events <- event:
		case <-c.done:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Debug("MPV socket read ended", "error", err)
	}
}

func (c *ipcClient) Events() <-chan MPVEvent {
	return c.events
}

// SendCommand writes one JSON IPC command
func (c *ipcClient) SendCommand(cmd ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected to MPV")
	}

	data, err := json.Marshal(map[string]interface{}{"command": cmd})
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}
	return nil
}

// ObserveProperty subscribes to property-change events for name
func (c *ipcClient) ObserveProperty(id int, name string) error {
	return c.SendCommand("observe_property", id, name)
}
