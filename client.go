package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"

	"draftpad/logger"
)

// Client attaches a UI to the daemon: it spawns the daemon when none is
// running and relays JSON lines between stdio and the unix socket.
type Client struct {
	socketPath string
}

func NewClient() *Client {
	return &Client{socketPath: getSocketPath()}
}

// EnsureDaemonRunning spawns the daemon unless one is already alive, then
// waits for its socket to accept connections.
func (c *Client) EnsureDaemonRunning() error {
	if running, pid := isDaemonRunning(); running {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	cmd := exec.Command(exe, "--daemon")
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return err
	}
	// The daemon outlives the client; reap it if it exits first.
	go cmd.Wait()

	return c.waitForSocket(5 * time.Second)
}

func (c *Client) waitForSocket(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", c.socketPath); err == nil {
			conn.Close()
			logger.Debug("daemon socket ready")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon socket not ready within %s", timeout)
}

// Connect relays JSON lines between stdio and the daemon socket until
// either side closes. Malformed stdin lines are dropped on this side so
// the daemon only ever sees parseable requests.
func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		defer conn.Close()
		in := bufio.NewScanner(os.Stdin)
		in.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for in.Scan() {
			line := in.Bytes()
			if len(line) == 0 {
				continue
			}
			if !json.Valid(line) {
				logger.Warn("dropping malformed request line")
				continue
			}
			if _, err := conn.Write(append(line, '\n')); err != nil {
				return
			}
		}
	}()

	out := bufio.NewWriter(os.Stdout)
	notifications := bufio.NewScanner(conn)
	notifications.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for notifications.Scan() {
		out.Write(notifications.Bytes())
		out.WriteByte('\n')
		out.Flush()
	}
	return notifications.Err()
}
