package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Transport dials one kind of connection to the sync backend. The channel
// tries transports in order, falling back to the next after repeated
// failures.
type Transport interface {
	Name() string
	Dial(ctx context.Context, endpoint, token string) (Conn, error)
}

// Conn is one live connection. ReadMessage blocks until a frame arrives
// or the connection dies; the binary flag marks compressed frames.
type Conn interface {
	ReadMessage() (data []byte, binary bool, err error)
	WriteMessage(data []byte, binary bool) error
	Close() error
}

const dialTimeout = 10 * time.Second

func bearerHeader(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

// --- websocket ---

type wsTransport struct{}

// NewWebsocketTransport returns the primary transport.
func NewWebsocketTransport() Transport { return &wsTransport{} }

func (t *wsTransport) Name() string { return "websocket" }

func (t *wsTransport) Dial(ctx context.Context, endpoint, token string) (Conn, error) {
	wsURL, err := websocketURL(endpoint)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, bearerHeader(token))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("websocket dial %s: %w", wsURL, err)
	}
	return &wsConn{conn: conn}, nil
}

func websocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	return u.String(), nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, bool, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, false, err
	}
	return data, msgType == websocket.BinaryMessage, nil
}

func (c *wsConn) WriteMessage(data []byte, binary bool) error {
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(msgType, data)
}

func (c *wsConn) Close() error { return c.conn.Close() }

// --- HTTP long-poll fallback ---

type pollTransport struct {
	client *http.Client
}

// NewLongPollTransport returns the fallback transport for networks that
// block websocket upgrades. Frames are POSTed out and received by holding
// GET requests open.
func NewLongPollTransport() Transport {
	return &pollTransport{
		// No overall timeout: poll requests are held open by the server.
		client: &http.Client{},
	}
}

func (t *pollTransport) Name() string { return "long-poll" }

func (t *pollTransport) Dial(ctx context.Context, endpoint, token string) (Conn, error) {
	base := strings.TrimRight(endpoint, "/")
	connCtx, cancel := context.WithCancel(context.Background())

	c := &pollConn{
		client: t.client,
		base:   base,
		token:  token,
		ctx:    connCtx,
		cancel: cancel,
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, dialTimeout)
	defer dialCancel()
	session, err := c.open(dialCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	c.session = session
	return c, nil
}

type pollConn struct {
	client  *http.Client
	base    string
	token   string
	session string
	ctx     context.Context
	cancel  context.CancelFunc
}

func (c *pollConn) open(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/connect", nil)
	if err != nil {
		return "", err
	}
	req.Header = bearerHeader(c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("long-poll connect: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ErrUnauthorized
	default:
		return "", fmt.Errorf("long-poll connect: status %d", resp.StatusCode)
	}

	session, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", fmt.Errorf("long-poll connect: %w", err)
	}
	id := strings.TrimSpace(string(session))
	if id == "" {
		return "", fmt.Errorf("long-poll connect: empty session id")
	}
	return id, nil
}

func (c *pollConn) ReadMessage() ([]byte, bool, error) {
	for {
		req, err := http.NewRequestWithContext(c.ctx, http.MethodGet,
			c.base+"/poll?session="+url.QueryEscape(c.session), nil)
		if err != nil {
			return nil, false, err
		}
		req.Header = bearerHeader(c.token)
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, false, err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, false, err
			}
			binary := resp.Header.Get("Content-Type") == "application/octet-stream"
			return data, binary, nil
		case http.StatusNoContent:
			// Poll window elapsed with nothing queued; hold another.
			resp.Body.Close()
		case http.StatusUnauthorized:
			resp.Body.Close()
			return nil, false, ErrUnauthorized
		default:
			resp.Body.Close()
			return nil, false, fmt.Errorf("long-poll read: status %d", resp.StatusCode)
		}
	}
}

func (c *pollConn) WriteMessage(data []byte, binary bool) error {
	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost,
		c.base+"/send?session="+url.QueryEscape(c.session), strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	req.Header = bearerHeader(c.token)
	if binary {
		req.Header.Set("Content-Type", "application/octet-stream")
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("long-poll write: status %d", resp.StatusCode)
	}
}

func (c *pollConn) Close() error {
	c.cancel()
	return nil
}
