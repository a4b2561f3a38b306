package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// Frame is the wire envelope for every channel message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// compressThreshold is the encoded-frame size above which frames are
// brotli-compressed and sent as binary messages. Small frames stay as
// plain JSON text; the compression overhead isn't worth it below this.
const compressThreshold = 1024

// encodeFrame serializes an event into a wire frame. The returned binary
// flag tells the transport whether the payload is brotli-compressed.
func encodeFrame(event string, payload any) ([]byte, bool, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	raw, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return nil, false, fmt.Errorf("encoding %s frame: %w", event, err)
	}

	if len(raw) < compressThreshold {
		return raw, false, nil
	}

	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, false, fmt.Errorf("compressing %s frame: %w", event, err)
	}
	if err := w.Close(); err != nil {
		return nil, false, fmt.Errorf("compressing %s frame: %w", event, err)
	}
	return buf.Bytes(), true, nil
}

// decodeFrame parses a wire frame, decompressing binary messages first.
func decodeFrame(data []byte, binary bool) (*Frame, error) {
	if binary {
		raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("decompressing frame: %w", err)
		}
		data = raw
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame missing event name")
	}
	return &f, nil
}
