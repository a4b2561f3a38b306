package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"draftpad/doc"
	"draftpad/engine"
	"draftpad/logger"
	"draftpad/metrics"
	"draftpad/realtime"
	"draftpad/types"
)

// uiRequest is one JSON line from an attached UI client.
type uiRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// uiNotification is one JSON line pushed to every attached UI client.
type uiNotification struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

// Daemon hosts one engine and bridges it to UI clients over a unix socket
// (JSON lines both ways) and to the backend over the realtime channel.
type Daemon struct {
	config      Config
	channel     *realtime.Channel
	engine      *engine.Engine
	listener    net.Listener
	socketPath  string
	pidPath     string
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc

	connsMu sync.Mutex
	conns   map[net.Conn]*json.Encoder
}

func NewDaemon(config Config) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:     config,
		socketPath: getSocketPath(),
		pidPath:    getPidPath(),
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[net.Conn]*json.Encoder),
	}

	d.channel = realtime.NewChannel(realtime.Config{
		Endpoint: config.SyncEndpoint,
		Token:    config.Token,
	})

	tracker := metrics.NewTracker(config.MetricsEndpoint, config.MetricsAPIKey, config.DataDir)

	d.engine = engine.New(d.channel, d, engine.Config{
		DocumentID:    config.DocumentID,
		DebounceDelay: time.Duration(config.DebounceDelay) * time.Millisecond,
		Metrics:       tracker,
	})

	d.wireInboundEvents()
	return d, nil
}

// wireInboundEvents routes named backend events into the engine's event
// loop as typed payloads.
func (d *Daemon) wireInboundEvents() {
	post := func(eventType engine.EventType, payload any) func(json.RawMessage) {
		return func(data json.RawMessage) {
			if err := json.Unmarshal(data, payload); err != nil {
				logger.Warn("bad %s payload: %v", eventType, err)
				return
			}
			d.engine.Post(engine.Event{Type: eventType, Data: payload})
		}
	}

	d.channel.On(types.EventServerDocumentContent, func(data json.RawMessage) {
		p := &types.DocumentContentPayload{}
		post(engine.EventDocumentContent, p)(data)
	})
	d.channel.On(types.EventServerAutocompleteSuggestions, func(data json.RawMessage) {
		p := &types.SuggestionsPayload{}
		post(engine.EventSuggestionsReady, p)(data)
	})
	d.channel.On(types.EventServerChatAnswer, func(data json.RawMessage) {
		p := &types.ChatAnswerPayload{}
		post(engine.EventChatAnswer, p)(data)
	})
	d.channel.On(types.EventServerTitleGenerated, func(data json.RawMessage) {
		p := &types.TitleGeneratedPayload{}
		post(engine.EventTitleGenerated, p)(data)
	})
	d.channel.On(types.EventServerEditApplied, func(data json.RawMessage) {
		p := &types.EditAppliedPayload{}
		post(engine.EventEditApplied, p)(data)
	})
	d.channel.On(types.EventServerAuthFailed, func(json.RawMessage) {
		d.engine.Post(engine.Event{Type: engine.EventAuthFailed})
	})

	d.channel.OnStatus(func(s realtime.Status) {
		d.broadcast("connection_status", map[string]string{"status": s.String()})
		switch s {
		case realtime.StatusConnected:
			// Emits made while disconnected were dropped, so every
			// (re)connect starts with a fresh snapshot request.
			d.engine.OpenDocument()
		case realtime.StatusUnauthorized:
			d.engine.Post(engine.Event{Type: engine.EventAuthFailed})
		}
	})
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	logger.Info("daemon listening on socket: %s", d.socketPath)

	d.channel.Acquire()
	defer d.channel.Release()

	d.engine.Start(d.ctx)

	d.setupShutdownHandling()
	go d.acceptConnections()
	go d.monitorIdleShutdown()

	<-d.ctx.Done()
	logger.Info("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	os.Remove(d.socketPath)

	listener, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return
			default:
				logger.Error("error accepting connection: %v", err)
				continue
			}
		}

		atomic.AddInt64(&d.clientCount, 1)
		logger.Info("new client connected, total clients: %d", atomic.LoadInt64(&d.clientCount))
		go d.handleConnection(conn)
	}
}

func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		atomic.AddInt64(&d.clientCount, -1)
		logger.Info("client disconnected, remaining clients: %d", atomic.LoadInt64(&d.clientCount))
	}()

	d.connsMu.Lock()
	d.conns[conn] = json.NewEncoder(conn)
	d.connsMu.Unlock()
	defer func() {
		d.connsMu.Lock()
		delete(d.conns, conn)
		d.connsMu.Unlock()
	}()

	// Catch the new client up on current document state.
	d.sendTo(conn, "document_state", map[string]any{
		"documentId": d.engine.DocumentID(),
		"text":       d.engine.Text(),
	})

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req uiRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("bad client request: %v", err)
			continue
		}
		d.handleRequest(conn, &req)
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("client read error: %v", err)
	}
}

// handleRequest dispatches one UI request to the engine. Unknown methods
// are logged and ignored so older UIs stay compatible.
func (d *Daemon) handleRequest(conn net.Conn, req *uiRequest) {
	switch req.Method {
	case "insert_text":
		var p struct {
			Index int    `json:"index"`
			Text  string `json:"text"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			logger.Warn("insert_text: %v", err)
			return
		}
		if err := d.engine.InsertText(p.Index, p.Text); err != nil {
			logger.Warn("insert_text: %v", err)
		}

	case "delete_range":
		var p struct {
			Index  int `json:"index"`
			Length int `json:"length"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			logger.Warn("delete_range: %v", err)
			return
		}
		if err := d.engine.DeleteRange(p.Index, p.Length); err != nil {
			logger.Warn("delete_range: %v", err)
		}

	case "apply_delta":
		var p struct {
			Delta doc.Delta `json:"delta"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			logger.Warn("apply_delta: %v", err)
			return
		}
		if err := d.engine.ApplyUserEdit(p.Delta); err != nil {
			logger.Warn("apply_delta: %v", err)
		}

	case "set_caret":
		var p struct {
			Index  int `json:"index"`
			Length int `json:"length"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			logger.Warn("set_caret: %v", err)
			return
		}
		d.engine.SetCaret(p.Index, p.Length)

	case "key":
		var p struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			logger.Warn("key: %v", err)
			return
		}
		consumed := d.engine.HandleKey(engine.KeyFromName(p.Key))
		d.sendTo(conn, "key_result", map[string]any{"key": p.Key, "consumed": consumed})

	case "chat":
		var p struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			logger.Warn("chat: %v", err)
			return
		}
		d.engine.SendChat(p.Text)

	case "chat_log":
		d.sendTo(conn, "chat_log", d.engine.ChatLog())

	case "pointer_enter":
		d.engine.PointerEnter(regionID(req.Params))
	case "pointer_leave":
		d.engine.PointerLeave(regionID(req.Params))
	case "click_region":
		d.engine.ClickRegion(regionID(req.Params))
	case "click_outside":
		d.engine.ClickOutside()
	case "accept_region":
		d.engine.AcceptRegion(regionID(req.Params))
	case "reject_region":
		d.engine.RejectRegion(regionID(req.Params))

	case "open_document":
		d.engine.OpenDocument()

	case "rename_document":
		var p struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			logger.Warn("rename_document: %v", err)
			return
		}
		d.engine.RenameDocument(p.Title)

	default:
		logger.Debug("unknown client method %q", req.Method)
	}
}

func regionID(params json.RawMessage) string {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		logger.Warn("region id: %v", err)
		return ""
	}
	return p.ID
}

// broadcast pushes one notification to every attached UI client.
func (d *Daemon) broadcast(method string, params any) {
	d.connsMu.Lock()
	defer d.connsMu.Unlock()
	for conn, enc := range d.conns {
		if err := enc.Encode(uiNotification{Method: method, Params: params}); err != nil {
			logger.Debug("dropping client: %v", err)
			conn.Close()
			delete(d.conns, conn)
		}
	}
}

func (d *Daemon) sendTo(conn net.Conn, method string, params any) {
	d.connsMu.Lock()
	enc := d.conns[conn]
	d.connsMu.Unlock()
	if enc == nil {
		return
	}
	if err := enc.Encode(uiNotification{Method: method, Params: params}); err != nil {
		logger.Debug("client send error: %v", err)
	}
}

// --- engine.Frontend ---

func (d *Daemon) DocumentChanged(change doc.Change) {
	d.broadcast("document_changed", map[string]any{
		"delta":  change.Delta,
		"source": change.Source,
	})
}

func (d *Daemon) ShowTooltip(regionID, text string) {
	d.broadcast("show_tooltip", map[string]string{"id": regionID, "text": text})
}

func (d *Daemon) HideTooltip(regionID string) {
	d.broadcast("hide_tooltip", map[string]string{"id": regionID})
}

func (d *Daemon) ShowDecisionControls(regionID string, anchor int) {
	d.broadcast("show_decision_controls", map[string]any{"id": regionID, "anchor": anchor})
}

func (d *Daemon) HideDecisionControls(regionID string) {
	d.broadcast("hide_decision_controls", map[string]string{"id": regionID})
}

func (d *Daemon) SetTitle(title string) {
	d.broadcast("set_title", map[string]string{"title": title})
}

func (d *Daemon) ForceLogout() {
	d.broadcast("force_logout", struct{}{})
}

func (d *Daemon) monitorIdleShutdown() {
	// In debug mode, shut down as soon as no clients are connected.
	if d.config.DebugImmediateShutdown {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-d.ctx.Done():
				return
			case <-ticker.C:
				if atomic.LoadInt64(&d.clientCount) == 0 {
					logger.Info("debug mode: no clients connected, shutting down daemon immediately")
					d.Stop()
					return
				}
			}
		}
	}

	idleTimer := time.NewTimer(30 * time.Second)
	defer idleTimer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-idleTimer.C:
			if atomic.LoadInt64(&d.clientCount) == 0 {
				logger.Info("no clients connected for timeout period, shutting down daemon")
				d.Stop()
				return
			}
		}

		if atomic.LoadInt64(&d.clientCount) == 0 {
			idleTimer.Reset(5 * time.Second)
		} else {
			idleTimer.Reset(30 * time.Second)
		}
	}
}

func (d *Daemon) Stop() {
	d.engine.Stop()
	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.socketPath)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(pid)), 0644); err != nil {
		logger.Warn("could not write PID file: %v", err)
	}
	logger.Info("daemon started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not remove PID file: %v", err)
	}
}
