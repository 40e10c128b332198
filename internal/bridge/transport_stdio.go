package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"coursenerd/internal/logging"
)

const protocolVersion = "2024-11-05"

// DefaultBridgeCommand launches the chrome-devtools bridge against an
// already-running browser with remote debugging enabled.
const DefaultBridgeCommand = "npx -y chrome-devtools-mcp@latest --browserUrl=http://127.0.0.1:9222"

// RodCommand selects the embedded rod-driven browser instead of an
// external bridge subprocess.
const RodCommand = "rod"

// NewTransport picks a transport from the configured bridge command.
// The literal command "rod" drives a browser in-process; anything else
// is launched as a bridge subprocess, falling back to
// DefaultBridgeCommand when empty.
func NewTransport(command string, headless bool) Transport {
	if command == RodCommand {
		return NewRodTransport(headless)
	}
	if command == "" {
		command = DefaultBridgeCommand
	}
	return NewStdioTransport(command)
}

// StdioTransport runs the bridge as a subprocess and speaks
// line-delimited JSON-RPC over its stdin/stdout.
type StdioTransport struct {
	mu sync.RWMutex

	command string
	args    []string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser

	connected bool

	pendingReqs map[int]chan *rpcResponse
	nextID      int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewStdioTransport creates a transport for the given bridge command line.
func NewStdioTransport(command string) *StdioTransport {
	parts := strings.Fields(command)
	var cmd string
	var args []string
	if len(parts) > 0 {
		cmd = parts[0]
		args = parts[1:]
	}

	return &StdioTransport{
		command:     cmd,
		args:        args,
		pendingReqs: make(map[int]chan *rpcResponse),
		nextID:      1,
		done:        make(chan struct{}),
	}
}

// Connect starts the subprocess, the reader loops, and performs the
// initialize handshake.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return nil
	}

	if t.command == "" {
		t.mu.Unlock()
		return fmt.Errorf("empty command for stdio transport")
	}

	t.cmd = exec.Command(t.command, t.args...)

	var err error
	t.stdin, err = t.cmd.StdinPipe()
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	t.stdout, err = t.cmd.StdoutPipe()
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	t.stderr, err = t.cmd.StderrPipe()
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := t.cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to start bridge command %s: %w", t.command, err)
	}

	t.connected = true
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.readStderr()

	t.wg.Add(1)
	go t.readStdout()

	// The handshake must happen without holding the lock: the stdout
	// reader needs it to dispatch the response.
	t.mu.Unlock()

	if err := t.initialize(ctx); err != nil {
		_ = t.Disconnect()
		return fmt.Errorf("bridge handshake failed: %w", err)
	}

	logging.Bridge("stdio transport connected: %s", t.command)
	return nil
}

// initialize performs the protocol handshake and sends the initialized
// notification.
func (t *StdioTransport) initialize(ctx context.Context) error {
	resp, err := t.call(ctx, "initialize", map[string]interface{}{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]interface{}{},
		"clientInfo": map[string]string{
			"name":    "courseNERD",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return err
	}

	var result struct {
		ServerInfo struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := json.Unmarshal(resp.Result, &result); err == nil && result.ServerInfo.Name != "" {
		logging.BridgeDebug("bridge server: %s %s", result.ServerInfo.Name, result.ServerInfo.Version)
	}

	// The initialized notification carries no ID and gets no response.
	notification := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	}
	notifBytes, _ := json.Marshal(notification)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin == nil {
		return fmt.Errorf("stdin closed during handshake")
	}
	_, err = t.stdin.Write(append(notifBytes, '\n'))
	return err
}

// Disconnect kills the process and cleans up.
func (t *StdioTransport) Disconnect() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}
	t.connected = false

	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}

	if t.stdin != nil {
		_ = t.stdin.Close()
	}

	close(t.done)

	for id, ch := range t.pendingReqs {
		close(ch)
		delete(t.pendingReqs, id)
	}
	t.mu.Unlock()

	// Reap the process so it does not linger as a zombie.
	if t.cmd != nil {
		go func(cmd *exec.Cmd) { _ = cmd.Wait() }(t.cmd)
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		logging.BridgeWarn("timeout waiting for stdio transport goroutines to exit")
	}

	logging.Bridge("stdio transport disconnected")
	return nil
}

// readStderr drains the bridge's stderr into the log.
func (t *StdioTransport) readStderr() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		logging.BridgeDebug("[stderr] %s", scanner.Text())
	}
}

// readStdout reads JSON-RPC messages and dispatches responses to waiters.
func (t *StdioTransport) readStdout() {
	defer t.wg.Done()
	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw map[string]interface{}
		if err := json.Unmarshal(line, &raw); err != nil {
			logging.BridgeWarn("failed to parse JSON from stdout: %v", err)
			continue
		}

		idVal, ok := raw["id"]
		if !ok {
			// Notification from the bridge; nothing waits on these.
			logging.BridgeDebug("notification: %s", string(line))
			continue
		}

		// json.Unmarshal decodes numbers as float64.
		var id int
		switch v := idVal.(type) {
		case float64:
			id = int(v)
		case int:
			id = v
		default:
			continue
		}

		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			logging.BridgeWarn("failed to unmarshal response: %v", err)
			continue
		}

		t.mu.Lock()
		ch, exists := t.pendingReqs[id]
		if exists {
			delete(t.pendingReqs, id)
			ch <- &resp
		} else {
			logging.BridgeWarn("response for unknown request id %d", id)
		}
		t.mu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		t.mu.RLock()
		connected := t.connected
		t.mu.RUnlock()
		if connected {
			logging.BridgeError("error reading bridge stdout: %v", err)
		}
	}
}

// call sends a request and waits for the matching response.
func (t *StdioTransport) call(ctx context.Context, method string, params interface{}) (*rpcResponse, error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil, fmt.Errorf("not connected to bridge")
	}

	id := t.nextID
	t.nextID++

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	ch := make(chan *rpcResponse, 1)
	t.pendingReqs[id] = ch

	data, err := json.Marshal(req)
	if err != nil {
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to write to stdin: %w", err)
	}
	t.mu.Unlock()

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, fmt.Errorf("connection closed")
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("bridge error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.pendingReqs, id)
		t.mu.Unlock()
		return nil, ctx.Err()
	}
}

// ListPrimitives enumerates the primitives the bridge advertises.
func (t *StdioTransport) ListPrimitives(ctx context.Context) ([]PrimitiveSchema, error) {
	resp, err := t.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list primitives: %w", err)
	}

	var result struct {
		Tools []PrimitiveSchema `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse primitive list: %w", err)
	}

	return result.Tools, nil
}

// CallPrimitive invokes a primitive on the bridge.
func (t *StdioTransport) CallPrimitive(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	start := time.Now()

	params := map[string]interface{}{
		"name":      name,
		"arguments": args,
	}

	resp, err := t.call(ctx, "tools/call", params)
	latencyMs := time.Since(start).Milliseconds()

	if err != nil {
		return &CallResult{
			Success:   false,
			Error:     err.Error(),
			LatencyMs: latencyMs,
		}, nil
	}

	return &CallResult{
		Success:   true,
		Output:    resp.Result,
		LatencyMs: latencyMs,
	}, nil
}

// IsConnected returns current connection status.
func (t *StdioTransport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Ensure StdioTransport implements Transport.
var _ Transport = (*StdioTransport)(nil)
