// Package bridge maintains the control channel to the browser automation
// layer. The default transport spawns the chrome-devtools bridge process
// and speaks JSON-RPC over stdio; a rod-backed transport drives a local
// browser in-process for installs without the external bridge.
package bridge

import (
	"context"
	"encoding/json"
)

// ConnState is the connection lifecycle state of a Channel.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateReady        ConnState = "ready"
	StateFailed       ConnState = "failed"
)

// PrimitiveSchema describes one remote primitive advertised by the bridge.
type PrimitiveSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// CallResult is the outcome of invoking a remote primitive.
type CallResult struct {
	Success   bool            `json:"success"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
	LatencyMs int64           `json:"latency_ms"`
}

// Transport is the wire-level connection to a browser automation backend.
type Transport interface {
	// Connect establishes the connection and performs any handshake.
	Connect(ctx context.Context) error

	// Disconnect tears the connection down. Safe to call when not connected.
	Disconnect() error

	// ListPrimitives enumerates the primitives the backend advertises.
	ListPrimitives(ctx context.Context) ([]PrimitiveSchema, error)

	// CallPrimitive invokes a primitive by name.
	CallPrimitive(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error)

	// IsConnected reports the current transport status.
	IsConnected() bool
}

// rpcRequest is a JSON-RPC 2.0 request frame.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response frame.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// textContent mirrors the content block shape the bridge returns from
// primitive calls: a list of typed blocks, text being the only kind we
// consume.
type textContent struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// resultIsError reports whether a primitive call result carries the
// in-band error flag.
func resultIsError(output json.RawMessage) bool {
	var tc textContent
	if err := json.Unmarshal(output, &tc); err != nil {
		return false
	}
	return tc.IsError
}

// ResultText extracts the concatenated text blocks from a primitive call
// result.
func ResultText(output json.RawMessage) string {
	var tc textContent
	if err := json.Unmarshal(output, &tc); err != nil {
		return string(output)
	}
	var text string
	for _, block := range tc.Content {
		if block.Type == "text" {
			if text != "" {
				text += "\n"
			}
			text += block.Text
		}
	}
	return text
}
