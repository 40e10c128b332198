package bridge

import (
	"context"
	"fmt"
)

// Primitive names as advertised by the chrome-devtools bridge. The
// rod-backed transport advertises the same names so callers never care
// which backend is live.
const (
	PrimNavigatePage   = "mcp__chrome-devtools__navigate_page"
	PrimTakeSnapshot   = "mcp__chrome-devtools__take_snapshot"
	PrimClick          = "mcp__chrome-devtools__click"
	PrimFill           = "mcp__chrome-devtools__fill"
	PrimEvaluateScript = "mcp__chrome-devtools__evaluate_script"
	PrimWaitFor        = "mcp__chrome-devtools__wait_for"
)

// NavigatePage loads the given URL in the controlled browser tab.
func (c *Channel) NavigatePage(ctx context.Context, url string) error {
	_, err := c.Call(ctx, PrimNavigatePage, map[string]interface{}{"url": url})
	return err
}

// TakeSnapshot captures the accessibility-tree text snapshot of the
// current page. Element handles embedded in the snapshot are only valid
// until the next snapshot or navigation.
func (c *Channel) TakeSnapshot(ctx context.Context) (string, error) {
	output, err := c.Call(ctx, PrimTakeSnapshot, map[string]interface{}{})
	if err != nil {
		return "", err
	}
	snap := ResultText(output)
	if snap == "" {
		return "", fmt.Errorf("empty snapshot from bridge")
	}
	return snap, nil
}

// ClickElement clicks the element identified by a snapshot handle.
func (c *Channel) ClickElement(ctx context.Context, uid string) error {
	_, err := c.Call(ctx, PrimClick, map[string]interface{}{"uid": uid})
	return err
}

// FillField types a value into the element identified by a snapshot
// handle.
func (c *Channel) FillField(ctx context.Context, uid, value string) error {
	_, err := c.Call(ctx, PrimFill, map[string]interface{}{"uid": uid, "value": value})
	return err
}

// EvaluateScript runs a JavaScript function body in the page and returns
// its textual result.
func (c *Channel) EvaluateScript(ctx context.Context, function string) (string, error) {
	output, err := c.Call(ctx, PrimEvaluateScript, map[string]interface{}{"function": function})
	if err != nil {
		return "", err
	}
	return ResultText(output), nil
}

// WaitForText blocks until the given text appears on the page or the
// bridge-side timeout expires.
func (c *Channel) WaitForText(ctx context.Context, text string, timeoutMs int) error {
	args := map[string]interface{}{"text": text}
	if timeoutMs > 0 {
		args["timeout"] = timeoutMs
	}
	_, err := c.Call(ctx, PrimWaitFor, args)
	return err
}
