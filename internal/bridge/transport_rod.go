package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"coursenerd/internal/logging"
)

// interactiveSelector matches the elements worth exposing through a
// snapshot: anything clickable or fillable.
const interactiveSelector = `a, button, input, textarea, select, [onclick], [role='button'], [role='link'], [role='textbox'], [contenteditable='true']`

// RodTransport drives a local browser in-process and serves the same
// primitives as the external bridge. Snapshot handles map to live rod
// elements; the map is cleared on every snapshot and navigation, which
// is what makes stale handles fail instead of clicking the wrong thing.
type RodTransport struct {
	mu sync.Mutex

	headless bool
	browser  *rod.Browser
	page     *rod.Page

	connected bool

	elements map[string]*rod.Element
	uidSeq   int
}

// NewRodTransport creates an in-process browser transport.
func NewRodTransport(headless bool) *RodTransport {
	return &RodTransport{
		headless: headless,
		elements: make(map[string]*rod.Element),
	}
}

// Connect launches the browser and opens a blank page.
func (t *RodTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return nil
	}

	url, err := launcher.New().Headless(t.headless).Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("failed to open page: %w", err)
	}

	t.browser = browser
	t.page = page
	t.connected = true
	logging.Bridge("rod transport connected (headless=%v)", t.headless)
	return nil
}

// Disconnect closes the browser.
func (t *RodTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}
	t.connected = false
	t.elements = make(map[string]*rod.Element)

	if t.browser != nil {
		if err := t.browser.Close(); err != nil {
			logging.BridgeWarn("error closing browser: %v", err)
		}
		t.browser = nil
		t.page = nil
	}

	logging.Bridge("rod transport disconnected")
	return nil
}

// ListPrimitives advertises the same six primitives as the external
// bridge so the channel treats both backends identically.
func (t *RodTransport) ListPrimitives(ctx context.Context) ([]PrimitiveSchema, error) {
	objSchema := json.RawMessage(`{"type":"object"}`)
	names := []string{
		PrimNavigatePage,
		PrimTakeSnapshot,
		PrimClick,
		PrimFill,
		PrimEvaluateScript,
		PrimWaitFor,
	}
	prims := make([]PrimitiveSchema, 0, len(names))
	for _, name := range names {
		prims = append(prims, PrimitiveSchema{Name: name, InputSchema: objSchema})
	}
	return prims, nil
}

// CallPrimitive dispatches a primitive call to the local browser.
func (t *RodTransport) CallPrimitive(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	start := time.Now()

	text, err := t.dispatch(ctx, name, args)
	latencyMs := time.Since(start).Milliseconds()

	if err != nil {
		return &CallResult{Success: false, Error: err.Error(), LatencyMs: latencyMs}, nil
	}

	output, _ := json.Marshal(textContent{
		Content: []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: text}},
	})
	return &CallResult{Success: true, Output: output, LatencyMs: latencyMs}, nil
}

func (t *RodTransport) dispatch(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return "", fmt.Errorf("not connected")
	}

	switch name {
	case PrimNavigatePage:
		return t.navigate(ctx, stringArg(args, "url"))
	case PrimTakeSnapshot:
		return t.snapshot(ctx)
	case PrimClick:
		return t.click(stringArg(args, "uid"))
	case PrimFill:
		return t.fill(stringArg(args, "uid"), stringArg(args, "value"))
	case PrimEvaluateScript:
		return t.evaluate(ctx, stringArg(args, "function"))
	case PrimWaitFor:
		return t.waitFor(ctx, stringArg(args, "text"), intArg(args, "timeout"))
	default:
		return "", fmt.Errorf("unknown primitive %q", name)
	}
}

func (t *RodTransport) navigate(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("url is required")
	}
	if err := t.page.Context(ctx).Timeout(30 * time.Second).Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	_ = t.page.Context(ctx).WaitLoad()

	// Navigation invalidates every outstanding handle.
	t.elements = make(map[string]*rod.Element)

	return fmt.Sprintf("Navigated to %s", url), nil
}

// snapshot renders the interactive elements of the page, one per line,
// each tagged with a fresh handle. Handles from older snapshots are
// dropped.
func (t *RodTransport) snapshot(ctx context.Context) (string, error) {
	elements, err := t.page.Context(ctx).Elements(interactiveSelector)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	t.elements = make(map[string]*rod.Element)

	var sb strings.Builder
	if info, err := t.page.Info(); err == nil {
		sb.WriteString(fmt.Sprintf("Page: %s (%s)\n", info.Title, info.URL))
	}

	for _, el := range elements {
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}

		role, err := elementRole(el)
		if err != nil {
			continue
		}

		t.uidSeq++
		uid := fmt.Sprintf("e%d", t.uidSeq)
		t.elements[uid] = el

		text, _ := el.Text()
		text = truncateLabel(strings.TrimSpace(strings.ReplaceAll(text, "\n", " ")), 80)

		line := fmt.Sprintf("uid=%s %s", uid, role)
		if nameAttr, _ := el.Attribute("name"); nameAttr != nil && *nameAttr != "" {
			line += fmt.Sprintf(" name=%q", *nameAttr)
		}
		if text != "" {
			line += fmt.Sprintf(" %q", text)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	logging.SnapshotDebug("rod snapshot: %d interactive elements", len(t.elements))
	return sb.String(), nil
}

func (t *RodTransport) click(uid string) (string, error) {
	el, ok := t.elements[uid]
	if !ok {
		return "", fmt.Errorf("stale or unknown element handle %q; take a new snapshot", uid)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("click %s: %w", uid, err)
	}
	return fmt.Sprintf("Clicked %s", uid), nil
}

func (t *RodTransport) fill(uid, value string) (string, error) {
	el, ok := t.elements[uid]
	if !ok {
		return "", fmt.Errorf("stale or unknown element handle %q; take a new snapshot", uid)
	}
	// Select-all first so Input replaces instead of appending. Not every
	// element supports it, and that is fine.
	_ = el.SelectAllText()
	if err := el.Input(value); err != nil {
		return "", fmt.Errorf("fill %s: %w", uid, err)
	}
	return fmt.Sprintf("Filled %s", uid), nil
}

func (t *RodTransport) evaluate(ctx context.Context, function string) (string, error) {
	if function == "" {
		return "", fmt.Errorf("function is required")
	}
	res, err := t.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           function,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	return res.Value.String(), nil
}

// waitFor polls the page text until it contains the target string.
func (t *RodTransport) waitFor(ctx context.Context, text string, timeoutMs int) (string, error) {
	if text == "" {
		return "", fmt.Errorf("text is required")
	}
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		res, err := t.page.Context(ctx).Evaluate(&rod.EvalOptions{
			JS:      fmt.Sprintf(`() => document.body && document.body.innerText.includes(%q)`, text),
			ByValue: true,
		})
		if err == nil && res.Value.Bool() {
			return fmt.Sprintf("Found %q", text), nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("timed out waiting for %q after %dms", text, timeoutMs)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func elementRole(el *rod.Element) (string, error) {
	res, err := el.Eval(`() => {
		const role = this.getAttribute('role');
		if (role) return role;
		const tag = this.tagName.toLowerCase();
		if (tag === 'a') return 'link';
		if (tag === 'input') {
			const type = (this.getAttribute('type') || 'text').toLowerCase();
			if (type === 'button' || type === 'submit') return 'button';
			if (type === 'checkbox') return 'checkbox';
			return 'textbox';
		}
		if (tag === 'textarea') return 'textbox';
		if (tag === 'select') return 'combobox';
		return tag;
	}`)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

// truncateLabel caps element text at max runes. Course pages mix CJK
// and Latin text, so cutting on bytes could split a rune mid-sequence.
func truncateLabel(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// IsConnected returns current connection status.
func (t *RodTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Ensure RodTransport implements Transport.
var _ Transport = (*RodTransport)(nil)
