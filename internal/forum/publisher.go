package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"coursenerd/internal/logging"
	"coursenerd/internal/snapshot"
)

// Error kinds reported in PublishResult for failed attempts.
const (
	ErrKindConfiguration   = "configuration_error"
	ErrKindValidation      = "validation_error"
	ErrKindNavigation      = "navigation_error"
	ErrKindElementNotFound = "element_not_found"
	ErrKindFill            = "fill_error"
)

const (
	// addTopicLabel is the button that opens Moodle's new-discussion form.
	addTopicLabel = "Add discussion topic"

	// formWaitMs bounds how long we wait for the forum page to render.
	formWaitMs = 10000

	// defaultSettleDelay gives the discussion form time to mount its
	// editor after the click before we start filling.
	defaultSettleDelay = 2 * time.Second

	maxSubjectFromLine = 100
)

// Driver is the subset of bridge operations publishing needs. The
// production implementation is *bridge.Channel.
type Driver interface {
	NavigatePage(ctx context.Context, url string) error
	TakeSnapshot(ctx context.Context) (string, error)
	ClickElement(ctx context.Context, uid string) error
	EvaluateScript(ctx context.Context, function string) (string, error)
	WaitForText(ctx context.Context, text string, timeoutMs int) error
}

// SnapshotSaver persists failing snapshots for diagnosis.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, label, content string) (string, error)
}

// PublishResult reports the outcome of a publish attempt.
type PublishResult struct {
	Success       bool   `json:"success"`
	Subject       string `json:"subject,omitempty"`
	MessageLength int    `json:"message_length,omitempty"`
	HTMLLength    int    `json:"html_length,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	Detail        string `json:"detail,omitempty"`
	SnapshotRef   string `json:"snapshot_ref,omitempty"`
}

// Publisher fills the Moodle new-discussion form with a draft. It never
// presses the submit button: the user reviews and posts manually.
type Publisher struct {
	driver      Driver
	saver       SnapshotSaver
	forumURL    string
	settleDelay time.Duration
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithDefaultForumURL sets the forum used when a publish call does not
// name one.
func WithDefaultForumURL(url string) PublisherOption {
	return func(p *Publisher) { p.forumURL = url }
}

// WithSnapshotSaver enables diagnostic snapshot persistence.
func WithSnapshotSaver(s SnapshotSaver) PublisherOption {
	return func(p *Publisher) { p.saver = s }
}

// WithSettleDelay overrides the post-click settle delay (tests).
func WithSettleDelay(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.settleDelay = d }
}

// NewPublisher creates a publisher over the given driver.
func NewPublisher(d Driver, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		driver:      d,
		settleDelay: defaultSettleDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishDraft fills the new-discussion form with subject and message.
// forumURL overrides the configured default when non-empty. The attempt
// is not idempotent: running it twice opens two draft forms.
func (p *Publisher) PublishDraft(ctx context.Context, subject, message, forumURL string) *PublishResult {
	url := forumURL
	if url == "" {
		url = p.forumURL
	}
	if url == "" {
		return &PublishResult{
			ErrorKind: ErrKindConfiguration,
			Detail:    "no forum URL given and none configured",
		}
	}

	if err := ValidateForumURL(url); err != nil {
		return &PublishResult{ErrorKind: ErrKindValidation, Detail: err.Error()}
	}

	subject, message = NormalizeSubject(subject, message)
	logging.Forum("publishing draft %q to %s", subject, url)

	if err := p.driver.NavigatePage(ctx, url); err != nil {
		return &PublishResult{ErrorKind: ErrKindNavigation, Detail: fmt.Sprintf("navigate: %v", err)}
	}

	if err := p.driver.WaitForText(ctx, addTopicLabel, formWaitMs); err != nil {
		return &PublishResult{
			ErrorKind: ErrKindNavigation,
			Detail:    fmt.Sprintf("forum page did not render %q: %v", addTopicLabel, err),
		}
	}

	snap, err := p.driver.TakeSnapshot(ctx)
	if err != nil {
		return &PublishResult{ErrorKind: ErrKindNavigation, Detail: fmt.Sprintf("snapshot: %v", err)}
	}

	uid, found := snapshot.FindByText(snap, addTopicLabel, "button")
	if !found {
		result := &PublishResult{
			ErrorKind: ErrKindElementNotFound,
			Detail:    fmt.Sprintf("no %q button on the page", addTopicLabel),
		}
		result.SnapshotRef = p.saveDiagnostic(ctx, "missing-add-topic-button", snap)
		return result
	}

	if err := p.driver.ClickElement(ctx, uid); err != nil {
		return &PublishResult{ErrorKind: ErrKindNavigation, Detail: fmt.Sprintf("click: %v", err)}
	}

	// Let the form mount its editor before touching fields.
	select {
	case <-ctx.Done():
		return &PublishResult{ErrorKind: ErrKindNavigation, Detail: ctx.Err().Error()}
	case <-time.After(p.settleDelay):
	}

	out, err := p.driver.EvaluateScript(ctx, subjectFillScript(subject))
	if err != nil {
		return &PublishResult{ErrorKind: ErrKindFill, Detail: fmt.Sprintf("subject fill: %v", err)}
	}
	if !strings.Contains(out, "subject-filled") {
		return &PublishResult{ErrorKind: ErrKindFill, Detail: fmt.Sprintf("subject fill returned %q", out)}
	}

	htmlBody := ToHTML(message)

	out, err = p.driver.EvaluateScript(ctx, editorInjectScript(htmlBody))
	if err != nil {
		return &PublishResult{ErrorKind: ErrKindFill, Detail: fmt.Sprintf("message fill: %v", err)}
	}
	if strings.Contains(out, "editor-not-found") {
		return &PublishResult{ErrorKind: ErrKindFill, Detail: "no message editor found on the form"}
	}

	logging.Forum("draft filled: subject=%q message=%d chars html=%d chars editor=%s",
		subject, len(message), len(htmlBody), strings.TrimSpace(out))

	return &PublishResult{
		Success:       true,
		Subject:       subject,
		MessageLength: len(message),
		HTMLLength:    len(htmlBody),
	}
}

func (p *Publisher) saveDiagnostic(ctx context.Context, label, snap string) string {
	if p.saver == nil {
		return ""
	}
	ref, err := p.saver.SaveSnapshot(ctx, label, snap)
	if err != nil {
		logging.ForumWarn("failed to save diagnostic snapshot: %v", err)
		return ""
	}
	logging.Forum("saved diagnostic snapshot %s (%s)", ref, label)
	return ref
}

// NormalizeSubject replaces a directive-looking subject ("write a post
// about X", bare fragments) with a title derived from the message body.
// When a body line is consumed for the title it is removed from the
// returned message so the post does not repeat its own subject.
func NormalizeSubject(subject, message string) (string, string) {
	trimmed := strings.TrimSpace(subject)
	if !isDirectiveSubject(trimmed) {
		return trimmed, message
	}

	lines := strings.Split(message, "\n")
	for i, line := range lines {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}

		var title string
		if strings.HasPrefix(l, "#") {
			title = strings.TrimSpace(strings.TrimLeft(l, "# "))
		} else {
			title = l
			if utf8.RuneCountInString(title) > maxSubjectFromLine {
				title = string([]rune(title)[:maxSubjectFromLine])
			}
		}
		if title == "" {
			continue
		}

		rest := append(append([]string(nil), lines[:i]...), lines[i+1:]...)
		return title, strings.TrimSpace(strings.Join(rest, "\n"))
	}

	// Nothing usable in the body; keep what we were given.
	return trimmed, message
}

// isDirectiveSubject detects subjects that are instructions to the
// assistant rather than post titles.
func isDirectiveSubject(s string) bool {
	if s == "" {
		return true
	}
	lower := strings.ToLower(s)
	for _, phrase := range []string{"post a", "write a", "create a", "about"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	if utf8.RuneCountInString(s) < 15 {
		return true
	}
	if !strings.ContainsFunc(s, unicode.IsUpper) && !strings.ContainsAny(s, ".,!?:;") {
		return true
	}
	return false
}

// subjectFillScript sets the subject input through the DOM and fires the
// events Moodle's form validation listens for.
func subjectFillScript(subject string) string {
	encoded, _ := json.Marshal(subject)
	return fmt.Sprintf(`() => {
	const field = document.querySelector('#id_subject') ||
		document.querySelector('input[name="subject"]') ||
		document.querySelector('input[type="text"][required]');
	if (!field) return 'subject-field-not-found';
	field.value = %s;
	field.dispatchEvent(new Event('input', { bubbles: true }));
	field.dispatchEvent(new Event('change', { bubbles: true }));
	return 'subject-filled';
}`, encoded)
}

// editorInjectScript writes the HTML body into the message editor.
// Three tiers: the active TinyMCE editor, then a TinyMCE instance whose
// id looks like the message field, then the raw textarea.
func editorInjectScript(html string) string {
	encoded, _ := json.Marshal(html)
	return fmt.Sprintf(`() => {
	const html = %s;
	if (typeof tinymce !== 'undefined' && tinymce.activeEditor) {
		tinymce.activeEditor.setContent(html);
		return 'tinymce-active';
	}
	if (typeof tinymce !== 'undefined' && tinymce.editors && tinymce.editors.length > 0) {
		let editor = null;
		for (const ed of tinymce.editors) {
			const id = (ed.id || '').toLowerCase();
			if (id.includes('message') || id.includes('advancededitor')) { editor = ed; break; }
		}
		if (!editor) editor = tinymce.editors[0];
		editor.setContent(html);
		return 'tinymce-editors';
	}
	const textarea = document.querySelector('textarea[name="message"]') ||
		document.querySelector('textarea[id*="message"]') ||
		document.querySelector('textarea');
	if (textarea) {
		textarea.value = html;
		textarea.dispatchEvent(new Event('change', { bubbles: true }));
		return 'textarea-fallback';
	}
	return 'editor-not-found';
}`, encoded)
}
