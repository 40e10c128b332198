// Package snapshot locates elements in accessibility-tree text snapshots
// captured through the bridge. Snapshot formats drift between bridge
// versions, so location is layered text heuristics rather than strict
// parsing: a miss returns not-found, never an error.
package snapshot

import (
	"regexp"
	"strings"

	"coursenerd/internal/logging"
)

var (
	// uid=<token> is the current snapshot handle format.
	uidRe = regexp.MustCompile(`uid=([^\s\]]+)`)

	// Older bridge builds render handles as "uid: <token>" or
	// "[uid: <token>]".
	legacyUIDRe = regexp.MustCompile(`\[?uid[:\s]+([^\]\s,]+)`)

	nameAttrRe = regexp.MustCompile(`name="([^"]*)"`)
)

// inputMarkers identify lines that describe a fillable element.
var inputMarkers = []string{"textbox", "searchbox", "entry", "input", "textarea", "combobox"}

// FindByText scans the snapshot for a line containing the given text and
// returns the element handle on that line. elementType, when non-empty,
// restricts matches to lines that also mention that type (e.g. "button").
func FindByText(snap, text, elementType string) (string, bool) {
	if snap == "" || text == "" {
		return "", false
	}

	lowerText := strings.ToLower(text)
	lowerType := strings.ToLower(elementType)

	for _, line := range strings.Split(snap, "\n") {
		lowerLine := strings.ToLower(line)
		if !strings.Contains(lowerLine, lowerText) {
			continue
		}
		if lowerType != "" && !strings.Contains(lowerLine, lowerType) {
			continue
		}
		if uid, ok := extractUID(line); ok {
			logging.SnapshotDebug("found %q (%s) -> %s", text, elementType, uid)
			return uid, true
		}
	}

	logging.SnapshotDebug("no element matching %q (%s)", text, elementType)
	return "", false
}

// FindByLabel locates a form field by its visible label. Three tiers,
// tried in order:
//
//  1. a line containing the label, followed within ten lines by an
//     input-like element;
//  2. any input-like line that itself contains the label;
//  3. an element whose name attribute equals the label.
func FindByLabel(snap, label, inputType string) (string, bool) {
	if snap == "" || label == "" {
		return "", false
	}

	lines := strings.Split(snap, "\n")

	if uid, ok := findInputAfterLabel(lines, label, inputType); ok {
		return uid, true
	}
	if uid, ok := findInputContainingLabel(lines, label, inputType); ok {
		return uid, true
	}
	if uid, ok := findByNameAttr(lines, label); ok {
		return uid, true
	}

	logging.SnapshotDebug("no field labeled %q", label)
	return "", false
}

// findInputAfterLabel matches a label line then scans forward for the
// field it labels. Moodle renders the label and its control as separate
// snapshot nodes, usually within a few lines of each other.
func findInputAfterLabel(lines []string, label, inputType string) (string, bool) {
	lowerLabel := strings.ToLower(label)

	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), lowerLabel) {
			continue
		}

		end := i + 10
		if end > len(lines) {
			end = len(lines)
		}
		for j := i; j < end; j++ {
			if !isInputLine(lines[j], inputType) {
				continue
			}
			if uid, ok := extractUID(lines[j]); ok {
				return uid, true
			}
		}
	}
	return "", false
}

// findInputContainingLabel matches input-like lines that mention the
// label inline, the way single-node snapshots render labeled fields.
func findInputContainingLabel(lines []string, label, inputType string) (string, bool) {
	lowerLabel := strings.ToLower(label)

	for _, line := range lines {
		if !isInputLine(line, inputType) {
			continue
		}
		if !strings.Contains(strings.ToLower(line), lowerLabel) {
			continue
		}
		if uid, ok := extractUID(line); ok {
			return uid, true
		}
	}
	return "", false
}

// findByNameAttr matches on the form-field name attribute as a last
// resort.
func findByNameAttr(lines []string, label string) (string, bool) {
	lowerLabel := strings.ToLower(label)

	for _, line := range lines {
		m := nameAttrRe.FindStringSubmatch(line)
		if m == nil || strings.ToLower(m[1]) != lowerLabel {
			continue
		}
		if uid, ok := extractUID(line); ok {
			return uid, true
		}
	}
	return "", false
}

// isInputLine reports whether a snapshot line describes a fillable
// element, optionally of a specific type.
func isInputLine(line, inputType string) bool {
	lowerLine := strings.ToLower(line)
	if inputType != "" {
		return strings.Contains(lowerLine, strings.ToLower(inputType))
	}
	for _, marker := range inputMarkers {
		if strings.Contains(lowerLine, marker) {
			return true
		}
	}
	return false
}

// extractUID pulls the element handle out of a snapshot line, trying the
// current format before the legacy ones.
func extractUID(line string) (string, bool) {
	if m := uidRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := legacyUIDRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}
