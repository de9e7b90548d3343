// Package marker detects the structured signal markers an agent embeds in
// its output: completion, blocked, decide, and commit-message markers.
// Detection is stateless; the grammar lives entirely in this package so the
// loop never touches the raw text.
package marker

import (
	"regexp"
	"strings"
)

// Kind classifies a detected signal.
type Kind string

const (
	None     Kind = "none"
	Complete Kind = "complete"
	Blocked  Kind = "blocked"
	Decide   Kind = "decide"
)

// Signal is the structured result of scanning one block of agent output.
// Detail carries the free-text payload for blocked/decide markers; Raw is
// the full matched marker text. Both are empty when Kind is None.
type Signal struct {
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail,omitempty"`
	Raw    string `json:"raw,omitempty"`
}

// Marker grammar: <<<LOOP_COMPLETE>>>, <<<LOOP_BLOCKED: payload>>>,
// <<<LOOP_DECIDE: payload>>>. Keyword matching is case-insensitive and
// tolerates whitespace inside the delimiters. Payload runs from the colon
// to the closing delimiter and may span lines; the colon and payload are
// optional, so a bare <<<LOOP_BLOCKED>>> is a blocked signal with no detail.
var (
	completeRe = regexp.MustCompile(`(?i)<<<\s*LOOP_COMPLETE\s*>>>`)
	blockedRe  = regexp.MustCompile(`(?is)<<<\s*LOOP_BLOCKED\s*(?::(.*?))?>>>`)
	decideRe   = regexp.MustCompile(`(?is)<<<\s*LOOP_DECIDE\s*(?::(.*?))?>>>`)
	commitRe   = regexp.MustCompile(`(?is)<<<\s*LOOP_COMMIT\s*:(.*?)>>>`)

	// anyRe matches every structured marker for FindAll enumeration.
	anyRe = regexp.MustCompile(`(?is)<<<\s*LOOP_(COMPLETE|BLOCKED|DECIDE)\s*(?::(.*?))?>>>`)
)

// Detect scans text for signal markers and returns exactly one Signal.
// Precedence is by class, not position: a complete marker wins over blocked
// and decide even when it appears later in the text. customDone, when
// non-empty, is an alternative completion trigger matched as a plain
// substring anywhere in the text.
func Detect(text, customDone string) Signal {
	if m := completeRe.FindString(text); m != "" {
		return Signal{Kind: Complete, Raw: m}
	}
	if customDone != "" && strings.Contains(text, customDone) {
		return Signal{Kind: Complete, Raw: customDone}
	}
	if m := blockedRe.FindStringSubmatch(text); m != nil {
		return Signal{Kind: Blocked, Detail: strings.TrimSpace(m[1]), Raw: m[0]}
	}
	if m := decideRe.FindStringSubmatch(text); m != nil {
		return Signal{Kind: Decide, Detail: strings.TrimSpace(m[1]), Raw: m[0]}
	}
	return Signal{Kind: None}
}

// FindAll enumerates every structured marker in text in order of appearance,
// without applying precedence. Intended for diagnostics; it never drives
// state transitions.
func FindAll(text string) []Signal {
	matches := anyRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	signals := make([]Signal, 0, len(matches))
	for _, m := range matches {
		sig := Signal{Raw: m[0], Detail: strings.TrimSpace(m[2])}
		switch strings.ToUpper(m[1]) {
		case "COMPLETE":
			sig.Kind = Complete
			sig.Detail = ""
		case "BLOCKED":
			sig.Kind = Blocked
		case "DECIDE":
			sig.Kind = Decide
		}
		signals = append(signals, sig)
	}
	return signals
}

// CommitMessage extracts the payload of a commit-message marker, if present.
// Commit markers are consumed by the auto-commit collaborator and are never
// a loop signal.
func CommitMessage(text string) (string, bool) {
	m := commitRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
