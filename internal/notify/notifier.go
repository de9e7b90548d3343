// Package notify sends fire-and-forget HTTP notifications for run events.
// The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/droverlabs/drover/internal/loop"
)

// Notifier posts plain-text HTTP notifications for selected run outcomes.
type Notifier struct {
	url        string
	title      string
	onComplete bool
	onBlocked  bool
	onDecide   bool
	onStop     bool
	client     *http.Client
}

// New creates a Notifier. projectName is used as the X-Title header; if
// empty, "drover" is used instead.
func New(notifURL, projectName string, onComplete, onBlocked, onDecide, onStop bool) *Notifier {
	title := "drover"
	if projectName != "" {
		title = projectName
	}
	return &Notifier{
		url:        notifURL,
		title:      title,
		onComplete: onComplete,
		onBlocked:  onBlocked,
		onDecide:   onDecide,
		onStop:     onStop,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send is a loop.Notifier-compatible function. It fires an asynchronous POST
// when the status matches the configured notification flags.
func (n *Notifier) Send(status loop.Status, detail string) {
	if n.url == "" {
		return
	}
	var want bool
	switch status {
	case loop.StatusCompleted:
		want = n.onComplete
	case loop.StatusBlocked:
		want = n.onBlocked
	case loop.StatusDecide:
		want = n.onDecide
	case loop.StatusCancelled, loop.StatusMaxReached, loop.StatusError:
		want = n.onStop
	}
	if !want {
		return
	}
	go n.post(message(status, detail))
}

// message renders a human-readable notification body for a status.
func message(status loop.Status, detail string) string {
	var head string
	switch status {
	case loop.StatusCompleted:
		head = "Run complete"
	case loop.StatusBlocked:
		head = "Agent blocked"
	case loop.StatusDecide:
		head = "Agent needs a decision"
	case loop.StatusMaxReached:
		head = "Iteration cap reached"
	case loop.StatusCancelled:
		head = "Run stopped"
	case loop.StatusError:
		head = "Run failed"
	default:
		head = fmt.Sprintf("Run %s", status)
	}
	if detail == "" {
		return head
	}
	return head + ": " + detail
}

// post sends a plain-text POST to the configured URL. Errors are silently
// discarded so notification failures never interrupt the loop.
func (n *Notifier) post(body string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
