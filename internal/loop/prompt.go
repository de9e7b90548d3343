package loop

import "strings"

// markerInstructions is the fixed suffix appended to every prepared prompt.
// It teaches the agent the three signal marker formats. The prepared prompt
// is a pure function of the run prompt and the completion-signal string:
// no per-iteration context (iteration number, working directory) is ever
// injected. The agent reads all of that from project files it manages.
const markerInstructions = `

---
When you are certain every task is finished, end your reply with the marker
<<<LOOP_COMPLETE>>> on its own line.
If you cannot make progress without something only a human can provide, end
your reply with <<<LOOP_BLOCKED: what you need>>>.
If you need a human to choose between approaches before you continue, end
your reply with <<<LOOP_DECIDE: the decision and the options>>>.
Emit at most one marker per reply.`

// commitInstruction is appended after the marker instructions when
// auto-commit is enabled.
const commitInstruction = `
If you completed a coherent unit of work this reply, also emit
<<<LOOP_COMMIT: a one-line commit message>>> and your changes will be
committed for you.`

// PreparePrompt builds the text submitted to the agent each iteration:
// the static run prompt plus the fixed instructional suffix.
func PreparePrompt(prompt, doneSignal string, autoCommit bool) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString(markerInstructions)
	if doneSignal != "" {
		b.WriteString("\nAlternatively, the exact string ")
		b.WriteString(doneSignal)
		b.WriteString(" anywhere in your reply also signals completion.")
	}
	if autoCommit {
		b.WriteString(commitInstruction)
	}
	return b.String()
}
