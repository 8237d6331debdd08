// Package confirm asks a human operator to approve calendar writes.
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultAffirmative are the answers accepted as approval.
var DefaultAffirmative = []string{"s", "sim", "y", "yes"}

// Intent is the normalized write an operator is asked to approve.
type Intent struct {
	Operation   string
	EventID     string
	Summary     string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Location    string
	Description string
	Extra       map[string]string
}

// Gate approves or refuses an intent. A false result with a nil error is
// a refusal; an error means the channel itself failed.
type Gate interface {
	Confirm(ctx context.Context, intent Intent) (bool, error)
}

// Func adapts a function to Gate.
type Func func(ctx context.Context, intent Intent) (bool, error)

func (f Func) Confirm(ctx context.Context, intent Intent) (bool, error) {
	return f(ctx, intent)
}

// AutoApprove approves every intent.
var AutoApprove Gate = Func(func(context.Context, Intent) (bool, error) { return true, nil })

// AutoDeny refuses every intent.
var AutoDeny Gate = Func(func(context.Context, Intent) (bool, error) { return false, nil })

// Prompter renders the intent to Out and reads a single answer line from In.
type Prompter struct {
	In          io.Reader
	Out         io.Writer
	Affirmative []string
	// Timeout of zero waits indefinitely.
	Timeout time.Duration

	mu      sync.Mutex
	lines   chan lineResult
	pending bool
	reader  *bufio.Reader
}

type lineResult struct {
	line string
	err  error
}

// NewPrompter uses the default affirmative answers and no timeout.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{In: in, Out: out, Affirmative: DefaultAffirmative}
}

// TTY opens the controlling terminal so prompts work while stdin and
// stdout carry another protocol. The returned close func releases it.
func TTY() (*Prompter, func() error, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open terminal for confirmation: %w", err)
	}
	return NewPrompter(tty, tty), tty.Close, nil
}

// Confirm blocks until the operator answers, ctx is done or the timeout
// elapses. Only an affirmative answer approves.
func (p *Prompter) Confirm(ctx context.Context, intent Intent) (bool, error) {
	// One prompt at a time on a shared terminal.
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := io.WriteString(p.Out, Render(intent)); err != nil {
		return false, fmt.Errorf("failed to write confirmation prompt: %w", err)
	}

	parent := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	p.readLine()

	select {
	case res := <-p.lines:
		p.pending = false
		if res.err != nil && res.line == "" {
			return false, nil
		}
		return p.isAffirmative(res.line), nil
	case <-ctx.Done():
		if err := parent.Err(); err != nil {
			return false, fmt.Errorf("confirmation abandoned: %w", err)
		}
		_, _ = io.WriteString(p.Out, "\nNo answer received, treating as refusal.\n")
		return false, nil
	}
}

// readLine starts a read unless one abandoned by an earlier timeout is
// still outstanding. An answer that arrived after its prompt gave up is
// dropped so it cannot approve a different intent.
func (p *Prompter) readLine() {
	if p.lines == nil {
		p.lines = make(chan lineResult, 1)
		p.reader = bufio.NewReader(p.In)
	}
	if p.pending {
		select {
		case <-p.lines:
			p.pending = false
		default:
			return
		}
	}
	p.pending = true
	go func() {
		line, err := p.reader.ReadString('\n')
		p.lines <- lineResult{line: line, err: err}
	}()
}

func (p *Prompter) isAffirmative(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return false
	}
	affirmative := p.Affirmative
	if len(affirmative) == 0 {
		affirmative = DefaultAffirmative
	}
	for _, a := range affirmative {
		if answer == strings.ToLower(strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

// Render formats the intent for the operator.
func Render(intent Intent) string {
	var b strings.Builder
	b.WriteString("\n--- Confirmation required ---\n")
	fmt.Fprintf(&b, "Action: %s\n", actionLabel(intent.Operation))
	if intent.EventID != "" {
		fmt.Fprintf(&b, "Event ID: %s\n", intent.EventID)
	}
	if intent.Summary != "" {
		fmt.Fprintf(&b, "Title: %s\n", intent.Summary)
	}
	if !intent.Start.IsZero() {
		fmt.Fprintf(&b, "Start: %s\n", intent.Start.Format("Mon 02/01/2006 15:04 (MST)"))
	}
	if !intent.End.IsZero() {
		fmt.Fprintf(&b, "End: %s\n", intent.End.Format("Mon 02/01/2006 15:04 (MST)"))
	}
	if len(intent.Attendees) > 0 {
		fmt.Fprintf(&b, "Attendees: %s\n", strings.Join(intent.Attendees, ", "))
	}
	if intent.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", intent.Location)
	}
	if intent.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", intent.Description)
	}
	if len(intent.Extra) > 0 {
		keys := make([]string, 0, len(intent.Extra))
		for k := range intent.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, intent.Extra[k])
		}
	}
	b.WriteString("Confirm? (s/n): ")
	return b.String()
}

func actionLabel(op string) string {
	switch op {
	case "create":
		return "create event"
	case "update":
		return "update event"
	case "delete":
		return "delete event"
	case "":
		return "calendar change"
	default:
		return op
	}
}
