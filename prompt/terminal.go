package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

var _ Prompter = (*Terminal)(nil)

// Terminal asks on a line-oriented console. A single goroutine reads the
// input for the terminal's lifetime. Lines typed while no prompt is open are
// dropped so they cannot answer a later prompt.
type Terminal struct {
	out     io.Writer
	lock    sync.Mutex
	waiting chan string // answer slot of the open prompt, nil when none is open
	closed  chan struct{}
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		out:    out,
		closed: make(chan struct{}),
	}
	go t.readLines(in)
	return t
}

func (t *Terminal) readLines(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		t.deliver(scanner.Text())
	}
	close(t.closed)
}

func (t *Terminal) deliver(line string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.waiting == nil {
		return
	}
	select {
	case t.waiting <- line:
	default:
	}
}

// Confirm accepts "r" or "renovar" for renew; anything else logs out.
func (t *Terminal) Confirm(ctx context.Context, p Prompt) (Choice, error) {
	answer := make(chan string, 1)

	t.lock.Lock()
	t.waiting = answer
	fmt.Fprintf(t.out, "\n%s\n%s\n[r] %s  [c] %s: ", p.Title, p.Text, p.ConfirmLabel, p.CancelLabel)
	t.lock.Unlock()

	defer func() {
		t.lock.Lock()
		if t.waiting == answer {
			t.waiting = nil
		}
		t.lock.Unlock()
	}()

	select {
	case line := <-answer:
		return parseChoice(line), nil
	case <-t.closed:
		// The last line may have landed just before the input ended.
		select {
		case line := <-answer:
			return parseChoice(line), nil
		default:
			return ChoiceDismissed, io.EOF
		}
	case <-ctx.Done():
		return ChoiceDismissed, ctx.Err()
	}
}

func parseChoice(line string) Choice {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "r", "renovar", "renew":
		return ChoiceRenew
	default:
		return ChoiceLogout
	}
}

func (t *Terminal) Notify(_ context.Context, n Notice) {
	t.lock.Lock()
	defer t.lock.Unlock()
	fmt.Fprintf(t.out, "\n[%s] %s: %s\n", strings.ToUpper(string(n.Level)), n.Title, n.Text)
}
