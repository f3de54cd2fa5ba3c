package prompt_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-watcher/prompt"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written by the terminal and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type confirmResult struct {
	choice prompt.Choice
	err    error
}

// openPrompt starts a Confirm and waits until the n-th prompt is printed.
func openPrompt(t *testing.T, term *prompt.Terminal, out *syncBuffer, n int) <-chan confirmResult {
	t.Helper()
	result := make(chan confirmResult, 1)
	go func() {
		c, err := term.Confirm(context.Background(), prompt.ExpiryWarning())
		result <- confirmResult{choice: c, err: err}
	}()
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "[r] Renovar") == n
	}, 2*time.Second, 5*time.Millisecond)
	return result
}

func TestTerminalConfirm(t *testing.T) {
	r, w := io.Pipe()
	out := &syncBuffer{}
	term := prompt.NewTerminal(r, out)

	result := openPrompt(t, term, out, 1)
	_, err := io.WriteString(w, "r\n")
	require.NoError(t, err)
	res := <-result
	require.NoError(t, res.err)
	require.Equal(t, prompt.ChoiceRenew, res.choice)

	result = openPrompt(t, term, out, 2)
	_, err = io.WriteString(w, "no\n")
	require.NoError(t, err)
	res = <-result
	require.NoError(t, res.err)
	require.Equal(t, prompt.ChoiceLogout, res.choice)

	result = openPrompt(t, term, out, 3)
	require.NoError(t, w.Close())
	res = <-result
	require.ErrorIs(t, res.err, io.EOF)
	require.Equal(t, prompt.ChoiceDismissed, res.choice)

	require.Contains(t, out.String(), "Tu sesión está por terminar")
}

func TestTerminalDropsLinesTypedBetweenPrompts(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	out := &syncBuffer{}
	term := prompt.NewTerminal(r, out)

	_, err := io.WriteString(w, "c\n")
	require.NoError(t, err)
	// The reader only takes the next write once it has handled "c".
	_, err = io.WriteString(w, "r")
	require.NoError(t, err)

	result := openPrompt(t, term, out, 1)
	_, err = io.WriteString(w, "\n")
	require.NoError(t, err)

	res := <-result
	require.NoError(t, res.err)
	require.Equal(t, prompt.ChoiceRenew, res.choice)
}

func TestTerminalConfirmCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	term := prompt.NewTerminal(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	c, err := term.Confirm(ctx, prompt.ExpiryWarning())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, prompt.ChoiceDismissed, c)
}

func TestTerminalNotify(t *testing.T) {
	var out bytes.Buffer
	term := prompt.NewTerminal(strings.NewReader(""), &out)
	term.Notify(context.Background(), prompt.ExpiredNotice())
	require.Contains(t, out.String(), "[INFO] Sesión expirada: Debes iniciar sesión nuevamente")
}
