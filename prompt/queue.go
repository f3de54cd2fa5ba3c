package prompt

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/go-session-watcher/internal/errors"
)

var _ Prompter = (*Queue)(nil)

const defaultMaxNotices = 20

// Queue holds prompts until something else (the control API) answers them.
// At most one prompt is pending at a time.
type Queue struct {
	lock       sync.Mutex
	pending    *pendingPrompt
	notices    []Notice
	maxNotices int
	nowFunc    func() time.Time
}

type pendingPrompt struct {
	prompt Prompt
	answer chan Choice
}

type QueueOption func(*Queue)

func WithMaxNotices(n int) QueueOption {
	return func(q *Queue) {
		q.maxNotices = n
	}
}

func WithNowFunc(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.nowFunc = now
	}
}

func NewQueue(options ...QueueOption) *Queue {
	q := &Queue{
		maxNotices: defaultMaxNotices,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(q)
	}
	return q
}

// Confirm publishes p and waits for Answer. A prompt still pending when a new
// one arrives is replaced and its waiter gets ChoiceDismissed.
func (q *Queue) Confirm(ctx context.Context, p Prompt) (Choice, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.IssuedAt.IsZero() {
		p.IssuedAt = q.nowFunc()
	}
	pp := &pendingPrompt{prompt: p, answer: make(chan Choice, 1)}

	q.lock.Lock()
	if q.pending != nil {
		q.pending.answer <- ChoiceDismissed
	}
	q.pending = pp
	q.lock.Unlock()

	select {
	case c := <-pp.answer:
		return c, nil
	case <-ctx.Done():
		q.lock.Lock()
		if q.pending == pp {
			q.pending = nil
		}
		q.lock.Unlock()
		return ChoiceDismissed, ctx.Err()
	}
}

// Pending returns the prompt waiting for an answer, if any.
func (q *Queue) Pending() (Prompt, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.pending == nil {
		return Prompt{}, false
	}
	return q.pending.prompt, true
}

// Answer resolves the pending prompt with the given id.
func (q *Queue) Answer(id string, c Choice) error {
	if c != ChoiceRenew && c != ChoiceLogout && c != ChoiceDismissed {
		return errs.ErrInvalidChoice
	}

	q.lock.Lock()
	defer q.lock.Unlock()
	if q.pending == nil || q.pending.prompt.ID != id {
		return errs.ErrPromptNotFound
	}
	q.pending.answer <- c
	q.pending = nil
	return nil
}

func (q *Queue) Notify(_ context.Context, n Notice) {
	if n.At.IsZero() {
		n.At = q.nowFunc()
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	q.notices = append(q.notices, n)
	if over := len(q.notices) - q.maxNotices; over > 0 {
		q.notices = slices.Delete(q.notices, 0, over)
	}
}

// Notices returns the most recent notices, oldest first.
func (q *Queue) Notices() []Notice {
	q.lock.Lock()
	defer q.lock.Unlock()
	return slices.Clone(q.notices)
}
