// Package conversation holds the bounded transcript between the requester,
// the decision service, and tool results.
package conversation

import (
	"time"

	"github.com/Strob0t/CodeSmith/internal/token"
)

// Role tags who produced a transcript message.
type Role string

const (
	RoleRequester Role = "requester"
	RoleDecision  Role = "decision_service"
	RoleSystem    Role = "system"
)

// Message is one transcript entry.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

type entry struct {
	msg    Message
	tokens int
}

// Memory is the ordered transcript for one task. It is owned by a single
// orchestrator and is not safe for concurrent use. Trimming drops the oldest
// entries first but never the first message (the original request).
type Memory struct {
	maxMessages int
	maxTokens   int
	counter     *token.Counter
	entries     []entry
	total       int
}

// NewMemory creates a transcript bounded by maxMessages and, when maxTokens
// is positive, by a token budget. The counter may be nil; token trimming is
// then estimate-based.
func NewMemory(maxMessages, maxTokens int, counter *token.Counter) *Memory {
	if maxMessages < 2 {
		maxMessages = 2
	}
	return &Memory{
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
		counter:     counter,
	}
}

// Append adds a message and re-applies the bounds.
func (m *Memory) Append(role Role, content string) {
	m.entries = append(m.entries, entry{
		msg:    Message{Role: role, Content: content, At: time.Now().UTC()},
		tokens: m.counter.Count(content),
	})
	m.total += m.entries[len(m.entries)-1].tokens
	m.trim()
}

func (m *Memory) trim() {
	// Message-count bound: pin the head, keep the most recent tail.
	if len(m.entries) > m.maxMessages {
		drop := m.entries[1 : len(m.entries)-(m.maxMessages-1)]
		for _, e := range drop {
			m.total -= e.tokens
		}
		kept := make([]entry, 0, m.maxMessages)
		kept = append(kept, m.entries[0])
		kept = append(kept, m.entries[len(m.entries)-(m.maxMessages-1):]...)
		m.entries = kept
	}

	// Token bound: shed oldest non-pinned entries until within budget.
	if m.maxTokens <= 0 {
		return
	}
	for m.total > m.maxTokens && len(m.entries) > 2 {
		m.total -= m.entries[1].tokens
		m.entries = append(m.entries[:1], m.entries[2:]...)
	}
}

// Messages returns a copy of the transcript in order.
func (m *Memory) Messages() []Message {
	out := make([]Message, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.msg
	}
	return out
}

// Len returns the number of messages currently held.
func (m *Memory) Len() int { return len(m.entries) }

// TokenCount returns the current token total across held messages.
func (m *Memory) TokenCount() int { return m.total }
