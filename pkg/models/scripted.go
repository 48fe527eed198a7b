package models

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by ScriptedDecider once its queue is empty.
var ErrScriptExhausted = errors.New("scripted decider has no more decisions")

// ScriptedResult is one queued answer of a ScriptedDecider.
type ScriptedResult struct {
	Decision Decision
	Err      error
}

// ScriptedDecider replays queued decisions and records what it was shown.
// When Repeat is set the last queued result is returned forever.
type ScriptedDecider struct {
	mu            sync.Mutex
	queue         []ScriptedResult
	Repeat        bool
	conversations []Conversation
}

func NewScriptedDecider(results ...ScriptedResult) *ScriptedDecider {
	return &ScriptedDecider{queue: results}
}

// Reply and Call build queue entries.
func Reply(text string) ScriptedResult { return ScriptedResult{Decision: Decision{Reply: text}} }

func Call(name string, args map[string]any) ScriptedResult {
	return ScriptedResult{Decision: Decision{Call: &ToolCall{Name: name, Arguments: args}}}
}

func Fail(err error) ScriptedResult { return ScriptedResult{Err: err} }

func (s *ScriptedDecider) Push(results ...ScriptedResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, results...)
}

func (s *ScriptedDecider) Decide(_ context.Context, conv Conversation) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append(s.conversations, conv)
	if len(s.queue) == 0 {
		return Decision{}, ErrScriptExhausted
	}
	next := s.queue[0]
	if len(s.queue) > 1 || !s.Repeat {
		s.queue = s.queue[1:]
	}
	return next.Decision, next.Err
}

// Calls is the number of times Decide has run.
func (s *ScriptedDecider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Conversations returns copies of every conversation passed to Decide.
func (s *ScriptedDecider) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Conversation(nil), s.conversations...)
}
