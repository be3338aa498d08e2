// ABOUTME: Chain runs an ordered sequence of tools as a single addressable tool.
// ABOUTME: ConditionalChain picks between two tools based on a predicate evaluated against the call args.

package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// Chain runs each member tool in order, piping the prior tool's output into
// the next call's args under the "previous" key, and returns the last
// member's result, even if empty. It implements Tool so the registry can address it by a
// single name.
type Chain struct {
	name        string
	description string
	members     []Tool
}

// NewChain creates a named ordered tool chain.
func NewChain(name, description string, members ...Tool) *Chain {
	return &Chain{name: name, description: description, members: members}
}

func (c *Chain) Name() string        { return c.name }
func (c *Chain) Description() string { return c.description }
func (c *Chain) Usage() string       { return "chain: " + strings.Join(memberNames(c.members), " -> ") }

func (c *Chain) SupportedModalities() []Modality {
	seen := make(map[Modality]bool)
	var mods []Modality
	for _, m := range c.members {
		for _, mod := range m.SupportedModalities() {
			if !seen[mod] {
				seen[mod] = true
				mods = append(mods, mod)
			}
		}
	}
	return mods
}

func (c *Chain) Triggers() []*regexp.Regexp {
	var triggers []*regexp.Regexp
	for _, m := range c.members {
		triggers = append(triggers, m.Triggers()...)
	}
	return triggers
}

// Run executes each member in order. args is passed to the first member;
// each subsequent member receives the prior result under "previous" merged
// into a copy of the original args.
func (c *Chain) Run(args map[string]any) (string, error) {
	current := args
	var last string
	for i, member := range c.members {
		result, err := member.Run(current)
		if err != nil {
			return "", fmt.Errorf("chain %s: step %d (%s): %w", c.name, i, member.Name(), err)
		}
		last = result
		next := make(map[string]any, len(args)+1)
		for k, v := range args {
			next[k] = v
		}
		next["previous"] = result
		current = next
	}
	return last, nil
}

// ConditionalChain picks IfTrue or IfFalse based on Predicate(args), so a
// single registry entry can route to one of two tools.
type ConditionalChain struct {
	name        string
	description string
	Predicate   func(args map[string]any) bool
	IfTrue      Tool
	IfFalse     Tool
}

// NewConditionalChain creates a named predicate-gated pair of tools.
func NewConditionalChain(name, description string, predicate func(args map[string]any) bool, ifTrue, ifFalse Tool) *ConditionalChain {
	return &ConditionalChain{name: name, description: description, Predicate: predicate, IfTrue: ifTrue, IfFalse: ifFalse}
}

func (c *ConditionalChain) Name() string        { return c.name }
func (c *ConditionalChain) Description() string { return c.description }
func (c *ConditionalChain) Usage() string {
	return fmt.Sprintf("conditional: %s or %s", c.IfTrue.Name(), c.IfFalse.Name())
}

func (c *ConditionalChain) SupportedModalities() []Modality {
	return append(append([]Modality{}, c.IfTrue.SupportedModalities()...), c.IfFalse.SupportedModalities()...)
}

func (c *ConditionalChain) Triggers() []*regexp.Regexp {
	return append(append([]*regexp.Regexp{}, c.IfTrue.Triggers()...), c.IfFalse.Triggers()...)
}

func (c *ConditionalChain) Run(args map[string]any) (string, error) {
	if c.Predicate(args) {
		return c.IfTrue.Run(args)
	}
	return c.IfFalse.Run(args)
}

func memberNames(members []Tool) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name()
	}
	return names
}

var (
	_ Tool = (*Chain)(nil)
	_ Tool = (*ConditionalChain)(nil)
)
