// Package cmd is a transport-agnostic command core. A command has a name,
// a description and Run(ctx, invocation); adapters decide how text reaches
// it and what travels in Invocation.Data.
package cmd

import (
	"context"
	"strings"
)

// Invocation is one call of a command.
type Invocation struct {
	// Name is the command name as typed, lowercased. It may be an alias.
	Name string
	Args []string
	// Data is the adapter's payload, e.g. the chat context of the message.
	Data any
}

// Command is the contract every command implements.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Aliased is implemented by commands reachable under extra names.
type Aliased interface {
	Aliases() []string
}

// Parse splits content into a command name and arguments when it starts
// with prefix. The prefix match ignores case and the name is lowercased;
// ".kTop 2" parses as ("top", ["2"]).
func Parse(prefix, content string) (name string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || len(content) <= len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return "", nil, false
	}
	fields := strings.Fields(content[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
