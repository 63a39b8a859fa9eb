// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dispatcher

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ModuleNameSuffix is the suffix module names are expected to end with, which
// keeps them apart from command tokens when looking up help.
const ModuleNameSuffix = "er"

// Need selects the [Context] fields a handler consumes.
type Need uint8

const (
	NeedEvent Need = 1 << iota
	NeedClient
	NeedCommandArgs
	NeedDispatcher

	NeedAll = NeedEvent | NeedClient | NeedCommandArgs | NeedDispatcher
)

// Has reports whether every bit of flag is set in n.
func (n Need) Has(flag Need) bool {
	return n&flag == flag
}

func (n Need) String() string {
	var parts []string
	for _, f := range []struct {
		need Need
		name string
	}{
		{NeedEvent, "event"},
		{NeedClient, "client"},
		{NeedCommandArgs, "command_args"},
		{NeedDispatcher, "dispatcher"},
	} {
		if n.Has(f.need) {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CommandArgs are the whitespace-separated tokens following the command.
type CommandArgs struct {
	Args []string
}

// Len returns the number of arguments.
func (ca *CommandArgs) Len() int {
	return len(ca.Args)
}

// Get returns the i-th argument, or "" if there is none.
func (ca *CommandArgs) Get(i int) string {
	if i < 0 || i >= len(ca.Args) {
		return ""
	}
	return ca.Args[i]
}

// Context carries the values a handler asked for.
type Context struct {
	Event       Event
	Client      Client
	CommandArgs *CommandArgs
	Dispatcher  *Dispatcher
	// Log is always set and carries the command and dispatch ID.
	Log zerolog.Logger
}

// HandlerFunc handles one command invocation. A returned error is a runtime
// fault and ends the dispatcher run; usage errors should be reported to the
// user by editing the message instead.
type HandlerFunc func(ctx context.Context, hc *Context) error

// Function binds a command token to its handler.
type Function struct {
	Command     string
	Description string
	Needs       Need
	Handler     HandlerFunc
}

// Module is a named group of commands.
type Module struct {
	Name        string
	Description string
	Emoji       string

	functions  []*Function
	registered atomic.Bool
}

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return upperCaser.String(string(r)) + lowerCaser.String(s[size:])
}

// NewModule creates an empty module. Name and description are capitalized.
func NewModule(name, description, emoji string) *Module {
	return &Module{
		Name:        capitalize(strings.TrimSpace(name)),
		Description: capitalize(strings.TrimSpace(description)),
		Emoji:       emoji,
	}
}

// Function binds command to handler. The command must start with a lowercase
// ASCII letter; it is stored trimmed and lower-cased. Bindings keep their
// insertion order, which decides ties between modules. A module is frozen
// once registered with a dispatcher; binding then fails with
// [ErrModuleRegistered].
func (m *Module) Function(command, description string, needs Need, handler HandlerFunc) error {
	if m.registered.Load() {
		return fmt.Errorf("%w: cannot bind %q to %s", ErrModuleRegistered, command, m.Name)
	}
	if command == "" || command[0] < 'a' || command[0] > 'z' {
		return fmt.Errorf("%w: %q must start with a lowercase ASCII letter", ErrBadCommand, command)
	}
	if handler == nil {
		return fmt.Errorf("%w: %q has no handler", ErrBadCommand, command)
	}
	m.functions = append(m.functions, &Function{
		Command:     strings.ToLower(strings.TrimSpace(command)),
		Description: strings.TrimSpace(description),
		Needs:       needs,
		Handler:     handler,
	})
	return nil
}

// MustFunction is like [Module.Function] but panics on error. It returns m so
// bindings can be chained while assembling built-in modules.
func (m *Module) MustFunction(command, description string, needs Need, handler HandlerFunc) *Module {
	if err := m.Function(command, description, needs, handler); err != nil {
		panic(err)
	}
	return m
}

// Functions returns the bindings in insertion order.
func (m *Module) Functions() []*Function {
	return slices.Clone(m.functions)
}

// Commands returns the bound command tokens in insertion order.
func (m *Module) Commands() []string {
	commands := make([]string, len(m.functions))
	for i, fn := range m.functions {
		commands[i] = fn.Command
	}
	return commands
}

// Lookup returns the first binding for command.
func (m *Module) Lookup(command string) (*Function, bool) {
	for _, fn := range m.functions {
		if fn.Command == command {
			return fn, true
		}
	}
	return nil, false
}
