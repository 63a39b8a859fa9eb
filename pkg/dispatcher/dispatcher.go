// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiku/smartbot/pkg/decoration"
)

// DefaultPrefix is the command prefix used when none is configured.
const DefaultPrefix = "-"

// Options configures a [Dispatcher].
type Options struct {
	// Session is a token from a previous run. Empty means a fresh login.
	Session string
	// Prefix marks a message as a command. It must not be in [BadPrefixes].
	Prefix string
	// ParseMode selects the reply markup. Empty means HTML.
	ParseMode decoration.ParseMode
	// RegisterBaseModules registers BaseModules after the user modules on connect.
	RegisterBaseModules bool
	BaseModules         []*Module
	// SessionFile is where the session token is saved on abnormal shutdown.
	// Empty means [DefaultSessionFile].
	SessionFile string
}

// Dispatcher routes the bot's own messages to command handlers.
type Dispatcher struct {
	connector Connector
	log       zerolog.Logger

	prefix              string
	parseMode           decoration.ParseMode
	pattern             *regexp.Regexp
	registerBaseModules bool
	baseModules         []*Module
	sessionFile         string

	mu      sync.RWMutex
	modules []*Module
	client  Client
	session string
	fail    context.CancelCauseFunc
	closing bool
	err     error

	inflight     sync.WaitGroup
	shutdownOnce sync.Once
}

// New validates opts and returns a dispatcher in the constructed state.
func New(connector Connector, opts Options, log zerolog.Logger) (*Dispatcher, error) {
	if connector == nil {
		return nil, errors.New("connector is nil")
	}
	if IsBadPrefix(opts.Prefix) {
		return nil, fmt.Errorf("%w: %q is reserved", ErrBadPrefix, opts.Prefix)
	}
	parseMode := opts.ParseMode
	if parseMode == "" {
		parseMode = decoration.ParseModeHTML
	} else if !parseMode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadParseMode, parseMode)
	}
	sessionFile := opts.SessionFile
	if sessionFile == "" {
		sessionFile = DefaultSessionFile
	}
	return &Dispatcher{
		connector:           connector,
		log:                 log.With().Str("component", "dispatcher").Logger(),
		prefix:              opts.Prefix,
		parseMode:           parseMode,
		pattern:             regexp.MustCompile("^" + regexp.QuoteMeta(opts.Prefix) + `\S+`),
		registerBaseModules: opts.RegisterBaseModules,
		baseModules:         slices.Clone(opts.BaseModules),
		sessionFile:         sessionFile,
		session:             opts.Session,
	}, nil
}

func (dp *Dispatcher) Prefix() string                    { return dp.prefix }
func (dp *Dispatcher) ParseMode() decoration.ParseMode   { return dp.parseMode }
func (dp *Dispatcher) Decoration() decoration.Decoration { return dp.parseMode.Decoration() }
func (dp *Dispatcher) SessionFile() string               { return dp.sessionFile }

// Session returns the current session token.
func (dp *Dispatcher) Session() string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return dp.session
}

// Client returns the live client, or nil before [Dispatcher.Connect].
func (dp *Dispatcher) Client() Client {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return dp.client
}

// Modules returns the registered modules in registration order.
func (dp *Dispatcher) Modules() []*Module {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return slices.Clone(dp.modules)
}

// RegisterModules appends modules to the registry. A module whose name does
// not end in [ModuleNameSuffix] is registered anyway with a warning.
func (dp *Dispatcher) RegisterModules(modules ...*Module) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	for _, m := range modules {
		if !strings.HasSuffix(m.Name, ModuleNameSuffix) {
			dp.log.Warn().
				Str("module", m.Name).
				Str("suffix", ModuleNameSuffix).
				Msg("Module name should end with the suffix to avoid collisions with command names")
		}
		m.registered.Store(true)
		dp.modules = append(dp.modules, m)
	}
}

// FindHandler returns the first binding for command, scanning modules in
// registration order and each module's bindings in insertion order.
func (dp *Dispatcher) FindHandler(command string) *Function {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	for _, m := range dp.modules {
		if fn, ok := m.Lookup(command); ok {
			return fn
		}
	}
	return nil
}

// Connect establishes the protocol session, registers the base modules if
// configured and subscribes to the bot's own messages.
func (dp *Dispatcher) Connect(ctx context.Context) error {
	if dp.Client() != nil {
		return ErrAlreadyConnected
	}
	dp.log.Info().Bool("has_session", dp.Session() != "").Msg("Connecting")
	client, err := dp.connector.Connect(ctx, dp.Session())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if dp.registerBaseModules {
		dp.RegisterModules(dp.baseModules...)
	}
	client.SetParseMode(dp.parseMode)
	client.AddHandler(dp.handleEvent)

	dp.mu.Lock()
	dp.client = client
	dp.session = client.SaveSession()
	moduleCount := len(dp.modules)
	dp.mu.Unlock()

	dp.log.Info().
		Str("prefix", dp.prefix).
		Str("parse_mode", string(dp.parseMode)).
		Int("modules", moduleCount).
		Msg("Connected")
	return nil
}

// Run blocks until the client disconnects, ctx is cancelled or a handler
// fails. On cancellation or failure the session token is written to the
// recovery file before the client is disconnected. Run does not return the
// cause; it is logged and available from [Dispatcher.Err].
func (dp *Dispatcher) Run(ctx context.Context) error {
	client := dp.Client()
	if client == nil {
		return ErrNotConnected
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	dp.mu.Lock()
	dp.fail = cancel
	dp.mu.Unlock()

	err := client.RunUntilDisconnected(runCtx)
	cause := context.Cause(runCtx)
	if cause == nil && err != nil {
		cause = fmt.Errorf("connection lost: %w", err)
	}
	cancel(nil)
	dp.shutdown(client, cause)
	return nil
}

// Start is [Dispatcher.Connect] followed by [Dispatcher.Run].
func (dp *Dispatcher) Start(ctx context.Context) error {
	if err := dp.Connect(ctx); err != nil {
		return err
	}
	return dp.Run(ctx)
}

// Err returns the cause that ended the run, or nil.
func (dp *Dispatcher) Err() error {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	return dp.err
}

func (dp *Dispatcher) shutdown(client Client, cause error) {
	dp.shutdownOnce.Do(func() {
		dp.mu.Lock()
		dp.closing = true
		dp.err = cause
		dp.mu.Unlock()
		dp.inflight.Wait()

		saveErr := errNotSaved
		if cause != nil {
			saveErr = WriteSessionFile(dp.sessionFile, dp.Session())
		}
		client.Disconnect()

		switch {
		case cause == nil:
			dp.log.Info().Msg("Disconnected")
		case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
			dp.log.Error().Msg("Unexpected execution break")
		default:
			dp.log.Error().Err(cause).Msg("Unexpected error")
		}
		if saveErr == nil {
			dp.log.Info().Str("session_file", dp.sessionFile).Msg("Session string saved to file")
		} else if cause != nil {
			dp.log.Err(saveErr).Str("session_file", dp.sessionFile).Msg("Failed to save session string")
		}
	})
}

var errNotSaved = errors.New("session not saved")

func (dp *Dispatcher) handleEvent(ctx context.Context, evt Event) {
	if !evt.Outgoing() || !dp.pattern.MatchString(evt.Text()) {
		return
	}
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.closing {
		return
	}
	fail := dp.fail
	dp.inflight.Go(func() {
		if err := dp.Dispatch(ctx, evt); err != nil {
			if fail == nil {
				dp.log.Err(err).Msg("Handler failed outside of a run")
				return
			}
			fail(err)
		}
	})
}

// Dispatch resolves and invokes the handler for evt. Text without the prefix
// and unknown commands are ignored. A panicking handler is reported as an
// error.
func (dp *Dispatcher) Dispatch(ctx context.Context, evt Event) (err error) {
	text := evt.Text()
	if !dp.pattern.MatchString(text) {
		return nil
	}
	fields := strings.Fields(strings.TrimPrefix(text, dp.prefix))
	if len(fields) == 0 {
		return nil
	}
	command, args := fields[0], fields[1:]
	fn := dp.FindHandler(command)
	if fn == nil {
		return nil
	}

	log := dp.log.With().
		Str("command", command).
		Str("dispatch_id", uuid.NewString()).
		Logger()
	hc := &Context{Log: log}
	if fn.Needs.Has(NeedEvent) {
		hc.Event = evt
	}
	if fn.Needs.Has(NeedClient) {
		hc.Client = dp.Client()
	}
	if fn.Needs.Has(NeedCommandArgs) {
		hc.CommandArgs = &CommandArgs{Args: args}
	}
	if fn.Needs.Has(NeedDispatcher) {
		hc.Dispatcher = dp
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %q panicked: %v", command, r)
		}
	}()
	log.Debug().Strs("args", args).Stringer("needs", fn.Needs).Msg("Dispatching command")
	if err = fn.Handler(log.WithContext(ctx), hc); err != nil {
		return fmt.Errorf("command %q failed: %w", command, err)
	}
	return nil
}
