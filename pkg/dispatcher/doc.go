// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package dispatcher routes a userbot's own chat messages to command handlers.
//
// The bot treats messages it sends itself as commands: a message starting with
// the configured prefix is split into a command token and whitespace-separated
// arguments, the first registered handler for that token is resolved, and the
// handler is invoked with the values it declared it needs.
//
// # Core Types
//
// [Module] groups related commands under a name, description and emoji.
// Commands are bound with [Module.Function], which validates the token.
//
// [Dispatcher] owns the module registry and the protocol [Client]. Its
// lifecycle is [Dispatcher.Connect] followed by [Dispatcher.Run]; any runtime
// fault or cancellation ends the run, after which the session token is written
// to the recovery file so the next process can resume without logging in.
//
// # Handler Binding
//
// Handlers receive a [Context] carrying only the fields selected by their
// [Need] set. Fields that were not requested are left nil.
//
// # Sub-packages
//
//   - dispatchertest provides an in-memory [Connector] for tests.
package dispatcher
