// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package dispatcher

import (
	"errors"
	"slices"
)

var (
	// ErrBadPrefix is returned by [New] when the prefix is reserved.
	ErrBadPrefix = errors.New("bad prefix")
	// ErrBadCommand is returned when binding a malformed command token.
	ErrBadCommand = errors.New("bad command")
	// ErrBadParseMode is returned by [New] for an unknown output mode.
	ErrBadParseMode = errors.New("bad parse mode")

	// ErrModuleRegistered is returned when binding a command to a module
	// that is already registered with a dispatcher.
	ErrModuleRegistered = errors.New("module is already registered")
	// ErrReplyUnavailable is returned by [Event.ReplyMessage] when the
	// replied-to message exists but cannot be acted on by itself.
	ErrReplyUnavailable = errors.New("replied message is unavailable")

	ErrNotConnected     = errors.New("dispatcher is not connected")
	ErrAlreadyConnected = errors.New("dispatcher is already connected")
)

// BadPrefixes are the prefixes that collide with protocol-level conventions
// (slash commands, mentions, channel links) or can never match a command.
var BadPrefixes = []string{"", " ", "/", "@", "#"}

// IsBadPrefix reports whether prefix is in [BadPrefixes].
func IsBadPrefix(prefix string) bool {
	return slices.Contains(BadPrefixes, prefix)
}
