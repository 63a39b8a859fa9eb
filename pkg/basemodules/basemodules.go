// Copyright 2024-2026 Aiku AI

// Package basemodules contains the modules registered by default: Deleter for
// removing messages and Helper for listing commands.
package basemodules

import "github.com/aiku/smartbot/pkg/dispatcher"

// All returns fresh instances of every built-in module, in registration order.
func All() []*dispatcher.Module {
	return []*dispatcher.Module{Deleter(), Helper()}
}
