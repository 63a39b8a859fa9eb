// Copyright 2024-2026 Aiku AI

package basemodules

import (
	"context"
	"strings"

	"github.com/aiku/smartbot/pkg/decoration"
	"github.com/aiku/smartbot/pkg/dispatcher"
)

// Helper returns the module with the help command.
func Helper() *dispatcher.Module {
	return dispatcher.NewModule("Helper", "Show help for modules and commands", "⛑").
		MustFunction("help", "Shows modules and commands\n"+
			"Also you can get description of a command:\n"+
			"help *command* (without prefix)",
			dispatcher.NeedEvent|dispatcher.NeedDispatcher|dispatcher.NeedCommandArgs, help)
}

// ModuleSummary renders one line listing a module's commands.
func ModuleSummary(d decoration.Decoration, m *dispatcher.Module) string {
	commands := m.Commands()
	for i, command := range commands {
		commands[i] = d.Code(d.Quote(command))
	}
	return m.Emoji + " " + d.Bold(d.Quote(m.Name)) + ": ( " + strings.Join(commands, " | ") + " )\n"
}

// ModuleDetails renders a module's description and every command with its
// description.
func ModuleDetails(d decoration.Decoration, m *dispatcher.Module) string {
	var sb strings.Builder
	sb.WriteString(d.Bold(d.Quote(m.Emoji + " " + m.Name + "\n")))
	sb.WriteString(d.Quote(m.Description))
	sb.WriteString("\n\n")
	for _, fn := range m.Functions() {
		sb.WriteString(d.Code(d.Quote(fn.Command)))
		sb.WriteString(": ")
		sb.WriteString(d.Quote(fn.Description))
		sb.WriteString("\n")
	}
	return sb.String()
}

func help(ctx context.Context, hc *dispatcher.Context) error {
	dp := hc.Dispatcher
	d := dp.Decoration()
	modules := dp.Modules()

	if hc.CommandArgs.Len() == 0 {
		var sb strings.Builder
		for _, m := range modules {
			sb.WriteString(ModuleSummary(d, m))
		}
		return hc.Event.Edit(ctx, sb.String())
	}

	target := strings.ToLower(hc.CommandArgs.Get(0))
	for _, m := range modules {
		if strings.ToLower(m.Name) == target {
			return hc.Event.Edit(ctx, ModuleDetails(d, m))
		}
		if _, ok := m.Lookup(target); ok {
			return hc.Event.Edit(ctx, ModuleDetails(d, m))
		}
	}
	hc.Log.Debug().Str("target", target).Msg("No module or command for help target")
	return hc.Event.Edit(ctx, d.Bold(d.Quote("❌ Cant find \"")+d.Code(d.Quote(target))+d.Quote("\" :(")))
}
