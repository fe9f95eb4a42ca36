package handlers

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/gm-engine/pkg/chat"
	"github.com/jwebster45206/gm-engine/pkg/world"
)

type commandType string

const (
	cmdLook      commandType = "look"
	cmdInventory commandType = "inventory"
	cmdSheet     commandType = "sheet"
	cmdQuests    commandType = "quests"
	cmdNone      commandType = "" // No command, used for fallback
)

var knownCommands = map[string]commandType{
	"look":      cmdLook,
	"l":         cmdLook,
	"location":  cmdLook,
	"inventory": cmdInventory,
	"inv":       cmdInventory,
	"i":         cmdInventory,
	"sheet":     cmdSheet,
	"stats":     cmdSheet,
	"character": cmdSheet,
	"quests":    cmdQuests,
	"journal":   cmdQuests,
	"q":         cmdQuests,
}

// CommandResult represents the result of attempting to handle a user command.
type CommandResult struct {
	Handled bool   // True if the command was fully resolved and no LLM call is needed
	Message string // Message or prompt to return
	Role    string // Role for the message, e.g. "user", "assistant"
}

// parseCommand parses the input string and returns the command type if recognized.
func parseCommand(input string) commandType {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if cmd, ok := knownCommands[trimmed]; ok {
		return cmd
	}
	return cmdNone
}

// TryHandleCommand answers shortcut commands straight from the world
// state. Anything else is passed through for the Game Master.
func TryHandleCommand(ws *world.WorldState, input string) *CommandResult {
	var message string
	switch parseCommand(input) {
	case cmdLook:
		message = describeLocation(ws)
	case cmdInventory:
		message = describeInventory(ws)
	case cmdSheet:
		message = describeSheet(ws)
	case cmdQuests:
		message = describeQuests(ws)
	default:
		return &CommandResult{
			Handled: false,
			Message: input,
			Role:    chat.ChatRoleUser,
		}
	}
	return &CommandResult{
		Handled: true,
		Message: message,
		Role:    chat.ChatRoleAgent,
	}
}

func describeLocation(ws *world.WorldState) string {
	loc := ws.Location()
	name := loc.String("name")
	if name == "" {
		return "You are in an unknown location."
	}
	out := name
	if desc := loc.String("description"); desc != "" {
		out += ": " + desc
	}
	if paths := loc.Strings("connections"); len(paths) > 0 {
		out += "\nPaths lead to: " + strings.Join(paths, ", ")
	}
	return out
}

func describeInventory(ws *world.WorldState) string {
	items := ws.Player().Strings("inventory")
	if len(items) == 0 {
		return "Your pack is empty."
	}
	return "You carry:\n- " + strings.Join(items, "\n- ")
}

func describeSheet(ws *world.WorldState) string {
	s := ws.CharacterSheet()
	var b strings.Builder
	fmt.Fprintf(&b, "%s, Level %s %s\n", s.Name, s.Level, s.Class)
	fmt.Fprintf(&b, "HP: %s | Status: %s | Gold: %s", s.HP, s.Status, s.Gold)
	if len(s.Traits) > 0 {
		fmt.Fprintf(&b, "\nTraits: %s", strings.Join(s.Traits, ", "))
	}
	return b.String()
}

func describeQuests(ws *world.WorldState) string {
	quests := ws.ActiveQuests()
	if len(quests) == 0 {
		return "You have no active quests."
	}
	var b strings.Builder
	b.WriteString("Active quests:")
	for _, q := range quests {
		fmt.Fprintf(&b, "\n- %s", q.String("name"))
		if desc := q.String("description"); desc != "" {
			fmt.Fprintf(&b, ": %s", desc)
		}
		objectives, _ := q["objectives"].([]any)
		for _, o := range objectives {
			obj, ok := o.(map[string]any)
			if !ok {
				continue
			}
			mark := " "
			if done, _ := obj["completed"].(bool); done {
				mark = "x"
			}
			fmt.Fprintf(&b, "\n  [%s] %v", mark, obj["task"])
		}
	}
	return b.String()
}
