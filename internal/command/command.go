package command

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunevault/internal/player"
)

// Command is a registered bot command.
type Command interface {
	Name() string
	Description() string
	Run(ctx *SlashContext) error
}

// SlashProvider supplies the application command definition to register
// with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// ComponentHandler handles message component interactions whose custom id
// starts with ComponentPrefix.
type ComponentHandler interface {
	ComponentPrefix() string
	Component(ctx *ComponentContext) error
}

// SlashContext carries everything a slash command needs to run.
type SlashContext struct {
	Session      *discordgo.Session
	Event        *discordgo.InteractionCreate
	Orchestrator *player.Orchestrator
}

// ComponentContext carries everything a component interaction needs.
type ComponentContext struct {
	Session      *discordgo.Session
	Event        *discordgo.InteractionCreate
	Orchestrator *player.Orchestrator
}

var registry = map[string]Command{}

// RegisterCommand adds a command to the registry, outermost middleware last.
func RegisterCommand(cmd Command, mws ...Middleware) {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	registry[cmd.Name()] = cmd
}

func Get(name string) (Command, bool) {
	cmd, ok := registry[name]
	return cmd, ok
}

func All() []Command {
	var list []Command
	for _, cmd := range registry {
		list = append(list, cmd)
	}
	return list
}

// FindComponentHandler locates the command claiming the given component
// custom id.
func FindComponentHandler(customID string) (ComponentHandler, bool) {
	for _, cmd := range registry {
		if ch, ok := cmd.(ComponentHandler); ok && strings.HasPrefix(customID, ch.ComponentPrefix()) {
			return ch, true
		}
	}
	return nil, false
}
