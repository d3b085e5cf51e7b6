package command

import (
	"log"

	"github.com/bwmarrin/discordgo"
)

// Middleware wraps a command with cross-cutting behavior.
type Middleware func(Command) Command

type wrapped struct {
	Command
	run       func(*SlashContext) error
	component func(*ComponentContext) error
}

func (w *wrapped) Run(ctx *SlashContext) error {
	if w.run != nil {
		return w.run(ctx)
	}
	return w.Command.Run(ctx)
}

func (w *wrapped) Component(ctx *ComponentContext) error {
	if w.component != nil {
		return w.component(ctx)
	}
	if ch, ok := w.Command.(ComponentHandler); ok {
		return ch.Component(ctx)
	}
	return nil
}

func (w *wrapped) ComponentPrefix() string {
	if ch, ok := w.Command.(ComponentHandler); ok {
		return ch.ComponentPrefix()
	}
	return ""
}

func (w *wrapped) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// WithGuildOnly rejects invocations that arrive outside a guild.
func WithGuildOnly() Middleware {
	return func(c Command) Command {
		return &wrapped{
			Command: c,
			run: func(ctx *SlashContext) error {
				if ctx.Event.GuildID == "" {
					return respondGuildOnly(ctx.Session, ctx.Event)
				}
				return c.Run(ctx)
			},
			component: func(ctx *ComponentContext) error {
				if ctx.Event.GuildID == "" {
					return respondGuildOnly(ctx.Session, ctx.Event)
				}
				if ch, ok := c.(ComponentHandler); ok {
					return ch.Component(ctx)
				}
				return nil
			},
		}
	}
}

// WithCommandLogger logs every invocation with its caller.
func WithCommandLogger() Middleware {
	return func(c Command) Command {
		return &wrapped{
			Command: c,
			run: func(ctx *SlashContext) error {
				log.Printf("[Command] /%s by %s in guild %s", c.Name(), callerName(ctx.Event), ctx.Event.GuildID)
				return c.Run(ctx)
			},
			component: func(ctx *ComponentContext) error {
				log.Printf("[Command] component %s by %s in guild %s", ctx.Event.MessageComponentData().CustomID, callerName(ctx.Event), ctx.Event.GuildID)
				if ch, ok := c.(ComponentHandler); ok {
					return ch.Component(ctx)
				}
				return nil
			},
		}
	}
}

func respondGuildOnly(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	return s.InteractionRespond(e.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "This command only works inside a server.",
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func callerName(e *discordgo.InteractionCreate) string {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User.Username
	}
	if e.User != nil {
		return e.User.Username
	}
	return "unknown"
}
