package music

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunevault/internal/bot"
	"github.com/keshon/tunevault/internal/command"
	"github.com/keshon/tunevault/internal/player"
	"github.com/keshon/tunevault/internal/playermsg"
)

// MusicCommand is the /music slash command plus the player message buttons.
type MusicCommand struct{}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Queue a track, playlist or search query",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link or search query",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "next",
				Description: "Skip to the next track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "prev",
				Description: "Replay the previous track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause or resume playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "disconnect",
				Description: "Disconnect and clear the queue",
			},
		},
	}
}

func (c *MusicCommand) Run(ctx *command.SlashContext) error {
	s := ctx.Session
	e := ctx.Event

	if len(e.ApplicationCommandData().Options) == 0 {
		return bot.RespondEphemeral(s, e, "Missing subcommand.")
	}
	sub := e.ApplicationCommandData().Options[0]

	identity := c.identity(s, e)
	target := bot.NewChannelTarget(s, e.ChannelID)

	switch sub.Name {
	case "play":
		var input string
		for _, opt := range sub.Options {
			if opt.Name == "input" {
				input = opt.StringValue()
			}
		}
		return c.runPlay(ctx, identity, input, target)

	case "next", "prev", "pause", "disconnect":
		action := actionForSubcommand(sub.Name)
		msg, err := ctx.Orchestrator.ChangeState(identity, action, target)
		if err != nil {
			log.Printf("[ERR] /music %s failed in guild %s: %v", sub.Name, e.GuildID, err)
			return bot.RespondEphemeral(s, e, fmt.Sprintf("Player error: %v", err))
		}
		return bot.RespondEphemeral(s, e, msg)

	default:
		return bot.RespondEphemeral(s, e, fmt.Sprintf("Unknown subcommand: %s", sub.Name))
	}
}

func (c *MusicCommand) runPlay(ctx *command.SlashContext, identity player.Identity, input string, target playermsg.Target) error {
	s := ctx.Session
	e := ctx.Event

	// Resolving can take a few seconds, so acknowledge first.
	if err := bot.RespondDeferredEphemeral(s, e); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}

	msg, err := ctx.Orchestrator.Play(context.Background(), identity, input, target)
	if err != nil {
		return bot.EditResponse(s, e, playErrorMessage(err))
	}
	if msg == "" {
		msg = "▶️ Playing"
	}
	return bot.EditResponse(s, e, msg)
}

func (c *MusicCommand) ComponentPrefix() string { return "player:" }

func (c *MusicCommand) Component(ctx *command.ComponentContext) error {
	s := ctx.Session
	e := ctx.Event

	customID := e.MessageComponentData().CustomID
	action, ok := actionForButton(customID)
	if !ok {
		return bot.RespondEphemeral(s, e, fmt.Sprintf("Unknown player control: %s", customID))
	}

	identity := c.identity(s, e)
	target := bot.NewChannelTarget(s, e.ChannelID)

	msg, err := ctx.Orchestrator.ChangeState(identity, action, target)
	if err != nil {
		log.Printf("[ERR] Player button %s failed in guild %s: %v", customID, e.GuildID, err)
		return bot.RespondEphemeral(s, e, fmt.Sprintf("Player error: %v", err))
	}
	return bot.RespondEphemeral(s, e, msg)
}

func (c *MusicCommand) identity(s *discordgo.Session, e *discordgo.InteractionCreate) player.Identity {
	identity := player.Identity{GuildID: e.GuildID}

	if e.Member != nil && e.Member.User != nil {
		channelID, err := bot.FindUserVoiceState(s, e.GuildID, e.Member.User.ID)
		if err != nil {
			log.Printf("[WARN] Failed to look up voice state in guild %s: %v", e.GuildID, err)
		}
		identity.VoiceChannelID = channelID
	}
	return identity
}

func actionForSubcommand(name string) player.Action {
	switch name {
	case "prev":
		return player.ActionPlayPrev
	case "next":
		return player.ActionPlayNext
	case "pause":
		return player.ActionPauseOrPlay
	default:
		return player.ActionDisconnect
	}
}

func actionForButton(customID string) (player.Action, bool) {
	switch customID {
	case playermsg.ButtonPrev:
		return player.ActionPlayPrev, true
	case playermsg.ButtonNext:
		return player.ActionPlayNext, true
	case playermsg.ButtonPauseOrPlay:
		return player.ActionPauseOrPlay, true
	case playermsg.ButtonDisconnect:
		return player.ActionDisconnect, true
	default:
		return 0, false
	}
}

func playErrorMessage(err error) string {
	switch {
	case errors.Is(err, player.ErrNotInVoice):
		return "Join a voice channel first."
	case errors.Is(err, player.ErrInvalidInput):
		return "⛔ Can't make sense of that input."
	case errors.Is(err, player.ErrNoItemsInQueue):
		return "No items in the queue"
	default:
		return fmt.Sprintf("Playback error: %v", err)
	}
}
