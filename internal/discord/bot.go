package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunevault/internal/bot"
	"github.com/keshon/tunevault/internal/command"
	"github.com/keshon/tunevault/internal/config"
	"github.com/keshon/tunevault/internal/player"
)

// Bot wires the Discord gateway to the command registry and the player
// orchestrator.
type Bot struct {
	dg   *discordgo.Session
	cfg  *config.Config
	orch *player.Orchestrator
}

// NewBot attaches handlers to an existing session. The session is shared
// with other surfaces, so opening and closing it stays with Run.
func NewBot(dg *discordgo.Session, cfg *config.Config, orch *player.Orchestrator) *Bot {
	b := &Bot{dg: dg, cfg: cfg, orch: orch}

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	return b
}

// Run opens the gateway connection and blocks until the context is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	botInfo, err := s.User("@me")
	if err != nil {
		log.Println("[WARN] Error retrieving bot user:", err)
		return
	}

	if b.cfg.InitSlashCommands {
		for _, g := range r.Guilds {
			if err := b.registerCommands(g.ID); err != nil {
				log.Println("[ERR] Error registering slash commands for guild", g.ID, ":", err)
			}
		}
	} else {
		log.Println("[INFO] Registering slash commands skipped")
	}

	log.Printf("[INFO] ✅ Discord bot %v is running.", botInfo.Username)
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf("[INFO] Bot added to guild: %s (%s)", g.Guild.ID, g.Guild.Name)

	if err := b.registerCommands(g.Guild.ID); err != nil {
		log.Printf("[ERR] Failed to register commands for new guild %s: %v", g.Guild.ID, err)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		cmdName := i.ApplicationCommandData().Name

		cmd, ok := command.Get(cmdName)
		if !ok {
			log.Printf("[WARN] Unknown command: %s", cmdName)
			return
		}

		ctx := &command.SlashContext{
			Session:      s,
			Event:        i,
			Orchestrator: b.orch,
		}
		if err := cmd.Run(ctx); err != nil {
			log.Println("[ERR] Error running slash command:", err)
			_ = bot.RespondEphemeral(s, i, fmt.Sprintf("Error running command: %v", err))
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID

		handler, ok := command.FindComponentHandler(customID)
		if !ok {
			log.Printf("[WARN] No matching component for customID: %s", customID)
			return
		}

		ctx := &command.ComponentContext{
			Session:      s,
			Event:        i,
			Orchestrator: b.orch,
		}
		if err := handler.Component(ctx); err != nil {
			log.Printf("[ERR] Error running component %s: %v", customID, err)
			_ = bot.RespondEphemeral(s, i, fmt.Sprintf("Error running component: %v", err))
		}
	}
}

// registerCommands overwrites the guild's application commands with the
// registry's current definitions.
func (b *Bot) registerCommands(guildID string) error {
	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}

	var defs []*discordgo.ApplicationCommand
	for _, cmd := range command.All() {
		if sp, ok := cmd.(command.SlashProvider); ok {
			if def := sp.SlashDefinition(); def != nil {
				defs = append(defs, def)
			}
		}
	}

	if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, defs); err != nil {
		return fmt.Errorf("failed to overwrite commands: %w", err)
	}
	log.Printf("[INFO] [%s] Registered %d commands", guildID, len(defs))
	return nil
}
