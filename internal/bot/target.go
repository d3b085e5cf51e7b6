package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunevault/internal/playermsg"
)

// sessionTarget adapts player message payloads to Discord messages. The
// channel resolution strategy is the only thing that varies between
// surfaces.
type sessionTarget struct {
	s       *discordgo.Session
	resolve func() (string, error)
}

// NewChannelTarget sends player messages to a fixed channel, typically the
// one the triggering command came from.
func NewChannelTarget(s *discordgo.Session, channelID string) playermsg.Target {
	return &sessionTarget{
		s:       s,
		resolve: func() (string, error) { return channelID, nil },
	}
}

// NewGuildTarget sends player messages to the guild's system channel, or its
// first text channel when no system channel is set. Used by surfaces that
// have no originating channel, like the HTTP API.
func NewGuildTarget(s *discordgo.Session, guildID string) playermsg.Target {
	return &sessionTarget{
		s: s,
		resolve: func() (string, error) {
			guild, err := s.State.Guild(guildID)
			if err != nil {
				guild, err = s.Guild(guildID)
				if err != nil {
					return "", fmt.Errorf("failed to fetch guild %s: %w", guildID, err)
				}
			}
			if guild.SystemChannelID != "" {
				return guild.SystemChannelID, nil
			}
			for _, ch := range guild.Channels {
				if ch.Type == discordgo.ChannelTypeGuildText {
					return ch.ID, nil
				}
			}
			return "", fmt.Errorf("guild %s has no usable text channel", guildID)
		},
	}
}

func (t *sessionTarget) ResolveActiveChannel() (string, error) {
	return t.resolve()
}

func (t *sessionTarget) Send(channelID string, payload *playermsg.Payload) (string, error) {
	msg, err := t.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    payload.Content,
		Embeds:     buildEmbeds(payload),
		Components: buildComponents(payload),
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (t *sessionTarget) Edit(channelID, messageID string, payload *playermsg.Payload) error {
	embeds := buildEmbeds(payload)
	components := buildComponents(payload)
	_, err := t.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Content:    &payload.Content,
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

func buildEmbeds(payload *playermsg.Payload) []*discordgo.MessageEmbed {
	if payload.Embed == nil {
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title:       payload.Embed.Title,
		Description: payload.Embed.Description,
		Color:       EmbedColor,
	}
	if payload.Embed.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: payload.Embed.Thumbnail}
	}
	for _, f := range payload.Embed.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return []*discordgo.MessageEmbed{embed}
}

func buildComponents(payload *playermsg.Payload) []discordgo.MessageComponent {
	if len(payload.Buttons) == 0 {
		return nil
	}

	var buttons []discordgo.MessageComponent
	for _, b := range payload.Buttons {
		buttons = append(buttons, discordgo.Button{
			Style:    discordgo.SecondaryButton,
			CustomID: b.ID,
			Emoji:    &discordgo.ComponentEmoji{Name: b.Emoji},
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}
