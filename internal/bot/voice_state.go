package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// FindUserVoiceState returns the id of the voice channel the user currently
// occupies, or an empty string when they are not in voice.
func FindUserVoiceState(s *discordgo.Session, guildID, userID string) (string, error) {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild %s: %w", guildID, err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", nil
}
