package chat

import (
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// GuildAPI is the slice of the chat gateway the adapter needs. It is
// satisfied by *discordgo.Session and by test fakes.
type GuildAPI interface {
	GuildMembers(guildID string, after string, limit int, options ...discordgo.RequestOption) ([]*discordgo.Member, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Session owns the long-lived chat gateway connection: connect on startup,
// graceful disconnect on shutdown. It is injected into the adapter rather
// than accessed as a global.
type Session struct {
	dg *discordgo.Session
}

// NewSession creates (but does not open) a chat gateway session
func NewSession(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("chat bot token cannot be empty")
	}

	dg, err := discordgo.New("Bot " + strings.TrimPrefix(token, "Bot "))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	// Member listing requires the privileged members intent
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return &Session{dg: dg}, nil
}

// Connect opens the gateway connection
func (s *Session) Connect() error {
	if err := s.dg.Open(); err != nil {
		return fmt.Errorf("failed to open chat session: %w", err)
	}

	log.Println("[CHAT]: Gateway session connected")
	return nil
}

// Close drains and closes the gateway connection
func (s *Session) Close() error {
	if err := s.dg.Close(); err != nil {
		return fmt.Errorf("failed to close chat session: %w", err)
	}

	log.Println("[CHAT]: Gateway session closed")
	return nil
}

// API exposes the REST surface of the session
func (s *Session) API() GuildAPI {
	return s.dg
}
