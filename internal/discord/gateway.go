package discord

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"nightreign-lobby/internal/config"
	"nightreign-lobby/internal/lobby"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	memberAllow = discordgo.PermissionViewChannel |
		discordgo.PermissionSendMessages |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionAddReactions
	botAllow       = memberAllow | discordgo.PermissionManageChannels | discordgo.PermissionManageRoles
	moderatorPerms = discordgo.PermissionAdministrator | discordgo.PermissionManageChannels
)

var ownerMention = regexp.MustCompile(`<@!?(\d+)>`)

// NewSession opens nothing; it configures a bot session with the intents the
// lobby bot relies on and routes discordgo's logging through zerolog at
// logLevel.
func NewSession(cfg config.BotConfig, logLevel string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	discordgo.Logger = logLibrary
	s.LogLevel = libraryLevel(logLevel)
	s.StateEnabled = true
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	return s, nil
}

// Gateway implements lobby.Gateway on top of a discordgo session. Lobby
// channels are private text channels whose member overwrites mirror the
// lobby's membership.
type Gateway struct {
	s          *discordgo.Session
	guildID    string
	categoryID string
	prefix     string
}

func NewGateway(s *discordgo.Session, cfg config.BotConfig) *Gateway {
	return &Gateway{
		s:          s,
		guildID:    cfg.GuildID,
		categoryID: cfg.LobbyCategoryID,
		prefix:     cfg.LobbyChannelPref,
	}
}

func (g *Gateway) botUserID() string {
	if g.s.State != nil && g.s.State.User != nil {
		return g.s.State.User.ID
	}
	return ""
}

func (g *Gateway) CreateChannel(ctx context.Context, spec lobby.ChannelSpec) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: g.guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: spec.Owner, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberAllow},
	}
	if botID := g.botUserID(); botID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: botID, Type: discordgo.PermissionOverwriteTypeMember, Allow: botAllow,
		})
	}
	ch, err := g.s.GuildChannelCreateComplex(g.guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                spec.Topic,
		ParentID:             g.categoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create channel %s: %w", spec.Name, err)
	}
	return ch.ID, nil
}

func (g *Gateway) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := g.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if err != nil && !isUnknown(err, discordgo.ErrCodeUnknownChannel) {
		return fmt.Errorf("delete channel %s: %w", channelID, err)
	}
	log.Debug().Str("channel_id", channelID).Str("reason", reason).Msg("lobby channel deleted")
	return nil
}

func (g *Gateway) GrantAccess(ctx context.Context, channelID, userID string) error {
	err := g.s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, memberAllow, 0, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("grant %s on %s: %w", userID, channelID, err)
	}
	return nil
}

func (g *Gateway) RevokeAccess(ctx context.Context, channelID, userID string) error {
	err := g.s.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx))
	if err != nil && !isUnknown(err, discordgo.ErrCodeUnknownChannel) {
		return fmt.Errorf("revoke %s on %s: %w", userID, channelID, err)
	}
	return nil
}

func (g *Gateway) SendMessage(ctx context.Context, channelID string, msg lobby.Message) error {
	_, err := g.send(ctx, channelID, msg)
	return err
}

func (g *Gateway) send(ctx context.Context, channelID string, msg lobby.Message) (*discordgo.Message, error) {
	sent, err := g.s.ChannelMessageSendComplex(channelID, renderMessage(msg), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return sent, nil
}

func (g *Gateway) DirectMessage(ctx context.Context, userID string, msg lobby.Message) error {
	ch, err := g.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	if _, err := g.s.ChannelMessageSendComplex(ch.ID, renderMessage(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	return nil
}

func (g *Gateway) IsModerator(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	member, err := g.guildMember(ctx, userID)
	if err != nil {
		if isUnknown(err, discordgo.ErrCodeUnknownMember) {
			return false, nil
		}
		return false, err
	}
	roles, err := g.s.GuildRoles(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("list roles: %w", err)
	}
	return hasModeratorPermission(member, roles, g.guildID), nil
}

func (g *Gateway) guildMember(ctx context.Context, userID string) (*discordgo.Member, error) {
	if g.s.State != nil {
		if m, err := g.s.State.Member(g.guildID, userID); err == nil {
			return m, nil
		}
	}
	m, err := g.s.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", userID, err)
	}
	return m, nil
}

// ListLobbyChannels reports the guild's lobby channels with their member
// overwrites. Member display names come from the state cache when present.
func (g *Gateway) ListLobbyChannels(ctx context.Context) ([]lobby.ChannelInfo, error) {
	channels, err := g.s.GuildChannels(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	botID := g.botUserID()
	lobbies := lo.Filter(channels, func(ch *discordgo.Channel, _ int) bool {
		return g.isLobbyChannel(ch)
	})
	return lo.Map(lobbies, func(ch *discordgo.Channel, _ int) lobby.ChannelInfo {
		return channelInfo(ch, botID, g.displayName)
	}), nil
}

func (g *Gateway) isLobbyChannel(ch *discordgo.Channel) bool {
	if ch == nil || ch.Type != discordgo.ChannelTypeGuildText {
		return false
	}
	if g.categoryID != "" && ch.ParentID != g.categoryID {
		return false
	}
	return strings.HasPrefix(ch.Name, g.prefix)
}

func (g *Gateway) displayName(userID string) string {
	if g.s.State == nil {
		return ""
	}
	m, err := g.s.State.Member(g.guildID, userID)
	if err != nil {
		return ""
	}
	return memberName(m)
}

func channelInfo(ch *discordgo.Channel, botID string, name func(string) string) lobby.ChannelInfo {
	info := lobby.ChannelInfo{ID: ch.ID, Name: ch.Name}
	if m := ownerMention.FindStringSubmatch(ch.Topic); m != nil {
		info.Owner = m[1]
	}
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type != discordgo.PermissionOverwriteTypeMember || ow.ID == botID {
			continue
		}
		if ow.Allow&discordgo.PermissionViewChannel == 0 {
			continue
		}
		info.Members = append(info.Members, lobby.Member{ID: ow.ID, Name: name(ow.ID)})
	}
	info.CreatedAt = snowflakeTime(ch.ID)
	if ch.LastMessageID != "" {
		info.LastActivityAt = snowflakeTime(ch.LastMessageID)
	}
	if info.LastActivityAt.IsZero() {
		info.LastActivityAt = info.CreatedAt
	}
	return info
}

func hasModeratorPermission(member *discordgo.Member, roles []*discordgo.Role, guildID string) bool {
	if member == nil {
		return false
	}
	var perms int64
	for _, r := range roles {
		if r.ID == guildID || lo.Contains(member.Roles, r.ID) {
			perms |= r.Permissions
		}
	}
	return perms&moderatorPerms != 0
}

func memberName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	return userName(m.User)
}

func userName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func isUnknown(err error, code int) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return false
	}
	return restErr.Message.Code == code
}

func snowflakeTime(id string) time.Time {
	ts, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Time{}
	}
	return ts
}
