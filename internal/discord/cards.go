package discord

import (
	"context"
	"sync"

	"nightreign-lobby/internal/lobby"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// cardAPI is the part of the discord session the card refresher uses.
type cardAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

type card struct {
	channelID string
	messageID string
}

// cardBoard keeps one lobby card per lobby in the channel the lobby was
// created from. Cards follow membership changes and are removed when the
// lobby goes away.
type cardBoard struct {
	api cardAPI

	mu    sync.Mutex
	cards map[string]card
}

func newCardBoard(api cardAPI) *cardBoard {
	return &cardBoard{api: api, cards: map[string]card{}}
}

func (cb *cardBoard) apply(ctx context.Context, ev lobby.Event) {
	switch ev.Type {
	case lobby.EventLobbyCreated:
		cb.post(ctx, ev.LobbyID, welcomeMessage(ev.Lobby))
		if ev.Lobby.Origin == "" {
			return
		}
		sent, err := cb.api.ChannelMessageSendComplex(ev.Lobby.Origin, renderMessage(lobbyCard(ev.Lobby)), discordgo.WithContext(ctx))
		if err != nil {
			log.Warn().Err(err).Str("lobby_id", ev.LobbyID).Msg("lobby card failed")
			return
		}
		cb.mu.Lock()
		cb.cards[ev.LobbyID] = card{channelID: ev.Lobby.Origin, messageID: sent.ID}
		cb.mu.Unlock()

	case lobby.EventLobbyRestored:
		cb.post(ctx, ev.LobbyID, restoredMessage(ev.Lobby))

	case lobby.EventLobbyDeleted:
		cb.mu.Lock()
		c, ok := cb.cards[ev.LobbyID]
		delete(cb.cards, ev.LobbyID)
		cb.mu.Unlock()
		if !ok {
			return
		}
		if err := cb.api.ChannelMessageDelete(c.channelID, c.messageID, discordgo.WithContext(ctx)); err != nil {
			log.Warn().Err(err).Str("lobby_id", ev.LobbyID).Str("message_id", c.messageID).Msg("lobby card removal failed")
		}

	default:
		cb.mu.Lock()
		c, ok := cb.cards[ev.LobbyID]
		cb.mu.Unlock()
		if ok && ev.Lobby.ID != "" {
			cb.edit(ctx, c, lobbyCard(ev.Lobby))
		}
	}
}

func (cb *cardBoard) post(ctx context.Context, channelID string, msg lobby.Message) {
	if _, err := cb.api.ChannelMessageSendComplex(channelID, renderMessage(msg), discordgo.WithContext(ctx)); err != nil {
		log.Warn().Err(err).Str("lobby_id", channelID).Msg("lobby channel message failed")
	}
}

func (cb *cardBoard) edit(ctx context.Context, c card, msg lobby.Message) {
	embed := renderEmbed(msg)
	if embed == nil {
		return
	}
	edit := discordgo.NewMessageEdit(c.channelID, c.messageID).SetEmbeds([]*discordgo.MessageEmbed{embed})
	if _, err := cb.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		log.Warn().Err(err).Str("channel_id", c.channelID).Str("message_id", c.messageID).Msg("lobby card edit failed")
	}
}

func (cb *cardBoard) len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return len(cb.cards)
}
