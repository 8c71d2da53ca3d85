package discord

import (
	"context"
	"strings"
	"sync"
	"time"

	"nightreign-lobby/internal/config"
	"nightreign-lobby/internal/lobby"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	handlerTimeout = 15 * time.Second
	cardQueueSize  = 256
)

// Bot routes chat messages, prefix commands, and button clicks into the
// coordinator. It also observes lobby events to keep lobby cards current.
type Bot struct {
	cfg     config.BotConfig
	s       *discordgo.Session
	gateway *Gateway
	coord   *lobby.Coordinator
	disp    *dispatcher

	ready     chan struct{}
	readyOnce sync.Once

	cards  *cardBoard
	events chan lobby.Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewBot(s *discordgo.Session, gw *Gateway, coord *lobby.Coordinator, cfg config.BotConfig) *Bot {
	return &Bot{
		cfg:     cfg,
		s:       s,
		gateway: gw,
		coord:   coord,
		disp:    &dispatcher{coord: coord, prefix: cfg.CommandPrefix},
		ready:   make(chan struct{}),
		cards:   newCardBoard(s),
		events:  make(chan lobby.Event, cardQueueSize),
		stop:    make(chan struct{}),
	}
}

// Open connects to the gateway and blocks until the session is ready or ctx
// is done.
func (b *Bot) Open(ctx context.Context) error {
	b.s.AddHandler(b.onReady)
	b.s.AddHandler(b.onMessageCreate)
	b.s.AddHandler(b.onInteractionCreate)

	b.wg.Add(1)
	go b.cardLoop()

	if err := b.s.Open(); err != nil {
		return err
	}
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) Close() error {
	close(b.stop)
	b.wg.Wait()
	return b.s.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord session ready")
	b.readyOnce.Do(func() { close(b.ready) })
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID != b.cfg.GuildID {
		return
	}
	inLobby := b.coord.Touch(m.ChannelID, m.Timestamp)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	user := lobby.Member{ID: m.Author.ID, Name: lo.Ternary(memberName(m.Member) != "", memberName(m.Member), userName(m.Author))}
	if cmd, ok := parseCommand(b.cfg.CommandPrefix, m.Content); ok {
		inv := invocation{
			user:    user,
			channel: m.ChannelID,
			mentions: lo.FilterMap(m.Mentions, func(u *discordgo.User, _ int) (lobby.Member, bool) {
				return b.member(u), u != nil && !u.Bot
			}),
		}
		log.Debug().Str("command", cmd.name).Str("user_id", user.ID).Str("channel_id", m.ChannelID).Msg("lobby command")
		b.reply(m, b.disp.runCommand(ctx, cmd, inv))
		return
	}

	if inLobby || !b.cfg.AutoCreate {
		return
	}
	code, ok := findGameCode(m.Content)
	if !ok {
		return
	}
	if current, ok := b.coord.LobbyOf(user.ID); ok {
		b.reply(m, "You're already in a lobby: <#"+current.ID+">. Share its token `"+current.JoinToken+"` instead.")
		return
	}
	l, err := b.coord.Create(ctx, lobby.CreateRequest{Owner: user, Origin: m.ChannelID, FriendCode: code})
	if err != nil {
		b.reply(m, userMessage(err))
		return
	}
	log.Info().Str("lobby_id", l.ID).Str("user_id", user.ID).Msg("lobby created from game code")
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	var u *discordgo.User
	name := ""
	switch {
	case i.Member != nil && i.Member.User != nil:
		u = i.Member.User
		name = memberName(i.Member)
	case i.User != nil:
		u = i.User
		name = userName(u)
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	inv := invocation{user: lobby.Member{ID: u.ID, Name: name}, channel: i.ChannelID}
	content := b.disp.runAction(ctx, i.MessageComponentData().CustomID, inv)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", u.ID).Msg("interaction response failed")
	}
}

func (b *Bot) reply(m *discordgo.MessageCreate, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	if _, err := b.s.ChannelMessageSendReply(m.ChannelID, content, m.Reference()); err != nil {
		log.Warn().Err(err).Str("channel_id", m.ChannelID).Msg("reply failed")
	}
}

func (b *Bot) member(u *discordgo.User) lobby.Member {
	if u == nil {
		return lobby.Member{}
	}
	if name := b.gateway.displayName(u.ID); name != "" {
		return lobby.Member{ID: u.ID, Name: name}
	}
	return lobby.Member{ID: u.ID, Name: userName(u)}
}

// OnLobbyEvent queues card updates. It never blocks the coordinator.
func (b *Bot) OnLobbyEvent(ev lobby.Event) {
	switch ev.Type {
	case lobby.EventMatchRequested, lobby.EventMatchDenied, lobby.EventMatchCancelled, lobby.EventMatchExpired:
		return
	}
	select {
	case b.events <- ev:
	default:
		log.Warn().Str("lobby_id", ev.LobbyID).Str("event", string(ev.Type)).Msg("card queue full; dropping update")
	}
}

func (b *Bot) cardLoop() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stop:
			return
		case ev := <-b.events:
			b.applyCard(ev)
		}
	}
}

func (b *Bot) applyCard(ev lobby.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.cards.apply(ctx, ev)
}
