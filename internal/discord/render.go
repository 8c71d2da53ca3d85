package discord

import (
	"fmt"
	"strings"

	"nightreign-lobby/internal/lobby"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
)

const colorLobby = 0x5865F2

var buttonStyles = map[lobby.ActionStyle]discordgo.ButtonStyle{
	lobby.ActionPrimary:   discordgo.PrimaryButton,
	lobby.ActionSecondary: discordgo.SecondaryButton,
	lobby.ActionSuccess:   discordgo.SuccessButton,
	lobby.ActionDanger:    discordgo.DangerButton,
}

func renderMessage(msg lobby.Message) *discordgo.MessageSend {
	out := &discordgo.MessageSend{Content: msg.Content}
	if embed := renderEmbed(msg); embed != nil {
		out.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if len(msg.Actions) > 0 {
		out.Components = []discordgo.MessageComponent{renderActions(msg.Actions)}
	}
	return out
}

func renderEmbed(msg lobby.Message) *discordgo.MessageEmbed {
	if msg.Title == "" && msg.Description == "" && len(msg.Fields) == 0 {
		return nil
	}
	return &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
		Fields: lo.Map(msg.Fields, func(f lobby.Field, _ int) *discordgo.MessageEmbedField {
			return &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline}
		}),
	}
}

func renderActions(actions []lobby.Action) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: lo.Map(actions, func(a lobby.Action, _ int) discordgo.MessageComponent {
			style, ok := buttonStyles[a.Style]
			if !ok {
				style = discordgo.SecondaryButton
			}
			return discordgo.Button{Label: a.Label, Style: style, CustomID: a.ID}
		}),
	}
}

func playerList(l lobby.Lobby) string {
	if len(l.Members) == 0 {
		return "_empty_"
	}
	return strings.Join(lo.Map(l.Members, func(m lobby.Member, _ int) string {
		if m.ID == l.Owner {
			return "👑 <@" + m.ID + ">"
		}
		return "<@" + m.ID + ">"
	}), "\n")
}

func lobbyFields(l lobby.Lobby) []lobby.Field {
	fields := []lobby.Field{
		{Name: fmt.Sprintf("Players (%d/%d)", len(l.Members), l.Capacity), Value: playerList(l), Inline: true},
		{Name: "Join token", Value: "`" + l.JoinToken + "`", Inline: true},
	}
	if l.FriendCode != "" {
		fields = append(fields, lobby.Field{Name: "Game code", Value: "`" + l.FriendCode + "`", Inline: true})
	}
	return fields
}

// welcomeMessage is posted in a new lobby channel.
func welcomeMessage(l lobby.Lobby) lobby.Message {
	return lobby.Message{
		Title: "Lobby ready",
		Description: fmt.Sprintf("Welcome <@%s>! Friends can join with `/join %s` or the Join button on the lobby card.",
			l.Owner, l.JoinToken),
		Color:  colorLobby,
		Fields: lobbyFields(l),
		Actions: []lobby.Action{
			{ID: lobby.ActionID(lobby.ActionLeave, l.ID), Label: "Leave", Style: lobby.ActionSecondary},
			{ID: lobby.ActionID(lobby.ActionEnd, l.ID), Label: "End session", Style: lobby.ActionDanger},
		},
	}
}

// lobbyCard is posted in the channel the lobby was created from and edited as
// membership changes.
func lobbyCard(l lobby.Lobby) lobby.Message {
	owner, _ := l.OwnerMember()
	title := "Open lobby"
	if owner.Name != "" {
		title = owner.Name + "'s lobby"
	}
	desc := fmt.Sprintf("<#%s> has %d open slot(s).", l.ID, l.OpenSlots())
	if l.Full() {
		desc = fmt.Sprintf("<#%s> is full.", l.ID)
	}
	return lobby.Message{
		Title:       title,
		Description: desc,
		Color:       colorLobby,
		Fields:      lobbyFields(l),
		Actions: []lobby.Action{
			{ID: lobby.ActionID(lobby.ActionJoin, l.ID), Label: "Join", Style: lobby.ActionPrimary},
		},
	}
}

func restoredMessage(l lobby.Lobby) lobby.Message {
	return lobby.Message{
		Title:       "Lobby restored",
		Description: "The bot restarted and picked this lobby back up. The join token has changed.",
		Color:       colorLobby,
		Fields:      lobbyFields(l),
	}
}

func myLobbyReply(l lobby.Lobby) string {
	return fmt.Sprintf("You're in <#%s> (%d/%d). Join token: `%s`. Players: %s",
		l.ID, len(l.Members), l.Capacity, l.JoinToken, strings.Join(l.MemberNames(), ", "))
}

func lobbiesReply(open []lobby.Lobby) string {
	if len(open) == 0 {
		return "No open lobbies right now. Use `/create_game` or `/find_match`."
	}
	lines := lo.Map(open, func(l lobby.Lobby, _ int) string {
		owner, _ := l.OwnerMember()
		return fmt.Sprintf("• <#%s> %s (%d/%d) token `%s`", l.ID, owner.Name, len(l.Members), l.Capacity, l.JoinToken)
	})
	return "**Open lobbies**\n" + strings.Join(lines, "\n")
}

func helpText(prefix string) string {
	cmds := []struct{ name, desc string }{
		{"create_game [code]", "create a lobby (posting a 9-10 digit game code also works)"},
		{"join <token>", "join a lobby by its token"},
		{"leave", "leave your lobby"},
		{"invite @user", "add someone to your lobby"},
		{"kick @user", "remove someone from your lobby"},
		{"end", "end the session (owner or moderator)"},
		{"my_lobby", "show your lobby"},
		{"lobbies", "list lobbies with open slots"},
		{"find_match", "ask open lobbies to take you in"},
		{"cancel_match", "withdraw your match request"},
		{"lobbyhelp", "show this help"},
	}
	var b strings.Builder
	b.WriteString("**Lobby commands**\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "`%s%s` %s\n", prefix, c.name, c.desc)
	}
	return strings.TrimRight(b.String(), "\n")
}
