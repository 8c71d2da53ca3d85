package lobby

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	colorLobby  = 0x5865F2
	colorJoin   = 0x57F287
	colorWarn   = 0xFEE75C
	colorDanger = 0xED4245
)

var channelNameUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)

// ChannelName renders "<prefix><name>-<HHMM>" using only characters the chat
// platform accepts in channel names.
func ChannelName(prefix, displayName string, at time.Time) string {
	name := strings.ToLower(strings.TrimSpace(displayName))
	name = strings.ReplaceAll(name, " ", "-")
	name = channelNameUnsafe.ReplaceAllString(name, "")
	name = strings.Trim(name, "-_")
	if name == "" {
		name = "player"
	}
	if len(name) > 60 {
		name = name[:60]
	}
	return prefix + name + "-" + at.Format("1504")
}

func mention(userID string) string { return "<@" + userID + ">" }

func channelMention(channelID string) string { return "<#" + channelID + ">" }

func joinedNotice(m Member, l Lobby) Message {
	return Message{
		Content: fmt.Sprintf("🎉 %s joined the lobby! (%d/%d)", mention(m.ID), len(l.Members), l.Capacity),
		Color:   colorJoin,
	}
}

func leftNotice(m Member, l Lobby, kicked bool) Message {
	verb := "left the lobby"
	if kicked {
		verb = "was removed from the lobby"
	}
	return Message{
		Content: fmt.Sprintf("👋 %s %s. (%d/%d)", m.label(), verb, len(l.Members), l.Capacity),
	}
}

func ownerNotice(owner Member) Message {
	return Message{Content: fmt.Sprintf("👑 %s is now the lobby owner.", mention(owner.ID))}
}

func inviteNotice(l Lobby, inviter Member) Message {
	return Message{
		Title:       "Lobby invite",
		Description: fmt.Sprintf("%s added you to their lobby %s.", inviter.label(), channelMention(l.ID)),
		Color:       colorLobby,
		Fields: []Field{
			{Name: "Players", Value: fmt.Sprintf("%d/%d", len(l.Members), l.Capacity), Inline: true},
			{Name: "Join token", Value: l.JoinToken, Inline: true},
		},
	}
}

func inviteFallbackNotice(invitee Member) Message {
	return Message{
		Content: fmt.Sprintf("⚠️ Could not DM %s. They have been added but may need to check the channel list.", mention(invitee.ID)),
		Color:   colorWarn,
	}
}

func kickNotice(l Lobby, actor Member) Message {
	return Message{
		Content: fmt.Sprintf("You were removed from lobby %s by %s.", channelMention(l.ID), actor.label()),
		Color:   colorDanger,
	}
}

func endedNotice(actor string, delay time.Duration) Message {
	return Message{
		Title:       "Session ended",
		Description: fmt.Sprintf("%s ended this session. The channel will be deleted in %s.", mention(actor), delay.Round(time.Second)),
		Color:       colorDanger,
	}
}

func matchNotice(req MatchRequest, lobbyID string) Message {
	return Message{
		Title:       "Player looking for a group",
		Description: fmt.Sprintf("%s wants to join a lobby. Allow them in?", req.Requester.label()),
		Color:       colorLobby,
		Fields: []Field{
			{Name: "Expires", Value: fmt.Sprintf("<t:%d:R>", req.ExpiresAt.Unix()), Inline: true},
		},
		Actions: []Action{
			{ID: ActionID(ActionMatchAllow, lobbyID), Label: "Allow", Style: ActionSuccess},
			{ID: ActionID(ActionMatchDeny, lobbyID), Label: "Deny", Style: ActionDanger},
		},
	}
}

func matchAcceptedNotice(l Lobby) Message {
	return Message{
		Content: fmt.Sprintf("✅ A lobby accepted your request: %s (%d/%d).", channelMention(l.ID), len(l.Members), l.Capacity),
		Color:   colorJoin,
	}
}

func matchDeniedNotice() Message {
	return Message{Content: "A lobby declined your request. Other lobbies can still accept it."}
}

func matchExpiredNotice() Message {
	return Message{Content: "⏰ No lobby accepted your request in time. Try again or create your own lobby."}
}
