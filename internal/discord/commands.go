package discord

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"nightreign-lobby/internal/lobby"
)

// gameCode matches the 9-10 digit friend codes players paste in chat.
var gameCode = regexp.MustCompile(`(?:^|\s|:)(\d{9,10})(?:\s|$|\.|,|!|\?)`)

func findGameCode(content string) (string, bool) {
	m := gameCode.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type command struct {
	name string
	args []string
}

func parseCommand(prefix, content string) (command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return command{}, false
	}
	name := strings.ToLower(strings.ReplaceAll(fields[0], "-", "_"))
	if _, ok := commandNames[name]; !ok {
		return command{}, false
	}
	return command{name: name, args: fields[1:]}, true
}

var commandNames = map[string]struct{}{
	"create_game":  {},
	"join":         {},
	"leave":        {},
	"invite":       {},
	"kick":         {},
	"end":          {},
	"my_lobby":     {},
	"lobbies":      {},
	"find_match":   {},
	"cancel_match": {},
	"lobbyhelp":    {},
}

// invocation is who asked, and from where.
type invocation struct {
	user     lobby.Member
	channel  string
	mentions []lobby.Member
}

func (inv invocation) firstMention() (lobby.Member, bool) {
	for _, m := range inv.mentions {
		if m.ID != "" {
			return m, true
		}
	}
	return lobby.Member{}, false
}

// dispatcher runs commands and button actions against the coordinator and
// returns the text to reply with.
type dispatcher struct {
	coord  *lobby.Coordinator
	prefix string
}

func (d *dispatcher) runCommand(ctx context.Context, cmd command, inv invocation) string {
	switch cmd.name {
	case "create_game":
		req := lobby.CreateRequest{Owner: inv.user, Origin: inv.channel}
		if len(cmd.args) > 0 {
			if code, ok := findGameCode(cmd.args[0]); ok {
				req.FriendCode = code
			}
		}
		l, err := d.coord.Create(ctx, req)
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("Lobby created: <#%s>. Join token: `%s`", l.ID, l.JoinToken)

	case "join":
		if len(cmd.args) == 0 {
			return fmt.Sprintf("Usage: `%sjoin <token>`", d.prefix)
		}
		l, err := d.coord.JoinByToken(ctx, cmd.args[0], inv.user)
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("You joined <#%s> (%d/%d).", l.ID, len(l.Members), l.Capacity)

	case "leave":
		current, ok := d.coord.LobbyOf(inv.user.ID)
		if !ok {
			return "You're not in a lobby."
		}
		if _, err := d.coord.Leave(ctx, current.ID, inv.user.ID); err != nil {
			return userMessage(err)
		}
		return "You left the lobby."

	case "invite":
		target, ok := inv.firstMention()
		if !ok {
			return fmt.Sprintf("Usage: `%sinvite @user`", d.prefix)
		}
		current, ok := d.coord.LobbyOf(inv.user.ID)
		if !ok {
			return "You're not in a lobby."
		}
		l, err := d.coord.Invite(ctx, current.ID, inv.user.ID, target)
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("Added <@%s> to <#%s> (%d/%d).", target.ID, l.ID, len(l.Members), l.Capacity)

	case "kick":
		target, ok := inv.firstMention()
		if !ok {
			return fmt.Sprintf("Usage: `%skick @user`", d.prefix)
		}
		current, ok := d.coord.LobbyOf(inv.user.ID)
		if !ok {
			return "You're not in a lobby."
		}
		if _, err := d.coord.Kick(ctx, current.ID, inv.user.ID, target.ID); err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("Removed <@%s> from the lobby.", target.ID)

	case "end":
		lobbyID := inv.channel
		if _, ok := d.coord.Lobby(lobbyID); !ok {
			current, ok := d.coord.LobbyOf(inv.user.ID)
			if !ok {
				return "You're not in a lobby."
			}
			lobbyID = current.ID
		}
		if err := d.coord.End(ctx, lobbyID, inv.user.ID); err != nil {
			return userMessage(err)
		}
		return "Session ended."

	case "my_lobby":
		current, ok := d.coord.LobbyOf(inv.user.ID)
		if !ok {
			return "You're not in a lobby."
		}
		return myLobbyReply(current)

	case "lobbies":
		return lobbiesReply(d.coord.OpenLobbies())

	case "find_match":
		req, err := d.coord.FindMatch(ctx, inv.user)
		if err != nil {
			return userMessage(err)
		}
		if len(req.Targets) == 0 {
			return "No open lobbies right now. Your request stays up until it expires, or create your own lobby."
		}
		return fmt.Sprintf("Asked %d lobbies to take you in. You'll get a DM when one accepts.", len(req.Targets))

	case "cancel_match":
		if _, err := d.coord.CancelMatch(ctx, inv.user.ID); err != nil {
			return userMessage(err)
		}
		return "Match request withdrawn."

	case "lobbyhelp":
		return helpText(d.prefix)
	}
	return helpText(d.prefix)
}

func (d *dispatcher) runAction(ctx context.Context, customID string, inv invocation) string {
	kind, lobbyID, ok := lobby.ParseActionID(customID)
	if !ok {
		return "That button has expired."
	}
	switch kind {
	case lobby.ActionJoin:
		l, err := d.coord.Join(ctx, lobbyID, inv.user)
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("You joined <#%s> (%d/%d).", l.ID, len(l.Members), l.Capacity)
	case lobby.ActionLeave:
		if _, err := d.coord.Leave(ctx, lobbyID, inv.user.ID); err != nil {
			return userMessage(err)
		}
		return "You left the lobby."
	case lobby.ActionEnd:
		if err := d.coord.End(ctx, lobbyID, inv.user.ID); err != nil {
			return userMessage(err)
		}
		return "Session ended."
	case lobby.ActionMatchAllow:
		req, err := d.coord.Allow(ctx, lobbyID, inv.user.ID)
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("Let <@%s> in.", req.Requester.ID)
	case lobby.ActionMatchDeny:
		req, err := d.coord.Deny(ctx, lobbyID, inv.user.ID)
		if err != nil {
			return userMessage(err)
		}
		return fmt.Sprintf("Declined <@%s>.", req.Requester.ID)
	}
	return "That button has expired."
}

// userMessage turns a coordinator error into a reply for the chat user.
func userMessage(err error) string {
	var already *lobby.AlreadyInLobbyError
	if errors.As(err, &already) {
		return fmt.Sprintf("You're already in a lobby: <#%s>. Leave it first.", already.LobbyID)
	}
	var full *lobby.LobbyFullError
	if errors.As(err, &full) {
		names := lobby.Lobby{Members: full.Members}.MemberNames()
		return fmt.Sprintf("That lobby is full (%d/%d): %s.", len(full.Members), full.Capacity, strings.Join(names, ", "))
	}
	switch {
	case errors.Is(err, lobby.ErrLobbyNotFound):
		return "Lobby not found. It may have been closed."
	case errors.Is(err, lobby.ErrAlreadyMember):
		return "Already in this lobby."
	case errors.Is(err, lobby.ErrNotMember):
		return "Not a member of that lobby."
	case errors.Is(err, lobby.ErrCannotKickSelf):
		return "You can't kick yourself. Use leave instead."
	case errors.Is(err, lobby.ErrRequestAlreadyPending):
		return "You already have a pending match request."
	case errors.Is(err, lobby.ErrNoPendingRequest):
		return "There is no pending match request."
	case errors.Is(err, lobby.ErrTokenNotUnique):
		return "Couldn't allocate a join token. Please try again."
	case errors.Is(err, lobby.ErrCreateInProgress):
		return "Your lobby is still being created."
	case errors.Is(err, lobby.ErrNotLobbyOwner):
		return "Only the lobby owner or a moderator can end the session."
	case errors.Is(err, lobby.ErrInvalidMember):
		return "Couldn't identify that user."
	case errors.Is(err, lobby.ErrCoordinatorClosed):
		return "The lobby service is shutting down."
	case errors.Is(err, lobby.ErrGateway):
		return "Discord didn't cooperate. Please try again in a moment."
	}
	return "Something went wrong."
}
