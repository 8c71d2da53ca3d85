package lobby

import (
	"context"
	"strings"
	"time"
)

// Gateway is the chat platform surface the coordinator drives. Every call may
// block on the network and is made without holding coordinator state.
type Gateway interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	GrantAccess(ctx context.Context, channelID, userID string) error
	RevokeAccess(ctx context.Context, channelID, userID string) error
	SendMessage(ctx context.Context, channelID string, msg Message) error
	DirectMessage(ctx context.Context, userID string, msg Message) error
	IsModerator(ctx context.Context, userID string) (bool, error)
	ListLobbyChannels(ctx context.Context) ([]ChannelInfo, error)
}

// ChannelSpec describes a lobby channel to provision. Owner is granted
// access at creation time.
type ChannelSpec struct {
	Name  string
	Owner string
	Topic string
}

// ChannelInfo is what the gateway can observe about an existing lobby
// channel. It feeds the startup recovery pass.
type ChannelInfo struct {
	ID             string
	Name           string
	Owner          string
	Members        []Member
	CreatedAt      time.Time
	LastActivityAt time.Time
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type ActionStyle int

const (
	ActionPrimary ActionStyle = iota
	ActionSecondary
	ActionSuccess
	ActionDanger
)

// Action is a button attached to a message. ID is built with ActionID.
type Action struct {
	ID    string
	Label string
	Style ActionStyle
}

type Message struct {
	Content     string
	Title       string
	Description string
	Color       int
	Fields      []Field
	Actions     []Action
}

const (
	ActionJoin       = "lobby_join"
	ActionLeave      = "lobby_leave"
	ActionEnd        = "lobby_end"
	ActionMatchAllow = "match_allow"
	ActionMatchDeny  = "match_deny"
)

func ActionID(kind, lobbyID string) string {
	return kind + ":" + lobbyID
}

func ParseActionID(id string) (kind, lobbyID string, ok bool) {
	kind, lobbyID, ok = strings.Cut(id, ":")
	if !ok || kind == "" || lobbyID == "" {
		return "", "", false
	}
	return kind, lobbyID, true
}
