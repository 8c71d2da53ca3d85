package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// DiscordAdapter posts embeds to a Discord webhook. Messages with a PanelKey
// are created once with ?wait=true and edited in place afterwards.
type DiscordAdapter struct {
	client    *HTTPClient
	mu        sync.Mutex
	messageBy map[string]string
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{
		client:    client,
		messageBy: map[string]string{},
	}
}

func (a *DiscordAdapter) Name() string {
	return "discord"
}

func (a *DiscordAdapter) Send(ctx context.Context, endpoint, threadID string, msg Message) error {
	payload := discordPayload(msg)
	if strings.TrimSpace(msg.PanelKey) == "" {
		_, _, err := a.client.PostJSON(ctx, withQuery(endpoint, "thread_id", threadID), payload)
		return err
	}

	key := panelKey(endpoint, threadID, msg.PanelKey)
	msgID := a.getMessageID(key)
	if msgID == "" {
		return a.createPanel(ctx, key, endpoint, threadID, payload)
	}

	editURL, ok := messageEditURL(endpoint, msgID)
	if !ok {
		_, _, err := a.client.PostJSON(ctx, withQuery(endpoint, "thread_id", threadID), payload)
		return err
	}
	status, _, err := a.client.PatchJSON(ctx, withQuery(editURL, "thread_id", threadID), payload)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return err
	}
	// Someone deleted the panel message by hand.
	return a.createPanel(ctx, key, endpoint, threadID, payload)
}

func (a *DiscordAdapter) ForgetPanel(endpoint, threadID, key string) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(key) == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.messageBy, panelKey(endpoint, threadID, key))
}

func (a *DiscordAdapter) createPanel(ctx context.Context, key, endpoint, threadID string, payload map[string]any) error {
	target := withQuery(withQuery(endpoint, "wait", "true"), "thread_id", threadID)
	_, body, err := a.client.PostJSON(ctx, target, payload)
	if err != nil {
		return err
	}
	var created struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &created) != nil || strings.TrimSpace(created.ID) == "" {
		return fmt.Errorf("discord webhook create message missing id")
	}
	a.setMessageID(key, created.ID)
	return nil
}

func (a *DiscordAdapter) getMessageID(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messageBy[key]
}

func (a *DiscordAdapter) setMessageID(key, msgID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messageBy[key] = msgID
}

func discordPayload(msg Message) map[string]any {
	type embedField struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline"`
	}
	fields := make([]embedField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	embed := map[string]any{
		"title":       msg.Title,
		"description": msg.Description,
		"fields":      fields,
		"color":       msg.Color,
	}
	if msg.Timestamp != "" {
		embed["timestamp"] = msg.Timestamp
	}
	if msg.Footer != "" {
		embed["footer"] = map[string]string{"text": msg.Footer}
	}
	return map[string]any{
		"content": msg.Content,
		"embeds":  []map[string]any{embed},
		// Panels list players as mentions; never ping them.
		"allowed_mentions": map[string]any{"parse": []string{}},
	}
}

func panelKey(endpoint, threadID, key string) string {
	return strings.TrimSpace(endpoint) + "|" + strings.TrimSpace(threadID) + "|" + strings.TrimSpace(key)
}

func withQuery(raw, key, value string) string {
	if strings.TrimSpace(value) == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func messageEditURL(endpoint, msgID string) (string, bool) {
	if strings.TrimSpace(endpoint) == "" || strings.TrimSpace(msgID) == "" {
		return "", false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// /api/webhooks/{webhook.id}/{webhook.token}
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "webhooks" {
		return "", false
	}
	u.Path = "/api/webhooks/" + parts[2] + "/" + parts[3] + "/messages/" + msgID
	u.RawQuery = ""
	return u.String(), true
}
