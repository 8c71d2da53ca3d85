package webhook

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is one board post. Posts sharing a PanelKey replace each other in
// place instead of stacking up.
type Message struct {
	PanelKey    string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []Field
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, threadID string, msg Message) error
}
