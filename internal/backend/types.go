package backend

import "strings"

// Chat types as reported by status-go. Only one-to-one and private
// group chats carry user messages the relay cares about.
const (
	ChatTypeOneToOne     = 1
	ChatTypePublic       = 2
	ChatTypePrivateGroup = 3
)

// Chat is an entry from the wakuext_activeChats list.
type Chat struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ChatType int    `json:"chatType"`
	Active   bool   `json:"active"`
}

// IsDirect reports whether the chat is a one-to-one conversation.
func (c Chat) IsDirect() bool { return c.ChatType == ChatTypeOneToOne }

// IsGroup reports whether the chat is a private group conversation.
func (c Chat) IsGroup() bool { return c.ChatType == ChatTypePrivateGroup }

// Relevant reports whether the relay should ingest messages from this
// chat: active, direct or group, with a non-empty identity.
func (c Chat) Relevant() bool {
	return c.Active && (c.IsDirect() || c.IsGroup()) && strings.TrimSpace(c.ID) != ""
}

// Message is a chat message as returned by wakuext_chatMessages and by
// messages.new signal events. The stable identifier may be empty for
// messages the backend has not yet persisted.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Clock     int64  `json:"clock"`
}

// When returns the message timestamp in milliseconds, falling back to
// the Lamport clock when the wall timestamp is absent.
func (m Message) When() int64 {
	if m.Timestamp > 0 {
		return m.Timestamp
	}
	return m.Clock
}

// MessagesPage is one page of chat history.
type MessagesPage struct {
	Cursor   string    `json:"cursor"`
	Messages []Message `json:"messages"`
}

// Settings is the subset of settings_getSettings the relay reads.
type Settings struct {
	PublicKey   string `json:"public-key"`
	KeyUID      string `json:"key-uid"`
	DisplayName string `json:"display-name"`
}
