package backend

import "testing"

func TestChatRelevant(t *testing.T) {
	tests := []struct {
		name string
		chat Chat
		want bool
	}{
		{"active direct", Chat{ID: "0xabc", ChatType: ChatTypeOneToOne, Active: true}, true},
		{"active group", Chat{ID: "g1", ChatType: ChatTypePrivateGroup, Active: true}, true},
		{"inactive direct", Chat{ID: "0xabc", ChatType: ChatTypeOneToOne, Active: false}, false},
		{"public", Chat{ID: "#town", ChatType: ChatTypePublic, Active: true}, false},
		{"empty id", Chat{ID: "  ", ChatType: ChatTypeOneToOne, Active: true}, false},
		{"unknown type", Chat{ID: "x", ChatType: 7, Active: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chat.Relevant(); got != tt.want {
				t.Errorf("Relevant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageWhen(t *testing.T) {
	if got := (Message{Timestamp: 1700000000000, Clock: 42}).When(); got != 1700000000000 {
		t.Errorf("When() = %d, want timestamp", got)
	}
	if got := (Message{Clock: 42}).When(); got != 42 {
		t.Errorf("When() = %d, want clock fallback", got)
	}
}
