package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v3"
)

func TestToMessage(t *testing.T) {
	msg := &tele.Message{
		ID:     10,
		Chat:   &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender: &tele.User{ID: 42, Username: "alice"},
		Text:   "привет",
	}

	converted := toMessage(msg)
	assert.Equal(t, int64(-100), converted.ChatID)
	assert.Equal(t, int64(42), converted.SenderID)
	assert.Equal(t, "@alice", converted.Alias)
	assert.True(t, converted.Group)
}

func TestToMessageNilSender(t *testing.T) {
	// Channel posts and anonymous admins carry no sender
	msg := &tele.Message{
		ID:   11,
		Chat: &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Text: "объявление",
	}

	converted := toMessage(msg)
	assert.Zero(t, converted.SenderID)
	assert.Equal(t, "unknown", converted.Alias)
}

func TestSenderAlias(t *testing.T) {
	tests := []struct {
		name string
		user *tele.User
		want string
	}{
		{name: "username", user: &tele.User{Username: "alice"}, want: "@alice"},
		{name: "display name", user: &tele.User{FirstName: "Анна", LastName: "Иванова"}, want: "Анна Иванова"},
		{name: "first name only", user: &tele.User{FirstName: "Анна"}, want: "Анна"},
		{name: "empty user", user: &tele.User{}, want: "unknown"},
		{name: "nil user", user: nil, want: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, senderAlias(tt.user))
		})
	}
}
