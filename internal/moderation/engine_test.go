package moderation

import (
	"testing"
	"time"

	"github.com/daminow/chatwarden/internal/chat"
	"github.com/daminow/chatwarden/internal/moderation/rules"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T, clock Clock) *Engine {
	t.Helper()

	lists := &rules.Lists{Spam: []string{"зарабатывай"}}
	thresholds := rules.DefaultThresholds()
	thresholds.RateLimitCount = 3
	thresholds.RateWindow = 3 * time.Minute

	engine := NewEngine(rules.NewSet(lists, thresholds), time.Hour, clock, zap.NewNop())
	t.Cleanup(engine.Close)

	return engine
}

func TestEngineClassify(t *testing.T) {
	engine := newTestEngine(t, NewClock())

	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "spam keyword with foreign letters",
			text:     "СРОЧНО зарабатывай 120$ bez ссылок пишит в лс",
			expected: "keyword_spam",
		},
		{name: "clean message", text: "привет всем, как дела", expected: ""},
		{name: "blank message", text: "   ", expected: ""},
		{name: "link", text: "заходи на example.com", expected: "links"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := engine.Classify(chat.Message{SenderID: 100, Text: tt.text})
			assert.Equal(t, tt.expected, verdict.RuleID)
			assert.Equal(t, tt.expected != "", verdict.Violation())
		})
	}
}

func TestEngineStatePerSender(t *testing.T) {
	clock := newFakeClock(time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(t, clock)

	chatty := chat.Message{SenderID: 100, Text: "обычное сообщение"}
	quiet := chat.Message{SenderID: 200, Text: "обычное сообщение"}

	for i := range 3 {
		assert.False(t, engine.Classify(chatty).Violation(), "message %d should pass", i+1)
	}

	// The fourth rapid message from the chatty sender is rate limited,
	// while the quiet sender is unaffected
	assert.Equal(t, "rate_limit", engine.Classify(chatty).RuleID)
	assert.False(t, engine.Classify(quiet).Violation())
}
