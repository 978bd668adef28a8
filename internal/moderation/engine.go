package moderation

import (
	"strings"
	"time"

	"github.com/daminow/chatwarden/internal/chat"
	"github.com/daminow/chatwarden/internal/moderation/rules"
	"go.uber.org/zap"
)

// Engine evaluates the ordered rule set against incoming messages.
// Evaluation is strictly sequential and stops at the first matching rule.
type Engine struct {
	rules  []rules.Rule
	states *stateMap
	clock  Clock
	logger *zap.Logger
}

// NewEngine creates an engine owning the given rule set and the per-user
// transient state, which is evicted after stateTTL of inactivity.
func NewEngine(ruleSet []rules.Rule, stateTTL time.Duration, clock Clock, logger *zap.Logger) *Engine {
	return &Engine{
		rules:  ruleSet,
		states: newStateMap(stateTTL),
		clock:  clock,
		logger: logger.Named("engine"),
	}
}

// Classify runs the rule set over a message and returns the verdict.
// Classification never fails; predicates are total over their inputs.
func (e *Engine) Classify(msg chat.Message) rules.Verdict {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return rules.Verdict{}
	}

	folded := rules.Fold(text)

	mc := &rules.Context{
		Text:     text,
		Folded:   folded,
		Tokens:   rules.Tokenize(folded),
		SenderID: msg.SenderID,
		Now:      e.clock.Now(),
		State:    e.states.get(msg.SenderID),
	}

	for _, rule := range e.rules {
		if rule.Check(mc) {
			e.logger.Debug("Message flagged",
				zap.Int64("senderID", msg.SenderID),
				zap.String("rule", rule.ID))

			return rules.Verdict{RuleID: rule.ID, Reply: rule.Reply}
		}
	}

	return rules.Verdict{}
}

// Close releases the transient state map.
func (e *Engine) Close() {
	e.states.close()
}
