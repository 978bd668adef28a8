// Package rules implements the ordered predicate set of the message
// classification engine. Every rule is a pure function over the message
// context; evaluation order encodes priority and the first match wins.
package rules

import (
	"time"
	"unicode"
)

// Rule is a single moderation predicate.
type Rule struct {
	// ID identifies the rule in verdicts, audit entries and logs.
	ID string
	// Reply is the user-facing reason sent when the rule matches.
	Reply string
	// Check reports whether the message violates this rule.
	Check func(mc *Context) bool
}

// Verdict is the outcome of classifying one message.
// The zero value means the message is allowed.
type Verdict struct {
	RuleID string
	Reply  string
}

// Violation reports whether the verdict flags the message.
func (v Verdict) Violation() bool {
	return v.RuleID != ""
}

// State is the per-user transient state consulted by the stateful rules.
// It lives for the process lifetime only and is reset on restart.
type State struct {
	// Consecutive emoji-only messages seen from the user.
	EmojiStreak int
	// Timestamps of recent messages inside the rate window.
	MessageTimes []time.Time
}

// Context carries one message through the rule set.
type Context struct {
	// Text is the original message text, whitespace-trimmed.
	Text string
	// Folded is the lowercased text used by keyword matching.
	Folded string
	// Tokens are the lowercased letter/digit runs of the text.
	Tokens []string
	// SenderID identifies the message author.
	SenderID int64
	// Now is the evaluation time.
	Now time.Time
	// State is the sender's transient state, mutated only by stateful rules.
	State *State
}

// Thresholds holds the tunable limits of the structural and stateful rules.
type Thresholds struct {
	// Script messages must predominantly be written in.
	RequiredScript *unicode.RangeTable
	// Required-script letter ratio below which the script rule fires.
	ScriptRatio float64
	// Uppercase letter ratio above which the caps rule fires.
	CapsRatio float64
	// Minimum letters before the caps rule applies.
	CapsMinLetters int
	// Consecutive emoji-only messages that trigger a violation.
	EmojiStreakLimit int
	// Messages allowed inside the rate window.
	RateLimitCount int
	// Rate window length.
	RateWindow time.Duration
}

// DefaultThresholds mirrors the historical bot behavior.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RequiredScript:   unicode.Cyrillic,
		ScriptRatio:      0.5,
		CapsRatio:        0.7,
		CapsMinLetters:   10,
		EmojiStreakLimit: 5,
		RateLimitCount:   3,
		RateWindow:       3 * time.Minute,
	}
}

// Lists holds the term and keyword sets the lexical and topic rules match on.
type Lists struct {
	BannedTerms     []string
	RulesDiscussion []string
	FraudPiracy     []string
	Impersonation   []string
	Hate            []string
	Superiority     []string
	DrugsViolence   []string
	Defamation      []string
	Threats         []string
	Trolling        []string
	ModeratorTerms  []string
	ComplaintTerms  []string
	Begging         []string
	Whining         []string
	Spam            []string
}

// NewSet builds the ordered rule set. Topic rules come before structural
// ones, structural before stateful, so that the cheap explicit policies
// win over heuristics with side effects.
func NewSet(lists *Lists, t Thresholds) []Rule {
	return []Rule{
		NewKeywordRule("rules_discussion", "Обсуждение правил чата запрещено.", lists.RulesDiscussion),
		NewKeywordRule("fraud_piracy", "Обсуждение мошенничества или пиратских ресурсов запрещено.", lists.FraudPiracy),
		NewKeywordRule("impersonation", "Выдача себя за представителя администрации запрещена.", lists.Impersonation),
		NewBannedLexiconRule(lists.BannedTerms),
		NewKeywordRule("hate_speech", "Ваше сообщение удалено за недопустимое содержание.", lists.Hate),
		NewKeywordRule("superiority", "Выражения превосходства над другими запрещены.", lists.Superiority),
		NewKeywordRule("drugs_violence", "Пропаганда насилия, оружия, наркотиков или порнографического контента запрещена.", lists.DrugsViolence),
		NewKeywordRule("defamation", "Распространение ложной информации и клевета запрещены.", lists.Defamation),
		NewKeywordRule("threats", "Ваше сообщение удалено за угрозы или оскорбления.", lists.Threats),
		NewRepeatedCharsRule(),
		NewLinkRule(),
		NewKeywordRule("trolling", "Троллинг и провокационные сообщения запрещены.", lists.Trolling),
		NewModeratorDiscussionRule(lists.ModeratorTerms, lists.ComplaintTerms),
		NewPersonalInfoRule(),
		NewKeywordRule("begging", "Попрошайничество запрещено.", lists.Begging),
		NewKeywordRule("whining", "Нытьё в чате не приветствуется.", lists.Whining),
		NewCapsRule(t.CapsRatio, t.CapsMinLetters),
		NewEmojiFloodRule(t.EmojiStreakLimit),
		NewFragmentedRule(),
		NewScriptRule(t.RequiredScript, t.ScriptRatio),
		NewKeywordSpamRule(lists.Spam, t.RequiredScript),
		NewRateLimitRule(t.RateLimitCount, t.RateWindow),
	}
}
