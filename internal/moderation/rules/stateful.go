package rules

import (
	"strings"
	"time"
)

// emojiRanges covers the emoticon, symbol, transport and flag blocks the
// flood rule treats as emoji.
var emojiRanges = [][2]rune{
	{0x1F600, 0x1F64F},
	{0x1F300, 0x1F5FF},
	{0x1F680, 0x1F6FF},
	{0x1F1E0, 0x1F1FF},
}

// isEmojiOnly reports whether the text, ignoring spaces, consists entirely
// of emoji runes.
func isEmojiOnly(text string) bool {
	stripped := strings.ReplaceAll(text, " ", "")
	if stripped == "" {
		return false
	}

	for _, r := range stripped {
		emoji := false

		for _, rng := range emojiRanges {
			if r >= rng[0] && r <= rng[1] {
				emoji = true
				break
			}
		}

		if !emoji {
			return false
		}
	}

	return true
}

// NewEmojiFloodRule counts consecutive emoji-only messages per user.
// Reaching the limit fires the rule and resets the streak; any non-emoji
// message resets it to zero.
func NewEmojiFloodRule(limit int) Rule {
	return Rule{
		ID:    "emoji_flood",
		Reply: "Избыточное использование emoji не приветствуется.",
		Check: func(mc *Context) bool {
			if !isEmojiOnly(mc.Text) {
				mc.State.EmojiStreak = 0
				return false
			}

			mc.State.EmojiStreak++

			if mc.State.EmojiStreak >= limit {
				mc.State.EmojiStreak = 0
				return true
			}

			return false
		},
	}
}

// NewRateLimitRule fires when more than count messages arrive inside the
// sliding window. Firing resets the window.
func NewRateLimitRule(count int, window time.Duration) Rule {
	return Rule{
		ID:    "rate_limit",
		Reply: "Вы отправляете сообщения слишком часто. Пожалуйста, замедлитесь.",
		Check: func(mc *Context) bool {
			cutoff := mc.Now.Add(-window)

			kept := mc.State.MessageTimes[:0]
			for _, t := range mc.State.MessageTimes {
				if t.After(cutoff) {
					kept = append(kept, t)
				}
			}

			mc.State.MessageTimes = append(kept, mc.Now)

			if len(mc.State.MessageTimes) > count {
				mc.State.MessageTimes = nil
				return true
			}

			return false
		},
	}
}
