package rules

import (
	"strings"
	"unicode"
)

// NewBannedLexiconRule matches banned terms as whole words, case-insensitive.
// Multi-word terms are matched as folded substrings instead.
func NewBannedLexiconRule(terms []string) Rule {
	single := make(map[string]struct{}, len(terms))

	var phrases []string

	for _, term := range terms {
		folded := Fold(term)
		if strings.ContainsRune(folded, ' ') {
			phrases = append(phrases, folded)
		} else {
			single[folded] = struct{}{}
		}
	}

	return Rule{
		ID:    "banned_lexicon",
		Reply: "Ваше сообщение удалено за использование ненормативной лексики.",
		Check: func(mc *Context) bool {
			for _, token := range mc.Tokens {
				if _, ok := single[token]; ok {
					return true
				}
			}

			return containsAny(mc.Folded, phrases)
		},
	}
}

// NewKeywordRule matches when any keyword occurs in the folded text.
func NewKeywordRule(id, reply string, keywords []string) Rule {
	folded := foldAll(keywords)

	return Rule{
		ID:    id,
		Reply: reply,
		Check: func(mc *Context) bool {
			return containsAny(mc.Folded, folded)
		},
	}
}

// NewModeratorDiscussionRule matches messages that both name the moderation
// staff and carry a complaint term.
func NewModeratorDiscussionRule(moderatorTerms, complaintTerms []string) Rule {
	moderators := foldAll(moderatorTerms)
	complaints := foldAll(complaintTerms)

	return Rule{
		ID:    "moderator_discussion",
		Reply: "Обсуждение действий модераторов запрещено.",
		Check: func(mc *Context) bool {
			return containsAny(mc.Folded, moderators) && containsAny(mc.Folded, complaints)
		},
	}
}

// NewKeywordSpamRule matches advertising keywords combined with letters from
// outside the chat's required script. Either signal alone is tolerated.
func NewKeywordSpamRule(keywords []string, script *unicode.RangeTable) Rule {
	folded := foldAll(keywords)

	return Rule{
		ID:    "keyword_spam",
		Reply: "Сообщение удалено как спам.",
		Check: func(mc *Context) bool {
			return containsAny(mc.Folded, folded) && hasForeignLetters(mc.Text, script)
		},
	}
}

func foldAll(keywords []string) []string {
	folded := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		folded = append(folded, Fold(keyword))
	}

	return folded
}
