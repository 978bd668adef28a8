package rules

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

var (
	linkPattern  = regexp.MustCompile(`(?i)(https?://)?[a-z0-9][a-z0-9._-]*\.[a-z]{2,}(/\S*)?`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{7,}\d`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// NewRepeatedCharsRule matches the same character three or more times in a row.
func NewRepeatedCharsRule() Rule {
	return Rule{
		ID:    "repeated_chars",
		Reply: "Ваше сообщение удалено за флуд (повторяющиеся символы).",
		Check: func(mc *Context) bool {
			var (
				prev  rune
				count int
			)

			for _, r := range mc.Text {
				if r == prev {
					count++
					if count >= 3 {
						return true
					}
				} else {
					prev = r
					count = 1
				}
			}

			return false
		},
	}
}

// NewLinkRule matches URLs and bare domain names.
func NewLinkRule() Rule {
	return Rule{
		ID:    "links",
		Reply: "Ваше сообщение удалено за публикацию ссылок/рекламу.",
		Check: func(mc *Context) bool {
			return linkPattern.MatchString(mc.Text)
		},
	}
}

// NewPersonalInfoRule matches phone numbers and email addresses.
func NewPersonalInfoRule() Rule {
	return Rule{
		ID:    "personal_info",
		Reply: "Разглашение личной информации запрещено.",
		Check: func(mc *Context) bool {
			return phonePattern.MatchString(mc.Text) || emailPattern.MatchString(mc.Text)
		},
	}
}

// NewCapsRule matches messages whose letters are predominantly uppercase.
// Short messages are exempt so that abbreviations pass.
func NewCapsRule(ratio float64, minLetters int) Rule {
	return Rule{
		ID:    "caps_abuse",
		Reply: "Злоупотребление CAPS LOCK запрещено.",
		Check: func(mc *Context) bool {
			var letters, upper int

			for _, r := range mc.Text {
				if !unicode.IsLetter(r) {
					continue
				}

				letters++

				if unicode.IsUpper(r) {
					upper++
				}
			}

			if letters <= minLetters {
				return false
			}

			return float64(upper)/float64(letters) > ratio
		},
	}
}

// NewFragmentedRule matches messages chopped into many short tokens.
func NewFragmentedRule() Rule {
	return Rule{
		ID:    "fragmented",
		Reply: "Разбивание сообщения на отдельные слова недопустимо.",
		Check: func(mc *Context) bool {
			if len(mc.Tokens) < 5 {
				return false
			}

			for _, token := range mc.Tokens {
				if utf8.RuneCountInString(token) > 2 {
					return false
				}
			}

			return true
		},
	}
}

// NewScriptRule matches messages whose letters are mostly outside the
// chat's required script. The ratio counts alphabetic characters only.
func NewScriptRule(script *unicode.RangeTable, threshold float64) Rule {
	return Rule{
		ID:    "foreign_script",
		Reply: "Сообщения должны быть на русском языке.",
		Check: func(mc *Context) bool {
			ratio, letters := letterRatio(mc.Text, script)
			if letters == 0 {
				return false
			}

			return ratio < threshold
		},
	}
}
