package config

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
)

// RuleList holds the term and keyword sets consumed by the rule engine.
// Every set is independently overridable from the rule list file; empty
// sets fall back to the built-in defaults.
type RuleList struct {
	// Terms matched on word boundaries, case-insensitive.
	BannedTerms []string `json:"bannedTerms"`
	// Keyword sets for the topic rules, matched as substrings of the lowercased text.
	RulesDiscussion []string `json:"rulesDiscussion"`
	FraudPiracy     []string `json:"fraudPiracy"`
	Impersonation   []string `json:"impersonation"`
	Hate            []string `json:"hate"`
	Superiority     []string `json:"superiority"`
	DrugsViolence   []string `json:"drugsViolence"`
	Defamation      []string `json:"defamation"`
	Threats         []string `json:"threats"`
	Trolling        []string `json:"trolling"`
	ModeratorTerms  []string `json:"moderatorTerms"`
	ComplaintTerms  []string `json:"complaintTerms"`
	Begging         []string `json:"begging"`
	Whining         []string `json:"whining"`
	Spam            []string `json:"spam"`
}

// DefaultRuleList returns the built-in Russian-language rule sets.
func DefaultRuleList() *RuleList {
	return &RuleList{
		BannedTerms: []string{
			"хуй", "пизда", "сука", "блядь", "дибил", "гандон", "еблан",
			"ебать", "ебал", "бля", "блядёшка", "блядоёбина",
		},
		RulesDiscussion: []string{"правила чата", "правил чата", "правилы чата"},
		FraudPiracy: []string{
			"мошенничество", "мошен", "пиратский", "пиратство", "пират",
			"запрещённые программы", "кракер", "бесплатно скачать",
		},
		Impersonation: []string{"я админ", "я модератор"},
		Hate: []string{
			"нация", "рас", "евреи", "черные", "азиаты", "национализм", "супремаси",
		},
		Superiority:   []string{"превосходство", "лучше всех", "супремаси"},
		DrugsViolence: []string{
			"наркотик", "оружие", "насилие", "порнография",
			"сексуальный контент", "алкоголь", "табак",
		},
		Defamation: []string{"клевета", "клевет", "ложная информация", "фейк"},
		Threats:    []string{"убью", "смерть", "угрожаю", "накажу"},
		Trolling:   []string{"троллить", "троллинг", "провокация"},
		ModeratorTerms: []string{"модератор", "модераторы", "администрация"},
		ComplaintTerms: []string{"обсуждение", "критика", "жалоба"},
		Begging:        []string{"пожалуйста дайте", "помогите мне пожалуйста"},
		Whining:        []string{"хныкать", "ныть", "жаловаться без причины"},
		Spam:           []string{"зарабатывать", "зарабатывай", "сотрудничество", "120$", "новичков", "пишит"},
	}
}

// LoadRuleList loads the rule list file from the config paths, layering it
// over the defaults. An empty file name returns the defaults unchanged.
func LoadRuleList(configDir, fileName string) (*RuleList, error) {
	list := DefaultRuleList()
	if fileName == "" {
		return list, nil
	}

	paths := configPaths()
	if configDir != "" {
		paths = append([]string{configDir}, paths...)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path + "/" + fileName)
		if err != nil {
			continue
		}

		var overrides RuleList
		if err := sonic.Unmarshal(data, &overrides); err != nil {
			return nil, fmt.Errorf("failed to parse rule list %s: %w", fileName, err)
		}

		list.merge(&overrides)

		return list, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrConfigFileNotFound, fileName)
}

// merge overlays non-empty sets from overrides onto the list.
func (l *RuleList) merge(overrides *RuleList) {
	dst := []*[]string{
		&l.BannedTerms, &l.RulesDiscussion, &l.FraudPiracy, &l.Impersonation,
		&l.Hate, &l.Superiority, &l.DrugsViolence, &l.Defamation, &l.Threats,
		&l.Trolling, &l.ModeratorTerms, &l.ComplaintTerms, &l.Begging,
		&l.Whining, &l.Spam,
	}
	src := []*[]string{
		&overrides.BannedTerms, &overrides.RulesDiscussion, &overrides.FraudPiracy,
		&overrides.Impersonation, &overrides.Hate, &overrides.Superiority,
		&overrides.DrugsViolence, &overrides.Defamation, &overrides.Threats,
		&overrides.Trolling, &overrides.ModeratorTerms, &overrides.ComplaintTerms,
		&overrides.Begging, &overrides.Whining, &overrides.Spam,
	}

	for i := range dst {
		if len(*src[i]) > 0 {
			*dst[i] = *src[i]
		}
	}
}
