package yesno

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

// DefaultAffirmative 默认的肯定词表。
var DefaultAffirmative = []string{
	"yes", "yeah", "yep", "yup", "sure", "affirmative", "correct", "right", "ha", "haan",
}

// DefaultNegative 默认的否定词表。
var DefaultNegative = []string{
	"no", "nope", "nah", "negative", "not", "nahi", "nahin",
}

// Classifier 基于词边界匹配，把自由文本归类为是/否/无法判断。
// 构造完成后只读，可在多个会话间共享。
type Classifier struct {
	affirmative []*regexp.Regexp
	negative    []*regexp.Regexp
}

// New 根据给定词表编译分类器，词表为空时使用默认值。
func New(affirmative, negative []string) (*Classifier, error) {
	if len(affirmative) == 0 {
		affirmative = DefaultAffirmative
	}
	if len(negative) == 0 {
		negative = DefaultNegative
	}

	yes, err := compileWords(affirmative)
	if err != nil {
		return nil, fmt.Errorf("compile affirmative words: %w", err)
	}
	no, err := compileWords(negative)
	if err != nil {
		return nil, fmt.Errorf("compile negative words: %w", err)
	}

	return &Classifier{affirmative: yes, negative: no}, nil
}

// Default 返回使用默认词表的分类器。
func Default() *Classifier {
	c, err := New(nil, nil)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify 对文本分类。只命中肯定词为 Yes，只命中否定词为 No，
// 两者都命中或都未命中均为 Ambiguous。
func (c *Classifier) Classify(text string) screening.Answer {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return screening.AnswerAmbiguous
	}

	hasYes := matchAny(c.affirmative, normalized)
	hasNo := matchAny(c.negative, normalized)

	switch {
	case hasYes && !hasNo:
		return screening.AnswerYes
	case hasNo && !hasYes:
		return screening.AnswerNo
	default:
		return screening.AnswerAmbiguous
	}
}

func compileWords(words []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("word list is empty")
	}
	return patterns, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
