package eligibility

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

const (
	// DefaultMinSalary 默认月薪门槛（卢比）。
	DefaultMinSalary = 25000
	// DefaultClarification 无法判断回答时拼接在问题前的提示。
	DefaultClarification = "I'm sorry, I didn't understand. Please say Yes or No. "
)

// DefaultCities 默认认可的一线城市。
var DefaultCities = []string{"delhi", "mumbai", "bangalore"}

// DefaultPrompts 脚本模板，支持 {min_salary} 与 {cities} 占位符。
var DefaultPrompts = map[screening.Step]string{
	screening.StepGreeting: "Hello! Welcome to QuickRupee Personal Loans. " +
		"I'll ask you three quick questions to check your eligibility. " +
		"Please answer with Yes or No. Let's begin.",
	screening.StepAskEmployment: "Are you currently a salaried employee?",
	screening.StepAskSalary:     "Is your monthly in-hand salary above {min_salary} rupees?",
	screening.StepAskCity:       "Do you currently live in a metro city such as {cities}?",
	screening.StepEligible: "Great news! You are eligible for a QuickRupee personal loan. " +
		"One of our agents will call you back within the next ten minutes. " +
		"Thank you for calling QuickRupee!",
	screening.StepNotEligible: "Thank you for your interest in QuickRupee. " +
		"Unfortunately, you do not meet our current eligibility criteria. " +
		"Please feel free to check back with us in the future. " +
		"Goodbye.",
}

var spokenSteps = []screening.Step{
	screening.StepGreeting,
	screening.StepAskEmployment,
	screening.StepAskSalary,
	screening.StepAskCity,
	screening.StepEligible,
	screening.StepNotEligible,
}

// ScriptConfig 描述构造脚本所需的注入配置。
type ScriptConfig struct {
	MinSalary     int
	Cities        []string
	Prompts       map[screening.Step]string
	Clarification string
}

// Script 是启动时构造、之后只读的步骤到提示语映射。
type Script struct {
	prompts       map[screening.Step]string
	clarification string
	minSalary     int
	cities        []string
}

// NewScript 用门槛与城市列表渲染模板。Prompts 中的条目覆盖默认模板。
func NewScript(cfg ScriptConfig) (*Script, error) {
	minSalary := cfg.MinSalary
	if minSalary == 0 {
		minSalary = DefaultMinSalary
	}
	if minSalary < 0 {
		return nil, fmt.Errorf("min salary must be positive, got %d", minSalary)
	}

	cities := normalizeCities(cfg.Cities)
	if len(cities) == 0 {
		cities = append([]string(nil), DefaultCities...)
	}

	clarification := cfg.Clarification
	if strings.TrimSpace(clarification) == "" {
		clarification = DefaultClarification
	}
	if !strings.HasSuffix(clarification, " ") {
		clarification += " "
	}

	replacer := strings.NewReplacer(
		"{min_salary}", strconv.Itoa(minSalary),
		"{cities}", SpokenCityList(cities),
	)

	prompts := make(map[screening.Step]string, len(spokenSteps))
	for _, step := range spokenSteps {
		tmpl := DefaultPrompts[step]
		if override, ok := cfg.Prompts[step]; ok && strings.TrimSpace(override) != "" {
			tmpl = override
		}
		prompts[step] = replacer.Replace(strings.TrimSpace(tmpl))
	}

	return &Script{
		prompts:       prompts,
		clarification: clarification,
		minSalary:     minSalary,
		cities:        cities,
	}, nil
}

// DefaultScript 返回使用默认配置的脚本。
func DefaultScript() *Script {
	s, err := NewScript(ScriptConfig{})
	if err != nil {
		panic(err)
	}
	return s
}

// Prompt 返回步骤对应的固定提示语，没有提示语的步骤返回空串。
func (s *Script) Prompt(step screening.Step) string {
	return s.prompts[step]
}

// Reprompt 返回“没听懂”前缀与原问题的拼接。
func (s *Script) Reprompt(step screening.Step) string {
	return s.clarification + s.prompts[step]
}

// Clarification 返回澄清前缀。
func (s *Script) Clarification() string {
	return s.clarification
}

// MinSalary 返回月薪门槛。
func (s *Script) MinSalary() int {
	return s.minSalary
}

// Cities 返回规范化后的城市列表副本。
func (s *Script) Cities() []string {
	return append([]string(nil), s.cities...)
}

// Prompts 返回按步骤索引的提示语副本。
func (s *Script) Prompts() map[screening.Step]string {
	out := make(map[screening.Step]string, len(s.prompts))
	for step, text := range s.prompts {
		out[step] = text
	}
	return out
}

// Vocabulary 返回机器人可能说出的全部语句：每个步骤的提示语，加上每个问题的重问版本。
func (s *Script) Vocabulary() []string {
	vocab := make([]string, 0, len(spokenSteps)+3)
	for _, step := range spokenSteps {
		vocab = append(vocab, s.prompts[step])
	}
	for _, step := range spokenSteps {
		if step.IsQuestion() {
			vocab = append(vocab, s.Reprompt(step))
		}
	}
	return vocab
}

// Contains 判断文本是否属于封闭词表。
func (s *Script) Contains(text string) bool {
	for _, candidate := range s.Vocabulary() {
		if candidate == text {
			return true
		}
	}
	return false
}

// SpokenCityList 把城市名格式化为口语列表，例如 "Delhi, Mumbai, or Bangalore"。
func SpokenCityList(cities []string) string {
	caser := cases.Title(language.English)
	names := make([]string, 0, len(cities))
	for _, city := range cities {
		names = append(names, caser.String(city))
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
}

func normalizeCities(cities []string) []string {
	seen := make(map[string]struct{}, len(cities))
	out := make([]string, 0, len(cities))
	for _, city := range cities {
		city = strings.ToLower(strings.TrimSpace(city))
		if city == "" {
			continue
		}
		if _, dup := seen[city]; dup {
			continue
		}
		seen[city] = struct{}{}
		out = append(out, city)
	}
	return out
}
