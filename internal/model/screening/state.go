package screening

// Step 标识筛查脚本中的当前位置。
type Step string

const (
	StepInit          Step = "init"
	StepGreeting      Step = "greeting"
	StepAskEmployment Step = "ask_employment"
	StepAskSalary     Step = "ask_salary"
	StepAskCity       Step = "ask_city"
	StepEligible      Step = "eligible"
	StepNotEligible   Step = "not_eligible"
	StepEnd           Step = "end"
)

// Steps 按脚本顺序列出全部步骤。
var Steps = []Step{
	StepInit,
	StepGreeting,
	StepAskEmployment,
	StepAskSalary,
	StepAskCity,
	StepEligible,
	StepNotEligible,
	StepEnd,
}

// IsQuestion 表示该步骤是否在等待是/否回答。
func (s Step) IsQuestion() bool {
	switch s {
	case StepAskEmployment, StepAskSalary, StepAskCity:
		return true
	default:
		return false
	}
}

// IsOutcome 表示该步骤是否为结论步骤（通过或拒绝）。
func (s Step) IsOutcome() bool {
	return s == StepEligible || s == StepNotEligible
}

// IsTerminal 表示对话是否已经结束。
func (s Step) IsTerminal() bool {
	return s.IsOutcome() || s == StepEnd
}

// Answer 是对来电者回答的二元分类结果。
type Answer string

const (
	AnswerYes       Answer = "yes"
	AnswerNo        Answer = "no"
	AnswerAmbiguous Answer = "ambiguous"
)

// RejectionReason 说明拒绝的原因。
type RejectionReason string

const (
	ReasonNone                 RejectionReason = ""
	ReasonNotSalaried          RejectionReason = "not_salaried"
	ReasonSalaryBelowThreshold RejectionReason = "salary_below_threshold"
	ReasonNotInMetro           RejectionReason = "not_in_metro"
)

// ConversationState 记录单个会话的筛查进度。
// 字段一旦被设置便不会被清空；RejectionReason 仅在 StepNotEligible 时有值。
type ConversationState struct {
	Step                 Step            `json:"current_step"`
	IsSalaried           *bool           `json:"is_salaried"`
	SalaryAboveThreshold *bool           `json:"salary_above_threshold"`
	InMetroCity          *bool           `json:"in_metro_city"`
	RejectionReason      RejectionReason `json:"rejection_reason,omitempty"`
	Reprompts            int             `json:"reprompts"`
}

// Result 是一次状态转移的输出。
type Result struct {
	Message         string          `json:"message"`
	Step            Step            `json:"state"`
	ShouldEnd       bool            `json:"should_end"`
	IsEligible      *bool           `json:"is_eligible"`
	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
	IsValid         bool            `json:"is_valid"`
}

// Bool 返回指向 v 的指针。
func Bool(v bool) *bool {
	return &v
}
