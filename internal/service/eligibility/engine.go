package eligibility

import (
	"github.com/quickrupee/voicebot/backend/internal/model/screening"
)

// Classifier 把来电者的回答归为是/否/无法判断。
type Classifier interface {
	Classify(text string) screening.Answer
}

// Engine 是筛查脚本上的确定性状态机，不做任何 I/O。
// 单个 Engine 只属于一个会话，不支持并发调用。
type Engine struct {
	script     *Script
	classifier Classifier
	state      screening.ConversationState
}

// NewEngine 创建处于 Init 步骤的状态机。
func NewEngine(script *Script, classifier Classifier) *Engine {
	return &Engine{
		script:     script,
		classifier: classifier,
		state:      screening.ConversationState{Step: screening.StepInit},
	}
}

// Start 进入问候步骤并返回问候语。第一个问题在下一次 Process 时给出。
func (e *Engine) Start() string {
	e.state.Step = screening.StepGreeting
	return e.script.Prompt(screening.StepGreeting)
}

// Process 对回答分类并按转移表推进。
func (e *Engine) Process(rawText string) screening.Result {
	switch e.state.Step {
	case screening.StepInit:
		return e.result(e.Start(), true)
	case screening.StepGreeting:
		return e.transition(screening.StepAskEmployment)
	case screening.StepEligible, screening.StepNotEligible, screening.StepEnd:
		return e.result("", true)
	}

	answer := e.classifier.Classify(rawText)
	if answer == screening.AnswerAmbiguous {
		e.state.Reprompts++
		return e.result(e.script.Reprompt(e.state.Step), false)
	}
	yes := answer == screening.AnswerYes

	switch e.state.Step {
	case screening.StepAskEmployment:
		e.state.IsSalaried = screening.Bool(yes)
		if !yes {
			return e.reject(screening.ReasonNotSalaried)
		}
		return e.transition(screening.StepAskSalary)
	case screening.StepAskSalary:
		e.state.SalaryAboveThreshold = screening.Bool(yes)
		if !yes {
			return e.reject(screening.ReasonSalaryBelowThreshold)
		}
		return e.transition(screening.StepAskCity)
	default:
		e.state.InMetroCity = screening.Bool(yes)
		if !yes {
			return e.reject(screening.ReasonNotInMetro)
		}
		return e.transition(screening.StepEligible)
	}
}

// Abandon 在来电者提前挂断时把未结束的对话置为 End，返回是否发生了变化。
func (e *Engine) Abandon() bool {
	if e.state.Step.IsTerminal() {
		return false
	}
	e.state.Step = screening.StepEnd
	return true
}

// CurrentStep 返回当前步骤。
func (e *Engine) CurrentStep() screening.Step {
	return e.state.Step
}

// IsComplete 表示对话是否已处于 Eligible、NotEligible 或 End。
func (e *Engine) IsComplete() bool {
	return e.state.Step.IsTerminal()
}

// State 返回会话状态的深拷贝。
func (e *Engine) State() screening.ConversationState {
	snapshot := e.state
	snapshot.IsSalaried = copyBool(e.state.IsSalaried)
	snapshot.SalaryAboveThreshold = copyBool(e.state.SalaryAboveThreshold)
	snapshot.InMetroCity = copyBool(e.state.InMetroCity)
	return snapshot
}

func (e *Engine) reject(reason screening.RejectionReason) screening.Result {
	e.state.RejectionReason = reason
	return e.transition(screening.StepNotEligible)
}

func (e *Engine) transition(next screening.Step) screening.Result {
	e.state.Step = next
	return e.result(e.script.Prompt(next), true)
}

func (e *Engine) result(message string, valid bool) screening.Result {
	res := screening.Result{
		Message:         message,
		Step:            e.state.Step,
		ShouldEnd:       e.state.Step.IsOutcome(),
		RejectionReason: e.state.RejectionReason,
		IsValid:         valid,
	}
	switch e.state.Step {
	case screening.StepEligible:
		res.IsEligible = screening.Bool(true)
	case screening.StepNotEligible:
		res.IsEligible = screening.Bool(false)
	}
	return res
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	return screening.Bool(*v)
}
