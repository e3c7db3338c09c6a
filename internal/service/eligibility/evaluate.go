package eligibility

import "github.com/quickrupee/voicebot/backend/internal/model/screening"

// Evaluation 是一组回答离线跑完脚本后的结果。
type Evaluation struct {
	Greeting string                      `json:"greeting"`
	Turns    []Turn                      `json:"turns"`
	Final    screening.ConversationState `json:"final"`
	Complete bool                        `json:"complete"`
	Outcome  *bool                       `json:"is_eligible"`
}

// Turn 记录一轮输入与对应的输出。
type Turn struct {
	Input  string           `json:"input"`
	Result screening.Result `json:"result"`
}

// Evaluate 启动一个新的状态机，依次输入 answers。对话结束后剩余的回答被忽略。
func Evaluate(script *Script, classifier Classifier, answers []string) Evaluation {
	engine := NewEngine(script, classifier)
	eval := Evaluation{Greeting: engine.Start()}

	first := engine.Process("")
	eval.Turns = append(eval.Turns, Turn{Result: first})

	for _, answer := range answers {
		if engine.IsComplete() {
			break
		}
		res := engine.Process(answer)
		eval.Turns = append(eval.Turns, Turn{Input: answer, Result: res})
		if res.ShouldEnd {
			eval.Outcome = res.IsEligible
		}
	}

	eval.Final = engine.State()
	eval.Complete = engine.IsComplete()
	return eval
}
