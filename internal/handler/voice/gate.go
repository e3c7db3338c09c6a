package voice

import "time"

type gateState int

const (
	gateMuted gateState = iota
	gateListening
	gateEnded
)

func (s gateState) String() string {
	switch s {
	case gateListening:
		return "listening"
	case gateEnded:
		return "ended"
	default:
		return "muted"
	}
}

// listeningGate 决定一条转写能否进入状态机。只由会话控制循环访问。
// 只有处于 listening 且收到时间不早于最近一次开闸时间的转写才会被放行，放行即关闸。
type listeningGate struct {
	state    gateState
	openedAt time.Time
	now      func() time.Time
}

func newListeningGate(now func() time.Time) *listeningGate {
	if now == nil {
		now = time.Now
	}
	return &listeningGate{state: gateMuted, now: now}
}

// Open 开始监听。已结束的闸门不会重新打开。
func (g *listeningGate) Open() {
	if g.state == gateEnded {
		return
	}
	g.state = gateListening
	g.openedAt = g.now()
}

// Mute 停止监听。
func (g *listeningGate) Mute() {
	if g.state == gateEnded {
		return
	}
	g.state = gateMuted
}

// End 永久关闭闸门。
func (g *listeningGate) End() {
	g.state = gateEnded
}

// Admit 判断收到于 receivedAt 的转写是否可以处理；放行后闸门立即关闭。
func (g *listeningGate) Admit(receivedAt time.Time) bool {
	if g.state != gateListening || receivedAt.Before(g.openedAt) {
		return false
	}
	g.state = gateMuted
	return true
}

func (g *listeningGate) State() gateState {
	return g.state
}
