package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quickrupee/voicebot/backend/internal/metrics"
	"github.com/quickrupee/voicebot/backend/internal/model/screening"
	speechmodel "github.com/quickrupee/voicebot/backend/internal/model/speech"
	"github.com/quickrupee/voicebot/backend/internal/service/eligibility"
	"github.com/quickrupee/voicebot/backend/internal/service/session"
)

// Transcriber 把来电音频转成文字事件。事件按到达顺序写入 Events()。
type Transcriber interface {
	Connect(ctx context.Context) error
	SendAudio(ctx context.Context, audio []byte) error
	Commit(ctx context.Context) error
	ClearBuffer(ctx context.Context) error
	Events() <-chan speechmodel.TranscriptEvent
	Close() error
}

// AudioSource 为机器人台词提供音频，通常是共享的提示音缓存。
type AudioSource interface {
	GetOrRender(ctx context.Context, text string) ([]byte, error)
}

// userInput 是读循环收到的文本回答及其收到时间。
type userInput struct {
	text       string
	receivedAt time.Time
}

// Session 协调一次连接：它独占一个状态机与一个转写连接，
// 驱动监听闸门，并按固定顺序向来电方输出消息。
type Session struct {
	id          string
	mode        session.Mode
	conn        *websocket.Conn
	engine      *eligibility.Engine
	transcriber Transcriber
	audio       AudioSource
	out         *outboundWriter
	gate        *listeningGate
	inputs      chan userInput
	cfg         Config
	lease       *session.Lease
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// serve 运行会话直到结束、来电方断开或 ctx 被取消，并释放全部资源。
func (s *Session) serve(ctx context.Context, cancel context.CancelFunc) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := s.out.Run(); err != nil {
			s.logger.Warn("outbound write failed", "error", err)
			cancel()
		}
	}()

	connectErr := s.connectTranscriber(ctx)

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		s.readLoop(ctx, cancel)
	}()

	err := s.run(ctx, connectErr)
	switch {
	case err == nil:
		s.logger.Info("conversation finished", "step", s.engine.CurrentStep())
	case errors.Is(err, context.Canceled):
		s.logger.Info("session closed by caller", "step", s.engine.CurrentStep())
	default:
		s.logger.Warn("session ended with error", "error", err)
	}

	if s.engine.Abandon() {
		s.metrics.Outcome(metrics.OutcomeAbandoned, "")
	}
	if s.transcriber != nil {
		if err := s.transcriber.Close(); err != nil {
			s.logger.Debug("transcriber close failed", "error", err)
		}
	}

	cancel()
	s.out.Close()
	<-writerDone
	s.conn.Close()
	<-readerDone
}

// connectTranscriber 在读循环启动前完成，之后 s.transcriber 不再变化。
func (s *Session) connectTranscriber(ctx context.Context) error {
	if s.transcriber == nil {
		return nil
	}
	if err := s.transcriber.Connect(ctx); err != nil {
		s.logger.Warn("transcriber unavailable, continuing without speech input", "error", err)
		_ = s.transcriber.Close()
		s.transcriber = nil
		return err
	}
	return nil
}

func (s *Session) run(ctx context.Context, connectErr error) error {
	if err := s.send(ctx, readyMessage(s.id, string(s.mode))); err != nil {
		return err
	}
	if connectErr != nil {
		if err := s.send(ctx, errorMessage("speech recognition unavailable: "+connectErr.Error())); err != nil {
			return err
		}
	}

	if err := s.greet(ctx); err != nil {
		return err
	}

	var events <-chan speechmodel.TranscriptEvent
	if s.transcriber != nil {
		events = s.transcriber.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				s.logger.Warn("transcriber stream closed")
				events = nil
				continue
			}
			switch evt.Type {
			case speechmodel.EventTranscript:
				if strings.TrimSpace(evt.Text) == "" {
					s.logger.Debug("ignoring empty transcript")
					continue
				}
				done, err := s.handleAnswer(ctx, evt.Text, evt.ReceivedAt)
				if err != nil || done {
					return err
				}
			case speechmodel.EventError:
				if err := s.send(ctx, errorMessage(evt.Message)); err != nil {
					return err
				}
			default:
				s.logger.Debug("transcriber event", "type", evt.Type)
			}
		case in := <-s.inputs:
			done, err := s.handleAnswer(ctx, in.text, in.receivedAt)
			if err != nil || done {
				return err
			}
		}
	}
}

// greet 播放问候语与第一个问题，然后开始监听。
func (s *Session) greet(ctx context.Context) error {
	s.gate.Mute()
	if err := s.send(ctx, signalMessage(outMuteMic)); err != nil {
		return err
	}
	s.clearBuffer(ctx)

	if err := s.speak(ctx, s.engine.Start()); err != nil {
		return err
	}

	first := s.engine.Process("")
	s.lease.UpdateStep(first.Step)
	if err := s.speak(ctx, first.Message); err != nil {
		return err
	}
	return s.listen(ctx)
}

// handleAnswer 处理一条回答，返回对话是否已结束。
func (s *Session) handleAnswer(ctx context.Context, text string, receivedAt time.Time) (bool, error) {
	if !s.gate.Admit(receivedAt) {
		s.metrics.TranscriptDiscarded()
		s.logger.Debug("discarding transcript while not listening", "gate", s.gate.State(), "text", text)
		return false, nil
	}

	if err := s.send(ctx, transcriptMessage(text)); err != nil {
		return false, err
	}

	res := s.engine.Process(text)
	s.lease.UpdateStep(res.Step)
	if res.IsValid {
		s.logger.Info("answer accepted", "step", res.Step, "should_end", res.ShouldEnd)
	} else {
		s.metrics.Reprompt()
		s.logger.Info("ambiguous answer, asking again", "step", res.Step, "text", text)
	}

	if err := s.send(ctx, stateUpdateMessage(res)); err != nil {
		return false, err
	}

	if err := sleep(ctx, s.cfg.DrainDelay); err != nil {
		return false, err
	}
	s.gate.Mute()
	if err := s.send(ctx, signalMessage(outMuteMic)); err != nil {
		return false, err
	}
	s.clearBuffer(ctx)

	if res.Message != "" {
		if err := s.speak(ctx, res.Message); err != nil {
			return false, err
		}
	}

	if !res.ShouldEnd {
		return false, s.listen(ctx)
	}

	s.gate.End()
	s.recordOutcome(res)
	if err := sleep(ctx, s.cfg.EndGrace); err != nil {
		return false, err
	}
	return true, s.send(ctx, endMessage(res.IsEligible))
}

// listen 先打开闸门再通知来电方取消静音，使针对 unmute 的回答不会早于开闸时间。
func (s *Session) listen(ctx context.Context) error {
	s.gate.Open()
	return s.send(ctx, signalMessage(outUnmuteMic))
}

// speak 发送台词文本与音频。渲染失败时只发文本并报告错误，对话继续。
func (s *Session) speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	if err := s.send(ctx, botMessage(text)); err != nil {
		return err
	}
	if s.audio == nil {
		return nil
	}

	audio, err := s.audio.GetOrRender(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("speech render failed, sending text only", "error", err)
		return s.send(ctx, errorMessage("audio unavailable for this message"))
	}
	return s.send(ctx, audioMessage(audio))
}

func (s *Session) clearBuffer(ctx context.Context) {
	if s.transcriber == nil {
		return
	}
	if err := s.transcriber.ClearBuffer(ctx); err != nil {
		s.logger.Warn("clear transcriber buffer failed", "error", err)
	}
}

func (s *Session) recordOutcome(res screening.Result) {
	if res.IsEligible != nil && *res.IsEligible {
		s.metrics.Outcome(metrics.OutcomeEligible, "")
		return
	}
	s.metrics.Outcome(metrics.OutcomeNotEligible, string(res.RejectionReason))
}

func (s *Session) send(ctx context.Context, msg map[string]any) error {
	return s.out.Send(ctx, msg)
}

// readLoop 读取来电方消息。音频直接转发给转写服务，文本回答交给控制循环。
func (s *Session) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("read error", "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		receivedAt := time.Now()

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = s.send(ctx, errorMessage("invalid message"))
			continue
		}

		switch msg.Type {
		case msgAudio:
			s.forwardAudio(ctx, msg.Data)
		case msgAudioEnd:
			if s.transcriber != nil {
				if err := s.transcriber.Commit(ctx); err != nil {
					s.logger.Warn("commit audio failed", "error", err)
				}
			}
		case msgUserResponse:
			select {
			case s.inputs <- userInput{text: msg.Text, receivedAt: receivedAt}:
			case <-ctx.Done():
				return
			}
		case msgPing:
			_ = s.send(ctx, signalMessage(outPong))
		case msgEnd:
			s.logger.Info("caller ended the session")
			return
		default:
			_ = s.send(ctx, errorMessage("unsupported message type: "+msg.Type))
		}
	}
}

func (s *Session) forwardAudio(ctx context.Context, data string) {
	if data == "" {
		return
	}
	if s.transcriber == nil {
		s.logger.Debug("dropping audio, no transcriber")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		_ = s.send(ctx, errorMessage("invalid audio payload"))
		return
	}
	if err := s.transcriber.SendAudio(ctx, audio); err != nil {
		s.logger.Warn("forward audio failed", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
