package voice

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordedFrame struct {
	kind int
	data []byte
}

type fakeWS struct {
	mu       sync.Mutex
	frames   []recordedFrame
	failNext error
}

func (f *fakeWS) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWS) WriteMessage(kind int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		return f.failNext
	}
	f.frames = append(f.frames, recordedFrame{kind: kind, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeWS) WriteControl(kind int, data []byte, _ time.Time) error {
	return f.WriteMessage(kind, data)
}

func (f *fakeWS) snapshot() []recordedFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedFrame(nil), f.frames...)
}

func TestOutboundWriterPreservesOrderAndClosesCleanly(t *testing.T) {
	ws := &fakeWS{}
	w := newOutboundWriter(ws, time.Hour, time.Second, 8)

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run() }()

	ctx := context.Background()
	for _, kind := range []string{outMuteMic, outBotMessage, outUnmuteMic} {
		if err := w.Send(ctx, signalMessage(kind)); err != nil {
			t.Fatalf("send %s: %v", kind, err)
		}
	}
	w.Close()

	if err := <-runErr; err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	frames := ws.snapshot()
	if len(frames) != 4 {
		t.Fatalf("expected 3 messages and a close frame, got %d frames", len(frames))
	}
	for i, want := range []string{outMuteMic, outBotMessage, outUnmuteMic} {
		var msg map[string]any
		if err := json.Unmarshal(frames[i].data, &msg); err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if msg["type"] != want {
			t.Fatalf("frame %d: expected %s, got %v", i, want, msg["type"])
		}
	}
	if frames[3].kind != websocket.CloseMessage {
		t.Fatalf("expected trailing close frame, got kind %d", frames[3].kind)
	}

	if err := w.Send(ctx, signalMessage(outPong)); !errors.Is(err, errWriterClosed) {
		t.Fatalf("expected errWriterClosed after close, got %v", err)
	}
}

func TestOutboundWriterReportsWriteFailure(t *testing.T) {
	boom := errors.New("broken pipe")
	ws := &fakeWS{failNext: boom}
	w := newOutboundWriter(ws, time.Hour, time.Second, 1)

	runErr := make(chan error, 1)
	go func() { runErr <- w.Run() }()

	if err := w.Send(context.Background(), signalMessage(outPong)); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case err := <-runErr:
		if !errors.Is(err, boom) {
			t.Fatalf("expected write failure, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("writer did not stop after write failure")
	}

	w.Close()
}

func TestOutboundWriterSendHonoursContext(t *testing.T) {
	w := newOutboundWriter(&fakeWS{}, time.Hour, time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Send(ctx, signalMessage(outPong)); err != nil {
		t.Fatalf("first send should fit in the queue: %v", err)
	}
	cancel()
	if err := w.Send(ctx, signalMessage(outPong)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
