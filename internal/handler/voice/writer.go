package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errWriterClosed = errors.New("outbound writer closed")

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// outboundWriter 是连接上唯一的写者，按入队顺序发送消息并定期 ping。
type outboundWriter struct {
	ws           wsWriter
	queue        chan []byte
	flush        chan struct{}
	done         chan struct{}
	pingInterval time.Duration
	writeTimeout time.Duration
	flushOnce    sync.Once
}

func newOutboundWriter(ws wsWriter, pingInterval, writeTimeout time.Duration, queueSize int) *outboundWriter {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &outboundWriter{
		ws:           ws,
		queue:        make(chan []byte, queueSize),
		flush:        make(chan struct{}),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

// Send 序列化并入队一条消息。
func (w *outboundWriter) Send(ctx context.Context, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}

	select {
	case <-w.done:
		return errWriterClosed
	default:
	}

	select {
	case w.queue <- payload:
		return nil
	case <-w.done:
		return errWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 持续写出消息，直到 Close 被调用或写入失败。
func (w *outboundWriter) Run() error {
	defer close(w.done)

	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-w.queue:
			if err := w.write(payload); err != nil {
				return err
			}
		case <-ticker.C:
			if err := w.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout)); err != nil {
				return err
			}
		case <-w.flush:
			return w.drain()
		}
	}
}

// Close 请求写出剩余消息并发送关闭帧，然后等待 Run 返回。
func (w *outboundWriter) Close() {
	w.flushOnce.Do(func() { close(w.flush) })
	<-w.done
}

func (w *outboundWriter) drain() error {
	for {
		select {
		case payload := <-w.queue:
			if err := w.write(payload); err != nil {
				return err
			}
		default:
			return w.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(w.writeTimeout),
			)
		}
	}
}

func (w *outboundWriter) write(payload []byte) error {
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, payload)
}
