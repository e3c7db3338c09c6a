package speech

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// ConnectionOptions 上游 WebSocket 连接参数
type ConnectionOptions struct {
	HandshakeTimeout time.Duration // 握手超时
	ReadTimeout      time.Duration // 读取超时，收到 pong 时顺延
	WriteTimeout     time.Duration // 单次写入超时
	PingInterval     time.Duration // Ping 间隔
}

// DefaultConnectionOptions 默认连接参数
func DefaultConnectionOptions() *ConnectionOptions {
	return &ConnectionOptions{
		HandshakeTimeout: 30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// dialWebSocket 建立单次连接，不做重试。
func dialWebSocket(ctx context.Context, url string, header http.Header, opts *ConnectionOptions) (*websocket.Conn, error) {
	if opts == nil {
		opts = DefaultConnectionOptions()
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		return nil
	})

	return conn, nil
}

// pingLoop 定期发送 ping，失败即退出，由读循环感知断线。
func pingLoop(ctx context.Context, conn *websocket.Conn, opts *ConnectionOptions) {
	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(opts.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// IsConnectionClosed 判断错误是否只是连接正常关闭。
func IsConnectionClosed(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}
