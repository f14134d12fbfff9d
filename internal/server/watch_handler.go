package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mailboxgw/internal/constants"
	"mailboxgw/internal/mailbox"
	"mailboxgw/internal/metrics"
)

const (
	// 写超时
	writeWait = 10 * time.Second
	// 客户端 pong 的等待时间
	pongWait = 60 * time.Second
	// ping 周期，须小于 pongWait
	pingPeriod = (pongWait * 9) / 10
)

// 未配置时的订阅参数
const (
	defaultWatchInterval = 2 * time.Second
	defaultWatchTimeout  = 5 * time.Minute
)

// newUpgrader 浏览器发起的握手只接受同源或白名单 Origin；
// 不带 Origin 的非浏览器客户端（curl、agent）直接放行
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
}

// StatusFrame 推送给订阅者的一帧
type StatusFrame struct {
	SessionID    string `json:"session_id"`
	RequestID    string `json:"request_id"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	ResponseEDN  string `json:"response_edn,omitempty"`
	ResponsePath string `json:"response_path,omitempty"`
	Error        string `json:"error,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// WatchConfig 轮询间隔、最长订阅时间和允许的浏览器 Origin
type WatchConfig struct {
	Interval       time.Duration
	Timeout        time.Duration
	AllowedOrigins []string
}

func (wc WatchConfig) withDefaults() WatchConfig {
	if wc.Interval <= 0 {
		wc.Interval = defaultWatchInterval
	}
	if wc.Timeout <= 0 {
		wc.Timeout = defaultWatchTimeout
	}
	return wc
}

// StatusWatchHandler 订阅单个请求的状态。
// 按间隔调用 CheckStatus，状态变化时推送一帧，到达终态或超时后关闭；
// 存储故障推送 error 帧后关闭，不做重试。
func StatusWatchHandler(client *mailbox.Client, wc WatchConfig, log zerolog.Logger) gin.HandlerFunc {
	wc = wc.withDefaults()
	upgrader := newUpgrader(wc.AllowedOrigins)

	return func(c *gin.Context) {
		sessionID := c.Param("session")
		requestID := c.Param("id")
		for _, v := range []struct{ field, id string }{{"session_id", sessionID}, {"request_id", requestID}} {
			if err := mailbox.ValidateIdentifier(v.field, v.id); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrInvalidParams, "field": v.field})
				return
			}
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket升级失败")
			return
		}
		defer ws.Close()

		metrics.WatchSessions.Inc()
		defer metrics.WatchSessions.Dec()

		ctx, cancel := context.WithTimeout(c.Request.Context(), wc.Timeout)
		defer cancel()

		// 读循环只处理 pong 和关闭帧，客户端断开时取消订阅
		go readPump(ws, cancel)

		watchLog := log.With().Str("session_id", sessionID).Str("request_id", requestID).Logger()
		watchLog.Info().Msg("开始订阅请求状态")
		watchStatus(ctx, ws, client, sessionID, requestID, wc.Interval, watchLog)
	}
}

func watchStatus(ctx context.Context, ws *websocket.Conn, client *mailbox.Client, sessionID, requestID string, interval time.Duration, log zerolog.Logger) {
	poll := time.NewTicker(interval)
	defer poll.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	var last mailbox.State
	for {
		res, err := client.CheckStatus(ctx, sessionID, requestID)
		if err != nil {
			// 查询途中超时或客户端断开，按正常结束处理
			if ctx.Err() != nil {
				closeSocket(ws, websocket.CloseNormalClosure, "watch timeout")
				return
			}
			log.Error().Err(err).Msg("查询状态失败")
			_ = writeFrame(ws, StatusFrame{
				SessionID: sessionID,
				RequestID: requestID,
				Error:     constants.ErrStoreUnavailable,
				Timestamp: time.Now().Unix(),
			})
			closeSocket(ws, websocket.CloseInternalServerErr, "store unavailable")
			return
		}

		if res.State != last {
			last = res.State
			if err := writeFrame(ws, frameFor(res)); err != nil {
				log.Debug().Err(err).Msg("推送状态失败，连接已断开")
				return
			}
		}
		if res.State.Terminal() {
			log.Info().Str("status", string(res.State)).Msg("请求已到达终态，结束订阅")
			closeSocket(ws, websocket.CloseNormalClosure, string(res.State))
			return
		}

		select {
		case <-ctx.Done():
			closeSocket(ws, websocket.CloseNormalClosure, "watch timeout")
			return
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case <-poll.C:
		}
	}
}

func frameFor(res *mailbox.StatusResult) StatusFrame {
	return StatusFrame{
		SessionID:    res.SessionID,
		RequestID:    res.MessageID,
		Status:       string(res.State),
		Message:      res.Message,
		ResponseEDN:  string(res.Response),
		ResponsePath: res.ResponsePath,
		Timestamp:    time.Now().Unix(),
	}
}

func writeFrame(ws *websocket.Conn, frame StatusFrame) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(frame)
}

func closeSocket(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
}

func readPump(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
