package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paiban/rollingstock/internal/broker"
	"github.com/paiban/rollingstock/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// Events 通过 WebSocket 推送最优解事件，直到客户端断开
func (h *ScheduleHandler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := h.broker.Subscribe(ProblemKey)
	defer h.broker.Unsubscribe(ProblemKey, ch)

	log := logger.WithContext(r.Context())
	log.Debug().Msg("事件订阅已建立")

	// 读循环只处理控制帧，客户端关闭时退出
	closed := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	// 先推送当前快照
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(h.currentEvent()); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Debug().Msg("事件订阅已关闭")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// currentEvent 连接建立时的初始快照
func (h *ScheduleHandler) currentEvent() broker.Event {
	runID := ""
	if run := h.sessions.Handle(ProblemKey); run != nil {
		runID = run.ID
	}
	return broker.NewBestSolutionEvent(ProblemKey, runID, h.current(), true)
}
