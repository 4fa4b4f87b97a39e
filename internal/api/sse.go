package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/oshikatsu-collection/oshidata/internal/event"
	"github.com/oshikatsu-collection/oshidata/internal/logger"
)

var streamTopics = []event.EventType{
	event.EventEpisodesImported,
	event.EventLocationsSeeded,
	event.EventDedupCompleted,
}

// SSEHandler 把事件总线上的消息推给浏览器
func (s *Server) SSEHandler(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// InMemoryBus 是 callback 模式，用一个 channel 做桥接
	clientChan := make(chan event.Event, 16)
	bridge := func(e event.Event) {
		// 非阻塞发送，慢客户端不能拖住总线
		select {
		case clientChan <- e:
		default:
		}
	}

	subIDs := make(map[event.EventType]string, len(streamTopics))
	for _, t := range streamTopics {
		subIDs[t] = s.bus.Subscribe(t, bridge)
	}
	defer func() {
		for t, id := range subIDs {
			s.bus.Unsubscribe(t, id)
		}
		logger.L().Debug("API: SSE client disconnected")
	}()

	c.SSEvent("message", "connected")
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case evt := <-clientChan:
			data, err := json.Marshal(evt.Payload)
			if err != nil {
				logger.L().Warnf("API: SSE marshal %s: %v", evt.Type, err)
				continue
			}
			c.SSEvent(string(evt.Type), string(data))
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
