package gateway

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// HandleHertzConnection upgrades the request and streams events of the
// conversations named by the conversationId query parameter. The parameter
// may repeat or hold a comma separated list; more can be added later with
// subscribe frames.
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.cfg.MaxConnNum {
		c.String(consts.StatusServiceUnavailable, "connection limit exceeded")
		return
	}

	conversationIds := parseConversationIds(c.QueryArgs().PeekAll(QueryConversationId))
	if len(conversationIds) > MaxSubscriptions {
		c.String(consts.StatusBadRequest, ErrTooManySubscriptions.Error())
		return
	}
	userId := c.Query(QueryUserId)

	err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
		wsConn := newHertzConn(conn, s.cfg.MaxMessageSize, PongWait, PingPeriod)
		client, err := s.Attach(wsConn, userId, conversationIds)
		if err != nil {
			log.CtxWarn(ctx, "attach client failed: user_id=%s, error=%v", userId, err)
			_ = wsConn.Close()
			return
		}

		// confirm initial subscriptions like frame driven ones
		for _, id := range conversationIds {
			if err := client.writeEvent(ackEvent(EventSubscribed, id, nil)); err != nil {
				log.CtxDebug(ctx, "ack initial subscription failed: conn_id=%s, error=%v", client.ConnId, err)
			}
		}

		// blocks until the peer goes away
		client.readLoop()
	})
	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
	}
}

// parseConversationIds flattens repeated and comma separated values, dropping duplicates
func parseConversationIds(values [][]byte) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(values))
	for _, v := range values {
		for _, id := range strings.Split(string(v), ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
