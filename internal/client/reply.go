package client

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

// ReplyTimeout bounds a whole SendReply call.
const ReplyTimeout = 3 * time.Second

// SendReply connects to the agent at url as an ordinary client, sends one
// ai_reply, and closes. The agent rebroadcasts it to every phone.
func SendReply(ctx context.Context, url, summary, content string) error {
	ctx, cancel := context.WithTimeout(ctx, ReplyTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperrors.ConnectTimeout(url, err)
		}
		return apperrors.ConnectFailed(url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if err := conn.WriteJSON(protocol.NewAIReply(summary, content)); err != nil {
		return apperrors.Wrap(apperrors.CodeClientNotConnected, "send ai_reply failed", err)
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}
