package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/apperror"
)

// channel serializes writes to one websocket connection. gorilla/websocket
// allows a single concurrent writer only.
type channel struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

func newChannel(conn *websocket.Conn, writeWait time.Duration) *channel {
	return &channel{conn: conn, writeWait: writeWait}
}

func (that *channel) Send(frame []byte) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.conn.SetWriteDeadline(time.Now().Add(that.writeWait)); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", apperror.ErrTransport, err)
	}

	if err := that.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: write frame: %w", apperror.ErrTransport, err)
	}

	return nil
}

func (that *channel) ping() error {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(that.writeWait))
}

// Close - sends a close frame once and drops the connection. Safe to call repeatedly.
func (that *channel) Close() error {
	var err error

	that.closeOnce.Do(func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = that.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(that.writeWait))

		err = that.conn.Close()
	})

	return err
}
