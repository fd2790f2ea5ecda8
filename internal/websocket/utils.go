package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/exstem-grader/internal/response"
)

const (
	writeWait = 10 * time.Second
	readWait  = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse carrying an API error code.
func WriteError(conn *websocket.Conn, code response.ErrCode, fields map[string]string) error {
	return WriteTyped(conn, ErrorResponse{
		Event:  EventError,
		Code:   code,
		Error:  response.GetMessage(code),
		Fields: fields,
	})
}

// ReadMessage reads one raw frame with a read deadline.
func ReadMessage(conn *websocket.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(readWait))
	_, data, err := conn.ReadMessage()
	return data, err
}
