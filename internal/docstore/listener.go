package docstore

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// listenTargetID identifies the single document target of a listen channel
const listenTargetID = 1

type listenRequest struct {
	AddTarget listenTarget `json:"addTarget"`
}

type listenTarget struct {
	TargetID  int             `json:"targetId"`
	Documents documentsTarget `json:"documents"`
}

type documentsTarget struct {
	Documents []string `json:"documents"`
}

func newListenRequest(ref Ref) listenRequest {
	return listenRequest{
		AddTarget: listenTarget{
			TargetID:  listenTargetID,
			Documents: documentsTarget{Documents: []string{ref.Path()}},
		},
	}
}

// listenHandle owns one websocket connection and its reader goroutine
type listenHandle struct {
	conn *websocket.Conn
	ref  Ref

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newListenHandle(conn *websocket.Conn, ref Ref) *listenHandle {
	return &listenHandle{
		conn: conn,
		ref:  ref,
		done: make(chan struct{}),
	}
}

func (h *listenHandle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		_ = h.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		h.closeErr = h.conn.Close()
	})
	return h.closeErr
}

func (h *listenHandle) Done() <-chan struct{} {
	return h.done
}

// read delivers document changes until the connection fails or is closed
func (h *listenHandle) read(onUpdate UpdateFunc) {
	defer close(h.done)

	for {
		_, msg, err := h.conn.ReadMessage()
		if err != nil {
			if !h.closed.Load() {
				slog.Warn("Listen channel stopped", "document", h.ref.Path(), "error", err)
				_ = h.conn.Close()
			}
			return
		}

		resp := gjson.ParseBytes(msg)
		switch {
		case resp.Get("documentChange").Exists():
			doc := resp.Get("documentChange.document")
			if !doc.Exists() {
				slog.Warn("Document change without a document", "document", h.ref.Path())
				continue
			}
			onUpdate([]byte(doc.Raw))
		case resp.Get("documentDelete").Exists(), resp.Get("documentRemove").Exists():
			slog.Warn("Listened document was removed", "document", h.ref.Path())
		case resp.Get("error").Exists():
			slog.Warn("Listen channel reported an error",
				"document", h.ref.Path(),
				"message", resp.Get("error.message").String(),
			)
		}
	}
}
