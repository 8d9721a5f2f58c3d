package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/oreflow/pkg/milp/branchbound"
)

// Stream message types.
const (
	MsgProgress = "progress"
	MsgResult   = "result"
	MsgError    = "error"
)

// StreamMessage is one server-to-client websocket message.
type StreamMessage struct {
	Type string `json:"type"`

	// progress
	Nodes        int     `json:"nodes,omitempty"`
	Incumbent    float64 `json:"incumbent,omitempty"`
	HasIncumbent bool    `json:"has_incumbent,omitempty"`
	ElapsedMS    int64   `json:"elapsed_ms,omitempty"`

	Result *SolveResponse `json:"result,omitempty"`
	Error  *ErrorBody     `json:"error,omitempty"`
}

const (
	streamQueue        = 32
	streamWriteTimeout = 5 * time.Second
	streamReadTimeout  = 10 * time.Second
)

// handleStream upgrades to a websocket, reads one SolveRequest, streams
// progress while the solver runs, then sends the result and closes. Closing
// the socket early cancels the solve.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	req, err := s.decodeRequest(msg)
	if err != nil {
		body := newErrorBody(err)
		writeFinal(conn, StreamMessage{Type: MsgError, Error: &body})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: any message or close from the client after the request
	// cancels the solve.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	// Writer: progress is dropped rather than stalling the solver.
	out := make(chan StreamMessage, streamQueue)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range out {
			b, err := json.Marshal(m)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				cancel()
				return
			}
		}
	}()

	opts := s.options(req)
	opts.Progress = func(p branchbound.Progress) {
		m := StreamMessage{
			Type:         MsgProgress,
			Nodes:        p.Nodes,
			Incumbent:    p.Incumbent,
			HasIncumbent: p.HasValue,
			ElapsedMS:    p.Elapsed.Milliseconds(),
		}
		select {
		case out <- m:
		default:
		}
	}

	res, err := s.runner.Execute(ctx, opts)
	final := StreamMessage{Type: MsgResult}
	if err != nil {
		body := newErrorBody(err)
		final = StreamMessage{Type: MsgError, Error: &body}
	} else {
		resp := newResponse(res)
		final.Result = &resp
	}
	select {
	case out <- final:
	case <-done:
	}
	close(out)
	<-done

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

func writeFinal(conn *websocket.Conn, m StreamMessage) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, m.Error.Message), time.Now().Add(time.Second))
}
