package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gridduel.ai/internal/protocol"
	"gridduel.ai/internal/sim/arena"
)

const (
	writeTimeout     = 5 * time.Second
	readTimeout      = 60 * time.Second
	handshakeTimeout = 5 * time.Second
	outQueue         = 16
)

type Server struct {
	arena     *arena.Arena
	log       *log.Logger
	validator *protocol.Validator

	// handshakeTimeout bounds the HELLO read and the wait for a seat.
	handshakeTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(a *arena.Arena, v *protocol.Validator, logger *log.Logger) *Server {
	return &Server{
		arena:     a,
		log:       logger,
		validator: v,

		handshakeTimeout: handshakeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, out := s.handshake(conn)
		if agentID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			act, code, reason := s.decodeAct(msg)
			if code != "" {
				s.reject(out, act.Tick, code, reason)
				continue
			}
			act.AgentID = agentID
			select {
			case s.arena.Inbox() <- arena.ActionEnvelope{AgentID: agentID, Act: act}:
			case <-ctx.Done():
			}
		}

		s.release(agentID)
	}
}

func (s *Server) decodeAct(msg []byte) (protocol.ActMsg, string, string) {
	var act protocol.ActMsg
	if s.validator != nil {
		base, err := s.validator.Validate(msg)
		if err != nil {
			_ = json.Unmarshal(msg, &act)
			return act, protocol.ErrProtoBadRequest, err.Error()
		}
		if base.Type != protocol.TypeAct {
			return act, protocol.ErrProtoBadRequest, "expected ACT"
		}
	}
	if err := json.Unmarshal(msg, &act); err != nil {
		return act, protocol.ErrProtoBadRequest, "bad json"
	}
	if act.Type != protocol.TypeAct {
		return act, protocol.ErrProtoBadRequest, "expected ACT"
	}
	if act.ProtocolVersion != protocol.Version {
		return act, protocol.ErrProtoBadRequest, "bad protocol_version"
	}
	return act, "", ""
}

func (s *Server) reject(out chan []byte, tick uint64, code, reason string) {
	b, err := json.Marshal(protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          tick,
		Code:            code,
		Message:         reason,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) (agentID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return "", nil
	}
	if s.validator != nil {
		if _, err := s.validator.Validate(msg); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
			return "", nil
		}
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", nil
	}

	out = make(chan []byte, outQueue)
	respCh := make(chan arena.JoinResponse, 1)
	select {
	case s.arena.Join() <- arena.JoinRequest{Name: hello.AgentName, Out: out, Resp: respCh}:
	case <-time.After(s.handshakeTimeout):
		closeWith(conn, websocket.CloseTryAgainLater, "arena busy")
		return "", nil
	}
	var resp arena.JoinResponse
	select {
	case resp = <-respCh:
	case <-time.After(s.handshakeTimeout):
		closeWith(conn, websocket.CloseTryAgainLater, "arena not ticking")
		// The join is already queued; free the seat once it is granted.
		go func() {
			if late := <-respCh; late.Code == "" {
				s.release(late.Welcome.AgentID)
			}
		}()
		return "", nil
	}
	if resp.Code != "" {
		s.log.Printf("join refused name=%s code=%s", hello.AgentName, resp.Code)
		closeWith(conn, websocket.CloseTryAgainLater, resp.Message)
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.log.Printf("welcome id=%s: %v", resp.Welcome.AgentID, err)
		s.release(resp.Welcome.AgentID)
		return "", nil
	}
	return resp.Welcome.AgentID, out
}

// release gives up a seat held by a connection that is going away.
func (s *Server) release(agentID string) {
	select {
	case s.arena.Leave() <- agentID:
	case <-time.After(writeTimeout):
		s.log.Printf("leave id=%s: arena not draining", agentID)
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
