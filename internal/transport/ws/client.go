package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"gridduel.ai/internal/protocol"
)

// ErrGameOver is returned by Run after a GAME_END frame.
var ErrGameOver = errors.New("game over")

// Handler decides on one observation. A nil ActMsg sends nothing this tick.
type Handler func(obs *protocol.ObsMsg) (*protocol.ActMsg, error)

type ClientConfig struct {
	URL       string
	AgentName string
	Token     string
	Header    http.Header

	// Validator, when set, checks every inbound frame before decoding.
	Validator *protocol.Validator

	OnAck     func(protocol.AckMsg)
	OnGameEnd func(protocol.GameEndMsg)
}

// Client is the agent side of the arena protocol.
type Client struct {
	cfg  ClientConfig
	log  *log.Logger
	conn *websocket.Conn

	welcome protocol.WelcomeMsg
}

// Dial connects and completes the HELLO/WELCOME handshake.
func Dial(ctx context.Context, cfg ClientConfig, logger *log.Logger) (*Client, error) {
	if cfg.AgentName == "" {
		cfg.AgentName = "agent"
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	c := &Client{cfg: cfg, log: logger, conn: conn}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       cfg.AgentName,
	}
	if cfg.Token != "" {
		hello.Auth = &protocol.HelloAuth{Token: cfg.Token}
	}
	if err := writeJSON(conn, hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read welcome: %w", err)
	}
	base, err := c.check(msg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if base.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", base.Type)
	}
	if err := json.Unmarshal(msg, &c.welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("decode welcome: %w", err)
	}
	return c, nil
}

func (c *Client) Welcome() protocol.WelcomeMsg { return c.welcome }

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) check(msg []byte) (protocol.BaseMessage, error) {
	if c.cfg.Validator != nil {
		base, err := c.cfg.Validator.Validate(msg)
		if err != nil {
			return base, fmt.Errorf("invalid frame: %w", err)
		}
		return base, nil
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return base, fmt.Errorf("decode: %w", err)
	}
	return base, nil
}

// Run reads frames until ctx is done, the connection fails, or the match
// ends. Malformed frames are logged and skipped.
func (c *Client) Run(ctx context.Context, h Handler) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
	defer stop()

	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		base, err := c.check(msg)
		if err != nil {
			c.log.Printf("drop frame: %v", err)
			continue
		}

		switch base.Type {
		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				c.log.Printf("decode obs: %v", err)
				continue
			}
			act, err := h(&obs)
			if err != nil {
				c.log.Printf("tick=%d handler: %v", obs.Tick, err)
				continue
			}
			if act == nil {
				continue
			}
			if err := writeJSON(c.conn, act); err != nil {
				return fmt.Errorf("write act: %w", err)
			}

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.Accepted {
				c.log.Printf("tick=%d rejected: %s %s", ack.AckFor, ack.Code, ack.Message)
			}
			if c.cfg.OnAck != nil {
				c.cfg.OnAck(ack)
			}

		case protocol.TypeGameEnd:
			var end protocol.GameEndMsg
			if err := json.Unmarshal(msg, &end); err != nil {
				continue
			}
			if c.cfg.OnGameEnd != nil {
				c.cfg.OnGameEnd(end)
			}
			return ErrGameOver

		default:
			c.log.Printf("ignore %s", base.Type)
		}
	}
}
