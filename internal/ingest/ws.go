package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// PriceHandler is called for each trade-price tick received from the stream.
type PriceHandler func(PriceUpdate)

// MarketStream is a WebSocket client for the Polymarket CLOB market channel.
// It subscribes to last trade prices for a set of outcome tokens and invokes
// the registered handler on each tick, reconnecting with backoff on
// disconnect.
type MarketStream struct {
	wsURL    string
	assetIDs []string
	onPrice  PriceHandler
	logger   *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

// NewMarketStream creates a stream that will subscribe to the given asset IDs.
//
// wsURL is the CLOB WebSocket endpoint, e.g.
// "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewMarketStream(wsURL string, assetIDs []string, onPrice PriceHandler, logger *slog.Logger) *MarketStream {
	return &MarketStream{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		onPrice:  onPrice,
		logger:   logger.With(slog.String("component", "market_stream")),
		done:     make(chan struct{}),
	}
}

// Run connects, subscribes, and reads ticks until ctx is cancelled or Close
// is called. Disconnects are retried with exponential backoff.
func (s *MarketStream) Run(ctx context.Context) error {
	if len(s.assetIDs) == 0 {
		s.logger.Info("no asset IDs to subscribe, exiting")
		return nil
	}

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		err := s.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-s.done:
			return nil
		default:
		}

		s.logger.Warn("market stream disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// Close stops the stream. Safe to call more than once.
func (s *MarketStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})
}

// runConnection dials once, subscribes, and reads until the connection drops
// or the stream is shut down.
func (s *MarketStream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("ingest/ws: connect: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.logger.Info("market stream subscribed", slog.Int("assets", len(s.assetIDs)))

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.pingLoop(conn, pingDone)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ingest/ws: read: %w", err)
		}
		s.handleMessage(message)
	}
}

func (s *MarketStream) subscribe(conn *websocket.Conn) error {
	cmd := wsCommand{
		Type:    "subscribe",
		Channel: "last_trade_price",
		Assets:  s.assetIDs,
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("ingest/ws: marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ingest/ws: subscribe: %w", err)
	}
	return nil
}

// pingLoop sends periodic ping messages to keep the connection alive.
func (s *MarketStream) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw frame and dispatches trade-price ticks. Frames
// of other types and unparseable frames are dropped.
func (s *MarketStream) handleMessage(raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}

	msgType := msg.MsgType
	if msgType == "" {
		msgType = msg.EventType
	}
	if msgType != "last_trade_price" {
		return
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return
	}
	size, _ := strconv.ParseFloat(msg.Size, 64)

	if s.onPrice != nil {
		s.onPrice(PriceUpdate{
			AssetID: msg.AssetID,
			Market:  msg.Market,
			Price:   price,
			Size:    size,
		})
	}
}
