package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
)

// RPCConnection is an active WebSocket connection. Incoming messages are
// delivered on ProcessSink; outgoing ones are queued with Write.
type RPCConnection struct {
	connectionID  string
	websocketConn *websocket.Conn
	logger        log.Logger
	// onMessageSentHandlers run after every successful write
	onMessageSentHandlers []func()

	writeSink   chan []byte
	processSink chan []byte
	// closeConnCh asks Serve to drop the connection
	closeConnCh chan struct{}
}

func NewRPCConnection(connID string, websocketConn *websocket.Conn, logger log.Logger, onMessageSentHandlers ...func()) *RPCConnection {
	return &RPCConnection{
		connectionID:          connID,
		websocketConn:         websocketConn,
		logger:                logger.WithKV("connectionID", connID),
		onMessageSentHandlers: onMessageSentHandlers,

		writeSink:   make(chan []byte, 10),
		processSink: make(chan []byte, 10),
		closeConnCh: make(chan struct{}, 1),
	}
}

// Serve reads and writes until the socket closes, ctx is cancelled or Close
// is called. abortParents is invoked on return.
func (conn *RPCConnection) Serve(parentCtx context.Context, abortParents func()) {
	defer abortParents()

	ctx, cancel := context.WithCancel(parentCtx)
	wg := &sync.WaitGroup{}
	wg.Add(2)
	abortOthers := func() {
		cancel()
		wg.Done()
	}

	go conn.readMessages(cancel)
	go conn.writeMessages(ctx, abortOthers)
	go conn.waitForConnClose(ctx, abortOthers)

	wg.Wait()
	if err := conn.websocketConn.Close(); err != nil {
		conn.logger.Debug("error closing WebSocket connection", "error", err)
	}
}

func (conn *RPCConnection) ConnectionID() string {
	return conn.connectionID
}

func (conn *RPCConnection) ProcessSink() <-chan []byte {
	return conn.processSink
}

func (conn *RPCConnection) readMessages(abortOthers func()) {
	defer abortOthers()
	defer close(conn.processSink)

	for {
		_, messageBytes, err := conn.websocketConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				conn.logger.Error("WebSocket connection closed with unexpected reason", "error", err)
			}
			return
		}

		if len(messageBytes) == 0 {
			conn.logger.Debug("received empty message, skipping")
			continue
		}
		conn.processSink <- messageBytes
	}
}

func (conn *RPCConnection) writeMessages(ctx context.Context, abortOthers context.CancelFunc) {
	defer abortOthers()

	for {
		select {
		case <-ctx.Done():
			conn.logger.Debug("context done, stopping message writing")
			return
		case messageBytes := <-conn.writeSink:
			if len(messageBytes) == 0 {
				continue
			}

			if err := conn.websocketConn.SetWriteDeadline(time.Now().Add(defaultRPCMessageWriteDuration)); err != nil {
				conn.logger.Error("error setting write deadline", "error", err)
				return
			}
			if err := conn.websocketConn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				conn.logger.Error("error writing response", "error", err)
				return
			}

			for _, handler := range conn.onMessageSentHandlers {
				handler()
			}
		}
	}
}

func (conn *RPCConnection) waitForConnClose(ctx context.Context, abortOthers context.CancelFunc) {
	defer abortOthers()

	select {
	case <-ctx.Done():
		conn.logger.Debug("context done, stopping connection close wait")
	case <-conn.closeConnCh:
		conn.logger.Info("WebSocket connection closed by server")
	}
}

// Write queues a message. If the queue stays full for
// defaultRPCMessageWriteDuration the client is considered unresponsive and
// the connection is closed.
func (conn *RPCConnection) Write(message []byte) {
	select {
	case conn.writeSink <- message:
	case <-time.After(defaultRPCMessageWriteDuration):
		conn.logger.Warn("write queue is full, closing connection")
		conn.Close()
	}
}

// Close asks the connection to shut down. It never blocks.
func (conn *RPCConnection) Close() {
	select {
	case conn.closeConnCh <- struct{}{}:
	default:
	}
}

// rpcConnectionHub tracks active connections so they can be closed on shutdown.
type rpcConnectionHub struct {
	connections map[string]*RPCConnection
	mu          sync.RWMutex
}

func newRPCConnectionHub() *rpcConnectionHub {
	return &rpcConnectionHub{
		connections: make(map[string]*RPCConnection),
	}
}

func (hub *rpcConnectionHub) Add(conn *RPCConnection) error {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	connID := conn.ConnectionID()
	if _, exists := hub.connections[connID]; exists {
		return fmt.Errorf("connection with ID %s already exists", connID)
	}
	hub.connections[connID] = conn
	return nil
}

func (hub *rpcConnectionHub) Get(connID string) *RPCConnection {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	return hub.connections[connID]
}

func (hub *rpcConnectionHub) Remove(connID string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	delete(hub.connections, connID)
}

func (hub *rpcConnectionHub) Count() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	return len(hub.connections)
}

// CloseAll signals every tracked connection to close.
func (hub *rpcConnectionHub) CloseAll() {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for _, conn := range hub.connections {
		conn.Close()
	}
}
