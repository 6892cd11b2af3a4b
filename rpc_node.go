package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

const tracerName = "github.com/erc7824/nitrolite/claimsigner/rpc"

var getValidator = sync.OnceValue(func() *validator.Validate {
	validate := validator.New()

	if err := validate.RegisterValidation("bigint", func(fl validator.FieldLevel) bool {
		n := new(big.Int)
		_, ok := n.SetString(fmt.Sprint(fl.Field()), 10)
		return ok
	}); err != nil {
		panic(fmt.Sprintf("failed to register bigint validation: %v", err))
	}
	if err := validate.RegisterValidation("hexbytes", func(fl validator.FieldLevel) bool {
		_, err := hexutil.Decode(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(fmt.Sprintf("failed to register hexbytes validation: %v", err))
	}
	return validate
})

const (
	defaultRPCErrorMessage = "an error occurred while processing the request"
)

const (
	// rpcNodeGroupHandlerPrefix is the prefix used for all handler group IDs
	rpcNodeGroupHandlerPrefix = "group."
	// rpcNodeGroupRoot is the identifier for the root handler group
	rpcNodeGroupRoot = "root"
)

var (
	defaultRPCMessageWriteDuration = 5 * time.Second
)

// RPCNode is a WebSocket RPC server. It routes requests through middleware
// chains to registered handlers and signs every response with the service key.
type RPCNode struct {
	upgrader websocket.Upgrader

	// groupId identifies this node's handler group (defaults to "group.root")
	groupId string
	// handlerChain maps handler IDs to their middleware/handler chains
	handlerChain map[string][]RPCHandler
	// routes maps RPC method names to their handler chain path (e.g., ["group.root", "group.signing", "method"])
	routes map[string][]string

	signer  *sign.EthereumSigner
	connHub *rpcConnectionHub
	tracer  trace.Tracer
	logger  log.Logger

	onConnectHandlers     []func(connectionID string)
	onDisconnectHandlers  []func(connectionID string)
	onMessageSentHandlers []func()
}

func NewRPCNode(signer *sign.EthereumSigner, logger log.Logger) *RPCNode {
	return &RPCNode{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},

		groupId:      rpcNodeGroupHandlerPrefix + rpcNodeGroupRoot,
		handlerChain: make(map[string][]RPCHandler),
		routes:       make(map[string][]string),

		signer:  signer,
		connHub: newRPCConnectionHub(),
		tracer:  otel.Tracer(tracerName),
		logger:  logger.WithName("rpc-node"),
	}
}

// HandleConnection upgrades the request to a WebSocket and serves it until
// the connection is closed.
func (n *RPCNode) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.NewString()
	rpcConnection := NewRPCConnection(connectionID, conn, n.logger, n.onMessageSentHandlers...)
	if err := n.connHub.Add(rpcConnection); err != nil {
		n.logger.Error("failed to add connection to hub", "error", err, "connectionID", connectionID)
		return
	}

	for _, handler := range n.onConnectHandlers {
		handler(connectionID)
	}

	defer func() {
		n.connHub.Remove(connectionID)
		for _, handler := range n.onDisconnectHandlers {
			handler(connectionID)
		}
		n.logger.Info("connection closed", "connectionID", connectionID)
	}()

	parentCtx, cancel := context.WithCancel(r.Context())
	wg := &sync.WaitGroup{}
	wg.Add(2)
	abortOthers := func() {
		cancel()
		wg.Done()
	}

	go rpcConnection.Serve(parentCtx, abortOthers)
	go n.processMessages(parentCtx, rpcConnection, abortOthers)

	wg.Wait()
}

func (n *RPCNode) processMessages(ctx context.Context, rpcConn *RPCConnection, abortOthers context.CancelFunc) {
	defer abortOthers()

	for {
		var messageBytes []byte
		select {
		case <-ctx.Done():
			n.logger.Debug("context done, stopping message processing")
			return
		case messageBytes = <-rpcConn.ProcessSink():
			if len(messageBytes) == 0 {
				return
			}
		}

		msg, err := ParseRPCMessage(messageBytes)
		if err != nil {
			n.logger.Debug("invalid message format", "error", err)
			n.sendErrorResponse(rpcConn, 0, "invalid message format")
			continue
		}
		if err := getValidator().Struct(&msg); err != nil {
			n.logger.Debug("message validation failed", "error", err)
			n.sendErrorResponse(rpcConn, 0, "message validation failed")
			continue
		}
		if msg.Req == nil {
			n.sendErrorResponse(rpcConn, 0, "message request is empty")
			continue
		}

		routeHandlers, ok := n.routeHandlers(msg.Req.Method)
		if !ok {
			n.logger.Debug("no handler found for method", "method", msg.Req.Method)
			n.sendErrorResponse(rpcConn, msg.Req.RequestID, fmt.Sprintf("unknown method: %s", msg.Req.Method))
			continue
		}

		responseBytes, err := n.handleRequest(ctx, rpcConn.ConnectionID(), msg, routeHandlers)
		if err != nil {
			n.logger.Error("failed to prepare response", "error", err, "method", msg.Req.Method)
			continue
		}
		rpcConn.Write(responseBytes)
	}
}

// routeHandlers flattens the middleware and handler chain registered for method.
func (n *RPCNode) routeHandlers(method string) ([]RPCHandler, bool) {
	methodRoute, ok := n.routes[method]
	if !ok || len(methodRoute) == 0 {
		return nil, false
	}

	var handlers []RPCHandler
	for _, handlersId := range methodRoute {
		chain, exists := n.handlerChain[handlersId]
		if !exists || len(chain) == 0 {
			// Groups without middleware have no chain.
			if handlersId == method {
				n.logger.Error("no handlers found for id", "id", handlersId)
				return nil, false
			}
			continue
		}
		handlers = append(handlers, chain...)
	}
	return handlers, true
}

// handleRequest runs the chain inside a span and returns the signed response.
func (n *RPCNode) handleRequest(parentCtx context.Context, connectionID string, msg RPCMessage, handlers []RPCHandler) ([]byte, error) {
	ctx, span := n.tracer.Start(parentCtx, "rpc."+msg.Req.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.method", msg.Req.Method),
			attribute.Int64("rpc.request_id", int64(msg.Req.RequestID)),
			attribute.String("rpc.connection_id", connectionID),
		))
	defer span.End()

	c := &RPCContext{
		Context:      ctx,
		ConnectionID: connectionID,
		Message:      msg,
		handlers:     handlers,
	}
	c.Next()

	if c.Message.Res == nil {
		c.Fail(nil, "")
	}
	if c.Message.Res.Method == "error" {
		span.SetStatus(codes.Error, "request failed")
	}

	return prepareRawRPCResponse(n.signer, c.Message.Res)
}

// RPCHandler processes an RPC request. Middleware calls c.Next() to pass
// control down the chain.
type RPCHandler func(c *RPCContext)

// RPCContext carries one request through its handler chain.
type RPCContext struct {
	// Context carries the request span and logger
	Context      context.Context
	ConnectionID string
	// Message holds the request and, once a handler has run, the response
	Message RPCMessage

	handlers []RPCHandler
}

// Next executes the next handler in the middleware chain.
func (c *RPCContext) Next() {
	if len(c.handlers) == 0 {
		return
	}

	handler := c.handlers[0]
	c.handlers = c.handlers[1:]
	handler(c)
}

// Succeed sets a successful response with the given method and parameters.
func (c *RPCContext) Succeed(method string, params RPCDataParams) {
	c.Message.Res = NewRPCData(c.Message.Req.RequestID, method, params)
}

// Fail sets an "error" response. If err is (or wraps) an RPCError its
// message is sent to the client; otherwise fallbackMessage is, or a generic
// message when fallbackMessage is empty.
//
//	sig, err := signer.SignDigest(digest)
//	if err != nil {
//		c.Fail(err, "failed to sign digest")
//		return
//	}
func (c *RPCContext) Fail(err error, fallbackMessage string) {
	message := fallbackMessage
	var rpcErr RPCError
	if errors.As(err, &rpcErr) {
		message = rpcErr.Error()
	}
	if message == "" {
		message = defaultRPCErrorMessage
	}

	c.Message.Res = NewRPCData(c.Message.Req.RequestID, "error", ErrorResponse{Error: message})
}

// prepareRawRPCResponse marshals data, signs the bytes with the node key and
// wraps both into a response message.
func prepareRawRPCResponse(signer *sign.EthereumSigner, data *RPCData) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("response data is nil")
	}

	resDataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}

	signature, err := signer.SignMessage(resDataBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to sign response data: %w", err)
	}

	resMessageBytes, err := json.Marshal(&RPCMessage{
		Res: data,
		Sig: []sign.Signature{signature},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response message: %w", err)
	}

	return resMessageBytes, nil
}

// NewGroup creates a handler group whose middleware runs after the root middleware.
func (n *RPCNode) NewGroup(name string) *RPCHandlerGroup {
	return &RPCHandlerGroup{
		groupId:     rpcNodeGroupHandlerPrefix + name,
		routePrefix: []string{n.groupId},
		root:        n,
	}
}

// Handle registers a handler for the specified RPC method.
func (n *RPCNode) Handle(method string, handler RPCHandler) {
	n.handle(method, handler)
	n.routes[method] = []string{n.groupId, method}
}

func (n *RPCNode) handle(method string, handler RPCHandler) {
	if method == "" {
		panic("Websocket method cannot be empty")
	}
	if handler == nil {
		panic(fmt.Sprintf("Websocket handler cannot be nil for method %s", method))
	}

	n.handlerChain[method] = []RPCHandler{handler}
}

// Use adds middleware to the root handler group.
func (n *RPCNode) Use(middleware RPCHandler) {
	n.use(n.groupId, middleware)
}

func (n *RPCNode) use(groupId string, middleware RPCHandler) {
	if middleware == nil {
		panic("Websocket middleware handler cannot be nil for group")
	}

	n.handlerChain[groupId] = append(n.handlerChain[groupId], middleware)
}

func (n *RPCNode) OnConnect(handler func(connectionID string)) {
	n.onConnectHandlers = append(n.onConnectHandlers, handler)
}

func (n *RPCNode) OnDisconnect(handler func(connectionID string)) {
	n.onDisconnectHandlers = append(n.onDisconnectHandlers, handler)
}

// OnMessageSent registers a callback run after each message written to any
// connection. It only affects connections opened afterwards.
func (n *RPCNode) OnMessageSent(handler func()) {
	n.onMessageSentHandlers = append(n.onMessageSentHandlers, handler)
}

// ConnectionCount returns the number of open connections.
func (n *RPCNode) ConnectionCount() int {
	return n.connHub.Count()
}

// Close asks every open connection to close. It does not wait.
func (n *RPCNode) Close() {
	n.connHub.CloseAll()
}

// sendErrorResponse sends an error for a message that never reached a handler.
func (n *RPCNode) sendErrorResponse(conn *RPCConnection, requestID uint64, message string) {
	if requestID == 0 {
		requestID = uint64(time.Now().UnixMilli())
	}

	responseBytes, err := prepareRawRPCResponse(n.signer, NewRPCData(requestID, "error", ErrorResponse{Error: message}))
	if err != nil {
		n.logger.Error("failed to prepare error response", "error", err)
		return
	}

	conn.Write(responseBytes)
}

// RPCHandlerGroup is a set of handlers sharing middleware. Groups nest.
type RPCHandlerGroup struct {
	groupId string
	// routePrefix contains the chain of group IDs leading to this group
	routePrefix []string
	root        *RPCNode
}

func (hg *RPCHandlerGroup) NewGroup(name string) *RPCHandlerGroup {
	prefix := append(append([]string{}, hg.routePrefix...), hg.groupId)
	return &RPCHandlerGroup{
		groupId:     rpcNodeGroupHandlerPrefix + name,
		routePrefix: prefix,
		root:        hg.root,
	}
}

// Handle registers a handler that runs after all middleware of this group and its parents.
func (hg *RPCHandlerGroup) Handle(method string, handler RPCHandler) {
	route := append(append([]string{}, hg.routePrefix...), hg.groupId, method)
	hg.root.routes[method] = route
	hg.root.handle(method, handler)
}

func (hg *RPCHandlerGroup) Use(middleware RPCHandler) {
	hg.root.use(hg.groupId, middleware)
}
