package main

import (
	"encoding/json"
	"fmt"

	"github.com/erc7824/nitrolite/claimsigner/pkg/hash"
	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

type RPCRouter struct {
	Node    *RPCNode
	Config  *Config
	Signer  *sign.EthereumSigner
	Hasher  hash.Provider
	Ledger  ClaimLedger
	Metrics *Metrics

	lg log.Logger
}

func NewRPCRouter(
	node *RPCNode,
	conf *Config,
	signer *sign.EthereumSigner,
	hasher hash.Provider,
	ledger ClaimLedger,
	metrics *Metrics,
	logger log.Logger,
) *RPCRouter {
	r := &RPCRouter{
		Node:    node,
		Config:  conf,
		Signer:  signer,
		Hasher:  hasher,
		Ledger:  ledger,
		Metrics: metrics,
		lg:      logger.WithName("rpc-router"),
	}

	r.Node.OnConnect(r.HandleConnect)
	r.Node.OnDisconnect(r.HandleDisconnect)
	r.Node.OnMessageSent(r.HandleMessageSent)

	r.Node.Use(r.LoggerMiddleware)
	r.Node.Use(r.MetricsMiddleware)
	r.Node.Handle("ping", r.HandlePing)
	r.Node.Handle("get_signer", r.HandleGetSigner)
	r.Node.Handle("get_claim_signatures", r.HandleGetClaimSignatures)

	signingGroup := r.Node.NewGroup("signing")
	signingGroup.Use(r.SigningMetricsMiddleware)
	signingGroup.Handle("sign_digest", r.HandleSignDigest)
	signingGroup.Handle("sign_message", r.HandleSignMessage)
	signingGroup.Handle("sign_claim", r.HandleSignClaim)

	recoveryGroup := r.Node.NewGroup("recovery")
	recoveryGroup.Use(r.RecoveryMetricsMiddleware)
	recoveryGroup.Handle("recover_digest", r.HandleRecoverDigest)
	recoveryGroup.Handle("recover_claim", r.HandleRecoverClaim)

	return r
}

func (r *RPCRouter) HandleConnect(connectionID string) {
	r.Metrics.ConnectionsTotal.Inc()
	r.Metrics.ConnectedClients.Inc()
}

func (r *RPCRouter) HandleDisconnect(connectionID string) {
	r.Metrics.ConnectedClients.Dec()
}

func (r *RPCRouter) HandleMessageSent() {
	r.Metrics.MessageSent.Inc()
}

func (r *RPCRouter) LoggerMiddleware(c *RPCContext) {
	logger := r.lg.
		WithKV("requestID", c.Message.Req.RequestID).
		WithKV("connectionID", c.ConnectionID)
	c.Context = log.SetContextLogger(c.Context, logger)
	logger = log.FromContext(c.Context)

	c.Next()

	if c.Message.Res == nil {
		logger.Warn("RPC response is nil", "method", c.Message.Req.Method)
		return
	}

	if c.Message.Res.Method == "error" {
		logger.Warn("failed to handle RPC request",
			"method", c.Message.Req.Method,
			"error", c.Message.Res.Params,
		)
		return
	}
	logger.Debug("handled RPC request", "method", c.Message.Req.Method)
}

func (r *RPCRouter) MetricsMiddleware(c *RPCContext) {
	r.Metrics.MessageReceived.Inc()

	reqMethod := c.Message.Req.Method
	c.Next()

	status := "success"
	if c.Message.Res == nil || c.Message.Res.Method == "error" {
		status = "failure"
	}
	r.Metrics.RPCRequests.WithLabelValues(reqMethod, status).Inc()
}

// SigningMetricsMiddleware counts signatures issued by the signing group.
// Failures are counted by the handlers, which know the reason.
func (r *RPCRouter) SigningMetricsMiddleware(c *RPCContext) {
	c.Next()

	if c.Message.Res != nil && c.Message.Res.Method != "error" {
		r.Metrics.SignaturesIssued.WithLabelValues(signatureKind(c.Message.Req.Method)).Inc()
	}
}

func (r *RPCRouter) RecoveryMetricsMiddleware(c *RPCContext) {
	c.Next()

	result := "success"
	if c.Message.Res == nil || c.Message.Res.Method == "error" {
		result = "failure"
	}
	r.Metrics.Recoveries.WithLabelValues(signatureKind(c.Message.Req.Method), result).Inc()
}

func signatureKind(method string) string {
	switch method {
	case "sign_digest", "recover_digest":
		return SignatureKindDigest
	case "sign_message":
		return SignatureKindMessage
	case "sign_claim", "recover_claim":
		return SignatureKindClaim
	default:
		return method
	}
}

// failSigning records a rejected signing request and sets the error response.
func (r *RPCRouter) failSigning(c *RPCContext, reason string, err error, fallbackMessage string) {
	r.Metrics.SigningFailures.WithLabelValues(signatureKind(c.Message.Req.Method), reason).Inc()
	c.Fail(err, fallbackMessage)
}

func parseParams(params RPCDataParams, unmarshalTo any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to parse parameters: %w", err)
	}

	if err := json.Unmarshal(paramsJSON, unmarshalTo); err != nil {
		return err
	}

	return getValidator().Struct(unmarshalTo)
}
