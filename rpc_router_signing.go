package main

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
	"github.com/erc7824/nitrolite/claimsigner/pkg/hexbytes"
	"github.com/erc7824/nitrolite/claimsigner/pkg/log"
	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

type SignDigestParams struct {
	Digest string `json:"digest" validate:"required,hexbytes"`
}

type SignMessageParams struct {
	Message string `json:"message" validate:"required,hexbytes"`
}

// ClaimParams describe a verification claim. Network defaults to the
// service's configured network.
type ClaimParams struct {
	Fid       string `json:"fid" validate:"required,bigint"`
	Address   string `json:"address" validate:"required,eth_addr"`
	BlockHash string `json:"block_hash" validate:"required,hexbytes"`
	Network   string `json:"network,omitempty" validate:"omitempty,oneof=mainnet testnet devnet"`
}

type RecoverDigestParams struct {
	Digest    string `json:"digest" validate:"required,hexbytes"`
	Signature string `json:"signature" validate:"required,hexbytes"`
}

type RecoverClaimParams struct {
	ClaimParams
	Signature string `json:"signature" validate:"required,hexbytes"`
}

type GetClaimSignaturesParams struct {
	ListOptions
	Address string `json:"address,omitempty" validate:"omitempty,eth_addr"`
	Signer  string `json:"signer,omitempty" validate:"omitempty,eth_addr"`
	Network string `json:"network,omitempty" validate:"omitempty,oneof=mainnet testnet devnet"`
}

type SignerResponse struct {
	Address      string `json:"address"`
	DigestLength int    `json:"digest_length"`
	Network      string `json:"network"`
}

type SignatureResponse struct {
	Digest    string         `json:"digest"`
	Signature sign.Signature `json:"signature"`
}

type RecoverResponse struct {
	Address string `json:"address"`
}

type ClaimSignatureResponse struct {
	Fid       string `json:"fid"`
	Address   string `json:"address"`
	BlockHash string `json:"block_hash"`
	Network   string `json:"network"`
	Digest    string `json:"digest"`
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
	CreatedAt string `json:"created_at"`
}

type ClaimSignaturesResponse struct {
	Signatures []ClaimSignatureResponse `json:"signatures"`
	Total      int64                    `json:"total"`
}

func (r *RPCRouter) HandlePing(c *RPCContext) {
	c.Succeed("pong", struct{}{})
}

func (r *RPCRouter) HandleGetSigner(c *RPCContext) {
	c.Succeed(c.Message.Req.Method, SignerResponse{
		Address:      r.Signer.SignerKey().Hex(),
		DigestLength: r.Signer.DigestLength(),
		Network:      r.Config.Signer.NetworkValue().String(),
	})
}

func (r *RPCRouter) HandleSignDigest(c *RPCContext) {
	var params SignDigestParams
	if err := parseParams(c.Message.Req.Params, &params); err != nil {
		r.failSigning(c, "invalid_params", err, "invalid parameters: digest must be a 0x-prefixed hex string")
		return
	}

	digest, err := hexbytes.HexToBytes(params.Digest)
	if err != nil {
		r.failSigning(c, "invalid_params", err, "invalid digest")
		return
	}

	sig, err := r.Signer.SignDigest(digest)
	if err != nil {
		r.failSignDigest(c, err)
		return
	}

	c.Succeed(c.Message.Req.Method, SignatureResponse{
		Digest:    hexbytes.BytesToHex(digest),
		Signature: sig,
	})
}

// HandleSignMessage hashes the message to the signer's digest length and
// signs the digest.
func (r *RPCRouter) HandleSignMessage(c *RPCContext) {
	var params SignMessageParams
	if err := parseParams(c.Message.Req.Params, &params); err != nil {
		r.failSigning(c, "invalid_params", err, "invalid parameters: message must be a 0x-prefixed hex string")
		return
	}

	message, err := hexbytes.HexToBytes(params.Message)
	if err != nil {
		r.failSigning(c, "invalid_params", err, "invalid message")
		return
	}

	digest := r.Hasher.Sum(message)
	sig, err := r.Signer.SignDigest(digest)
	if err != nil {
		r.failSignDigest(c, err)
		return
	}

	c.Succeed(c.Message.Req.Method, SignatureResponse{
		Digest:    hexbytes.BytesToHex(digest),
		Signature: sig,
	})
}

func (r *RPCRouter) failSignDigest(c *RPCContext, err error) {
	if errors.Is(err, sign.ErrInvalidDigestLength) {
		r.failSigning(c, "invalid_digest_length", RPCErrorf("invalid digest length: expected %d bytes", r.Signer.DigestLength()), "")
		return
	}
	log.FromContext(c.Context).Error("failed to sign digest", "error", err)
	r.failSigning(c, "internal", err, "failed to sign digest")
}

// HandleSignClaim signs the EIP-712 digest of the claim and records the
// signature in the ledger.
func (r *RPCRouter) HandleSignClaim(c *RPCContext) {
	logger := log.FromContext(c.Context)

	var params ClaimParams
	if err := parseParams(c.Message.Req.Params, &params); err != nil {
		r.failSigning(c, "invalid_params", err, "invalid parameters: fid, address and block_hash are required")
		return
	}

	vc, err := params.toClaim(r.Config.Signer.NetworkValue())
	if err != nil {
		r.failSigning(c, "invalid_claim", err, "invalid claim")
		return
	}

	digest, err := claim.Encode(vc)
	if err != nil {
		r.failSigning(c, "invalid_claim", RPCErrorf("invalid claim: %v", err), "")
		return
	}
	sig, err := r.Signer.SignClaim(vc)
	if err != nil {
		logger.Error("failed to sign claim", "error", err)
		r.failSigning(c, "internal", err, "failed to sign claim")
		return
	}

	rec, err := NewClaimSignature(vc, r.Signer.SignerKey(), digest, sig)
	if err != nil {
		logger.Error("failed to build claim record", "error", err)
		r.failSigning(c, "internal", err, "failed to record claim signature")
		return
	}
	if _, err := r.Ledger.Record(c.Context, rec); err != nil {
		logger.Error("failed to record claim signature", "error", err)
		r.failSigning(c, "ledger", err, "failed to record claim signature")
		return
	}

	logger.Info("claim signed", "fid", vc.Fid.String(), "address", vc.Address.Hex(), "network", vc.Network.String())
	c.Succeed(c.Message.Req.Method, SignatureResponse{
		Digest:    hexbytes.BytesToHex(digest),
		Signature: sig,
	})
}

func (r *RPCRouter) HandleRecoverDigest(c *RPCContext) {
	var params RecoverDigestParams
	if err := parseParams(c.Message.Req.Params, &params); err != nil {
		c.Fail(err, "invalid parameters: digest and signature are required")
		return
	}

	digest, err := hexbytes.HexToBytes(params.Digest)
	if err != nil {
		c.Fail(err, "invalid digest")
		return
	}
	sig, err := hexbytes.HexToBytes(params.Signature)
	if err != nil {
		c.Fail(err, "invalid signature")
		return
	}

	address, err := sign.RecoverFromDigest(digest, sig)
	if err != nil {
		c.Fail(recoveryError(err), "failed to recover address")
		return
	}

	c.Succeed(c.Message.Req.Method, RecoverResponse{Address: address.Hex()})
}

func (r *RPCRouter) HandleRecoverClaim(c *RPCContext) {
	var params RecoverClaimParams
	if err := parseParams(c.Message.Req.Params, &params); err != nil {
		c.Fail(err, "invalid parameters: fid, address, block_hash and signature are required")
		return
	}

	vc, err := params.toClaim(r.Config.Signer.NetworkValue())
	if err != nil {
		c.Fail(err, "invalid claim")
		return
	}
	sig, err := hexbytes.HexToBytes(params.Signature)
	if err != nil {
		c.Fail(err, "invalid signature")
		return
	}

	address, err := sign.RecoverFromClaim(vc, sig)
	if err != nil {
		c.Fail(recoveryError(err), "failed to recover address")
		return
	}

	c.Succeed(c.Message.Req.Method, RecoverResponse{Address: address.Hex()})
}

func recoveryError(err error) error {
	switch {
	case errors.Is(err, sign.ErrInvalidSignature):
		return RPCErrorf("invalid signature")
	case errors.Is(err, sign.ErrInvalidDigestLength):
		return RPCErrorf("invalid digest length: expected 1 to 32 bytes")
	case errors.Is(err, claim.ErrEncoding):
		return RPCErrorf("invalid claim: %v", err)
	default:
		return err
	}
}

func (r *RPCRouter) HandleGetClaimSignatures(c *RPCContext) {
	logger := log.FromContext(c.Context)

	var params GetClaimSignaturesParams
	if err := parseParams(c.Message.Req.Params, &params); err != nil {
		c.Fail(err, "invalid parameters")
		return
	}

	var filter ClaimFilter
	if params.Address != "" {
		address := common.HexToAddress(params.Address)
		filter.Address = &address
	}
	if params.Signer != "" {
		signer := common.HexToAddress(params.Signer)
		filter.Signer = &signer
	}
	if params.Network != "" {
		network, err := claim.ParseNetwork(params.Network)
		if err != nil {
			c.Fail(RPCErrorf("invalid network: %s", params.Network), "")
			return
		}
		filter.Network = &network
	}

	records, err := r.Ledger.List(c.Context, filter, &params.ListOptions)
	if err != nil {
		logger.Error("failed to list claim signatures", "error", err)
		c.Fail(err, "failed to get claim signatures")
		return
	}
	total, err := r.Ledger.Count(c.Context, filter)
	if err != nil {
		logger.Error("failed to count claim signatures", "error", err)
		c.Fail(err, "failed to get claim signatures")
		return
	}

	resp := ClaimSignaturesResponse{
		Signatures: make([]ClaimSignatureResponse, 0, len(records)),
		Total:      total,
	}
	for _, rec := range records {
		resp.Signatures = append(resp.Signatures, ClaimSignatureResponse{
			Fid:       rec.Fid.String(),
			Address:   rec.Address,
			BlockHash: rec.BlockHash,
			Network:   rec.Network,
			Digest:    rec.Digest,
			Signer:    rec.Signer,
			Signature: rec.Signature,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	c.Succeed(c.Message.Req.Method, resp)
}

func (p ClaimParams) toClaim(defaultNetwork claim.Network) (claim.VerificationClaim, error) {
	fid, ok := new(big.Int).SetString(p.Fid, 10)
	if !ok {
		return claim.VerificationClaim{}, RPCErrorf("invalid fid: %s", p.Fid)
	}

	blockHash, err := hexbytes.HexToFixed(p.BlockHash, common.HashLength)
	if err != nil {
		return claim.VerificationClaim{}, RPCErrorf("invalid block_hash: expected %d bytes", common.HashLength)
	}

	network := defaultNetwork
	if p.Network != "" {
		if network, err = claim.ParseNetwork(p.Network); err != nil {
			return claim.VerificationClaim{}, RPCErrorf("invalid network: %s", p.Network)
		}
	}

	vc, err := claim.NewVerificationClaim(fid, common.HexToAddress(p.Address).Bytes(), blockHash, network)
	if err != nil {
		return claim.VerificationClaim{}, RPCErrorf("invalid claim: %v", err)
	}
	return vc, nil
}
