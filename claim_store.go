package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erc7824/nitrolite/claimsigner/pkg/claim"
	"github.com/erc7824/nitrolite/claimsigner/pkg/hexbytes"
	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

// ClaimSignature is a verification claim signed by this service, together with
// the EIP-712 document that was hashed.
type ClaimSignature struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Fid       decimal.Decimal `gorm:"column:fid;type:varchar(78);not null" json:"fid"`
	Address   string          `gorm:"column:address;type:varchar(42);not null;index" json:"address"`
	BlockHash string          `gorm:"column:block_hash;type:char(66);not null" json:"block_hash"`
	Network   string          `gorm:"column:network;type:varchar(16);not null" json:"network"`
	Digest    string          `gorm:"column:digest;type:char(66);not null;uniqueIndex:idx_claim_signatures_digest_signer" json:"digest"`
	Signer    string          `gorm:"column:signer;type:varchar(42);not null;uniqueIndex:idx_claim_signatures_digest_signer" json:"signer"`
	Signature string          `gorm:"column:signature;type:varchar(132);not null" json:"signature"`
	TypedData datatypes.JSON  `gorm:"column:typed_data;type:text;not null" json:"typed_data"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (ClaimSignature) TableName() string {
	return "claim_signatures"
}

// NewClaimSignature builds the ledger record for sig, produced by signer over
// the digest of c.
func NewClaimSignature(c claim.VerificationClaim, signer common.Address, digest []byte, sig sign.Signature) (*ClaimSignature, error) {
	td, err := claim.TypedData(c)
	if err != nil {
		return nil, err
	}
	typedData, err := json.Marshal(td)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal typed data")
	}

	return &ClaimSignature{
		Fid:       decimal.NewFromBigInt(c.Fid, 0),
		Address:   c.Address.Hex(),
		BlockHash: c.BlockHash.Hex(),
		Network:   c.Network.String(),
		Digest:    hexbytes.BytesToHex(digest),
		Signer:    signer.Hex(),
		Signature: sig.String(),
		TypedData: datatypes.JSON(typedData),
	}, nil
}

// Claim rebuilds the verification claim the record was signed over.
func (cs ClaimSignature) Claim() (claim.VerificationClaim, error) {
	network, err := claim.ParseNetwork(cs.Network)
	if err != nil {
		return claim.VerificationClaim{}, err
	}

	return claim.VerificationClaim{
		Fid:       cs.Fid.BigInt(),
		Address:   common.HexToAddress(cs.Address),
		BlockHash: common.HexToHash(cs.BlockHash),
		Network:   network,
	}, nil
}

var claimNetworks = []claim.Network{claim.NetworkMainnet, claim.NetworkTestnet, claim.NetworkDevnet}

// ClaimFilter narrows ledger queries. Nil fields match everything.
type ClaimFilter struct {
	Address *common.Address
	Signer  *common.Address
	Network *claim.Network
}

func (f ClaimFilter) apply(db *gorm.DB) *gorm.DB {
	if f.Address != nil {
		db = db.Where("address = ?", f.Address.Hex())
	}
	if f.Signer != nil {
		db = db.Where("signer = ?", f.Signer.Hex())
	}
	if f.Network != nil {
		db = db.Where("network = ?", f.Network.String())
	}
	return db
}

// ClaimLedger stores and queries issued claim signatures.
type ClaimLedger interface {
	Record(ctx context.Context, rec *ClaimSignature) (*ClaimSignature, error)
	GetByDigest(ctx context.Context, digest string, signer common.Address) (*ClaimSignature, error)
	List(ctx context.Context, filter ClaimFilter, options *ListOptions) ([]ClaimSignature, error)
	Count(ctx context.Context, filter ClaimFilter) (int64, error)
}

var _ ClaimLedger = &ClaimStore{}

type ClaimStore struct {
	db *gorm.DB
}

func NewClaimStore(db *gorm.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

// Record inserts rec. Signing is deterministic, so a record with the same
// digest and signer is identical to rec; in that case the stored row is
// returned and nothing is written.
func (s *ClaimStore) Record(ctx context.Context, rec *ClaimSignature) (*ClaimSignature, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "failed to record claim signature")
	}
	if res.RowsAffected == 0 {
		return s.GetByDigest(ctx, rec.Digest, common.HexToAddress(rec.Signer))
	}
	return rec, nil
}

// GetByDigest returns the signature signer produced over digest. The error
// wraps gorm.ErrRecordNotFound when there is none.
func (s *ClaimStore) GetByDigest(ctx context.Context, digest string, signer common.Address) (*ClaimSignature, error) {
	var rec ClaimSignature
	err := s.db.WithContext(ctx).
		Where("digest = ? AND signer = ?", digest, signer.Hex()).
		First(&rec).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get claim signature for digest %s", digest)
	}
	return &rec, nil
}

// List returns matching records, most recent first unless options say otherwise.
func (s *ClaimStore) List(ctx context.Context, filter ClaimFilter, options *ListOptions) ([]ClaimSignature, error) {
	query := filter.apply(s.db.WithContext(ctx).Model(&ClaimSignature{}))
	query = applyListOptions(query, "id", SortTypeDescending, options)

	var records []ClaimSignature
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list claim signatures")
	}
	return records, nil
}

func (s *ClaimStore) Count(ctx context.Context, filter ClaimFilter) (int64, error) {
	var count int64
	err := filter.apply(s.db.WithContext(ctx).Model(&ClaimSignature{})).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count claim signatures")
	}
	return count, nil
}
