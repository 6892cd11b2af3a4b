package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erc7824/nitrolite/claimsigner/pkg/sign"
)

// RPCMessage is a complete message in the RPC protocol: a request or a
// response, plus signatures over its raw data.
type RPCMessage struct {
	Req *RPCData         `json:"req,omitempty" validate:"required_without=Res,excluded_with=Res"`
	Res *RPCData         `json:"res,omitempty" validate:"required_without=Req,excluded_with=Req"`
	Sig []sign.Signature `json:"sig"`
}

// ParseRPCMessage parses a JSON string into an RPCMessage
func ParseRPCMessage(data []byte) (RPCMessage, error) {
	var msg RPCMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return RPCMessage{}, fmt.Errorf("failed to parse message: %w", err)
	}
	return msg, nil
}

// RPCDataParams is the payload of a request or response. Handlers decode it
// with parseParams.
type RPCDataParams = any

// RPCData represents the common structure for both requests and responses
// Format: [request_id, method, params, ts]
type RPCData struct {
	RequestID uint64        `json:"request_id" validate:"required"`
	Method    string        `json:"method" validate:"required"`
	Params    RPCDataParams `json:"params" validate:"required"`
	Timestamp uint64        `json:"ts" validate:"required"`
	rawBytes  []byte
}

// UnmarshalJSON reads the array form and keeps the raw bytes, which are what
// the signatures cover.
func (m *RPCData) UnmarshalJSON(data []byte) error {
	var rawArr []json.RawMessage
	if err := json.Unmarshal(data, &rawArr); err != nil {
		return fmt.Errorf("error reading RPCData as array: %w", err)
	}
	if len(rawArr) != 4 {
		return errors.New("invalid RPCData: expected 4 elements in array")
	}

	if err := json.Unmarshal(rawArr[0], &m.RequestID); err != nil {
		return fmt.Errorf("invalid request_id: %w", err)
	}
	if err := json.Unmarshal(rawArr[1], &m.Method); err != nil {
		return fmt.Errorf("invalid method: %w", err)
	}
	if err := json.Unmarshal(rawArr[2], &m.Params); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	if err := json.Unmarshal(rawArr[3], &m.Timestamp); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	m.rawBytes = data
	return nil
}

// MarshalJSON for RPCData always emits the array-form [RequestID, Method, Params, Timestamp].
func (m RPCData) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{
		m.RequestID,
		m.Method,
		m.Params,
		m.Timestamp,
	})
}

// RawBytes returns the bytes the data was decoded from, or nil for data built in memory.
func (m RPCData) RawBytes() []byte {
	return m.rawBytes
}

// NewRPCData builds request or response data stamped with the current time.
func NewRPCData(id uint64, method string, params RPCDataParams) *RPCData {
	return &RPCData{
		RequestID: id,
		Method:    method,
		Params:    params,
		Timestamp: uint64(time.Now().UnixMilli()),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// RPCError is an error whose message is sent to the client as is. Any other
// error returned by a handler is replaced by a generic message.
//
//	// Client will receive this exact error message
//	return RPCErrorf("invalid digest length: expected %d bytes", n)
//
//	// Client will receive the fallback message
//	return fmt.Errorf("database connection failed")
type RPCError struct {
	err error
}

// RPCErrorf creates a client-facing error. Messages must not contain internal
// details such as database errors or key material.
func RPCErrorf(format string, args ...any) RPCError {
	return RPCError{
		err: fmt.Errorf(format, args...),
	}
}

func (e RPCError) Error() string {
	return e.err.Error()
}

func (e RPCError) Unwrap() error {
	return e.err
}
