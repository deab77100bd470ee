package model

import (
	"errors"
	"fmt"

	"xdao.co/in3/rpcerr"
)

type ErrorCode int

// Standard JSON-RPC 2.0 codes.
const (
	ErrParse          ErrorCode = -32700
	ErrInvalidRequest ErrorCode = -32600
	ErrInvalidParams  ErrorCode = -32602
	ErrInternal       ErrorCode = -32603
)

// Server error range, one code per error kind.
const (
	ErrTransport     ErrorCode = -32001
	ErrVerification  ErrorCode = -32002
	ErrSigning       ErrorCode = -32003
	ErrConfiguration ErrorCode = -32004
	ErrExhausted     ErrorCode = -32005
	ErrRateLimited   ErrorCode = -32029
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// CodeFor maps an execution error to its JSON-RPC code.
func CodeFor(err error) ErrorCode {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	switch rpcerr.KindOf(err) {
	case rpcerr.KindTransport:
		return ErrTransport
	case rpcerr.KindVerification:
		return ErrVerification
	case rpcerr.KindSigning:
		return ErrSigning
	case rpcerr.KindConfiguration:
		return ErrConfiguration
	case rpcerr.KindExhausted:
		return ErrExhausted
	default:
		return ErrInternal
	}
}

func mapErr(err error) *CodedError {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	return NewError(CodeFor(err), err.Error())
}
