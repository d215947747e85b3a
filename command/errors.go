// Package command implements the catalog, argument parsing, ACL
// enforcement, and dispatch pipeline that turns one decoded RESP3 request
// Frame into a reply Frame and (for writers) a propagated Wcmd letter.
//
// Grounded on original_source's src/cmd/mod.rs (dispatch shape) and
// src/cmd/error.rs (the CmdError/Err enum pair this file's Error type
// collapses into a single Go type, since Go has no enum-with-payload to
// mirror CmdError::{ServerErr,ErrorCode,Null,Err} directly).
package command

import (
	"strings"

	"github.com/rutin-go/rutin/object"
	"github.com/rutin-go/rutin/resp"
	"github.com/rutin-go/rutin/store"
)

// Kind tags which reply shape an Error carries, mirroring original_source's
// CmdError variants (ErrorCode, Null, Err(..)) collapsed onto one type.
type Kind int

const (
	KindWrongArgNum Kind = iota
	KindSyntax
	KindUnknownCmd
	KindForbidden
	KindNoPermission
	KindType
	KindOverflow
	KindErrorCode // raw Integer reply used as a shortcut return, per spec.md §4.4
	KindNull
	KindIO
	KindOther
)

// Error is command dispatch's single error type. Every representative
// command returns one of these (or a bare *object.WrongTypeError, which
// ToFrame also understands) instead of the mixed error/Result types the
// original's CmdError/Err enum pair represents.
type Error struct {
	Kind    Kind
	Message string
	Code    int64
}

func (e *Error) Error() string { return e.Message }

func WrongArgNum(cmd string) *Error {
	return &Error{Kind: KindWrongArgNum, Message: "ERR wrong number of arguments for '" + strings.ToLower(cmd) + "' command"}
}

func Syntax() *Error { return &Error{Kind: KindSyntax, Message: "ERR syntax error"} }

func UnknownCmd(name string) *Error {
	return &Error{Kind: KindUnknownCmd, Message: "ERR unknown command '" + name + "'"}
}

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func NoPermission(cmd string) *Error {
	return &Error{Kind: KindNoPermission, Message: "NOPERM this user has no permissions to run the '" + strings.ToLower(cmd) + "' command"}
}

func TypeErr() *Error {
	return &Error{Kind: KindType, Message: "WRONGTYPE Operation against a key holding the wrong kind of value"}
}

func Overflow() *Error { return &Error{Kind: KindOverflow, Message: "ERR value out of range"} }

// ErrorCode wraps a raw integer used as a shortcut reply (e.g. PUBLISH's
// delivered-count-of-zero early return in the original), per spec.md §4.4's
// "raw code (integer responses used as shortcut returns)".
func ErrorCode(code int64) *Error { return &Error{Kind: KindErrorCode, Code: code} }

// Null signals a null reply that is not itself an error condition (a missing
// key, an unmet SET NX/XX predicate, a BLPOP timeout).
func Null() *Error { return &Error{Kind: KindNull} }

func Other(msg string) *Error { return &Error{Kind: KindOther, Message: msg} }

// ToFrame converts a handler's returned error into its RESP3 reply,
// understanding both *Error and the object/store package's own error
// values so a command handler can return either without first converting.
func ToFrame(err error) *resp.Frame {
	if err == nil {
		return resp.Null()
	}
	if err == store.ErrOOM {
		return resp.SimpleError(err.Error())
	}
	if ce, ok := err.(*Error); ok {
		switch ce.Kind {
		case KindErrorCode:
			return resp.Integer(ce.Code)
		case KindNull:
			return resp.Null()
		default:
			return resp.SimpleError(ce.Message)
		}
	}
	if _, ok := err.(*object.WrongTypeError); ok {
		return resp.SimpleError(TypeErr().Message)
	}
	return resp.SimpleError("ERR " + err.Error())
}
