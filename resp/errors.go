package resp

import "errors"

// ErrIncomplete is returned by Decode when buf does not yet hold a full
// frame; the cursor position is left unchanged so the caller can append
// more bytes and retry. It is never returned by DecodeAsync, which loops
// internally until either a frame completes or the reader errors.
var ErrIncomplete = errors.New("resp: incomplete frame")

// MalformedError reports a hard protocol violation: the bytes seen so far
// cannot be a valid frame no matter what follows. Unlike ErrIncomplete this
// is terminal for the connection.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string { return "resp: malformed frame: " + e.Reason }

func malformed(reason string) error { return &MalformedError{Reason: reason} }

// WrongKindError is returned by the typed accessors (Frame.Str, Frame.AsInt,
// ...) when called against a Frame of a different Kind, replacing the
// original's unchecked/panicking accessors per the redesigned API.
type WrongKindError struct {
	Want Kind
	Got  Kind
}

func (e *WrongKindError) Error() string {
	return "resp: expected " + e.Want.String() + ", got " + e.Got.String()
}
