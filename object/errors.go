package object

import "errors"

// WrongTypeError mirrors RutinError::TypeErr: a command addressed a key
// whose stored Value.Kind() doesn't match what the command expects.
type WrongTypeError struct {
	Expected Kind
	Found    Kind
}

func (e *WrongTypeError) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value (expected " +
		e.Expected.String() + ", found " + e.Found.String() + ")"
}

// ErrOverflow is returned by Str.IncrBy/DecrBy when the result would not
// fit in a signed 64-bit integer.
var ErrOverflow = errors.New("ERR value out of range")

// ErrNotInt is returned by IncrBy/DecrBy/AsInt when the Str does not hold
// a value parseable as a base-10 integer.
var ErrNotInt = errors.New("ERR value is not an integer or out of range")
