package command

import (
	"strconv"
	"strings"

	"github.com/rutin-go/rutin/resp"
)

// ArgIter walks a command's remaining argument frames, grounded on
// original_source's CmdUnparsed: a small iterator with next(), an
// uppercase::<N>() peek-and-maybe-consume for short option keywords, and
// collect()/by_ref().take(n) for list-valued trailing options. spec.md
// §4.4 names these same three combinators directly.
type ArgIter struct {
	items []*resp.Frame
	pos   int
}

func NewArgIter(items []*resp.Frame) *ArgIter { return &ArgIter{items: items} }

// Len reports how many arguments remain unconsumed.
func (a *ArgIter) Len() int { return len(a.items) - a.pos }

// Next returns the next argument frame, or ok=false when exhausted.
func (a *ArgIter) Next() (*resp.Frame, bool) {
	if a.pos >= len(a.items) {
		return nil, false
	}
	f := a.items[a.pos]
	a.pos++
	return f, true
}

// NextBytes returns the next argument's byte-string payload.
func (a *ArgIter) NextBytes() ([]byte, error) {
	f, ok := a.Next()
	if !ok {
		return nil, Syntax()
	}
	b, err := f.Str()
	if err != nil {
		return nil, Syntax()
	}
	return b, nil
}

// NextInt parses the next argument as a base-10 signed integer.
func (a *ArgIter) NextInt() (int64, error) {
	b, err := a.NextBytes()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, Other("ERR value is not an integer or out of range")
	}
	return n, nil
}

// UppercaseN peeks the next argument and reports whether it equals kw
// case-insensitively, consuming it only on a match — the port of
// next_uppercase::<N>() used to recognize NX/XX/GET/KEEPTTL/EX/PX/... option
// keywords without committing to consuming a non-option argument.
func (a *ArgIter) UppercaseN(kw string) bool {
	if a.pos >= len(a.items) {
		return false
	}
	b, err := a.items[a.pos].Str()
	if err != nil {
		return false
	}
	if len(b) != len(kw) || !strings.EqualFold(string(b), kw) {
		return false
	}
	a.pos++
	return true
}

// Collect drains every remaining argument's bytes in order.
func (a *ArgIter) Collect() ([][]byte, error) {
	out := make([][]byte, 0, a.Len())
	for {
		f, ok := a.Next()
		if !ok {
			break
		}
		b, err := f.Str()
		if err != nil {
			return nil, Syntax()
		}
		out = append(out, b)
	}
	return out, nil
}

// TakeN drains exactly n remaining arguments' bytes (by_ref().take(n)).
func (a *ArgIter) TakeN(n int) ([][]byte, error) {
	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := a.NextBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
