//go:build debug

package resp

import "github.com/rutin-go/rutin/cmn/debug"

func (f *Frame) MustStr() []byte {
	s, err := f.Str()
	debug.AssertNoErr(err)
	return s
}

func (f *Frame) MustInt() int64 {
	n, err := f.AsInt()
	debug.AssertNoErr(err)
	return n
}
