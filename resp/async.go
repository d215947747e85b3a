package resp

import (
	"context"
	"io"
)

// growStep is the minimum number of bytes read per refill when the cursor
// needs more data; small reads would otherwise thrash on a slow client.
const growStep = 4096

// DecodeAsync decodes one frame from r, growing c as needed, blocking on
// Read until either a full frame is available or r/ctx errors. It mirrors
// rutin_resp3's decode_async: a short read is never a protocol error, only
// a reason to read more.
func DecodeAsync(ctx context.Context, r io.Reader, c *Cursor) (*Frame, error) {
	for {
		f, err := Decode(c)
		switch {
		case err == nil:
			return f, nil
		case err != ErrIncomplete:
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, rerr := readMore(r, c)
		if rerr != nil {
			if n == 0 {
				return nil, rerr
			}
		}
	}
}

func readMore(r io.Reader, c *Cursor) (int, error) {
	off := len(c.Buf)
	if cap(c.Buf)-off < growStep {
		grown := make([]byte, off, off+growStep)
		copy(grown, c.Buf)
		c.Buf = grown
	}
	c.Buf = c.Buf[:off+growStep]
	n, err := r.Read(c.Buf[off : off+growStep])
	c.Buf = c.Buf[:off+n]
	return n, err
}
