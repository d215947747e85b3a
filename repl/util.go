package repl

import "os"

// openAndRemove opens path for reading, then unlinks it immediately: the
// file descriptor stays valid for this process until Close, but the
// directory entry (and its disk space, once the last reader closes it)
// is reclaimed without this package having to track temp-file cleanup
// on every error path.
func openAndRemove(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	return f, nil
}

func sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			b[i] = '_'
		}
	}
	return string(b)
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
