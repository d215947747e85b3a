package command

import "github.com/rutin-go/rutin/resp"

// Handler executes one command against ctx using the arguments remaining in
// args, returning the reply Frame or an error (typically *Error, but any
// error is accepted — ToFrame converts it).
type Handler func(ctx *Context, args *ArgIter) (*resp.Frame, error)

// Descriptor is one catalog entry, grounded on original_source's per-command
// CATS_FLAG/CMD_FLAG consts plus its NAME/arity checks folded into one
// struct instead of one impl block per command type.
type Descriptor struct {
	Name string

	// Arity mirrors Redis's convention: a positive value is the exact
	// argument count (excluding the command name itself); a negative
	// value means "at least |Arity|"; zero means unconstrained (e.g.
	// UNSUBSCRIBE's "zero or more" form).
	Arity int

	// Flags classifies the command for ACL enforcement (spec.md §4.4 step
	// 2) and for write-propagation (step 5).
	Flags    Flag
	IsWriter bool

	Run Handler

	// Sub holds second-level dispatch for two-word commands (spec.md
	// §4.4 step 1's "CLIENT TRACKING"/"SCRIPT EXISTS" example); nil for
	// every single-word command.
	Sub map[string]*Descriptor
}

var catalog = make(map[string]*Descriptor)

func register(d *Descriptor) { catalog[d.Name] = d }

// Lookup resolves a command name (case-insensitively) to its Descriptor.
func Lookup(name string) (*Descriptor, bool) {
	d, ok := catalog[upper(name)]
	return d, ok
}

func checkArity(arity, got int) bool {
	switch {
	case arity == 0:
		return true
	case arity > 0:
		return got == arity
	default:
		return got >= -arity
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
