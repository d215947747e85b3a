package command

import (
	"path"

	"golang.org/x/crypto/bcrypt"
)

// User is one ACL entry: spec.md §6.5's security.acl flat user/pass table,
// grounded on original_source's conf::AccessControl (a per-connection
// struct the dispatcher consults for every command-flag, key, and channel
// check per spec.md §4.4 step 2-3).
type User struct {
	Name string

	// PassHash is the bcrypt hash of the user's password; empty means
	// "nopass" (AUTH with any password, or none at all, succeeds).
	PassHash []byte
	On       bool

	// AllowCmds is the OR of every category Flag this user may invoke.
	// The zero Flag is treated as "unrestricted" — the conventional
	// default-user superuser grant — rather than "nothing allowed", since
	// a freshly constructed User with no explicit grants is meant to
	// behave like `ACL SETUSER default on nopass ~* &* +@all`.
	AllowCmds Flag

	// AllowKeys/AllowChans are glob patterns (path.Match syntax); a nil
	// slice also means unrestricted.
	AllowKeys  []string
	AllowChans []string
}

// HashPassword bcrypt-hashes a plaintext password for storage in a User's
// PassHash field, replacing the original's plaintext comparison with the
// teacher's golang.org/x/crypto dependency.
func HashPassword(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
}

// CheckPassword reports whether plaintext matches u's stored hash. A user
// with no stored hash (nopass) accepts anything, including an empty
// password.
func (u *User) CheckPassword(plaintext string) bool {
	if len(u.PassHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(u.PassHash, []byte(plaintext)) == nil
}

// AllowsCommand reports whether u may run a command whose category mask is
// catMask, implementing spec.md §4.4 step 2.
func (u *User) AllowsCommand(catMask Flag) bool {
	if u.AllowCmds.IsZero() {
		return true
	}
	return u.AllowCmds.Intersects(catMask)
}

// AllowsKey reports whether u may touch key, per step 3's per-key AC check.
func (u *User) AllowsKey(key string) bool { return matchAny(u.AllowKeys, key) }

// AllowsChannel reports whether u may touch a pub/sub channel name.
func (u *User) AllowsChannel(ch string) bool { return matchAny(u.AllowChans, ch) }

func matchAny(patterns []string, s string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, s); ok {
			return true
		}
	}
	return false
}

// ParseCategoryFlags ORs together the category names in names (per
// spec.md §4.4's read/write/pub-sub/admin/... categories), ignoring any
// name that doesn't match, for conf.ACLUser's plain-string
// allow_commands list. "all" (or an empty list) yields the zero Flag,
// which User.AllowsCommand already treats as unrestricted.
func ParseCategoryFlags(names []string) Flag {
	var f Flag
	for _, n := range names {
		switch n {
		case "read":
			f = f.Or(FlagRead)
		case "write":
			f = f.Or(FlagWrite)
		case "pubsub":
			f = f.Or(FlagPubSub)
		case "connection":
			f = f.Or(FlagConnection)
		case "admin":
			f = f.Or(FlagAdmin)
		case "replication":
			f = f.Or(FlagReplication)
		case "dangerous":
			f = f.Or(FlagDangerous)
		case "keyspace":
			f = f.Or(FlagKeyspace)
		case "all", "":
			return Flag{}
		}
	}
	return f
}

// ACL is the server-wide user table, keyed by username.
type ACL struct {
	Users map[string]*User
}

func NewACL() *ACL { return &ACL{Users: make(map[string]*User)} }

// DefaultUser installs (and returns) an unrestricted nopass "default" user,
// the out-of-the-box identity a connection carries before AUTH/HELLO.
func (a *ACL) DefaultUser() *User {
	if u, ok := a.Users["default"]; ok {
		return u
	}
	u := &User{Name: "default", On: true}
	a.Users["default"] = u
	return u
}

// Authenticate resolves username/password to its User, mirroring
// original_source's AUTH handling: an unknown or disabled user, or a
// password mismatch, both yield the same WRONGPASS message so a caller
// cannot distinguish "no such user" from "wrong password".
func (a *ACL) Authenticate(username, password string) (*User, error) {
	u, ok := a.Users[username]
	if !ok || !u.On || !u.CheckPassword(password) {
		return nil, Forbidden("WRONGPASS invalid username-password pair or user is disabled")
	}
	return u, nil
}
