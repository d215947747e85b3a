// Package persist ties together the aof and rdb sub-packages' startup
// load path: walking the configured data directory to find whichever of
// the RDB snapshot or the AOF log is newest, per spec.md §6.4's "a
// typed binary snapshot" plus "the concatenation of Wcmd bytes" both
// living side by side in the same directory.
package persist

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/rutin-go/rutin/cmn/nlog"
	"github.com/rutin-go/rutin/command"
	"github.com/rutin-go/rutin/conf"
	"github.com/rutin-go/rutin/mailbox"
	"github.com/rutin-go/rutin/persist/aof"
	"github.com/rutin-go/rutin/persist/rdb"
	"github.com/rutin-go/rutin/store"
)

// LoadNewest scans the directory holding cfg's configured RDB/AOF file
// paths (github.com/karrick/godirwalk, a teacher dependency, replacing a
// plain os.ReadDir so the scan follows the teacher's own directory-walk
// style from fs/fs_linux.go's mountpath discovery) and loads whichever of
// the two is newer into db — an AOF is always a superset of the RDB
// snapshot it was last rewritten from, so ties and "both absent" both
// resolve to "load the AOF path" (a no-op if it, too, is absent).
func LoadNewest(db *store.Db, po *mailbox.PostOffice, acl *command.ACL, rdbCfg conf.RDBConf, aofCfg conf.AOFConf) (int, error) {
	dir := filepath.Dir(aofCfg.FilePath)
	if dir == "." && filepath.Dir(rdbCfg.FilePath) != "." {
		dir = filepath.Dir(rdbCfg.FilePath)
	}

	var rdbMod, aofMod int64 = -1, -1
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			switch path {
			case rdbCfg.FilePath:
				if fi, err := os.Stat(path); err == nil {
					rdbMod = fi.ModTime().UnixNano()
				}
			case aofCfg.FilePath:
				if fi, err := os.Stat(path); err == nil {
					aofMod = fi.ModTime().UnixNano()
				}
			}
			return nil
		},
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, errors.WithMessage(err, "persist: walk data directory")
	}

	switch {
	case aofMod < 0 && rdbMod < 0:
		return 0, nil
	case rdbMod > aofMod:
		nlog.Infof("persist: loading newer rdb snapshot %s", rdbCfg.FilePath)
		return rdb.Load(db, rdbCfg.FilePath)
	default:
		nlog.Infof("persist: loading aof log %s", aofCfg.FilePath)
		return aof.Load(db, po, acl, aofCfg.FilePath)
	}
}
