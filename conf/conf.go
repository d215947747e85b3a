// Package conf defines the server's configuration surface (spec.md §6.5)
// and loads it from a TOML file. CLI/argv parsing, environment overrides,
// and hot-reload orchestration are external collaborators (spec.md §1);
// this package only owns the struct shapes and a plain file load.
package conf

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type (
	Config struct {
		Server   ServerConf   `toml:"server"`
		Security SecurityConf `toml:"security"`
		Replica  ReplicaConf  `toml:"replica"`
		Master   MasterConf   `toml:"master"`
		RDB      RDBConf      `toml:"rdb"`
		AOF      AOFConf      `toml:"aof"`
		Memory   MemoryConf   `toml:"memory"`
		TLS      *TLSConf     `toml:"tls"`
	}

	ServerConf struct {
		Host           string `toml:"host"`
		Port           uint16 `toml:"port"`
		LogLevel       string `toml:"log_level"`
		MaxConnections int    `toml:"max_connections"`
		MaxBatch       int    `toml:"max_batch"`

		// RunID is generated at startup, never read from the file.
		RunID string `toml:"-"`
	}

	SecurityConf struct {
		ACLUsers []ACLUser `toml:"acl_users"`
	}

	ACLUser struct {
		Name       string   `toml:"name"`
		PassHash   string   `toml:"pass_hash"`
		On         bool     `toml:"on"`
		AllowCmds  []string `toml:"allow_commands"`
		AllowKeys  []string `toml:"allow_keys"`
		AllowChans []string `toml:"allow_channels"`
	}

	ReplicaConf struct {
		MasterHost string `toml:"master_host"`
		MasterPort uint16 `toml:"master_port"`
		MasterAuth string `toml:"master_auth"`
		ReadOnly   bool   `toml:"read_only"`
	}

	MasterConf struct {
		MaxReplica         int    `toml:"max_replica"`
		BacklogSize        uint64 `toml:"backlog_size"`
		PingReplicaPeriod  uint64 `toml:"ping_replica_period_ms"`
		TimeoutMs          uint64 `toml:"timeout_ms"`
	}

	RDBConf struct {
		FilePath       string `toml:"file_path"`
		EnableChecksum bool   `toml:"enable_checksum"`
		IntervalSecs   uint64 `toml:"interval_secs"`
	}

	AppendFsync string

	AOFConf struct {
		FilePath         string      `toml:"file_path"`
		AppendFsync      AppendFsync `toml:"append_fsync"`
		MaxRecordExponent uint       `toml:"max_record_exponent"`
	}

	MemoryConf struct {
		MaxMemory int64  `toml:"max_memory"`
		Policy    string `toml:"policy"`
		Samples   int    `toml:"samples"`
	}

	TLSConf struct {
		Port     uint16 `toml:"port"`
		CertFile string `toml:"cert_file"`
		KeyFile  string `toml:"key_file"`
	}
)

const (
	FsyncAlways   AppendFsync = "always"
	FsyncEverysec AppendFsync = "everysec"
	FsyncNo       AppendFsync = "no"
)

func Default() *Config {
	return &Config{
		Server: ServerConf{
			Host:           "0.0.0.0",
			Port:           6379,
			LogLevel:       "info",
			MaxConnections: 10000,
			MaxBatch:       512,
		},
		Replica: ReplicaConf{ReadOnly: true},
		Master: MasterConf{
			MaxReplica:        10,
			BacklogSize:       1 << 20,
			PingReplicaPeriod: 1000,
			TimeoutMs:         2000,
		},
		RDB: RDBConf{FilePath: "dump.rdb", EnableChecksum: true},
		AOF: AOFConf{FilePath: "appendonly.aof", AppendFsync: FsyncEverysec},
		Memory: MemoryConf{
			Policy:  "noeviction",
			Samples: 5,
		},
	}
}

// Load reads path (a TOML file per spec.md §6.2's positional config
// argument) over the defaults. A missing optional section keeps its
// default value; Load never merges CLI flags or environment variables —
// that belongs to the out-of-scope CLI layer.
func Load(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}

func (c *RDBConf) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

func (c *MasterConf) PingPeriod() time.Duration {
	return time.Duration(c.PingReplicaPeriod) * time.Millisecond
}

func (c *MasterConf) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
