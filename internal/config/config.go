// Package config loads and validates the server's TOML configuration
// file. The teacher (config.go) reads a flat key=value file through
// its own vendored horgh/config library; SPEC_FULL.md's Ambient Stack
// replaces that with github.com/BurntSushi/toml, since the spec calls
// for a config file loadable with a normal ecosystem format rather
// than the teacher's bespoke one, and TOML is the format the rest of
// the pack's servers converge on.
package config

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Server holds listener and server-identity settings.
type Server struct {
	ListenAddress string `toml:"listen_address"`
	Name          string `toml:"name"`
	Version       string `toml:"version"`
}

// Network holds network-identity and message-of-the-day settings.
type Network struct {
	Name    string   `toml:"name"`
	MOTD    []string `toml:"motd"`
}

// Limits holds the operator-tunable bounds: per-IP connection cap and
// the grammar length maximums. MaxNickLength is only advertised (as
// NICKLEN in RPL_ISUPPORT); nicknames are always truncated at
// identity.MaxNickLength (9) whatever it is set to.
type Limits struct {
	MaxConnectionsPerIP int `toml:"max_connections_per_ip"`
	MaxNickLength        int `toml:"max_nick_length"`
	MaxChannelLength     int `toml:"max_channel_length"`
	MaxTopicLength       int `toml:"max_topic_length"`
}

// Oper holds the single configured operator account spec §4.F's OPER
// command checks against.
type Oper struct {
	Name     string `toml:"name"`
	Password string `toml:"password"`
}

// Config is the root of the TOML configuration file.
type Config struct {
	Server  Server  `toml:"server"`
	Network Network `toml:"network"`
	Limits  Limits  `toml:"limits"`
	Oper    Oper    `toml:"oper"`
}

// defaults mirrors the teacher's checkAndParseConfig pattern of
// filling in sane values for anything the operator left unset before
// validating.
func defaults() Config {
	return Config{
		Server: Server{
			ListenAddress: ":6667",
			Name:          "irc.example.net",
			Version:       "ircd-0.1",
		},
		Network: Network{
			Name: "ExampleNet",
		},
		Limits: Limits{
			MaxConnectionsPerIP: 10,
			MaxNickLength:       9,
			MaxChannelLength:    200,
			MaxTopicLength:      390,
		},
	}
}

// Load reads and validates the TOML file at path.
func Load(path string) (Config, error) {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding config file")
	}
	if err := validate(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.ListenAddress) == "" {
		return errors.New("server.listen_address must not be empty")
	}
	if strings.TrimSpace(cfg.Server.Name) == "" {
		return errors.New("server.name must not be empty")
	}
	if strings.TrimSpace(cfg.Network.Name) == "" {
		return errors.New("network.name must not be empty")
	}
	if cfg.Limits.MaxNickLength <= 0 {
		return errors.New("limits.max_nick_length must be positive")
	}
	if cfg.Limits.MaxChannelLength <= 0 {
		return errors.New("limits.max_channel_length must be positive")
	}
	if cfg.Limits.MaxTopicLength <= 0 {
		return errors.New("limits.max_topic_length must be positive")
	}
	if (cfg.Oper.Name == "") != (cfg.Oper.Password == "") {
		return errors.New("oper.name and oper.password must both be set or both be empty")
	}
	return nil
}
