package brainfrick

import (
	"github.com/BurntSushi/toml"
	"github.com/joomcode/errorx"
)

// Config is the on-disk interpreter configuration.
type Config struct {
	TapeSize      int    `toml:"tape_size"`
	StepLimit     uint64 `toml:"step_limit"`
	JumpTable     bool   `toml:"jump_table"`
	CheckBrackets bool   `toml:"check_brackets"`
}

func DefaultConfig() Config {
	return Config{TapeSize: DefaultTapeSize}
}

// LoadConfig reads a TOML file. Keys missing from the file keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errorx.Decorate(InvalidConfig.Wrap(err, "parse"), "config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, InvalidConfig.New("config %s: unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errorx.Decorate(err, "config %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TapeSize <= 0 {
		return InvalidConfig.New("tape_size must be positive, got %d", c.TapeSize)
	}
	return nil
}

// Options turns the configuration into VM options. CheckBrackets is not a VM
// concern and is left to the caller.
func (c Config) Options() []Option {
	opts := []Option{WithTapeSize(c.TapeSize)}
	if c.StepLimit > 0 {
		opts = append(opts, WithStepLimit(c.StepLimit))
	}
	if c.JumpTable {
		opts = append(opts, WithJumpTable())
	}
	return opts
}
