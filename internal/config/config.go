// Package config resolves VM construction limits from the environment,
// the same way the teacher leans on github.com/caarlos0/env/v6 wherever it
// needs environment-backed configuration rather than hand-rolled parsing.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/mna/mica/lang/compiler"
)

// VM holds the tunable limits of a machine.VM, overridable via MICA_*
// environment variables. MaxRegisters and MaxFrames are only checked
// against the compiled-in size of the VM's shared register file and call
// stack, which are fixed-capacity arrays: a larger value is rejected, and a
// smaller one is accepted but not applied to the VM. MaxNatives resizes the
// native function table per VM.
type VM struct {
	MaxRegisters int `env:"MAX_REGISTERS" envDefault:"256"`
	MaxFrames    int `env:"MAX_FRAMES" envDefault:"64"`
	MaxNatives   int `env:"MAX_NATIVES" envDefault:"64"`
}

// Load reads MICA_MAX_REGISTERS, MICA_MAX_FRAMES and MICA_MAX_NATIVES from
// the environment, falling back to the compiled-in defaults for any that
// are unset, then validates the result.
func Load() (VM, error) {
	cfg := VM{}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MICA_"}); err != nil {
		return VM{}, err
	}
	if err := cfg.Validate(); err != nil {
		return VM{}, err
	}
	return cfg, nil
}

// Validate reports an error if cfg asks for more registers or call frames
// than the VM's register file and call stack were compiled with; those are
// fixed-size arrays, not resizable per instance.
func (cfg VM) Validate() error {
	if cfg.MaxRegisters > compiler.MaxRegisters {
		return fmt.Errorf("MAX_REGISTERS %d exceeds compiled-in limit %d", cfg.MaxRegisters, compiler.MaxRegisters)
	}
	if cfg.MaxFrames > compiler.MaxFrames {
		return fmt.Errorf("MAX_FRAMES %d exceeds compiled-in limit %d", cfg.MaxFrames, compiler.MaxFrames)
	}
	if cfg.MaxNatives < 0 {
		return fmt.Errorf("MAX_NATIVES must not be negative, got %d", cfg.MaxNatives)
	}
	return nil
}
