package maincmd

import (
	"github.com/mna/mica/internal/config"
	"github.com/mna/mica/lang/machine"
	"github.com/mna/mica/lang/natives"
)

// newVM resolves VM limits from c's flags (which already absorbed
// MICA_MAX_REGISTERS / MICA_MAX_FRAMES / MICA_MAX_NATIVES via mainer's
// EnvVars support), falls back to internal/config's defaults for anything
// left unset, and returns a VM with the standard natives registered.
func (c *Cmd) newVM() (*machine.VM, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.MaxRegisters != 0 {
		cfg.MaxRegisters = c.MaxRegisters
	}
	if c.MaxFrames != 0 {
		cfg.MaxFrames = c.MaxFrames
	}
	if c.MaxNatives != 0 {
		cfg.MaxNatives = c.MaxNatives
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vm := machine.New()
	vm.SetMaxNatives(cfg.MaxNatives)
	if err := natives.Register(vm); err != nil {
		return nil, err
	}
	return vm, nil
}
