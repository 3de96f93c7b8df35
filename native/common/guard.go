package common

// GlobalModule is the pause key that blocks every module at once.
const GlobalModule = "global"

type PauseView interface {
	IsPaused(module string) bool
}

// Guard fails with ErrModulePaused when either the module or the global
// switch is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(GlobalModule) || p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
