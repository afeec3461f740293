package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

const errorConflictingTogglesFormat = "--%s is incompatible with --%s"

// toggleFlagPair models a paired on/off switch exposed as two flags, in the
// style of --exclude-dotfiles/--include-dotfiles. Giving both flags in one
// invocation is a configuration error.
type toggleFlagPair struct {
	enableFlagName  string
	disableFlagName string
	enableValue     bool
	disableValue    bool
}

// register adds both flags of the pair to the flag set.
func (pair *toggleFlagPair) register(flagSet *pflag.FlagSet, enableUsage string, disableUsage string) {
	flagSet.BoolVar(&pair.enableValue, pair.enableFlagName, false, enableUsage)
	flagSet.BoolVar(&pair.disableValue, pair.disableFlagName, false, disableUsage)
}

// resolve reports the requested state and whether either flag was given.
// The enable flag wins when set; the disable flag negates; conflicting flags
// fail before any traversal begins.
func (pair *toggleFlagPair) resolve(flagSet *pflag.FlagSet) (bool, bool, error) {
	enableChanged := flagSet.Changed(pair.enableFlagName)
	disableChanged := flagSet.Changed(pair.disableFlagName)
	if enableChanged && disableChanged {
		return false, false, fmt.Errorf(errorConflictingTogglesFormat, pair.enableFlagName, pair.disableFlagName)
	}
	if enableChanged {
		return pair.enableValue, true, nil
	}
	if disableChanged {
		return !pair.disableValue, true, nil
	}
	return false, false, nil
}
