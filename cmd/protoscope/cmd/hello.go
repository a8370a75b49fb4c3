package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/protoscope/internal/logging"
)

// EntryLogger is the logger name used by the bare invocation.
const EntryLogger = "main"

// Greeting is the single record the bare invocation emits.
const Greeting = "Hello, World!"

// runHello configures logging at INFO on stderr and emits the greeting once.
// It reads no configuration; only explicit logging flags are honoured.
func runHello(cmd *cobra.Command, a *app) error {
	if err := a.logs.Configure(a.withFlags(logging.DefaultConfig()), cmd.ErrOrStderr()); err != nil {
		return err
	}
	a.logs.Logger(EntryLogger).Info(Greeting)
	return nil
}
