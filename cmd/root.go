package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/autodealer/dealer_backend/cmd/http"
	systemcmd "github.com/autodealer/dealer_backend/cmd/system"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "dealer",
		Short:   "Dealership conversation and negotiation backend",
		Version: Version,
		Long: `dealer serves client/agent conversations for a car dealership marketplace:
REST and websocket messaging, AI assisted price negotiation and offline email notifications.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "config file path")

	root.AddCommand(systemcmd.NewSystemCommand(), httpcmd.NewHTTPCommand())
	return root
}

func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
