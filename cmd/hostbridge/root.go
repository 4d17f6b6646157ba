package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/hostbridge-go/pkg/config"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath string
	logLevel   string
	wsURL      string
	stdio      bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "hostbridge",
		Short: "Cross-platform host bridge for the picker wheel",
		Long: `hostbridge detects the host shell it runs in, connects to it through the
matching transport and falls back to a local simulation when no host
answers.

Without --ws-url or --stdio the browser-only simulation is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default is ./hostbridge.yaml or $HOME/.config/hostbridge/hostbridge.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.wsURL, "ws-url", "", "connect to a desktop shell exposing a webview channel over WebSocket")
	pf.BoolVar(&flags.stdio, "stdio", false, "talk to an embedding shell over stdin/stdout")
	root.MarkFlagsMutuallyExclusive("ws-url", "stdio")

	root.AddCommand(newDemoCommand(flags))
	root.AddCommand(newServeCommand(flags))
	return root
}

// loadConfig reads the config file and applies command line overrides
func (f *globalFlags) loadConfig(extra ...config.Override) (*config.Config, error) {
	overrides := []config.Override{func(v *viper.Viper) error {
		if f.logLevel != "" {
			v.Set("logging.level", f.logLevel)
		}
		return nil
	}}
	return config.Load(f.configPath, append(overrides, extra...)...)
}
