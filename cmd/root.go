package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dBot/cmd/driver"
	"github.com/ValentinKolb/dBot/cmd/perf"
	"github.com/ValentinKolb/dBot/cmd/serve"
	"github.com/ValentinKolb/dBot/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dbot",
		Short: "remote automation session server",
		Long: fmt.Sprintf(`dBot (v%s)

A session server for remote automation drivers (Android, Windows, Web).
Drivers connect over TCP, every connection becomes a session that
exchanges length-prefixed request and response frames.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dBot",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dBot v%s\n", Version)
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(driver.DriverCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
