package driver

import (
	"fmt"
	"github.com/ValentinKolb/dBot/cmd/util"
	"github.com/ValentinKolb/dBot/rpc/common"
	mockDriver "github.com/ValentinKolb/dBot/rpc/driver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

var (
	driverConfig = &common.DriverConfig{}

	// DriverCmd runs a mock driver against a session server
	DriverCmd = &cobra.Command{
		Use:   "driver",
		Short: "Run a mock driver that connects to a session server",
		Long: `Run a mock driver that connects to a session server and answers every request.
Commands configured with --reply get a fixed reply, pushFile and pullFile are served
from memory and all other commands are echoed.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "endpoint"
	DriverCmd.Flags().String(key, "127.0.0.1:9999", util.WrapString("The address of the session server (host:port for tcp, a path for unix)"))

	key = "timeout"
	DriverCmd.Flags().Int(key, 10, util.WrapString("The connect timeout in seconds"))

	key = "reply"
	DriverCmd.Flags().StringArray(key, nil, util.WrapString("Fixed reply of a command in the format name=value (e.g. --reply getAndroidId=a1b2c3). Can be repeated"))

	key = "log-level"
	DriverCmd.Flags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the driver configuration from the command line flags and environment variables
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	driverConfig.Endpoint = viper.GetString("endpoint")
	driverConfig.TimeoutSecond = viper.GetInt("timeout")
	driverConfig.Replies = make(map[string]string)

	for _, reply := range viper.GetStringSlice("reply") {
		name, value, ok := strings.Cut(reply, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid reply format: %s (expected name=value)", reply)
		}
		driverConfig.Replies[name] = value
	}

	return common.InitLoggers(viper.GetString("log-level"))
}

// run connects to the session server and serves requests until the session ends
func run(_ *cobra.Command, _ []string) error {
	network, err := util.GetNetwork()
	if err != nil {
		return err
	}

	fmt.Println(driverConfig.String())

	d, err := mockDriver.Dial(network, driverConfig.Endpoint, time.Duration(driverConfig.TimeoutSecond)*time.Second)
	if err != nil {
		return err
	}
	defer d.Close()

	replies := make(map[string][]byte, len(driverConfig.Replies))
	for name, value := range driverConfig.Replies {
		replies[name] = []byte(value)
	}

	files := mockDriver.NewFileStore()
	return d.Serve(files.Handler(mockDriver.MapHandler(replies, mockDriver.EchoHandler)))
}
