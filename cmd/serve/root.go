package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dBot/cmd/util"
	"github.com/ValentinKolb/dBot/lib/rendezvous"
	"github.com/ValentinKolb/dBot/lib/wait"
	"github.com/ValentinKolb/dBot/rpc/client"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/server"
	"github.com/ValentinKolb/dBot/rpc/transport"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dBot session server",
		Long:    `Start the dBot session server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DBOT_<flag> (e.g. DBOT_WAIT_TIME=10s)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	cmdUtil.SetupServerFlags(ServeCmd)

	key := "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address of an HTTP endpoint exposing /metrics (prometheus), /devices and /debug/wait (e.g. localhost:9100)"))

	key = "identify"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Command whose reply identifies the connected device (e.g. getAndroidId). Identified sessions are kept open and listed under /devices"))

	key = "heartbeat"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Command sent periodically to identified sessions to detect drivers that went away"))

	key = "heartbeat-interval"
	ServeCmd.PersistentFlags().Duration(key, 5*time.Second, cmdUtil.WrapString("Interval of the heartbeat command"))

	key = "exec"
	ServeCmd.PersistentFlags().StringArray(key, nil, cmdUtil.WrapString("Command sent to every session after it started, whitespace separated (e.g. --exec 'click 100 200'). Can be repeated, replies are logged"))

	key = "shutdown-timeout"
	ServeCmd.PersistentFlags().Duration(key, 10*time.Second, cmdUtil.WrapString("How long to wait for active sessions on shutdown"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig = cmdUtil.GetServerConfig()

	if _, err := common.ParseLogLevel(serveCmdConfig.LogLevel); err != nil {
		return err
	}
	if serveCmdConfig.Channel.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if serveCmdConfig.Channel.RequestsPerSecond < 0 {
		return fmt.Errorf("requests-per-second must not be negative")
	}
	if viper.GetString("heartbeat") != "" && viper.GetDuration("heartbeat-interval") <= 0 {
		return fmt.Errorf("heartbeat-interval must be positive")
	}

	return nil
}

// run starts the session server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	devices := rendezvous.New[transport.IChannel]()

	s, err := server.NewSessionServer(*serveCmdConfig, t, newEntryPoint(ctx, devices, waitSpec(serveCmdConfig)))
	if err != nil {
		return err
	}

	// Optional metrics endpoint
	if addr := viper.GetString("metrics-endpoint"); addr != "" {
		metricsServer := newMetricsServer(addr, devices)
		go func() {
			server.Logger.Infof("serving metrics on http://%s/metrics", addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				server.Logger.Errorf("metrics endpoint failed: %v", err)
			}
		}()
		defer metricsServer.Close()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		server.Logger.Infof("received shutdown signal")
	}

	if err := s.Shutdown(viper.GetDuration("shutdown-timeout")); err != nil {
		return err
	}
	return <-errCh
}

// waitSpec converts the wait configuration into the spec used by polled commands
func waitSpec(config *common.ServerConfig) wait.Spec {
	return wait.Spec{
		WaitTime:       config.Wait.WaitTime,
		IntervalTime:   config.Wait.IntervalTime,
		RaiseOnTimeout: config.Wait.RaiseOnTimeout,
	}
}

// newEntryPoint creates the entry point run for every session: identify the device,
// run the configured commands and keep identified sessions open until shutdown
func newEntryPoint(ctx context.Context, devices *rendezvous.Registry[transport.IChannel], spec wait.Spec) transport.EntryPoint {
	identify := splitCommand(viper.GetString("identify"))
	heartbeat := splitCommand(viper.GetString("heartbeat"))
	heartbeatInterval := viper.GetDuration("heartbeat-interval")

	commands := make([][]any, 0)
	for _, c := range viper.GetStringSlice("exec") {
		if args := splitCommand(c); len(args) > 0 {
			commands = append(commands, args)
		}
	}

	return client.EntryPoint(spec, func(bot *client.Bot) error {
		ch := bot.Channel()

		var id string
		if len(identify) > 0 {
			reply, ok, err := bot.CallOptional(identify...)
			if err != nil {
				return err
			}
			if !ok || reply == "" {
				return fmt.Errorf("driver %s did not identify itself", ch.RemoteAddr())
			}
			id = reply
			devices.Publish(id, ch)
			defer devices.RemoveIf(id, ch)
		}

		for _, args := range commands {
			reply, err := bot.Call(args...)
			if err != nil {
				return err
			}
			server.Logger.Infof("%s: %v -> %q", ch.RemoteAddr(), args, reply)
		}

		if id == "" {
			return nil
		}

		// Keep the identified session until shutdown or until the driver goes away
		if len(heartbeat) == 0 {
			<-ctx.Done()
			return nil
		}
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := bot.Channel().RequestContext(ctx, heartbeat...); err != nil {
					return err
				}
			}
		}
	})
}

// splitCommand splits a whitespace separated command into request arguments
func splitCommand(command string) []any {
	fields := strings.Fields(command)
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return args
}

// newMetricsServer creates the HTTP server of the metrics endpoint
func newMetricsServer(addr string, devices *rendezvous.Registry[transport.IChannel]) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteMetrics(w)
	})
	mux.HandleFunc("/devices", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(devices.Keys())
	})
	mux.HandleFunc("/debug/wait", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		gometrics.WriteJSONOnce(wait.Metrics, w)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
