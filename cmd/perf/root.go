package perf

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dBot/cmd/util"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/driver"
	"github.com/ValentinKolb/dBot/rpc/server"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var (
	// PerfCmd measures the request throughput of sessions
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for dBot sessions",
		Long: `Starts a session server and connects mock drivers to it, then measures
the throughput of text requests and binary file transfers over the selected transport.`,
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfLargeValueSizeKB = 1000
	perfNumSessions      = 10
	perfSkip             = make([]string, 0)
	perfEndpoint         = "127.0.0.1:0"
)

const perfFilePath = "/perf/large.bin"

func init() {
	// add flags
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. ping,push-large)"))
	key = "sessions"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of driver sessions to use for the benchmark"))
	key = "large-value-size"
	PerfCmd.Flags().Int(key, 1000, util.WrapString("How large the file for the push-large and pull-large tests should be (in KB)"))
	key = "endpoint"
	PerfCmd.Flags().String(key, "127.0.0.1:0", util.WrapString("The address of the session server started for the test (a path for unix)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumSessions = viper.GetInt("sessions")
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	perfEndpoint = viper.GetString("endpoint")

	if perfNumSessions < 1 {
		return fmt.Errorf("sessions must be at least 1")
	}
	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dBot sessions")

	t, err := util.GetServerTransport()
	if err != nil {
		return err
	}

	config := common.DefaultServerConfig()
	config.Endpoint = perfEndpoint
	config.LogLevel = "warn"

	// Every session hands its channel to the benchmark and stays open until the end
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channels := make(chan transport.IChannel, perfNumSessions)

	s, err := server.NewSessionServer(config, t, func(ch transport.IChannel) error {
		channels <- ch
		<-ctx.Done()
		return nil
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()
	select {
	case <-s.Ready():
	case err := <-errCh:
		return err
	}
	defer func() {
		cancel()
		_ = s.Shutdown(10 * time.Second)
	}()

	// Connect the drivers
	files := driver.NewFileStore()
	handler := files.Handler(driver.MapHandler(map[string][]byte{"ping": []byte("pong")}, driver.EchoHandler))
	for i := 0; i < perfNumSessions; i++ {
		d, err := driver.Dial(t.Name(), s.Addr().String(), 5*time.Second)
		if err != nil {
			return err
		}
		defer d.Close()
		go d.Serve(handler)
	}

	sessions := make([]transport.IChannel, 0, perfNumSessions)
	for len(sessions) < perfNumSessions {
		select {
		case ch := <-channels:
			sessions = append(sessions, ch)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("only %d of %d sessions started", len(sessions), perfNumSessions)
		}
	}

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Transport: %s\n", t.Name())
	fmt.Printf("Endpoint: %s\n", s.Addr())
	fmt.Printf("Sessions: %d\n", perfNumSessions)
	fmt.Printf("Large value size: %d KB\n", perfLargeValueSizeKB)
	fmt.Println()

	fmt.Println("staring tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	benchmarks := []struct {
		name string
		op   func(ch transport.IChannel) error
	}{
		{"ping", func(ch transport.IChannel) error {
			_, err := ch.Request("ping")
			return err
		}},
		{"request-args", func(ch transport.IChannel) error {
			_, err := ch.Request("findImage", "button.png", 0, 0, 1920, 1080, 0.95, 0, 1)
			return err
		}},
		{"push-large", func(ch transport.IChannel) error {
			_, err := ch.Push("pushFile", perfFilePath, largeValue)
			return err
		}},
		{"pull-large", func(ch transport.IChannel) error {
			_, err := ch.Pull("pullFile", perfFilePath)
			return err
		}},
	}

	// pull-large needs the file on the driver side
	if _, err := sessions[0].Push("pushFile", perfFilePath, largeValue); err != nil {
		return err
	}

	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}

			var next atomic.Int64
			b.SetParallelism(perfNumSessions)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				ch := sessions[int(next.Add(1))%len(sessions)]
				for pb.Next() {
					if err := bm.op(ch); err != nil {
						fmt.Printf("(%s) - error: %v\n", bm.name, err)
					}
				}
			})
		})

		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Print request statistics of the sessions
	fmt.Println()
	counts := make([]int64, len(sessions))
	for i, ch := range sessions {
		counts[i] = requestCount(ch)
		fmt.Printf("session %-3d %s requests=%d\n", i, ch.RemoteAddr(), counts[i])
	}
	fmt.Printf("session balance: %s\n", newBalance(counts))

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, t.Name()); err != nil {
			return err
		}
		fmt.Printf("\nresults written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// requestCount reads the request timer of a channel
func requestCount(ch transport.IChannel) int64 {
	type counter interface{ Count() int64 }
	if c, ok := ch.Stats().Get("requests").(counter); ok {
		return c.Count()
	}
	return 0
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, transportName string) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Transport", "Sessions", "LargeValueSizeKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			transportName,
			strconv.Itoa(perfNumSessions),
			strconv.Itoa(perfLargeValueSizeKB),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
