package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/sKV/cmd/util"
	"github.com/ValentinKolb/sKV/lib/db"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for local stores",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfOps        = 10_000
	perfValueSize  = 128
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 10_000, util.WrapString("Number of operations per benchmark"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 128, util.WrapString("Size of the values to write (in bytes)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfOps = viper.GetInt("ops")
	perfValueSize = viper.GetInt("value-size")
	perfKeySpread = viper.GetInt("keys")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for sKV stores")

	m, err := targetMap(cmd)
	if err != nil {
		return err
	}

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Map: %s\n", m.Name())
	fmt.Printf("Threads: %d, Ops: %d, Keys: %d, Value size: %d bytes\n",
		perfNumThreads, perfOps, perfKeySpread, perfValueSize)
	fmt.Println()

	fmt.Println("starting tests...")

	ctx := cmd.Context()
	value := make([]byte, perfValueSize)
	timers := make(map[string]gometrics.Timer)

	bench := func(name string, op func(ctx context.Context, key []byte) error) {
		if shouldSkip(name) {
			fmt.Printf("%-20sskipped\n", name)
			return
		}

		timer := gometrics.NewTimer()
		timers[name] = timer

		var wg sync.WaitGroup
		wg.Add(perfNumThreads)
		perThread := perfOps / perfNumThreads
		for t := 0; t < perfNumThreads; t++ {
			go func(t int) {
				defer wg.Done()
				for i := 0; i < perThread; i++ {
					key := []byte(fmt.Sprintf("%s-%s-%d", perfKeyPrefix, name, (t*perThread+i)%perfKeySpread))
					start := time.Now()
					if err := op(ctx, key); err != nil {
						log.Printf("(%s) - operation failed: %v\n", name, err)
					}
					timer.UpdateSince(start)
				}
			}(t)
		}
		wg.Wait()

		printTimer(name, timer)
	}

	bench("set", func(ctx context.Context, key []byte) error {
		return m.Insert(ctx, key, value)
	})
	bench("get", func(ctx context.Context, key []byte) error {
		_, _, err := m.Get(ctx, key)
		return err
	})
	bench("has", func(ctx context.Context, key []byte) error {
		_, err := m.Contains(ctx, key)
		return err
	})
	bench("stream", func(ctx context.Context, _ []byte) error {
		s := m.KeysPrefix([]byte(perfKeyPrefix))
		defer s.Close()
		for s.Next(ctx) {
		}
		return s.Err()
	})
	bench("cork", func(ctx context.Context, key []byte) error {
		return m.Cork().Put(key, value).Delete(key).Commit(ctx)
	})
	bench("delete", func(ctx context.Context, key []byte) error {
		return m.Remove(ctx, key)
	})

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, timers, m); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printTimer prints the result of a benchmark test in a formatted way
func printTimer(test string, timer gometrics.Timer) {
	if timer.Count() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	mean := time.Duration(timer.Mean())
	p99 := time.Duration(timer.Percentile(0.99))
	fmt.Printf("%-20smean %-12s p99 %-12s %.0f ops/sec\n",
		test, mean, p99, timer.RateMean())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, timers map[string]gometrics.Timer, m *db.Map) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P99Ns", "OpsPerSec",
		"Map", "Threads", "Keys", "ValueSizeBytes",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, timer := range timers {
		row := []string{
			test,
			strconv.FormatInt(timer.Count(), 10),
			fmt.Sprintf("%.0f", timer.Mean()),
			fmt.Sprintf("%.0f", timer.Percentile(0.5)),
			fmt.Sprintf("%.0f", timer.Percentile(0.99)),
			fmt.Sprintf("%.0f", timer.RateMean()),
			m.Name(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfValueSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
