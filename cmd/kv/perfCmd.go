package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/nimbuskv/nimbus/client"
	"github.com/nimbuskv/nimbus/cmd/util"
	"github.com/nimbuskv/nimbus/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for nimbus clusters",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How large the value for the set-large test should be (in KB)"))
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
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchCase is one benchmark: an optional setup/teardown pair around the
// measured operation
type benchCase struct {
	name  string
	setup func(keyAt func(int) string, forEach func(func(string)))
	op    func(key string) error
}

func perfBenchCases() []benchCase {
	namespace, set := recordNamespace()

	seed := func(keyAt func(int) string, forEach func(func(string))) {
		forEach(func(k string) {
			if err := kvClient.PutSync(nil, client.NewKey(namespace, set, k), []byte("test"), 0); err != nil {
				log.Printf("(seed) - error setting key: %v\n", err)
			}
		})
	}

	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	return []benchCase{
		{
			name: "set",
			op: func(k string) error {
				return kvClient.PutSync(nil, client.NewKey(namespace, set, k), []byte("test"), 0)
			},
		},
		{
			name: "set-large",
			op: func(k string) error {
				return kvClient.PutSync(nil, client.NewKey(namespace, set, k), largeValue, 0)
			},
		},
		{
			name:  "get",
			setup: seed,
			op: func(k string) error {
				_, err := kvClient.GetSync(nil, client.NewKey(namespace, set, k))
				return err
			},
		},
		{
			name:  "has",
			setup: seed,
			op: func(k string) error {
				_, err := kvClient.ExistsSync(nil, client.NewKey(namespace, set, k))
				return err
			},
		},
		{
			name:  "delete",
			setup: seed,
			op: func(k string) error {
				return kvClient.DeleteSync(nil, client.NewKey(namespace, set, k))
			},
		},
		{
			name:  "batch",
			setup: seed,
			op: func(k string) error {
				keys := make([]string, 10)
				for i := range keys {
					keys[i] = k
				}
				_, err := kvClient.BatchGetSync(nil, namespace, set, keys)
				return err
			},
		},
		{
			name:  "mixed",
			setup: seed,
			op: func(k string) error {
				key := client.NewKey(namespace, set, k)
				if err := kvClient.PutSync(nil, key, []byte("test"), 0); err != nil {
					return err
				}
				if _, err := kvClient.GetSync(nil, key); err != nil {
					return err
				}
				_, err := kvClient.ExistsSync(nil, key)
				return err
			},
		},
	}
}

// perfResult pairs the wall-clock benchmark result with the per-operation
// latency distribution
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Histogram
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for nimbus clusters")

	// Print configuration
	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	namespace, set := recordNamespace()
	results := make(map[string]perfResult)

	for _, bc := range perfBenchCases() {
		if shouldSkip(bc.name) {
			fmt.Printf("%-20sskipped\n", bc.name)
			continue
		}

		// per-op latency distribution, sampled alongside the aggregate
		// benchmark numbers
		latency := gometrics.NewHistogram(gometrics.NewUniformSample(100_000))

		bench := testing.Benchmark(func(b *testing.B) {
			// prepare keys
			keyAt, forEach := getKeys(bc.name)

			if bc.setup != nil {
				bc.setup(keyAt, forEach)
			}

			// cleanup
			b.Cleanup(func() {
				forEach(func(k string) {
					err := kvClient.DeleteSync(nil, client.NewKey(namespace, set, k))
					if err != nil {
						log.Printf("(%s) - error deleting key: %v\n", bc.name, err)
					}
				})
			})

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					start := time.Now()
					if err := bc.op(keyAt(counter)); err != nil {
						log.Printf("(%s) - error: %v\n", bc.name, err)
					}
					latency.Update(time.Since(start).Nanoseconds())
					counter++
				}
			})
		})

		results[bc.name] = perfResult{bench: bench, latency: latency}
		printResult(bc.name, results[bc.name])
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
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

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	keyAt := func(i int) string {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	forEach := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return keyAt, forEach
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	ps := result.latency.Percentiles([]float64{0.5, 0.99})

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Skipped",
		"Seeds", "TimeoutSec", "Retries", "MaxCommands", "PoolMode",
		"Threads", "LargeValueSizeKB", "KeysCount",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.bench.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		ps := result.latency.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(ps[0]).String(),
			time.Duration(ps[1]).String(),
			skipped,
			strings.Join(config.Seeds, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.MaxRetries),
			strconv.Itoa(config.MaxCommands),
			string(config.PoolMode),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
