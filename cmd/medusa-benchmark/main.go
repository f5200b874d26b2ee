// Command medusa-benchmark measures Medusa server throughput. It opens
// N client connections and issues requests split across them, then
// reports ops/sec and latency percentiles.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/medusa-kv/medusa/internal/protocol"
)

type options struct {
	addr     string
	clients  int
	requests int
	test     string
	keyspace int
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "127.0.0.1:2312", "server address")
	flag.IntVar(&opts.clients, "clients", 10, "number of concurrent clients")
	flag.IntVar(&opts.requests, "requests", 10000, "total number of requests")
	flag.StringVar(&opts.test, "test", "mixed", "workload: set, get, or mixed")
	flag.IntVar(&opts.keyspace, "keyspace", 1000, "number of distinct keys")
	flag.Parse()

	if opts.test != "set" && opts.test != "get" && opts.test != "mixed" {
		fmt.Fprintln(os.Stderr, "medusa-benchmark: -test must be set, get, or mixed")
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "medusa-benchmark:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	fmt.Printf("benchmarking %s: %d clients, %d requests, workload=%s\n",
		opts.addr, opts.clients, opts.requests, opts.test)

	perClient := opts.requests / opts.clients
	if perClient == 0 {
		perClient = 1
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		latencies []time.Duration
		firstErr  error
	)

	start := time.Now()
	for c := 0; c < opts.clients; c++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			lats, err := runClient(opts, perClient, seed)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			latencies = append(latencies, lats...)
		}(int64(c))
	}
	wg.Wait()
	elapsed := time.Since(start)

	if firstErr != nil {
		return firstErr
	}
	report(latencies, elapsed)
	return nil
}

// runClient dials one connection and issues its share of requests.
func runClient(opts options, requests int, seed int64) ([]time.Duration, error) {
	conn, err := net.Dial("tcp", opts.addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", opts.addr, err)
	}
	defer conn.Close()

	reader := protocol.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// The server speaks first.
	if _, err := reader.ReadLine(); err != nil {
		return nil, fmt.Errorf("read greeting: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	latencies := make([]time.Duration, 0, requests)

	for i := 0; i < requests; i++ {
		key := fmt.Sprintf("bench:%d", rng.Intn(opts.keyspace))
		var cmd string
		switch {
		case opts.test == "set" || (opts.test == "mixed" && i%2 == 0):
			cmd = fmt.Sprintf("SET %s value-%d\n", key, i)
		default:
			cmd = fmt.Sprintf("GET %s\n", key)
		}

		begin := time.Now()
		if _, err := writer.WriteString(cmd); err != nil {
			return latencies, err
		}
		if err := writer.Flush(); err != nil {
			return latencies, err
		}
		if _, err := reader.ReadLine(); err != nil {
			return latencies, err
		}
		latencies = append(latencies, time.Since(begin))
	}
	return latencies, nil
}

func report(latencies []time.Duration, elapsed time.Duration) {
	if len(latencies) == 0 {
		fmt.Println("no requests completed")
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	total := len(latencies)
	opsPerSec := float64(total) / elapsed.Seconds()

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	fmt.Printf("completed %d requests in %v\n", total, elapsed.Round(time.Millisecond))
	fmt.Printf("throughput: %.0f ops/sec\n", opsPerSec)
	fmt.Printf("latency avg=%v p50=%v p95=%v p99=%v max=%v\n",
		(sum / time.Duration(total)).Round(time.Microsecond),
		percentile(latencies, 50).Round(time.Microsecond),
		percentile(latencies, 95).Round(time.Microsecond),
		percentile(latencies, 99).Round(time.Microsecond),
		latencies[total-1].Round(time.Microsecond))
}

func percentile(sorted []time.Duration, p int) time.Duration {
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
