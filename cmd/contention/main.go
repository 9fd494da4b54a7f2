// Command contention шлёт конкурентные запросы смены статуса в HTTP API и показывает,
// как сервис их упорядочивает: сколько применено, сколько отклонено, сколько упёрлось в блокировку.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const transportErrorCode = "transport_error"

type config struct {
	baseURL     string
	orderIDs    []int64
	targets     []string
	perOrder    int
	concurrency int
	timeout     time.Duration
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type orderReport struct {
	Requests       int64            `json:"requests"`
	Applied        int64            `json:"applied"`
	Codes          map[string]int64 `json:"codes"`
	AppliedTargets []string         `json:"applied_targets,omitempty"`
}

type report struct {
	StartedAt       time.Time              `json:"started_at"`
	DurationSeconds float64                `json:"duration_seconds"`
	TotalRequests   int64                  `json:"total_requests"`
	Applied         int64                  `json:"applied"`
	Rejected        int64                  `json:"rejected"`
	LockTimeouts    int64                  `json:"lock_timeouts"`
	Unexpected      int64                  `json:"unexpected"`
	RPS             float64                `json:"rps"`
	Codes           map[string]int64       `json:"codes"`
	LatencyMs       latencySummary         `json:"latency_ms"`
	Orders          map[string]orderReport `json:"orders"`
}

type orderStats struct {
	requests       int64
	applied        int64
	codes          map[string]int64
	appliedTargets []string
}

type collector struct {
	mu        sync.Mutex
	orders    map[int64]*orderStats
	codes     map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{
		orders: make(map[int64]*orderStats),
		codes:  make(map[string]int64),
	}
}

func (c *collector) record(orderID int64, target string, latency time.Duration, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.orders[orderID]
	if !ok {
		stats = &orderStats{codes: make(map[string]int64)}
		c.orders[orderID] = stats
	}

	stats.requests++
	stats.codes[code]++
	if code == strconv.Itoa(http.StatusOK) {
		stats.applied++
		stats.appliedTargets = append(stats.appliedTargets, target)
	}
	c.codes[code]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Codes:           make(map[string]int64, len(c.codes)),
		LatencyMs:       buildLatencySummary(c.latencies),
		Orders:          make(map[string]orderReport, len(c.orders)),
	}

	for code, count := range c.codes {
		result.Codes[code] = count
		result.TotalRequests += count
		switch code {
		case strconv.Itoa(http.StatusOK):
			result.Applied += count
		case strconv.Itoa(http.StatusUnprocessableEntity):
			result.Rejected += count
		case strconv.Itoa(http.StatusServiceUnavailable):
			result.LockTimeouts += count
		default:
			result.Unexpected += count
		}
	}
	if duration > 0 {
		result.RPS = float64(result.TotalRequests) / duration.Seconds()
	}

	for id, stats := range c.orders {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Orders[strconv.FormatInt(id, 10)] = orderReport{
			Requests:       stats.requests,
			Applied:        stats.applied,
			Codes:          codesCopy,
			AppliedTargets: append([]string(nil), stats.appliedTargets...),
		}
	}

	return result
}

func parseConfig(args []string) (config, error) {
	fs := flag.NewFlagSet("contention", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		cfg          config
		ordersValue  string
		targetsValue string
	)
	fs.StringVar(&cfg.baseURL, "addr", "http://localhost:8080", "HTTP API base URL")
	fs.StringVar(&ordersValue, "orders", "", "comma-separated order ids to contend on")
	fs.StringVar(&targetsValue, "targets", "paid", "comma-separated target statuses, assigned round-robin")
	fs.IntVar(&cfg.perOrder, "requests", 20, "concurrent requests per order")
	fs.IntVar(&cfg.concurrency, "concurrency", 16, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "per-request timeout")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return cfg, errors.New("addr is required")
	}

	ids, err := parseOrderIDs(ordersValue)
	if err != nil {
		return cfg, err
	}
	cfg.orderIDs = ids

	for _, target := range strings.Split(targetsValue, ",") {
		if target = strings.TrimSpace(target); target != "" {
			cfg.targets = append(cfg.targets, target)
		}
	}
	if len(cfg.targets) == 0 {
		return cfg, errors.New("at least one target status is required")
	}

	if cfg.perOrder <= 0 {
		return cfg, errors.New("requests must be > 0")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	return cfg, nil
}

func parseOrderIDs(value string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid order id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("orders is required")
	}
	return ids, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: cfg.timeout}
	result := run(context.Background(), cfg, client)

	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Unexpected > 0 {
		os.Exit(1)
	}
}

type job struct {
	orderID int64
	target  string
}

// run стартует запросы всех заказов одновременно, чтобы они конкурировали за блокировки строк.
func run(ctx context.Context, cfg config, client *http.Client) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan job)
	start := make(chan struct{})
	var wg sync.WaitGroup

	for range cfg.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := range jobs {
				sendStatusUpdate(ctx, client, cfg.baseURL, j, col)
			}
		}()
	}

	close(start)
	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- job, cfg config) {
	defer close(jobs)

	for i := 0; i < cfg.perOrder; i++ {
		for _, id := range cfg.orderIDs {
			jobs <- job{orderID: id, target: cfg.targets[i%len(cfg.targets)]}
		}
	}
}

func sendStatusUpdate(ctx context.Context, client *http.Client, baseURL string, j job, col *collector) {
	started := time.Now()
	code := transportErrorCode
	defer func() {
		col.record(j.orderID, j.target, time.Since(started), code)
	}()

	body, err := json.Marshal(map[string]string{"status": j.target})
	if err != nil {
		return
	}

	url := fmt.Sprintf("%s/api/orders/%d/status", baseURL, j.orderID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	code = strconv.Itoa(resp.StatusCode)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local contention reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Contention summary")
	_, _ = fmt.Fprintf(w, "orders=%d requests_per_order=%d targets=%s\n",
		len(cfg.orderIDs), cfg.perOrder, strings.Join(cfg.targets, ","))
	_, _ = fmt.Fprintf(w, "total=%d applied=%d rejected=%d lock_timeouts=%d unexpected=%d\n",
		result.TotalRequests, result.Applied, result.Rejected, result.LockTimeouts, result.Unexpected)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(w, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min,
		result.LatencyMs.Avg,
		result.LatencyMs.P50,
		result.LatencyMs.P95,
		result.LatencyMs.P99,
		result.LatencyMs.Max,
	)

	ids := make([]string, 0, len(result.Orders))
	for id := range result.Orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseInt(ids[i], 10, 64)
		b, _ := strconv.ParseInt(ids[j], 10, 64)
		return a < b
	})
	for _, id := range ids {
		stats := result.Orders[id]
		_, _ = fmt.Fprintf(w, "order #%s: requests=%d applied=%d path=%s\n",
			id, stats.Requests, stats.Applied, strings.Join(stats.AppliedTargets, "->"))
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
