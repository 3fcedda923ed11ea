package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// The load test flips one transaction between pending and confirmed from
// many workers at once. Every request carries the status it read, so most
// lose with 409 and the wallet must still match the audit at the end.

type statusChange struct {
	ExpectedStatus string `json:"expected_status"`
	Status         string `json:"status"`
	AdminNotes     string `json:"admin_notes"`
}

type LoadTestConfig struct {
	BaseURL           string
	TransactionID     string
	UserID            string
	RequestsPerSecond int
	DurationSeconds   int
	ConcurrentWorkers int
}

type Stats struct {
	applied       atomic.Int64
	stale         atomic.Int64
	exhausted     atomic.Int64
	errorCount    atomic.Int64
	responseTimes []float64
	mu            sync.Mutex
}

func (s *Stats) addResponseTime(duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responseTimes = append(s.responseTimes, duration)
}

func (s *Stats) getResponseTimes() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.responseTimes)
}

type transactionView struct {
	Status string `json:"status"`
}

func currentStatus(client *http.Client, config LoadTestConfig) (string, error) {
	resp, err := client.Get(config.BaseURL + "/transactions/" + config.TransactionID)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var tx transactionView
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return "", err
	}
	return tx.Status, nil
}

func flip(client *http.Client, config LoadTestConfig, stats *Stats) {
	start := time.Now()

	from, err := currentStatus(client, config)
	if err != nil {
		stats.errorCount.Add(1)
		return
	}
	to := "confirmed"
	if from == "confirmed" {
		to = "pending"
	}

	payload, _ := json.Marshal(statusChange{ExpectedStatus: from, Status: to, AdminNotes: "load test"})
	req, err := http.NewRequest(http.MethodPatch, config.BaseURL+"/transactions/"+config.TransactionID+"/status", bytes.NewReader(payload))
	if err != nil {
		stats.errorCount.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		stats.errorCount.Add(1)
		stats.addResponseTime(time.Since(start).Seconds())
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	stats.addResponseTime(time.Since(start).Seconds())

	switch resp.StatusCode {
	case http.StatusOK:
		stats.applied.Add(1)
	case http.StatusConflict:
		stats.stale.Add(1)
	case http.StatusServiceUnavailable:
		stats.exhausted.Add(1)
	default:
		stats.errorCount.Add(1)
	}
}

func worker(client *http.Client, config LoadTestConfig, stats *Stats, jobs <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for range jobs {
		flip(client, config, stats)
	}
}

type walletAudit struct {
	Consistent bool            `json:"consistent"`
	Drift      json.RawMessage `json:"drift"`
}

func audit(client *http.Client, config LoadTestConfig) (*walletAudit, error) {
	resp, err := client.Get(config.BaseURL + "/users/" + config.UserID + "/wallet/audit")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var a walletAudit
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

func calculatePercentile(sorted []float64, percentile float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * percentile)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func main() {
	config := LoadTestConfig{
		BaseURL:           strings.TrimSuffix(getEnvOrDefault("TARGET_URL", "http://localhost:8080/api/v1"), "/"),
		TransactionID:     os.Getenv("TRANSACTION_ID"),
		UserID:            os.Getenv("USER_ID"),
		RequestsPerSecond: getEnvIntOrDefault("REQUESTS_PER_SECOND", 200),
		DurationSeconds:   getEnvIntOrDefault("DURATION_SECONDS", 30),
		ConcurrentWorkers: getEnvIntOrDefault("CONCURRENT_WORKERS", 50),
	}
	if config.TransactionID == "" || config.UserID == "" {
		fmt.Println("TRANSACTION_ID and USER_ID are required")
		os.Exit(2)
	}

	fmt.Println("Starting load test...")
	fmt.Printf("Target: %s/transactions/%s\n", config.BaseURL, config.TransactionID)
	fmt.Printf("Target RPS: %d\n", config.RequestsPerSecond)
	fmt.Printf("Concurrent workers: %d\n", config.ConcurrentWorkers)
	fmt.Printf("Duration: %d seconds\n", config.DurationSeconds)
	fmt.Println(strings.Repeat("-", 50))

	stats := &Stats{}
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        config.ConcurrentWorkers,
			MaxIdleConnsPerHost: config.ConcurrentWorkers,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	jobs := make(chan struct{}, config.RequestsPerSecond)

	var wg sync.WaitGroup
	for i := 0; i < config.ConcurrentWorkers; i++ {
		wg.Add(1)
		go worker(client, config, stats, jobs, &wg)
	}

	startTime := time.Now()
	for i := 0; i < config.DurationSeconds; i++ {
		batchStart := time.Now()
		for j := 0; j < config.RequestsPerSecond; j++ {
			jobs <- struct{}{}
		}

		fmt.Printf("[%ds] applied: %d | stale: %d | exhausted: %d | errors: %d\n",
			i+1, stats.applied.Load(), stats.stale.Load(), stats.exhausted.Load(), stats.errorCount.Load())

		if elapsed := time.Since(batchStart); elapsed < time.Second {
			time.Sleep(time.Second - elapsed)
		}
	}

	close(jobs)
	wg.Wait()
	duration := time.Since(startTime).Seconds()

	times := stats.getResponseTimes()
	slices.Sort(times)
	var avg float64
	for _, t := range times {
		avg += t
	}
	if len(times) > 0 {
		avg /= float64(len(times))
	}

	total := stats.applied.Load() + stats.stale.Load() + stats.exhausted.Load() + stats.errorCount.Load()

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Duration: %.2f seconds\n", duration)
	fmt.Printf("Total requests: %d\n", total)
	fmt.Printf("Applied: %d\n", stats.applied.Load())
	fmt.Printf("Stale (409): %d\n", stats.stale.Load())
	fmt.Printf("Retry exhausted (503): %d\n", stats.exhausted.Load())
	fmt.Printf("Errors: %d\n", stats.errorCount.Load())
	fmt.Printf("\nActual RPS: %.2f\n", float64(total)/duration)
	fmt.Printf("\nResponse times:\n")
	fmt.Printf("  Average: %.2f ms\n", avg*1000)
	fmt.Printf("  P50: %.2f ms\n", calculatePercentile(times, 0.50)*1000)
	fmt.Printf("  P95: %.2f ms\n", calculatePercentile(times, 0.95)*1000)
	fmt.Printf("  P99: %.2f ms\n", calculatePercentile(times, 0.99)*1000)

	a, err := audit(client, config)
	if err != nil {
		fmt.Printf("\nwallet audit failed: %v\n", err)
		os.Exit(1)
	}
	if !a.Consistent {
		fmt.Printf("\nWALLET DRIFTED: %s\n", a.Drift)
		os.Exit(1)
	}
	fmt.Println("\nwallet consistent with transactions")
}
