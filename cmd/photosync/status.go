package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pixelgrove/photosync/internal/config"
	"github.com/pixelgrove/photosync/internal/health"
)

// StatusReport bundles both worker endpoints for JSON output
type StatusReport struct {
	Timestamp time.Time             `json:"timestamp"`
	Health    health.HealthResponse `json:"health"`
	Stats     health.StatsResponse  `json:"stats"`
}

// statusCommand queries the health endpoints of a running worker
func statusCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	baseURL := workerBaseURL(cfg)
	client := &http.Client{Timeout: 5 * time.Second}

	var healthResp health.HealthResponse
	if err := fetchJSON(client, baseURL+"/health", &healthResp); err != nil {
		return fmt.Errorf("failed to reach worker at %s: %w", baseURL, err)
	}

	var statsResp health.StatsResponse
	if err := fetchJSON(client, baseURL+"/stats", &statsResp); err != nil {
		return fmt.Errorf("failed to get worker stats: %w", err)
	}

	if c.Bool("json") {
		report := StatusReport{
			Timestamp: time.Now().UTC(),
			Health:    healthResp,
			Stats:     statsResp,
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	return outputStatusHuman(healthResp, statsResp)
}

// workerBaseURL derives the worker address from config. A wildcard
// bind address is dialed over loopback.
func workerBaseURL(cfg *config.Config) string {
	host := cfg.HealthCheckHost
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.HealthCheckPort))
}

func fetchJSON(client *http.Client, url string, dst any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// outputStatusHuman prints worker status in human-readable format
func outputStatusHuman(h health.HealthResponse, s health.StatsResponse) error {
	fmt.Printf("Photo Sync Worker Status\n")
	fmt.Printf("========================\n\n")

	fmt.Printf("Status: %s\n", h.Status)
	fmt.Printf("  Database connected: %v\n", h.DatabaseConnected)
	fmt.Printf("  Watcher active:     %v\n", h.WatcherActive)
	fmt.Printf("  Uptime:             %s\n", formatSeconds(h.UptimeSeconds))
	if h.LastSync != nil {
		fmt.Printf("  Last sync:          %s\n", h.LastSync.Format(time.RFC3339))
	}

	fmt.Printf("\nToday's Sync Activity:\n")
	fmt.Printf("  Files processed:  %d\n", s.SyncStatistics.FilesProcessedToday)
	fmt.Printf("  Files added:      %d\n", s.SyncStatistics.FilesAddedToday)
	fmt.Printf("  Files updated:    %d\n", s.SyncStatistics.FilesUpdatedToday)
	fmt.Printf("  Files removed:    %d\n", s.SyncStatistics.FilesRemovedToday)
	if s.SyncStatistics.LastFullSync != nil {
		fmt.Printf("  Last full sync:   %s\n", s.SyncStatistics.LastFullSync.Format(time.RFC3339))
	}
	if s.SyncStatistics.AverageProcessingTimeMs > 0 {
		fmt.Printf("  Avg batch time:   %.2f ms\n", s.SyncStatistics.AverageProcessingTimeMs)
	}

	fmt.Printf("\nEvent Queue:\n")
	fmt.Printf("  Pending events:    %d\n", s.EventQueue.PendingEvents)
	fmt.Printf("  Processed events:  %d\n", s.EventQueue.ProcessedEvents)
	fmt.Printf("  Failed events:     %d\n", s.EventQueue.FailedEvents)

	return nil
}

// formatSeconds formats a seconds duration as a human-readable string
func formatSeconds(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.0f seconds", seconds)
	}
	minutes := seconds / 60.0
	if minutes < 60 {
		return fmt.Sprintf("%.1f minutes", minutes)
	}
	hours := minutes / 60.0
	if hours < 24 {
		return fmt.Sprintf("%.1f hours", hours)
	}
	days := hours / 24.0
	return fmt.Sprintf("%.1f days", days)
}
