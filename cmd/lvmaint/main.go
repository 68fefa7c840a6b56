package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lightview/internal/catalog"
)

const (
	// Default timeout for database operations
	defaultTimeout = 60 * time.Second
	// Default data directory path
	defaultDataDir = "/data"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	dbPath := filepath.Join(dataDir, "library.db")

	store, err := catalog.New(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open catalog: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATA_DIR is set correctly (current: %s)\n", dataDir)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", err)
		}
	}()

	ok := true
	switch command {
	case "prune":
		ok = prune(ctx, store)
	case "vacuum":
		ok = vacuum(store)
	case "recover":
		ok = recoverJobs(ctx, store)
	case "status":
		ok = showStatus(ctx, store)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", command)
		printUsage()
		os.Exit(1)
	}

	if !ok {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Lightview Catalog Maintenance")
	fmt.Println("")
	fmt.Println("Usage: lvmaint <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  prune    - Delete content records no live file references")
	fmt.Println("  vacuum   - Compact the catalog database")
	fmt.Println("  recover  - Reset jobs stuck in the running state")
	fmt.Println("  status   - Show catalog and job queue counts")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATA_DIR - Path to data directory (default: %s)\n", defaultDataDir)
}

func prune(ctx context.Context, store *catalog.Store) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := store.PruneOrphans(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Prune failed: %v\n", err)
		return false
	}

	fmt.Printf("Pruned %d orphaned content records.\n", n)
	if n > 0 {
		fmt.Println("Run 'lvmaint vacuum' to reclaim disk space.")
	}
	return true
}

func vacuum(store *catalog.Store) bool {
	start := time.Now()
	if err := store.Vacuum(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Vacuum failed: %v\n", err)
		return false
	}

	fmt.Printf("Vacuum complete in %v.\n", time.Since(start).Round(time.Millisecond))
	return true
}

func recoverJobs(ctx context.Context, store *catalog.Store) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := store.RecoverStale(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Recover failed: %v\n", err)
		return false
	}

	fmt.Printf("Reset %d stuck jobs to pending.\n", n)
	return true
}

func showStatus(ctx context.Context, store *catalog.Store) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	counts, err := store.AggregateCounts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Status query failed: %v\n", err)
		return false
	}

	fmt.Printf("Files:        %d\n", counts.Files)
	fmt.Printf("Directories:  %d (%d watched)\n", counts.Directories, counts.Watched)
	fmt.Printf("Hashed:       %d\n", counts.Hashed)
	fmt.Printf("Thumbnailed:  %d\n", counts.Thumbed)
	fmt.Printf("Jobs:         %d pending, %d running, %d done, %d failed\n",
		counts.JobsPending, counts.JobsRunning, counts.JobsDone, counts.JobsFailed)
	return true
}
