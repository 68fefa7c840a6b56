package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"lightview/internal/logging"
	"lightview/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds all engine configuration
type Config struct {
	DataDir      string
	Port         string
	Workers      int
	ThumbSize    int
	Debounce     time.Duration
	WatchEnabled bool
	ScanOnStart  bool
	TrackDirs    []string

	// View-context prioritizer tuning
	ViewAhead  int
	ViewBehind int
	MaxBoost   int

	LogHealthChecks bool

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	port := getEnv("PORT", "8080")
	workerCount := getEnvInt("WORKERS", 0)
	thumbSize := getEnvInt("THUMB_SIZE", 256)
	debounceStr := getEnv("WATCH_DEBOUNCE", "300ms")
	watchEnabled := getEnvBool("WATCH_ENABLED", true)
	scanOnStart := getEnvBool("SCAN_ON_START", true)
	trackDirs := getEnvList("TRACK_DIRS")
	viewAhead := getEnvInt("VIEW_AHEAD", 8)
	viewBehind := getEnvInt("VIEW_BEHIND", 4)
	maxBoost := getEnvInt("VIEW_BOOST", 100)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)

	logging.Info("  DATA_DIR:          %s", dataDir)
	logging.Info("  PORT:              %s", port)
	if workerCount > 0 {
		logging.Info("  WORKERS:           %d", workerCount)
	} else {
		logging.Info("  WORKERS:           auto (%d)", workers.ForMixed(8))
	}
	logging.Info("  THUMB_SIZE:        %d", thumbSize)
	logging.Info("  WATCH_ENABLED:     %v", watchEnabled)
	logging.Info("  WATCH_DEBOUNCE:    %s", debounceStr)
	logging.Info("  SCAN_ON_START:     %v", scanOnStart)
	logging.Info("  TRACK_DIRS:        %s", strings.Join(trackDirs, ", "))
	logging.Info("  VIEW_AHEAD:        %d", viewAhead)
	logging.Info("  VIEW_BEHIND:       %d", viewBehind)
	logging.Info("  VIEW_BOOST:        %d", maxBoost)
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())

	debounce, err := time.ParseDuration(debounceStr)
	if err != nil {
		logging.Warn("  Invalid WATCH_DEBOUNCE, using default: 300ms")
		debounce = 300 * time.Millisecond
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", dataDir)

	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}

	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	for i, dir := range trackDirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tracked directory %q: %w", dir, err)
		}
		trackDirs[i] = abs
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			logging.Warn("  Tracked directory %s is not readable; it will scan empty", abs)
		}
	}

	if workerCount <= 0 {
		workerCount = workers.ForMixed(8)
	}

	config := &Config{
		DataDir:         dataDir,
		Port:            port,
		Workers:         workerCount,
		ThumbSize:       thumbSize,
		Debounce:        debounce,
		WatchEnabled:    watchEnabled,
		ScanOnStart:     scanOnStart,
		TrackDirs:       trackDirs,
		ViewAhead:       viewAhead,
		ViewBehind:      viewBehind,
		MaxBoost:        maxBoost,
		LogHealthChecks: logHealthChecks,
		DatabasePath:    filepath.Join(dataDir, "library.db"),
	}

	return config, nil
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(dbPath string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CATALOG INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Catalog initialized in %v", duration)

	if info, err := os.Stat(dbPath); err == nil {
		logging.Info("  Database size: %s", humanize.Bytes(uint64(info.Size())))
	}
}

// LogWorkersInit logs worker pool startup and checks the external tools the
// executors shell out to.
func LogWorkersInit(count int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("WORKER POOL INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workers: %d", count)

	if err := checkTool("ffmpeg"); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Video thumbnails will fail until ffmpeg is installed")
	} else {
		logging.Info("  [OK] ffmpeg is available")
	}
	if err := checkTool("ffprobe"); err != nil {
		logging.Warn("  ffprobe check failed: %v", err)
		logging.Warn("  Video metadata will fail until ffprobe is installed")
	} else {
		logging.Info("  [OK] ffprobe is available")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:       http://localhost:%s/api", config.Port)
	logging.Info("    Status:    http://localhost:%s/api/status", config.Port)
	logging.Info("    Metrics:   http://localhost:%s/metrics", config.Port)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __    _       __    __      _
   / /   (_)___ _/ /_  / /_  __(_)__ _      __
  / /   / / __ '/ __ \/ __/ / / / / _ \ | /| / /
 / /___/ / /_/ / / / / /_  | V / /  __/ |/ |/ /
/_____/_/\__, /_/ /_/\__/  |___/_/\___/|__/|__/
        /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, string(os.PathListSeparator)) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
