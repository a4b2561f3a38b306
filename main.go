package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"draftpad/logger"
)

// Config is the daemon configuration, passed as JSON through the
// DRAFTPAD_CONFIG environment variable by whatever launches the client.
type Config struct {
	DocumentID             string `json:"document_id"`
	SyncEndpoint           string `json:"sync_endpoint"`
	Token                  string `json:"token"`
	DebounceDelay          int    `json:"debounce_delay"` // in milliseconds
	MetricsEndpoint        string `json:"metrics_endpoint"`
	MetricsAPIKey          string `json:"metrics_api_key"`
	DataDir                string `json:"data_dir"`
	LogLevel               string `json:"log_level"` // debug, info, warn, error
	DebugImmediateShutdown bool   `json:"debug_immediate_shutdown"`
}

// runtimePath places the daemon's runtime files (socket, pid file, log)
// next to the executable so separate installs don't collide.
func runtimePath(name string) string {
	exe, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return filepath.Join(filepath.Dir(exe), name)
}

func getSocketPath() string { return runtimePath("draftpad.sock") }
func getPidPath() string    { return runtimePath("draftpad.pid") }

// Caller must defer logger.Close().
func setupLogger(logLevel string) *logger.Logger {
	f, err := os.OpenFile(runtimePath("draftpad.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	return logger.New(f, logger.ParseLevel(logLevel))
}

// isDaemonRunning checks the pid file and probes the recorded process.
func isDaemonRunning() (bool, int) {
	data, err := os.ReadFile(getPidPath())
	if err != nil {
		return false, 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return false, 0
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func loadConfig() Config {
	var config Config
	if err := json.Unmarshal([]byte(os.Getenv("DRAFTPAD_CONFIG")), &config); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	return config
}

func runDaemon() {
	config := loadConfig()

	logLevel := config.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}
	fileLogger := setupLogger(logLevel)
	defer fileLogger.Close()

	daemon, err := NewDaemon(config)
	if err != nil {
		log.Fatalf("error creating daemon: %v", err)
	}
	if err := daemon.Start(); err != nil {
		log.Fatalf("error starting daemon: %v", err)
	}
}

func runClient() {
	client := NewClient()
	if err := client.EnsureDaemonRunning(); err != nil {
		log.Fatalf("error ensuring daemon is running: %v", err)
	}
	if err := client.Connect(); err != nil {
		log.Fatalf("error connecting to daemon: %v", err)
	}
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--daemon" {
		runDaemon()
		return
	}
	runClient()
}
