package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Execution
	Mode        string `long:"mode" env:"MODE" default:"once" choice:"once" choice:"serve" description:"Run once and exit, or serve the API with scheduled runs"`
	Schedule    string `long:"schedule" env:"SCHEDULE" default:"00 16 * * *" description:"Cron schedule for runs in serve mode"`
	WorkerCount int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of parallel task workers in serve mode"`
	RetryDelay  int    `long:"retry-delay" env:"RETRY_DELAY" default:"300" description:"Delay in seconds before a failed task is retried"`

	// Sources
	SourcesDir string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	FeedLimit  int    `long:"feed-limit" env:"FEED_LIMIT" default:"1000" description:"Default number of posts read per source"`

	// Storage
	Backend    string `long:"backend" env:"STORAGE_BACKEND" default:"local" choice:"local" choice:"sqlite" choice:"badger" choice:"s3" choice:"memory" description:"Storage backend"`
	DataDir    string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Root directory for local storage backends"`
	SQLitePath string `long:"sqlite-path" env:"SQLITE_PATH" description:"SQLite database file (default: <data-dir>/image-comb.db)"`
	BadgerDir  string `long:"badger-dir" env:"BADGER_DIR" description:"Badger directory (default: <data-dir>/badger)"`
	S3Bucket   string `long:"s3-bucket" env:"S3_BUCKET" description:"S3 bucket for the s3 backend"`
	S3Prefix   string `long:"s3-prefix" env:"S3_PREFIX" description:"Key prefix inside the S3 bucket"`
	S3Region   string `long:"s3-region" env:"AWS_REGION" description:"AWS region for the s3 backend"`

	// Remote access
	RedditClientID     string `long:"reddit-client-id" env:"REDDIT_CLIENT_ID" description:"Reddit app client id (optional, enables OAuth)"`
	RedditClientSecret string `long:"reddit-client-secret" env:"REDDIT_CLIENT_SECRET" description:"Reddit app client secret"`
	UserAgent          string `long:"user-agent" env:"USER_AGENT" default:"Image Comb/1.0" description:"User agent string for HTTP requests"`
	FetchTimeout       int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"10" description:"Image download timeout in seconds"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://images.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	LogFile  string `long:"log-file" env:"LOG_FILE" description:"Also write JSON logs to this file"`
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.Backend == "s3" && raw.S3Bucket == "" {
		return nil, fmt.Errorf("failed to parse configuration: --s3-bucket is required for the s3 backend")
	}

	cfg := &Cfg{
		Mode:               raw.Mode,
		Schedule:           raw.Schedule,
		WorkerCount:        raw.WorkerCount,
		RetryDelay:         time.Duration(raw.RetryDelay) * time.Second,
		SourcesDir:         raw.SourcesDir,
		FeedLimit:          raw.FeedLimit,
		Backend:            raw.Backend,
		DataDir:            raw.DataDir,
		SQLitePath:         raw.SQLitePath,
		BadgerDir:          raw.BadgerDir,
		S3Bucket:           raw.S3Bucket,
		S3Prefix:           raw.S3Prefix,
		S3Region:           raw.S3Region,
		RedditClientID:     raw.RedditClientID,
		RedditClientSecret: raw.RedditClientSecret,
		UserAgent:          raw.UserAgent,
		FetchTimeout:       time.Duration(raw.FetchTimeout) * time.Second,
		Port:               raw.Port,
		BaseUrl:            raw.BaseUrl,
		APIAccessKey:       raw.APIAccessKey,
		LogFile:            raw.LogFile,
		Timezone:           raw.Timezone,
		Location:           time.Local,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if loc, err := loadLocation(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	} else {
		cfg.Location = loc
	}

	if cfg.BaseUrl == "" {
		cfg.BaseUrl = "http://localhost:" + cfg.Port
	}

	return cfg, nil
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}
