package cfg

import "time"

const (
	ModeOnce  = "once"
	ModeServe = "serve"
)

type Cfg struct {
	// Execution
	Mode        string
	Schedule    string
	WorkerCount int
	RetryDelay  time.Duration

	// Sources
	SourcesDir string
	FeedLimit  int

	// Storage
	Backend    string
	DataDir    string
	SQLitePath string
	BadgerDir  string
	S3Bucket   string
	S3Prefix   string
	S3Region   string

	// Remote access
	RedditClientID     string
	RedditClientSecret string
	UserAgent          string
	FetchTimeout       time.Duration

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string

	// Application metadata
	LogFile  string
	Timezone string
	Location *time.Location
	Debug    bool
	Version  string
}
