package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	ProfilesDir       string
	Port              string
	ScraperURL        string
	WorkerCount       int
	SchedulerInterval int
	SessionRetention  int
	APIAccessKey      string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
