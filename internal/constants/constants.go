package constants

// Application
const (
	AppName        = "casgate"
	AppDisplayName = "CasGate"
)

// Paths
const (
	ConfigDir      = ".config/casgate"
	ConfigFile     = "config.yaml"
	InternalDir    = ".internal"
	StoreDB        = "casgate.db"
	DefaultDataDir = "data"
)

// API
const (
	DefaultPort = 2471
)

// Node validation
const (
	HashLength      = 64 // BLAKE3 hex string length (32 bytes = 64 hex chars)
	MaxNodeChildren = 4096
	MaxNodeBytes    = 64 * 1024 * 1024 // 64MB per node upload
)

// Database pragmas (optimized for low memory: < 2GB RAM)
var SQLitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA cache_size=-8000", // 8MB per connection
	"PRAGMA foreign_keys=ON",
}

// Logging
const (
	DefaultLogLevel    = "debug"
	LogsDir            = "logs"
	LogsDirDebug       = "debug"
	LogsDirInfo        = "info"
	LogsDirWarn        = "warn"
	LogsDirError       = "error"
	LogFileExtension   = ".log"
	LogTimestampFormat = "2006-01-02 15:04:05"
)

// Shutdown
const (
	ShutdownTimeoutSecs = 10
)

// Pagination
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// File permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)
