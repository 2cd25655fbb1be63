package config

const (
	// DefaultDatabasePath is the default path for the pattern database
	DefaultDatabasePath = "./patterns.db"

	// DefaultMediaDir is where downloaded pattern images are stored
	DefaultMediaDir = "./media"
)
