package lib

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/units"
)

/* This file implements logic for 'user controlled' global configurations of each module of the vault */

const (
	// FILE NAMES in the 'data directory'
	ConfigFilePath = "config.json" // the file path for the vault configuration
)

// Config is the structure of the user configuration options for a merklevault server and client
type Config struct {
	MainConfig    // main options spanning over all modules
	RPCConfig     // rpc API options
	ClientConfig  // rpc client options
	StoreConfig   // persistence options
	MetricsConfig // telemetry options
}

// DefaultConfig() returns a Config with developer set options
func DefaultConfig() Config {
	return Config{
		MainConfig:    DefaultMainConfig(),
		RPCConfig:     DefaultRPCConfig(),
		ClientConfig:  DefaultClientConfig(),
		StoreConfig:   DefaultStoreConfig(),
		MetricsConfig: DefaultMetricsConfig(),
	}
}

// MAIN CONFIG BELOW

type MainConfig struct {
	LogLevel string `json:"logLevel"` // any level includes the levels above it: debug < info < warning < error
}

// DefaultMainConfig() sets log level to 'info'
func DefaultMainConfig() MainConfig {
	return MainConfig{
		LogLevel: "info", // everything but debug is the default
	}
}

// GetLogLevel() parses the log string in the config file into a LogLevel Enum
func (m *MainConfig) GetLogLevel() int32 {
	switch {
	case strings.Contains(strings.ToLower(m.LogLevel), "deb"):
		return DebugLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "inf"):
		return InfoLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "war"):
		return WarnLevel
	case strings.Contains(strings.ToLower(m.LogLevel), "err"):
		return ErrorLevel
	default:
		return DebugLevel
	}
}

// RPC CONFIG BELOW

type RPCConfig struct {
	RPCPort        string `json:"rpcPort"`        // the port where the rpc server is hosted
	TimeoutS       int    `json:"timeoutS"`       // the rpc request timeout in seconds
	MaxUploadBytes int64  `json:"maxUploadBytes"` // the maximum size of a single upload request body
	MaxConnections int    `json:"maxConnections"` // the maximum number of simultaneous inbound connections
}

// DefaultRPCConfig() serves the rpc on port 8000 with a 64 MB upload limit
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		RPCPort:        "8000",               // the rpc is served on localhost:8000
		TimeoutS:       30,                   // the rpc timeout is 30 seconds, uploads may be large
		MaxUploadBytes: int64(64 * units.MB), // 64 MB max request body
		MaxConnections: 128,                  // cap on concurrently open connections
	}
}

// CLIENT CONFIG BELOW

// ClientConfig is the configuration of the command line client that talks to a vault server
type ClientConfig struct {
	RPCUrl              string `json:"rpcURL"`              // the url where the rpc server is hosted
	UploadRateBytesPerS int64  `json:"uploadRateBytesPerS"` // upload throughput limit, 0 means unlimited
}

// DefaultClientConfig() points the client at a local server with no upload limit
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RPCUrl:              "http://localhost:8000", // use a local rpc by default
		UploadRateBytesPerS: 0,                       // unlimited
	}
}

// STORE CONFIG BELOW

// StoreConfig is user configurations for the key value database
type StoreConfig struct {
	DataDirPath string `json:"dataDirPath"` // path of the designated folder where the application stores its data
	DBName      string `json:"dbName"`      // name of the database
	InMemory    bool   `json:"inMemory"`    // non-disk database, only for testing
}

// DefaultDataDirPath() is $USERHOME/.merklevault
func DefaultDataDirPath() string {
	// get the user home
	home, err := os.UserHomeDir()
	// if unable to get the user home
	if err != nil {
		// fatal error
		panic(err)
	}
	// exit with full default data directory path
	return filepath.Join(home, ".merklevault")
}

// DefaultStoreConfig() returns the developer recommended store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		DataDirPath: DefaultDataDirPath(), // use the default data dir path
		DBName:      "merklevault",        // 'merklevault' database name
		InMemory:    false,                // persist to disk, not memory
	}
}

// MetricsConfig represents the configuration for the metrics server
type MetricsConfig struct {
	Enabled           bool   `json:"enabled"`           // if the metrics are enabled
	PrometheusAddress string `json:"prometheusAddress"` // the address of the server
}

// DefaultMetricsConfig() returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:           true,           // enabled by default
		PrometheusAddress: "0.0.0.0:9090", // the default prometheus address
	}
}

// WriteToFile() saves the Config object to a JSON file
func (c Config) WriteToFile(filepath string) error {
	// convert the config to indented 'pretty' json bytes
	jsonBytes, err := json.MarshalIndent(c, "", "  ")
	// if an error occurred during the conversion
	if err != nil {
		// exit with error
		return err
	}
	// write the config.json file to the data directory
	return os.WriteFile(filepath, jsonBytes, os.ModePerm)
}

// NewConfigFromFile() populates a Config object from a JSON file
func NewConfigFromFile(filepath string) (Config, error) {
	// read the file into bytes using
	fileBytes, err := os.ReadFile(filepath)
	// if an error occurred
	if err != nil {
		// exit with error
		return Config{}, err
	}
	// define the default config to fill in any blanks in the file
	c := DefaultConfig()
	// populate the default config with the file bytes
	if err = json.Unmarshal(fileBytes, &c); err != nil {
		// exit with error
		return Config{}, err
	}
	// exit
	return c, nil
}
