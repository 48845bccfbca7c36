package types

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

const (
	// MAX_FILE_COUNT bounds a single run
	MAX_FILE_COUNT = 1000000

	DefaultMinFileSizeBytes = 6000
	DefaultMaxFileSizeBytes = 64000000
	DefaultTimeoutSeconds   = 20
)

// TestConfig type
type TestConfig struct {
	Host                   string  `ini:"host"`
	Port                   int     `ini:"port"`
	Username               string  `ini:"username"`
	RootDir                string  `ini:"root_dir"`
	PrivateKeyPath         string  `ini:"ssh_private_key_path"`
	PrivateKeyPassphrase   string  `ini:"ssh_private_key_passphrase"`
	MinFileSizeBytes       int64   `ini:"min_test_file_size_bytes"`
	MaxFileSizeBytes       int64   `ini:"max_test_file_size_bytes"`
	NumFiles               int     `ini:"num_test_files"`
	ConnectTimeoutSeconds  int     `ini:"connect_timeout_seconds"`
	TransferTimeoutSeconds int     `ini:"transfer_timeout_seconds"`
	Concurrency            int     `ini:"sftp_threads"`
	SleepIntervalSeconds   float64 `ini:"sftp_sleep_interval"`
	KeepAlive              bool    `ini:"keep_alive_enabled"`
	RetryAttempts          int     `ini:"retry_attempts"`
	BrokerURL              string  `ini:"broker_url"`
	Output                 string  `ini:"output"`
}

// NewTestConfig returns a TestConfig with the documented defaults applied.
func NewTestConfig() *TestConfig {
	return &TestConfig{
		Port:                   22,
		RootDir:                "/",
		MinFileSizeBytes:       DefaultMinFileSizeBytes,
		MaxFileSizeBytes:       DefaultMaxFileSizeBytes,
		NumFiles:               1,
		ConnectTimeoutSeconds:  DefaultTimeoutSeconds,
		TransferTimeoutSeconds: DefaultTimeoutSeconds,
		Concurrency:            1,
		SleepIntervalSeconds:   -1,
	}
}

func (c *TestConfig) Check() error {
	if c.Host == "" {
		return errors.New("No target host configured")
	}
	if c.Username == "" {
		return errors.New("No username configured")
	}
	if c.PrivateKeyPath == "" {
		return errors.New("No private key path configured")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("Invalid port %d (use 1 - 65535)", c.Port)
	}
	if c.MinFileSizeBytes < 1 {
		return fmt.Errorf("Invalid minimum file size %d (use 1 or more)", c.MinFileSizeBytes)
	}
	if c.MinFileSizeBytes > c.MaxFileSizeBytes {
		return fmt.Errorf("Minimum file size %d exceeds maximum %d", c.MinFileSizeBytes, c.MaxFileSizeBytes)
	}
	if c.NumFiles < 1 || c.NumFiles > MAX_FILE_COUNT {
		return fmt.Errorf("Invalid test file count (use 1 - %d)", MAX_FILE_COUNT)
	}
	return nil
}

// Workers resolves the configured concurrency; zero or negative values mean
// one worker per logical CPU.
func (c *TestConfig) Workers() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return runtime.NumCPU()
}

// ConnectTimeout returns the dial timeout, 0 meaning no timeout.
func (c *TestConfig) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutSeconds < 0 {
		return 0
	}
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// TransferTimeout returns the per-operation I/O deadline, 0 meaning none.
func (c *TestConfig) TransferTimeout() time.Duration {
	if c.TransferTimeoutSeconds < 0 {
		return 0
	}
	return time.Duration(c.TransferTimeoutSeconds) * time.Second
}

// SleepInterval returns the post-transfer pause, 0 meaning disabled.
func (c *TestConfig) SleepInterval() time.Duration {
	if c.SleepIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SleepIntervalSeconds * float64(time.Second))
}

func (c *TestConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
