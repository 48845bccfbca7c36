package main

import (
	"log"

	ini "gopkg.in/ini.v1"

	"github.com/sftpblast/sftpblast/sftpblast/types"
)

const defaultConfigFile = "sftpblast.ini"

// aggregateConfiguration layers the three config sources: compiled-in
// defaults, then the ini file, then any flags the user passed.
func aggregateConfiguration() *types.TestConfig {
	config := types.NewTestConfig()
	path := *configFile
	if path == "" {
		path = defaultConfigFile
	}
	loadIniConfiguration(config, path)
	applyFlags(config)
	return config
}

func loadIniConfiguration(config *types.TestConfig, path string) {
	cfg, err := ini.Load(path)
	if err != nil {
		// a missing config file just means flags and defaults
		return
	}
	if err := cfg.Section("").MapTo(config); err != nil {
		log.Printf("Ignoring unreadable config file %s: %v", path, err)
	}
}

// applyFlags overrides config fields with explicitly passed flags. Unset
// flags keep their zero value and leave the file/default value alone.
func applyFlags(config *types.TestConfig) {
	if *host != "" {
		config.Host = *host
	}
	if *port != 0 {
		config.Port = *port
	}
	if *user != "" {
		config.Username = *user
	}
	if *rootDir != "" {
		config.RootDir = *rootDir
	}
	if *keyPath != "" {
		config.PrivateKeyPath = *keyPath
	}
	if *passphrase != "" {
		config.PrivateKeyPassphrase = *passphrase
	}
	if *minSize != 0 {
		config.MinFileSizeBytes = *minSize
	}
	if *maxSize != 0 {
		config.MaxFileSizeBytes = *maxSize
	}
	if *numFiles != 0 {
		config.NumFiles = *numFiles
	}
	if *connectTimeout != 0 {
		config.ConnectTimeoutSeconds = *connectTimeout
	}
	if *transferTimeout != 0 {
		config.TransferTimeoutSeconds = *transferTimeout
	}
	if *concurrency != 0 {
		config.Concurrency = *concurrency
	}
	if *sleepInterval != 0 {
		config.SleepIntervalSeconds = *sleepInterval
	}
	if *keepAlive {
		config.KeepAlive = true
	}
	if *retryAttempts != 0 {
		config.RetryAttempts = *retryAttempts
	}
	if *brokerURL != "" {
		config.BrokerURL = *brokerURL
	}
	if *output != "" {
		config.Output = *output
	}
}
