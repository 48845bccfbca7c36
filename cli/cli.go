package main

import (
	"fmt"
	"log"
	"os"

	"github.com/Songmu/prompter"
	"github.com/spf13/afero"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/sftpblast/sftpblast/queue"
	"github.com/sftpblast/sftpblast/result"
	"github.com/sftpblast/sftpblast/sftpblast"
	"github.com/sftpblast/sftpblast/transfer"
	"github.com/sftpblast/sftpblast/ui"
	"github.com/sftpblast/sftpblast/version"
	"github.com/sftpblast/sftpblast/webapi"
)

const resultQueueName = "sftpblast-results"

var (
	app        = kingpin.New("sftpblast", "An SFTP load and stress testing tool.")
	configFile = app.Flag("config", "Path to an ini configuration file.").Default(defaultConfigFile).String()
	serveAddr  = app.Flag("serve", "Run the websocket result API on this address instead of a one-shot test.").String()

	host            = app.Flag("host", "Target SFTP host.").String()
	port            = app.Flag("port", "Target SSH port.").Int()
	user            = app.Flag("user", "Username for key-based authentication.").String()
	rootDir         = app.Flag("root", "Remote directory uploads land in.").String()
	keyPath         = app.Flag("key", "Path to the SSH private key.").String()
	passphrase      = app.Flag("passphrase", "Passphrase for an encrypted private key.").String()
	minSize         = app.Flag("min-size", "Minimum test file size in bytes.").Int64()
	maxSize         = app.Flag("max-size", "Maximum test file size in bytes.").Int64()
	numFiles        = app.Flag("files", "Number of test files to upload.").Short('n').Int()
	connectTimeout  = app.Flag("connect-timeout", "Connect timeout in seconds, -1 for none.").Int()
	transferTimeout = app.Flag("transfer-timeout", "Transfer timeout in seconds, -1 for none.").Int()
	concurrency     = app.Flag("concurrency", "Concurrent SFTP workers, -1 for one per CPU.").Short('c').Int()
	sleepInterval   = app.Flag("sleep", "Seconds each worker pauses after a transfer.").Float64()
	keepAlive       = app.Flag("keep-alive", "Reuse one session per worker instead of reconnecting per file.").Bool()
	retryAttempts   = app.Flag("retry-attempts", "Accepted for config compatibility; transfers are never retried.").Int()
	brokerURL       = app.Flag("broker-url", "AMQP broker URL to publish live outcomes to.").String()
	output          = app.Flag("output", "Report file path.").Short('o').String()
	useUI           = app.Flag("ui", "Render live progress on a terminal screen.").Bool()
)

func main() {
	app.Version(version.String())
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *serveAddr != "" {
		webapi.Serve(*serveAddr)
		return
	}

	config := aggregateConfiguration()
	if err := config.Check(); err != nil {
		log.Fatal(err)
	}

	fs := afero.NewOsFs()
	keyType, err := transfer.ValidateKey(fs, config.PrivateKeyPath, config.PrivateKeyPassphrase)
	if err != nil {
		log.Printf("Private key validation failed: %v", err)
		if !prompter.YN("Continue anyway?", false) {
			return
		}
	} else {
		log.Printf("Loaded %s private key", keyType)
	}

	test, err := sftpblast.NewTest(config)
	if err != nil {
		log.Fatal(err)
	}

	if config.BrokerURL != "" {
		sink, serr := queue.NewAMQPAdaptor(config.BrokerURL, resultQueueName)
		if serr != nil {
			log.Printf("Result broker unavailable, continuing without it: %v", serr)
		} else {
			test.Sink = sink
			defer sink.Close()
		}
	}

	results, err := test.Start()
	if err != nil {
		log.Fatalf("Test setup failed: %v", err)
	}

	if *useUI {
		if err := ui.Watch(results, config.NumFiles); err != nil {
			log.Fatalf("Terminal UI failed: %v", err)
		}
	} else {
		done := 0
		for stat := range results {
			done++
			if stat.Success {
				fmt.Printf("[%d/%d] %s ok (connect %.2fs, transfer %.2fs)\n",
					done, config.NumFiles, stat.Name, stat.ConnectTime.Seconds(), stat.TransferTime.Seconds())
			} else {
				fmt.Printf("[%d/%d] %s FAILED: %s\n", done, config.NumFiles, stat.Name, stat.Error)
			}
		}
	}

	report := test.Report()
	outputPath := config.Output
	if outputPath == "" {
		outputPath = result.DefaultFilename()
	}
	if err := report.Save(fs, outputPath); err != nil {
		log.Fatalf("Writing report failed: %v", err)
	}
	summary := report.Summarize()
	fmt.Printf("Report saved to %s (%d files, %d failed)\n", outputPath, summary.TotalFiles, summary.Failed)
}
