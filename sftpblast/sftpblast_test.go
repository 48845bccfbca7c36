package sftpblast

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/ssh"

	"github.com/sftpblast/sftpblast/queue"
	"github.com/sftpblast/sftpblast/sftpblast/types"
)

// testServer is a minimal in-process SSH server exposing the sftp subsystem
// over the local filesystem. It accepts any public key.
type testServer struct {
	listener net.Listener
	conns    int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hostKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostKey)
	if err != nil {
		t.Fatal(err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	server := &testServer{listener: listener}
	go func() {
		for {
			conn, aerr := listener.Accept()
			if aerr != nil {
				return
			}
			atomic.AddInt32(&server.conns, 1)
			go server.handle(conn, config)
		}
	}()
	t.Cleanup(func() { listener.Close() })
	return server
}

func (s *testServer) handle(conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, cerr := newChannel.Accept()
		if cerr != nil {
			continue
		}
		go func(in <-chan *ssh.Request) {
			for req := range in {
				ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
				req.Reply(ok, nil)
			}
		}(requests)
		go func(channel ssh.Channel) {
			server, serr := sftp.NewServer(channel)
			if serr != nil {
				return
			}
			server.Serve()
			channel.Close()
		}(channel)
	}
}

func (s *testServer) Connections() int {
	return int(atomic.LoadInt32(&s.conns))
}

func (s *testServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func writeClientKey(t *testing.T, dir string) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	path := filepath.Join(dir, "id_rsa")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func serverConfig(t *testing.T, server *testServer) *types.TestConfig {
	config := types.NewTestConfig()
	config.Host = "127.0.0.1"
	config.Port = server.Port()
	config.Username = "loadtest"
	config.PrivateKeyPath = writeClientKey(t, t.TempDir())
	config.RootDir = t.TempDir()
	config.ConnectTimeoutSeconds = 5
	config.TransferTimeoutSeconds = 10
	return config
}

func scratchDirs(t *testing.T) int {
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "sftpblast-*"))
	if err != nil {
		t.Fatal(err)
	}
	return len(matches)
}

func TestRunThreeFilesSequential(t *testing.T) {
	assert := assert.New(t)
	server := newTestServer(t)

	config := serverConfig(t, server)
	config.NumFiles = 3
	config.MinFileSizeBytes = 1000
	config.MaxFileSizeBytes = 1000
	config.Concurrency = 1

	scratchBefore := scratchDirs(t)

	test, err := NewTest(config)
	assert.NoError(err)
	report, err := test.Run()
	assert.NoError(err, "A reachable endpoint should yield a clean run")

	assert.Equal(3, report.Len(), "One outcome per artifact")
	for _, stat := range report.Stats {
		assert.True(stat.Success, "Transfer of %s should succeed: %s", stat.Name, stat.Error)
		assert.Equal(int64(1000), stat.Size)
		assert.True(stat.ConnectTime > 0, "Ephemeral transfers carry connect time")
	}

	entries, err := os.ReadDir(config.RootDir)
	assert.NoError(err)
	assert.Empty(entries, "The run must leave no residue on the target")

	assert.Equal(scratchBefore, scratchDirs(t), "No scratch directories may outlive the run")
	assert.Equal(3, server.Connections(), "Ephemeral mode opens one session per artifact")
}

func TestRunKeepAliveSessionCount(t *testing.T) {
	assert := assert.New(t)
	server := newTestServer(t)

	config := serverConfig(t, server)
	config.NumFiles = 6
	config.MinFileSizeBytes = 500
	config.MaxFileSizeBytes = 2000
	config.Concurrency = 2
	config.KeepAlive = true

	test, err := NewTest(config)
	assert.NoError(err)
	report, err := test.Run()
	assert.NoError(err)

	assert.Equal(6, report.Len())
	for _, stat := range report.Stats {
		assert.True(stat.Success, "Transfer of %s should succeed: %s", stat.Name, stat.Error)
		assert.True(stat.Size >= 500 && stat.Size <= 2000, "Sizes are drawn from [min, max]")
		assert.Equal(time.Duration(0), stat.ConnectTime, "Pooled transfers report zero connect time")
	}
	assert.Equal(2, server.Connections(), "Keep-alive opens exactly one session per worker slot")
}

func TestRunUnreachableHost(t *testing.T) {
	assert := assert.New(t)

	// a port with nothing behind it
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	config := types.NewTestConfig()
	config.Host = "127.0.0.1"
	config.Port = port
	config.Username = "loadtest"
	config.PrivateKeyPath = writeClientKey(t, t.TempDir())
	config.NumFiles = 2
	config.MinFileSizeBytes = 100
	config.MaxFileSizeBytes = 100
	config.ConnectTimeoutSeconds = 2

	test, err := NewTest(config)
	assert.NoError(err)
	report, err := test.Run()
	assert.NoError(err, "Connect failures are per-artifact outcomes, not setup errors")

	assert.Equal(2, report.Len(), "Artifact generation still succeeds against a dead host")
	for _, stat := range report.Stats {
		assert.False(stat.Success)
		assert.NotEmpty(stat.Error, "Failed outcomes carry a connection error string")
	}
}

func TestRunSleepShaping(t *testing.T) {
	server := newTestServer(t)

	config := serverConfig(t, server)
	config.NumFiles = 2
	config.MinFileSizeBytes = 100
	config.MaxFileSizeBytes = 100
	config.Concurrency = 1
	config.SleepIntervalSeconds = 0.1

	test, err := NewTest(config)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if _, err := test.Run(); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("sleep shaping should pause between sequential transfers, elapsed %v", elapsed)
	}
}

func TestRunFeedsSink(t *testing.T) {
	assert := assert.New(t)
	server := newTestServer(t)

	config := serverConfig(t, server)
	config.NumFiles = 3
	config.MinFileSizeBytes = 100
	config.MaxFileSizeBytes = 100
	config.Concurrency = 2

	test, err := NewTest(config)
	assert.NoError(err)
	sink := queue.NewDummyAdaptor()
	test.Sink = sink

	var progressed int32
	test.OnProgress = func(name string, transferred int64) {
		atomic.AddInt32(&progressed, 1)
	}

	_, err = test.Run()
	assert.NoError(err)
	assert.Len(sink.Stats, 3, "Every outcome should reach the sink")
	assert.True(atomic.LoadInt32(&progressed) > 0, "Byte progress should be reported")
}

func TestNewTestRejectsBadConfig(t *testing.T) {
	_, err := NewTest(types.NewTestConfig())
	if err == nil {
		t.Error("an incomplete config should fail validation")
	}
}
