// Package transfer opens authenticated SFTP sessions against the target and
// pushes artifacts through them.
package transfer

import (
	"io"
	"net"
	"path"
	"time"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"

	"github.com/sftpblast/sftpblast/payload"
	"github.com/sftpblast/sftpblast/sftpblast/types"
)

// Endpoint describes how to reach and authenticate against the target SFTP
// server. One Endpoint serves every session of a run.
type Endpoint struct {
	fs              afero.Fs
	addr            string
	rootDir         string
	clientConfig    *ssh.ClientConfig
	transferTimeout time.Duration
	authErr         error
}

// NewEndpoint builds an Endpoint from the run configuration. A key that
// fails to load does not fail construction; the error surfaces on Dial so
// it lands in per-transfer outcomes like any other connect failure.
func NewEndpoint(fs afero.Fs, config *types.TestConfig) *Endpoint {
	endpoint := &Endpoint{
		fs:              fs,
		addr:            config.Addr(),
		rootDir:         config.RootDir,
		transferTimeout: config.TransferTimeout(),
	}
	signer, err := LoadSigner(fs, config.PrivateKeyPath, config.PrivateKeyPassphrase)
	if err != nil {
		endpoint.authErr = err
		return endpoint
	}
	endpoint.clientConfig = &ssh.ClientConfig{
		User:            config.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         config.ConnectTimeout(),
	}
	return endpoint
}

// Dial opens and authenticates one session, returning the elapsed wall-clock
// connect time alongside it. A zero configured timeout blocks indefinitely.
func (e *Endpoint) Dial() (*Session, time.Duration, error) {
	start := time.Now()
	if e.authErr != nil {
		return nil, time.Since(start), e.authErr
	}

	conn, err := net.DialTimeout("tcp", e.addr, e.clientConfig.Timeout)
	if err != nil {
		return nil, time.Since(start), err
	}
	if e.transferTimeout > 0 {
		conn = &deadlineConn{Conn: conn, timeout: e.transferTimeout}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, e.addr, e.clientConfig)
	if err != nil {
		conn.Close()
		return nil, time.Since(start), err
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, time.Since(start), err
	}

	session := &Session{
		fs:      e.fs,
		client:  client,
		sftp:    sftpClient,
		rootDir: e.rootDir,
	}
	return session, time.Since(start), nil
}

// Session is one open channel to the endpoint, used by a single worker at a
// time.
type Session struct {
	fs      afero.Fs
	client  *ssh.Client
	sftp    *sftp.Client
	rootDir string
	closed  bool
}

// Upload transmits the artifact to rootDir/name and immediately removes the
// remote copy. Only the transmit is timed; the delete is cleanup. The
// progress callback, when set, receives monotonically increasing
// bytes-transferred counts.
func (s *Session) Upload(a payload.Artifact, progress func(int64)) (time.Duration, error) {
	local, err := s.fs.Open(a.LocalPath)
	if err != nil {
		return 0, err
	}
	defer local.Close()

	remotePath := path.Join(s.rootDir, a.RemoteName)
	start := time.Now()
	remote, err := s.sftp.Create(remotePath)
	if err != nil {
		return time.Since(start), err
	}

	var src io.Reader = local
	if progress != nil {
		src = &progressReader{reader: local, report: progress}
	}
	_, err = io.Copy(remote, src)
	if cerr := remote.Close(); err == nil {
		err = cerr
	}
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, err
	}

	if err := s.sftp.Remove(remotePath); err != nil {
		return elapsed, err
	}
	return elapsed, nil
}

// Close releases the transport. Safe after a failed transfer and safe to
// call more than once.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	if s.sftp != nil {
		s.sftp.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// deadlineConn applies a rolling I/O deadline so a stalled transfer fails
// instead of blocking forever.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

type progressReader struct {
	reader io.Reader
	report func(int64)
	total  int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	if n > 0 {
		p.total += int64(n)
		p.report(p.total)
	}
	return n, err
}
