package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"3tcapital/saftprocessor/internal/core/saft"
	"3tcapital/saftprocessor/internal/infrastructure/resilience"
)

// Config holds the connection and layout settings of the remote server.
type Config struct {
	Host                  string
	Port                  int
	User                  string
	Password              string
	PrivateKeyPath        string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
	RemoteRoot            string
	OpenGCsRoot           string
	DownloadDir           string
	Breaker               resilience.Settings
}

// fileSystem is the subset of the SFTP client used by the source.
type fileSystem interface {
	ReadDir(p string) ([]os.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	Remove(p string) error
	Close() error
}

// Source implements saft.RemoteSource on top of an SFTP server laid out as
// <root>/<account folder>/<file>. One session is shared and redialed after failures.
type Source struct {
	cfg     Config
	breaker *resilience.Breaker
	dial    func(ctx context.Context) (fileSystem, error)
	log     *slog.Logger

	mu   sync.Mutex
	conn fileSystem
}

var _ saft.RemoteSource = (*Source)(nil)

// NewSource creates a source. No connection is opened until the first call.
func NewSource(cfg Config, log *slog.Logger) *Source {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "./downloads"
	}
	s := &Source{
		cfg:     cfg,
		breaker: resilience.NewBreaker("sftp", cfg.Breaker),
		log:     log.With("component", "sftp_source", "host", cfg.Host),
	}
	s.dial = s.dialSSH
	return s
}

// List returns every FR*/NC* .xml file found in the account folders under the remote root.
func (s *Source) List(ctx context.Context) ([]saft.RemoteDocument, error) {
	return s.walk(ctx, s.cfg.RemoteRoot, isAuditFile)
}

// ListOpenGCs returns the opengcs-<folder>* snapshots found under the OpenGCs root.
func (s *Source) ListOpenGCs(ctx context.Context) ([]saft.RemoteDocument, error) {
	return s.walk(ctx, s.cfg.OpenGCsRoot, isOpenGCsFile)
}

func (s *Source) walk(ctx context.Context, root string, match func(folder, name string) bool) ([]saft.RemoteDocument, error) {
	var docs []saft.RemoteDocument
	err := s.withConn(ctx, func(fs fileSystem) error {
		folders, err := fs.ReadDir(root)
		if err != nil {
			return fmt.Errorf("list %s: %w", root, err)
		}
		for _, folder := range folders {
			if !folder.IsDir() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			dir := path.Join(root, folder.Name())
			entries, err := fs.ReadDir(dir)
			if err != nil {
				// One unreadable account folder does not hide the others.
				s.log.Error("Failed to list account folder", "folder", dir, "error", err)
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() || !match(folder.Name(), entry.Name()) {
					continue
				}
				docs = append(docs, saft.RemoteDocument{
					Filename:      entry.Name(),
					RemotePath:    path.Join(dir, entry.Name()),
					AccountFolder: folder.Name(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, &saft.FetchError{Err: err}
	}
	s.log.Info("Listed remote documents", "root", root, "count", len(docs))
	return docs, nil
}

// Fetch downloads the file into <download dir>/<account folder>/<filename>.
func (s *Source) Fetch(ctx context.Context, doc saft.RemoteDocument) (saft.RemoteDocument, error) {
	dir := filepath.Join(s.cfg.DownloadDir, doc.AccountFolder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return doc, &saft.FetchError{File: doc.Filename, Err: fmt.Errorf("create download dir: %w", err)}
	}
	local := filepath.Join(dir, doc.Filename)

	err := s.withConn(ctx, func(fs fileSystem) error {
		return download(fs, doc.RemotePath, local)
	})
	if err != nil {
		return doc, &saft.FetchError{File: doc.Filename, Err: err}
	}
	doc.LocalPath = local
	s.log.Debug("Downloaded remote document", "file", doc.Filename, "local_path", local)
	return doc, nil
}

// Delete removes the remote copy of a processed file.
func (s *Source) Delete(ctx context.Context, doc saft.RemoteDocument) error {
	err := s.withConn(ctx, func(fs fileSystem) error {
		return fs.Remove(doc.RemotePath)
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", doc.RemotePath, err)
	}
	s.log.Info("Deleted remote document", "file", doc.Filename)
	return nil
}

// Close drops the cached session.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// withConn runs fn on the shared session, dialing through the breaker when needed.
// A failed operation drops the session so the next call redials.
func (s *Source) withConn(ctx context.Context, fn func(fileSystem) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			fs, err := s.dial(ctx)
			if err != nil {
				return err
			}
			s.conn = fs
			return nil
		})
		if err != nil {
			if errors.Is(err, resilience.ErrOpen) {
				s.log.Warn("SFTP circuit open, skipping call", "state", s.breaker.State().String())
			}
			return fmt.Errorf("connect sftp: %w", err)
		}
	}

	if err := fn(s.conn); err != nil {
		if isConnectionError(err) {
			_ = s.conn.Close()
			s.conn = nil
		}
		return err
	}
	return nil
}

func (s *Source) dialSSH(ctx context.Context) (fileSystem, error) {
	auth, err := s.authMethods()
	if err != nil {
		return nil, err
	}
	hostKey, err := s.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         s.cfg.Timeout,
	})
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("open sftp session: %w", err)
	}
	s.log.Info("SFTP session established")
	return &sftpFS{client: client, ssh: sshClient}, nil
}

func (s *Source) authMethods() ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if s.cfg.PrivateKeyPath != "" {
		key, err := os.ReadFile(s.cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if s.cfg.Password != "" {
		methods = append(methods, ssh.Password(s.cfg.Password))
	}
	if len(methods) == 0 {
		return nil, errors.New("no sftp credentials configured")
	}
	return methods, nil
}

func (s *Source) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(s.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		return cb, nil
	}
	if s.cfg.InsecureIgnoreHostKey {
		s.log.Warn("SFTP host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return nil, errors.New("SFTP_KNOWN_HOSTS is required unless host key checking is disabled")
}

func download(fs fileSystem, remote, local string) error {
	src, err := fs.Open(remote)
	if err != nil {
		return fmt.Errorf("open %s: %w", remote, err)
	}
	defer src.Close()

	dst, err := os.Create(local)
	if err != nil {
		return fmt.Errorf("create %s: %w", local, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(local)
		return fmt.Errorf("copy %s: %w", remote, err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(local)
		return fmt.Errorf("close %s: %w", local, err)
	}
	return nil
}

func isAuditFile(_, name string) bool {
	if !strings.HasSuffix(name, ".xml") {
		return false
	}
	kind := saft.KindFromFilename(name)
	return kind == saft.KindInvoice || kind == saft.KindCreditNote
}

func isOpenGCsFile(folder, name string) bool {
	return strings.HasPrefix(name, "opengcs-"+folder)
}

// isConnectionError reports whether the session is unusable. Status errors such as a
// missing file keep the session open.
func isConnectionError(err error) bool {
	var status *sftp.StatusError
	if errors.As(err, &status) {
		return false
	}
	return !errors.Is(err, os.ErrNotExist) && !errors.Is(err, os.ErrPermission)
}

type sftpFS struct {
	client *sftp.Client
	ssh    *ssh.Client
}

func (f *sftpFS) ReadDir(p string) ([]os.FileInfo, error) { return f.client.ReadDir(p) }

func (f *sftpFS) Open(p string) (io.ReadCloser, error) { return f.client.Open(p) }

func (f *sftpFS) Remove(p string) error { return f.client.Remove(p) }

func (f *sftpFS) Close() error {
	err := f.client.Close()
	if cerr := f.ssh.Close(); err == nil {
		err = cerr
	}
	return err
}

// Check reports the breaker state without dialing, so health probes never hit the server.
func (s *Source) Check(context.Context) error {
	if s.breaker.State() == resilience.StateOpen {
		return resilience.ErrOpen
	}
	return nil
}
