package feedclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/jlaffaye/ftp"
	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/sports-feed-sync/internal/domain/feed"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
	"github.com/riskibarqy/sports-feed-sync/internal/usecase"
)

const (
	defaultTimeout = 30 * time.Second
	maxFileSize    = 64 << 20
)

var errFileTooLarge = crerr.New("remote file exceeds size limit")

type Config struct {
	Addr           string
	User           string
	Password       string
	Timeout        time.Duration
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// conn is the subset of *ftp.ServerConn the client needs.
type conn interface {
	Login(user, password string) error
	List(path string) ([]*ftp.Entry, error)
	GetTime(path string) (time.Time, error)
	Retr(path string) (io.ReadCloser, error)
	Quit() error
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) Retr(remotePath string) (io.ReadCloser, error) {
	resp, err := c.ServerConn.Retr(remotePath)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Client is the FTP implementation of feed.Client. One control connection
// is shared and every command is serialised on it; a connection that failed
// or timed out is dropped and re-dialled on the next call.
type Client struct {
	addr     string
	user     string
	password string
	timeout  time.Duration
	logger   *logging.Logger
	breaker  *resilience.CircuitBreaker
	dial     func(ctx context.Context) (conn, error)

	mu   sync.Mutex
	conn conn
	// noMDTM is set once the server rejects MDTM as unsupported.
	noMDTM bool
}

var _ feed.Client = (*Client)(nil)

func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		addr:     strings.TrimSpace(cfg.Addr),
		user:     cfg.User,
		password: cfg.Password,
		timeout:  timeout,
		logger:   logger.With("component", "feedclient", "addr", strings.TrimSpace(cfg.Addr)),
		breaker:  resilience.NewCircuitBreakerFromConfig(cfg.CircuitBreaker),
	}
	c.breaker.OnStateChange(func(from, to resilience.CircuitState) {
		c.logger.Warn("feed transport circuit changed state", "from", string(from), "to", string(to))
	})
	c.dial = c.dialFTP
	return c
}

func (c *Client) dialFTP(ctx context.Context) (conn, error) {
	server, err := ftp.Dial(c.addr, ftp.DialWithTimeout(c.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, crerr.Wrapf(err, "dial ftp %s", c.addr)
	}
	return serverConn{ServerConn: server}, nil
}

func (c *Client) Connect(ctx context.Context) error {
	return c.do(ctx, "connect", func(conn) error { return nil })
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

func (c *Client) List(ctx context.Context, dir, pattern string) ([]feed.RemoteFile, error) {
	var matcher *regexp.Regexp
	if pattern != "" {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, crerr.Wrapf(err, "compile list pattern %q", pattern)
		}
		matcher = compiled
	}

	var out []feed.RemoteFile
	err := c.do(ctx, "list "+dir, func(cn conn) error {
		entries, err := cn.List(dir)
		if err != nil {
			return crerr.Wrapf(err, "list %s", dir)
		}
		out = make([]feed.RemoteFile, 0, len(entries))
		for _, entry := range entries {
			if entry == nil || entry.Type != ftp.EntryTypeFile {
				continue
			}
			name := path.Base(entry.Name)
			if matcher != nil && !matcher.MatchString(name) {
				continue
			}
			out = append(out, feed.RemoteFile{
				Name:       name,
				Size:       entry.Size,
				ModifiedAt: c.modifiedAtLocked(ctx, cn, path.Join(dir, name), entry.Time),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// modifiedAtLocked asks MDTM for the exact time when the LIST time has no
// seconds, as most servers print it, so two writes within one minute still
// compare as different. Any MDTM failure keeps the LIST time.
func (c *Client) modifiedAtLocked(ctx context.Context, cn conn, remotePath string, listed time.Time) time.Time {
	if !listed.IsZero() {
		listed = listed.UTC()
		if listed.Second() != 0 || listed.Nanosecond() != 0 {
			return listed
		}
	}
	if c.noMDTM {
		return listed
	}

	exact, err := cn.GetTime(remotePath)
	if err != nil {
		if isUnsupportedCommand(err) {
			c.noMDTM = true
			c.logger.InfoContext(ctx, "ftp server has no MDTM, using LIST timestamps")
		} else {
			c.logger.DebugContext(ctx, "mdtm failed, using LIST timestamp", "path", remotePath, "error", err)
		}
		return listed
	}
	if exact.IsZero() {
		return listed
	}
	return exact.UTC()
}

// Download reads one file. When ctx expires first the connection is closed,
// which also unblocks the pending transfer.
func (c *Client) Download(ctx context.Context, remotePath string) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "download "+remotePath, func(cn conn) error {
		data, err := retrieve(ctx, cn, remotePath)
		out = data
		return err
	})
	return out, err
}

type retrieved struct {
	data []byte
	err  error
}

func retrieve(ctx context.Context, cn conn, remotePath string) ([]byte, error) {
	done := make(chan retrieved, 1)
	go func() {
		body, err := cn.Retr(remotePath)
		if err != nil {
			done <- retrieved{err: crerr.Wrapf(err, "retr %s", remotePath)}
			return
		}
		defer body.Close()

		buf := bytebufferpool.Get()
		defer bytebufferpool.Put(buf)
		n, err := buf.ReadFrom(io.LimitReader(body, maxFileSize+1))
		switch {
		case err != nil:
			done <- retrieved{err: crerr.Wrapf(err, "read %s", remotePath)}
		case n > maxFileSize:
			done <- retrieved{err: crerr.Wrapf(errFileTooLarge, "read %s", remotePath)}
		default:
			done <- retrieved{data: append([]byte(nil), buf.B...)}
		}
	}()

	select {
	case result := <-done:
		return result.data, result.err
	case <-ctx.Done():
		return nil, crerr.Wrapf(ctx.Err(), "download %s", remotePath)
	}
}

// do runs fn on a live connection under the circuit breaker.
func (c *Client) do(ctx context.Context, op string, fn func(conn) error) error {
	if err := ctx.Err(); err != nil {
		return crerr.Wrap(err, op)
	}

	err := c.breaker.Execute(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		err := c.ensureLocked(ctx)
		if err == nil {
			err = fn(c.conn)
		}
		if err != nil && isCircuitFailure(err) {
			if dropErr := c.dropLocked(); dropErr != nil {
				c.logger.DebugContext(ctx, "close broken ftp connection", "error", dropErr)
			}
		}
		return err
	}, isCircuitFailure)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "feed transport circuit breaker rejected request", "op", op, "state", string(c.breaker.State()))
		return fmt.Errorf("%w: feed transport is temporarily unavailable: %w", usecase.ErrDependencyUnavailable, err)
	}
	return err
}

func (c *Client) ensureLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	cn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	if err := cn.Login(c.user, c.password); err != nil {
		_ = cn.Quit()
		return crerr.Wrapf(err, "login ftp %s as %s", c.addr, c.user)
	}
	c.conn = cn
	c.logger.DebugContext(ctx, "ftp connection established")
	return nil
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Quit()
	c.conn = nil
	if err != nil {
		return crerr.Wrap(err, "quit ftp")
	}
	return nil
}

// isCircuitFailure separates transport trouble from answers about a single
// file. A missing file or a caller cancellation does not trip the breaker.
func isCircuitFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, errFileTooLarge) {
		return false
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case ftp.StatusFileUnavailable, ftp.StatusFileActionIgnored:
			return false
		}
	}
	return true
}

func isUnsupportedCommand(err error) bool {
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) {
		return false
	}
	switch protoErr.Code {
	case ftp.StatusBadCommand, ftp.StatusBadArguments, ftp.StatusNotImplemented, ftp.StatusNotImplementedParameter:
		return true
	}
	return false
}
