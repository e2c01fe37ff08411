package feedclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/riskibarqy/sports-feed-sync/internal/platform/logging"
	"github.com/riskibarqy/sports-feed-sync/internal/platform/resilience"
	"github.com/riskibarqy/sports-feed-sync/internal/usecase"
)

type fakeConn struct {
	mu       sync.Mutex
	entries  map[string][]*ftp.Entry
	mtimes   map[string]time.Time
	mdtmErr  error
	mdtmHits int
	files    map[string][]byte
	retrErr  error
	block    chan struct{}
	quitted  bool
	loginErr error
}

func (c *fakeConn) Login(string, string) error { return c.loginErr }

func (c *fakeConn) List(dir string) ([]*ftp.Entry, error) {
	return c.entries[dir], nil
}

func (c *fakeConn) GetTime(remotePath string) (time.Time, error) {
	c.mdtmHits++
	if c.mdtmErr != nil {
		return time.Time{}, c.mdtmErr
	}
	mtime, ok := c.mtimes[remotePath]
	if !ok {
		return time.Time{}, &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "no such file"}
	}
	return mtime, nil
}

func (c *fakeConn) Retr(remotePath string) (io.ReadCloser, error) {
	if c.block != nil {
		<-c.block
	}
	if c.retrErr != nil {
		return nil, c.retrErr
	}
	data, ok := c.files[remotePath]
	if !ok {
		return nil, &textproto.Error{Code: ftp.StatusFileUnavailable, Msg: "no such file"}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *fakeConn) Quit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quitted = true
	return nil
}

func (c *fakeConn) wasQuit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quitted
}

func newTestClient(breaker resilience.CircuitBreakerConfig, dial func(context.Context) (conn, error)) *Client {
	c := NewClient(Config{Addr: "ftp.example.test:21", User: "feeds", Logger: logging.NewNop(), CircuitBreaker: breaker})
	c.dial = dial
	return c
}

func TestClient_ListFiltersFilesByPattern(t *testing.T) {
	t.Parallel()

	modified := time.Date(2024, 8, 18, 9, 30, 0, 0, time.UTC)
	fake := &fakeConn{entries: map[string][]*ftp.Entry{
		"/feeds": {
			{Name: "ENG1-2024-squads.xml", Type: ftp.EntryTypeFile, Size: 120, Time: modified},
			{Name: "ENG1-2024-results.xml", Type: ftp.EntryTypeFile, Size: 240},
			{Name: "archive", Type: ftp.EntryTypeFolder},
			{Name: "readme.txt", Type: ftp.EntryTypeFile},
		},
	}}
	dials := 0
	client := newTestClient(resilience.CircuitBreakerConfig{}, func(context.Context) (conn, error) {
		dials++
		return fake, nil
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	files, err := client.List(context.Background(), "/feeds", `^ENG1-2024-.+\.xml$`)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got=%+v", files)
	}
	if files[0].Name != "ENG1-2024-results.xml" || files[0].HasTimestamp() {
		t.Fatalf("expected results first without timestamp, got=%+v", files[0])
	}
	if !files[1].ModifiedAt.Equal(modified) || files[1].Size != 120 {
		t.Fatalf("unexpected squads entry: %+v", files[1])
	}
	if dials != 1 {
		t.Fatalf("expected a single dial, got=%d", dials)
	}

	if _, err := client.List(context.Background(), "/feeds", "("); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestClient_DownloadMissingFileKeepsConnection(t *testing.T) {
	t.Parallel()

	fake := &fakeConn{files: map[string][]byte{"/feeds/a.xml": []byte("<a/>")}}
	client := newTestClient(resilience.CircuitBreakerConfig{}, func(context.Context) (conn, error) { return fake, nil })

	data, err := client.Download(context.Background(), "/feeds/a.xml")
	if err != nil || string(data) != "<a/>" {
		t.Fatalf("download: data=%q err=%v", data, err)
	}
	if _, err := client.Download(context.Background(), "/feeds/missing.xml"); err == nil {
		t.Fatalf("expected missing file error")
	}
	if fake.wasQuit() {
		t.Fatalf("a missing file must not drop the connection")
	}
}

func TestClient_DownloadTimeoutDropsConnection(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)
	fake := &fakeConn{block: block}
	client := newTestClient(resilience.CircuitBreakerConfig{}, func(context.Context) (conn, error) { return fake, nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Download(ctx, "/feeds/slow.xml")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got=%v", err)
	}
	if !fake.wasQuit() {
		t.Fatalf("expected hung connection to be closed")
	}
}

func TestClient_OpenBreakerReportsDependencyUnavailable(t *testing.T) {
	t.Parallel()

	dials := 0
	client := newTestClient(resilience.CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      time.Hour,
	}, func(context.Context) (conn, error) {
		dials++
		return nil, errors.New("connection refused")
	})

	for i := 0; i < 2; i++ {
		if err := client.Connect(context.Background()); err == nil || errors.Is(err, usecase.ErrDependencyUnavailable) {
			t.Fatalf("attempt %d: expected plain dial error, got=%v", i+1, err)
		}
	}
	err := client.Connect(context.Background())
	if !errors.Is(err, usecase.ErrDependencyUnavailable) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open breaker, got=%v", err)
	}
	if dials != 2 {
		t.Fatalf("open breaker must not dial, dials=%d", dials)
	}
}

func TestClient_LoginFailureQuitsConnection(t *testing.T) {
	t.Parallel()

	fake := &fakeConn{loginErr: errors.New("530 login incorrect")}
	client := newTestClient(resilience.CircuitBreakerConfig{}, func(context.Context) (conn, error) { return fake, nil })

	if err := client.Connect(context.Background()); err == nil {
		t.Fatalf("expected login error")
	}
	if !fake.wasQuit() {
		t.Fatalf("expected connection to be closed after failed login")
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("disconnect without connection: %v", err)
	}
}

func TestClient_ListUsesMDTMForMinutePrecisionTimes(t *testing.T) {
	t.Parallel()

	listed := time.Date(2024, 8, 18, 10, 15, 0, 0, time.UTC)
	exact := time.Date(2024, 8, 18, 10, 15, 42, 0, time.UTC)
	precise := time.Date(2024, 8, 18, 11, 0, 7, 0, time.UTC)
	fake := &fakeConn{
		entries: map[string][]*ftp.Entry{
			"/feeds": {
				{Name: "ENG1-2024-results.xml", Type: ftp.EntryTypeFile, Time: listed},
				{Name: "ENG1-2024-squads.xml", Type: ftp.EntryTypeFile, Time: precise},
			},
		},
		mtimes: map[string]time.Time{"/feeds/ENG1-2024-results.xml": exact},
	}
	client := newTestClient(resilience.CircuitBreakerConfig{}, func(context.Context) (conn, error) { return fake, nil })

	files, err := client.List(context.Background(), "/feeds", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !files[0].ModifiedAt.Equal(exact) {
		t.Fatalf("expected MDTM time for minute precision entry, got=%v", files[0].ModifiedAt)
	}
	if !files[1].ModifiedAt.Equal(precise) {
		t.Fatalf("expected LIST time kept when it has seconds, got=%v", files[1].ModifiedAt)
	}
	if fake.mdtmHits != 1 {
		t.Fatalf("expected one MDTM call, got=%d", fake.mdtmHits)
	}
}

func TestClient_ListStopsAskingServerWithoutMDTM(t *testing.T) {
	t.Parallel()

	listed := time.Date(2024, 8, 18, 10, 15, 0, 0, time.UTC)
	fake := &fakeConn{
		entries: map[string][]*ftp.Entry{
			"/feeds": {
				{Name: "a.xml", Type: ftp.EntryTypeFile, Time: listed},
				{Name: "b.xml", Type: ftp.EntryTypeFile, Time: listed},
			},
		},
		mdtmErr: &textproto.Error{Code: ftp.StatusNotImplemented, Msg: "command not implemented"},
	}
	client := newTestClient(resilience.CircuitBreakerConfig{}, func(context.Context) (conn, error) { return fake, nil })

	for i := 0; i < 2; i++ {
		files, err := client.List(context.Background(), "/feeds", "")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(files) != 2 || !files[0].ModifiedAt.Equal(listed) {
			t.Fatalf("expected LIST times, got=%+v", files)
		}
	}
	if fake.mdtmHits != 1 {
		t.Fatalf("expected MDTM to be tried once, got=%d", fake.mdtmHits)
	}
}
