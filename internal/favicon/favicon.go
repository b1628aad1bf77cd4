// Package favicon fetches site icons for new bookmarks in the background.
//
// Lookups never run inside an import or sync call: the engine hands the
// new bookmark ids to a Queue after it returns, and a fixed pool of workers
// probes <origin>/favicon.ico for each. Failures are logged and the
// bookmark is stamped as checked with an empty favicon.
package favicon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nikbrunner/anchormarks/internal/logging"
	"github.com/nikbrunner/anchormarks/internal/storage"
)

// Defaults for Options fields left zero.
const (
	DefaultWorkers   = 4
	DefaultTimeout   = 5 * time.Second
	DefaultQueueSize = 1024
)

var errNotHTTP = errors.New("not an http(s) url")

// Options configures a Queue.
type Options struct {
	Workers   int
	Timeout   time.Duration
	QueueSize int
	Client    *http.Client // nil = client with Timeout and a redirect cap
	Logger    logrus.FieldLogger
}

type job struct {
	userID     string
	bookmarkID string
}

// Queue is a bounded worker pool that resolves and stores favicons.
type Queue struct {
	store   *storage.SQLiteStorage
	client  *http.Client
	log     logrus.FieldLogger
	workers int

	mu     sync.Mutex
	jobs   chan job
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a Queue. Call Start before enqueuing.
func NewQueue(store *storage.SQLiteStorage, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}

	return &Queue{
		store:   store,
		client:  client,
		log:     logging.OrDiscard(opts.Logger),
		workers: opts.Workers,
		jobs:    make(chan job, opts.QueueSize),
	}
}

// Start launches the workers. They stop when Close is called or ctx ends.
func (q *Queue) Start(ctx context.Context) {
	for w := 0; w < q.workers; w++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-q.jobs:
					if !ok {
						return
					}
					q.process(ctx, j)
				}
			}
		}()
	}
}

// Enqueue schedules lookups without blocking. Ids that do not fit in the
// queue, or that arrive after Close, are dropped.
func (q *Queue) Enqueue(userID string, bookmarkIDs []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	for i, id := range bookmarkIDs {
		select {
		case q.jobs <- job{userID: userID, bookmarkID: id}:
		default:
			q.log.WithFields(logrus.Fields{"user": userID, "dropped": len(bookmarkIDs) - i}).Warn("favicon queue full")
			return
		}
	}
}

// Close stops accepting work, lets the workers drain the queue and waits
// for them to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) process(ctx context.Context, j job) {
	log := q.log.WithFields(logrus.Fields{"user": j.userID, "bookmark": j.bookmarkID})

	b, err := storage.GetBookmark(ctx, q.store.DB(), j.userID, j.bookmarkID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WithError(err).Warn("favicon lookup: load bookmark")
		}
		return
	}

	icon, err := Resolve(ctx, q.client, b.URL)
	if err != nil {
		log.WithField("url", b.URL).Debugf("no favicon: %s", err)
	}
	if err := storage.SetFavicon(ctx, q.store.DB(), b.ID, icon, time.Now().UTC()); err != nil {
		log.WithError(err).Warn("favicon lookup: store")
	}
}

// Resolve returns the favicon URL for pageURL's origin when the server
// answers 2xx for it. HEAD is tried first with GET as fallback for servers
// that reject HEAD.
func Resolve(ctx context.Context, client *http.Client, pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errNotHTTP
	}
	icon := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/favicon.ico"}).String()

	status, err := probe(ctx, client, http.MethodHead, icon)
	if err != nil || status == http.StatusMethodNotAllowed {
		status, err = probe(ctx, client, http.MethodGet, icon)
	}
	if err != nil {
		return "", errors.New(normalizeError(err.Error()))
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("favicon returned %d %s", status, http.StatusText(status))
	}
	return icon, nil
}

func probe(ctx context.Context, client *http.Client, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// normalizeError simplifies verbose error messages into readable categories.
func normalizeError(errStr string) string {
	lower := strings.ToLower(errStr)

	switch {
	case strings.Contains(lower, "no such host"):
		return "DNS failure"
	case strings.Contains(lower, "context deadline exceeded"),
		strings.Contains(lower, "timeout"):
		return "Timeout"
	case strings.Contains(lower, "connection refused"):
		return "Connection refused"
	case strings.Contains(lower, "certificate"):
		return "TLS/certificate error"
	case strings.Contains(lower, "network is unreachable"):
		return "Network unreachable"
	case strings.Contains(lower, "tls:"):
		return "TLS error"
	default:
		return errStr
	}
}
