package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harrisonrobin/taigo/pkg/auth"
	"github.com/harrisonrobin/taigo/pkg/cache"
	"github.com/harrisonrobin/taigo/pkg/config"
	"github.com/harrisonrobin/taigo/pkg/index"
	"github.com/harrisonrobin/taigo/pkg/logger"
	"github.com/harrisonrobin/taigo/pkg/metrics"
	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/mutation"
	"github.com/harrisonrobin/taigo/pkg/snapshot"
	"github.com/harrisonrobin/taigo/pkg/taiga"
)

// app holds everything a command needs. It is wired once per invocation by
// setup, before any command runs.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	cfgPath   string
	cfg       *config.Config
	store     *cache.Store
	log       *slog.Logger
	logCloser io.Closer
	registry  *prometheus.Registry

	auth      *auth.Manager
	client    *taiga.Client
	snapshots *snapshot.Cache
	protocol  *mutation.Protocol
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, now: time.Now, log: logger.Discard()}
}

func (a *app) setup() error {
	path, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to locate config file: %w", err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	a.cfgPath, a.cfg = path, cfg

	dir := cfg.CacheDir
	if dir == "" {
		if dir, err = cache.DefaultDir(); err != nil {
			return fmt.Errorf("failed to locate cache directory: %w", err)
		}
	}
	store, err := cache.Open(dir)
	if err != nil {
		return err
	}
	a.store = store

	log, closer, err := logger.New(logger.Config{Level: cfg.LogLevel, Path: filepath.Join(store.Dir(), logger.FileName)})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	a.log = log.With("invocation", uuid.NewString())
	a.logCloser = closer

	a.registry = prometheus.NewRegistry()
	rec := metrics.NewRecorder(a.registry)

	a.auth = auth.NewManager(store,
		auth.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		auth.WithLogger(a.log),
		auth.WithMetrics(rec),
	)
	a.client = taiga.NewClient(a.auth, a.log)
	a.snapshots = snapshot.New(store, a.client,
		snapshot.WithClock(a.now),
		snapshot.WithLogger(a.log),
		snapshot.WithMetrics(rec),
	)
	a.protocol = mutation.New(a.client, a.snapshots,
		mutation.WithLogger(a.log),
		mutation.WithMetrics(rec),
	)
	return nil
}

// close logs the counters of this invocation and releases the log file.
func (a *app) close() {
	if a.registry != nil {
		if totals, err := metrics.Totals(a.registry); err == nil {
			for _, name := range metrics.SortedNames(totals) {
				a.log.Debug("invocation metric", "name", name, "value", totals[name])
			}
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

func (a *app) session(ctx context.Context) (*auth.Session, error) {
	return a.auth.Load(ctx)
}

func (a *app) projectID(name string) (int, error) {
	idx, err := index.Load(a.store)
	if err != nil {
		return 0, err
	}
	return idx.Find(name)
}

// open loads the session and the cached snapshot of the named project,
// refetching it when stale says so.
func (a *app) open(ctx context.Context, project string, stale snapshot.StaleRule) (*auth.Session, *model.Snapshot, error) {
	session, err := a.session(ctx)
	if err != nil {
		return nil, nil, err
	}
	id, err := a.projectID(project)
	if err != nil {
		return nil, nil, err
	}
	snap, err := a.snapshots.Get(ctx, id, stale)
	if err != nil {
		return nil, nil, err
	}
	return session, snap, nil
}

// taskAt resolves a position printed by the last search.
func taskAt(snap *model.Snapshot, arg string) (*model.Task, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid task position '%s'", arg)
	}
	return snap.TaskAt(n)
}

// memberIDs maps usernames to member ids. "me" is the logged in account.
func memberIDs(snap *model.Snapshot, session *auth.Session, usernames []string) ([]int, error) {
	ids := make([]int, 0, len(usernames))
	for _, name := range usernames {
		if name == snapshot.Me {
			ids = append(ids, session.AccountID)
			continue
		}
		member, err := snap.MemberByUsername(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, member.ID)
	}
	return ids, nil
}

func memberRules(usernames []string) []snapshot.StaleRule {
	rules := make([]snapshot.StaleRule, 0, len(usernames))
	for _, name := range usernames {
		rules = append(rules, snapshot.MissingMember(name))
	}
	return rules
}

func statusIDs(snap *model.Snapshot, slugs []string) ([]int, error) {
	ids := make([]int, 0, len(slugs))
	for _, slug := range slugs {
		st, err := snap.StatusBySlug(slug)
		if err != nil {
			return nil, err
		}
		ids = append(ids, st.ID)
	}
	return ids, nil
}
