// Command batch-status переводит набор заказов из одного статуса в другой одним условным UPDATE.
//
//	batch-status -driver=postgres -ids=1,2,3 -from=pending -to=cancelled
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/legacy-orders/internal/domain"
	"github.com/vladislavdragonenkov/legacy-orders/internal/metrics"
	"github.com/vladislavdragonenkov/legacy-orders/internal/service/transition"
	"github.com/vladislavdragonenkov/legacy-orders/internal/storage/mysql"
	"github.com/vladislavdragonenkov/legacy-orders/internal/storage/postgres"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultLockTimeout = 5 * time.Second

	envStorageDriver = "LEGACY_ORDERS_STORAGE_DRIVER"
	envDSN           = "LEGACY_ORDERS_DSN"
)

type options struct {
	driver      string
	dsn         string
	ids         []int64
	from        string
	to          string
	lockTimeout time.Duration
	timeout     time.Duration
}

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOptions(os.Args[1:], os.LookupEnv)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	repo, closeFn, err := openRepository(ctx, opts)
	if err != nil {
		fail("%v", err)
	}
	defer func() { _ = closeFn() }()

	engine := transition.NewEngine(repo,
		transition.WithLogger(log.WithField("component", "batch-status")),
		transition.WithMetrics(metrics.NewTransitionMetrics()),
	)
	if err := execute(ctx, engine, opts, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func parseOptions(args []string, lookup func(string) (string, bool)) (options, error) {
	fs := flag.NewFlagSet("batch-status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		opts   options
		rawIDs string
	)
	fs.StringVar(&opts.driver, "driver", "", "storage driver: postgres|mysql (fallback: "+envStorageDriver+")")
	fs.StringVar(&opts.dsn, "dsn", "", "database DSN (fallback: "+envDSN+")")
	fs.StringVar(&rawIDs, "ids", "", "comma-separated order ids")
	fs.StringVar(&opts.from, "from", "", "expected current status")
	fs.StringVar(&opts.to, "to", "", "target status")
	fs.DurationVar(&opts.lockTimeout, "lock-timeout", defaultLockTimeout, "row lock wait timeout")
	fs.DurationVar(&opts.timeout, "timeout", defaultTimeout, "overall command timeout")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if strings.TrimSpace(opts.driver) == "" {
		opts.driver, _ = lookup(envStorageDriver)
	}
	opts.driver = strings.ToLower(strings.TrimSpace(opts.driver))
	if opts.driver == "" {
		opts.driver = "postgres"
	}

	if strings.TrimSpace(opts.dsn) == "" {
		opts.dsn, _ = lookup(envDSN)
	}
	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		return options{}, fmt.Errorf("%s (or -dsn) is required", envDSN)
	}

	ids, err := parseIDs(rawIDs)
	if err != nil {
		return options{}, err
	}
	opts.ids = ids

	if opts.from == "" || opts.to == "" {
		return options{}, errors.New("-from and -to are required")
	}
	if opts.timeout <= 0 {
		opts.timeout = defaultTimeout
	}
	return opts, nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid order id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("-ids is required")
	}
	return ids, nil
}

func openRepository(ctx context.Context, opts options) (domain.OrderRepository, func() error, error) {
	switch opts.driver {
	case "postgres":
		store, err := postgres.Open(ctx, opts.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return postgres.NewOrderRepository(store, opts.lockTimeout), store.Close, nil
	case "mysql":
		store, err := mysql.Open(ctx, opts.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql store: %w", err)
		}
		return mysql.NewOrderRepository(store, opts.lockTimeout), store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported driver: %s (use postgres|mysql)", opts.driver)
	}
}

func execute(ctx context.Context, batch transition.BatchTransitioner, opts options, out io.Writer) error {
	updated, err := batch.BatchTransition(ctx, opts.ids, opts.from, opts.to)
	if err != nil {
		return fmt.Errorf("batch transition failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "batch transition ok: %s -> %s requested=%d updated=%d\n",
		opts.from, opts.to, len(opts.ids), updated)
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
