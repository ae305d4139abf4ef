package container

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"marketplace/autoposter/internal/browser"
	"marketplace/autoposter/internal/config"
	"marketplace/autoposter/internal/domain"
	"marketplace/autoposter/internal/humanize"
	"marketplace/autoposter/internal/imagefetch"
	"marketplace/autoposter/internal/marketplace"
	"marketplace/autoposter/internal/notify"
	"marketplace/autoposter/internal/repository"
	"marketplace/autoposter/internal/scheduler"
	"marketplace/autoposter/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	Workflows    repository.WorkflowRepository
	Queue        repository.QueueRepository
	StateManager state.StateManager
	Notifier     notify.Notifier
	Fetcher      imagefetch.Fetcher

	Scheduler *scheduler.Scheduler

	pacer humanize.Pacer
	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
		pacer:  humanize.New(),
	}

	db, err := pgxpool.New(context.Background(),
		fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Name,
		))
	if err != nil {
		return nil, err
	}
	container.db = db

	if err := repository.Migrate(context.Background(), db); err != nil {
		return nil, err
	}

	container.Workflows = repository.NewWorkflowRepository(db)
	container.Queue = repository.NewQueueRepository(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	container.redis = rdb

	log.Info("connected to Redis")

	container.StateManager = state.NewRedisStateManager(rdb)

	notifier, err := notify.NewRedisNotifier(rdb, cfg.Redis.ConsumerGroup)
	if err != nil {
		return nil, err
	}
	container.Notifier = notifier

	proxySupplier, err := imagefetch.NewProxySupplier(context.Background(), cfg.Images.Proxies, cfg.Images.ProxyTestURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
	}

	fetcher, err := imagefetch.NewFetcher(imagefetch.Config{
		CacheDir:             cfg.Images.CacheDir,
		MaxRequestsPerSecond: cfg.Images.MaxRequestsPerSecond,
	}, proxySupplier)
	if err != nil {
		return nil, err
	}
	container.Fetcher = fetcher

	container.Scheduler = scheduler.New(
		container.sessionFactory(),
		container.Queue,
		container.StateManager,
		notifier,
		fetcher,
		container.pacer,
		scheduler.Config{
			MinDelay: cfg.Scheduler.MinDelay(),
			MaxDelay: cfg.Scheduler.MaxDelay(),
		},
	)

	return container, nil
}

// postingSession ties one browser process to one initialized form automation.
type postingSession struct {
	*marketplace.Automation
	browser *browser.Session
}

func (s *postingSession) Close() {
	s.browser.Close()
}

// sessionFactory builds the per-run browser session. The browser starts
// lazily, on the first run that actually has records to post.
func (c *Container) sessionFactory() scheduler.SessionFactory {
	return func(ctx context.Context) (scheduler.Session, error) {
		browserSession := browser.NewSession(c.Config.Browser.ProfilePath)
		if err := browserSession.Start(); err != nil {
			return nil, err
		}

		mpCfg := marketplace.DefaultConfig(c.Config.Marketplace.CreateURL)
		mpCfg.LoginWait = c.Config.Marketplace.LoginWait()
		mpCfg.TypeCharMin = time.Duration(c.Config.Typing.MinCharDelayMs) * time.Millisecond
		mpCfg.TypeCharMax = time.Duration(c.Config.Typing.MaxCharDelayMs) * time.Millisecond
		mpCfg.AutoJoinFirstGroup = c.Config.Marketplace.AutoJoinFirstGroup

		automation := marketplace.New(
			marketplace.NewPlaywrightPage(browserSession.Page()),
			browserSession,
			c.pacer,
			mpCfg,
		)
		return &postingSession{Automation: automation, browser: browserSession}, nil
	}
}

// Run posts everything currently pending. A progress consumer tails the
// redis stream alongside the run so operators watching the logs see the
// same feed external dashboards do.
func (c *Container) Run(ctx context.Context) error {
	pending := domain.StatusPending
	records, err := c.Queue.List(ctx, &pending)
	if err != nil {
		return fmt.Errorf("failed to load pending queue records: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, runCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return c.Scheduler.Run(runCtx, records, nil)
	})

	g.Go(func() error {
		c.consumeProgress(runCtx)
		return nil
	})

	return g.Wait()
}

func (c *Container) consumeProgress(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		event, msgID, err := c.Notifier.ReadProgress(ctx, "container")
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debugf("progress read failed: %v", err)
			continue
		}
		if event == nil {
			continue
		}
		log.Infof("[%d/%d] %s: %s", event.Index+1, event.Total, event.Title, event.Status)
		if err := c.Notifier.AckProgress(ctx, msgID); err != nil {
			log.Debugf("progress ack failed: %v", err)
		}
	}
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("shutting down container...")

	c.db.Close()
	if err := c.redis.Close(); err != nil {
		log.Warnf("error closing redis client: %v", err)
	}

	log.Info("container shut down")
	return nil
}
