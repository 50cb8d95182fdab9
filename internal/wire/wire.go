package wire

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"Parley/internal/api"
	"Parley/internal/api/config"
	"Parley/internal/api/handler"
	"Parley/internal/job"
	"Parley/internal/pkg/cache"
	"Parley/internal/pkg/cron"
	"Parley/internal/pkg/identity"
	"Parley/internal/pkg/memstore"
	"Parley/internal/pkg/minio"
	"Parley/internal/pkg/mongo"
	"Parley/internal/pkg/notify"
	"Parley/internal/pkg/reconcile"
	"Parley/internal/pkg/redis"
	"Parley/internal/pkg/security"
	"Parley/internal/pkg/stream"
	"Parley/internal/pkg/typing"
	"Parley/internal/repository"
	"Parley/internal/service"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router   *gin.Engine
	Session  *service.SessionService
	Chat     *service.ChatService
	Themes   *service.ThemeService
	Board    *notify.Board
	Provider *identity.TokenProvider
	// CronMgr 未启用心跳时为 nil
	CronMgr *cron.Manager

	authSub stream.Subscription
	ws      *handler.WsHandler
	closers []func(ctx context.Context) error
}

type repos struct {
	messages    repository.MessageRepo
	chats       repository.ChatRepo
	users       repository.UserRepo
	credentials repository.CredentialRepo
}

func BuildApplication(ctx context.Context, cfg *config.Config) (_ *ApplicationContainer, err error) {
	app := &ApplicationContainer{}
	defer func() {
		if err != nil {
			_ = app.Close(context.WithoutCancel(ctx))
		}
	}()

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		if rdb, err = redis.InitRedis(cfg.Redis); err != nil {
			return nil, errors.Wrap(err, "init redis")
		}
		app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
	}

	backend, err := app.buildRepos(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := openCache(cfg.Cache, rdb)
	if err != nil {
		return nil, errors.Wrap(err, "open cache")
	}
	app.closers = append(app.closers, func(context.Context) error { return store.Close() })

	policy, err := reconcile.ParsePolicy(cfg.Sync.Policy)
	if err != nil {
		return nil, err
	}

	board := notify.NewBoard()
	notifier := notify.NewRelay(board)

	var federated *identity.FederatedClient
	if cfg.Identity.Federated.Enabled {
		federated = identity.NewFederatedClient(cfg.Identity.Federated)
	}
	issuer := security.NewTokenIssuer(cfg.Identity.JWTSecret, cfg.Identity.Issuer, cfg.Identity.TokenTTL)
	provider := identity.NewTokenProvider(backend.credentials, issuer, store, federated)

	var chatOpts []service.ChatOption
	if rdb != nil {
		chatOpts = append(chatOpts, service.WithTypingRelay(typing.NewRelay(rdb)))
	}
	if cfg.MinIO.Enabled {
		uploader, err := minio.Init(cfg.MinIO)
		if err != nil {
			return nil, errors.Wrap(err, "init minio")
		}
		chatOpts = append(chatOpts, service.WithAttachments(uploader))
	}

	chat := service.NewChatService(backend.messages, backend.chats, backend.users, store, notifier, service.ChatConfig{
		Policy:             policy,
		Optimistic:         cfg.Sync.Optimistic,
		PendingMatchWindow: cfg.Sync.PendingMatchWindow,
		TypingTTL:          cfg.Sync.TypingTTL,
	}, chatOpts...)
	if err := chat.Restore(ctx); err != nil {
		log.WarnContext(ctx, "Restore active chat failed", "err", err)
	}
	app.closers = append(app.closers, func(context.Context) error { chat.Stop(); return nil })

	themes := service.NewThemeService(store)
	themes.Load(ctx)

	session := service.NewSessionService(provider, backend.users, notifier, chat)

	ws := handler.NewWsHandler(chat, session, themes, board)
	handlers := &api.HandlersGroup{
		Session:             session,
		PageHandler:         handler.NewPageHandler(chat, session, themes),
		SessionHandler:      handler.NewSessionHandler(session),
		ChatHandler:         handler.NewChatHandler(chat, session),
		ThemeHandler:        handler.NewThemeHandler(themes, ws),
		NotificationHandler: handler.NewNotificationHandler(board),
		WsHandler:           ws,
	}
	router := api.SetupRouter(handlers, cfg.Server.AllowOrigins)

	if err := provider.Restore(ctx); err != nil {
		log.WarnContext(ctx, "Restore session failed", "err", err)
	}
	app.authSub = session.InitAuth(ctx)

	if cfg.Presence.Enabled {
		app.CronMgr = cron.NewCronManager(cfg.Presence.Heartbeat, job.NewPresenceJob(session))
	}

	app.Router = router
	app.Session = session
	app.Chat = chat
	app.Themes = themes
	app.Board = board
	app.Provider = provider
	app.ws = ws
	return app, nil
}

func (s *ApplicationContainer) buildRepos(ctx context.Context, cfg *config.Config) (*repos, error) {
	switch cfg.Backend.Driver {
	case "", BackendMemory:
		st := memstore.New()
		return &repos{
			messages:    memstore.NewMessageRepo(st),
			chats:       memstore.NewChatRepo(st),
			users:       memstore.NewUserRepo(st),
			credentials: memstore.NewCredentialRepo(st),
		}, nil
	case BackendMongo:
		db, err := mongo.InitMongo(cfg.Mongo)
		if err != nil {
			return nil, errors.Wrap(err, "init mongo")
		}
		s.closers = append(s.closers, func(ctx context.Context) error { return db.Client().Disconnect(ctx) })
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			return nil, errors.Wrap(err, "ensure mongo indexes")
		}
		return mongoRepos(db), nil
	}
	return nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
}

func mongoRepos(db *mongodrv.Database) *repos {
	return &repos{
		messages:    mongo.NewMessageRepo(db),
		chats:       mongo.NewChatRepo(db),
		users:       mongo.NewUserRepo(db),
		credentials: mongo.NewCredentialRepo(db),
	}
}

func openCache(cfg config.CacheConfig, rdb *goredis.Client) (cache.Store, error) {
	switch cfg.Driver {
	case "", cache.DriverSQLite:
		return cache.OpenSQLite(cfg.Path)
	case cache.DriverRedis:
		if rdb == nil {
			return nil, errors.New("cache driver redis requires redis.enabled")
		}
		return cache.NewRedisStore(rdb, cfg.Namespace), nil
	case cache.DriverMemory:
		return cache.NewMemoryStore(), nil
	}
	return nil, &cache.UnknownDriverError{Driver: cfg.Driver}
}

// Close 按创建的逆序释放资源
func (s *ApplicationContainer) Close(ctx context.Context) error {
	if s.authSub != nil {
		s.authSub.Unsubscribe()
		s.authSub = nil
	}
	if s.ws != nil {
		s.ws.Close()
	}
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
