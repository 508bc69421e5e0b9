package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"apyscope/internal/cache"
	"apyscope/internal/config"
	"apyscope/internal/persistence/archive"
	"apyscope/internal/pipeline"
	"apyscope/pkg/apy"
	"apyscope/pkg/memo"
	"apyscope/pkg/subgraph"
)

// StoreKind names the cache backend chosen for an environment.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreRedis  StoreKind = "redis"
)

// CacheStoreKind picks Redis when it is configured, except in the test
// environment which always stays in-process.
func CacheStoreKind(c config.Config) StoreKind {
	if c.IsTestEnv() || !c.RedisConfigured() {
		return StoreMemory
	}
	return StoreRedis
}

type ServiceContext struct {
	Config config.Config

	SourcesConfig *subgraph.Config
	Client        *subgraph.Client
	Cache         *memo.Cache
	TTL           cache.TTLSet
	Pipeline      *pipeline.Pipeline

	// Optional, only set when a Postgres DSN is provided.
	DBConn  sqlx.SqlConn
	Archive *archive.Service
}

func NewServiceContext(c config.Config) *ServiceContext {
	sourcesCfg := c.SourcesConfig()
	if err := sourcesCfg.Validate(); err != nil {
		log.Fatalf("invalid sources config: %v", err)
	}

	svc := &ServiceContext{
		Config:        c,
		SourcesConfig: sourcesCfg,
		Client:        sourcesCfg.BuildClient(),
		TTL:           cache.NewTTLSet(c.TTL),
	}

	switch CacheStoreKind(c) {
	case StoreRedis:
		svc.Cache = memo.New(memo.NewRedisStore(redis.MustNewRedis(c.Redis)))
	default:
		svc.Cache = memo.New(memo.NewMemoryStore())
	}

	pcfg := pipeline.Config{
		Upstream:    apy.NewSubgraphSource(svc.Client),
		Cache:       svc.Cache,
		TTL:         svc.TTL,
		Sources:     sourcesCfg.Sources,
		Parallelism: c.Parallelism,
	}

	// Archive only when a DSN is provided; reads never depend on it.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		if raw, err := conn.RawDB(); err == nil {
			raw.SetMaxOpenConns(c.Postgres.MaxOpen)
			raw.SetMaxIdleConns(c.Postgres.MaxIdle)
		}
		svc.DBConn = conn
		svc.Archive = archive.NewService(archive.Config{SQLConn: conn})
		pcfg.Archive = svc.Archive
	}

	svc.Pipeline = pipeline.New(pcfg)
	return svc
}
