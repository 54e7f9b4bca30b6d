package blobstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"expense-tracker/pkg/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend owns the client connection for the configured storage backend and
// hands out containers on it.
type Backend struct {
	kind   string
	bucket string
	region string
	s3     *s3.Client
	redis  *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	memory map[string]*MemoryStore
}

// NewBackend connects to the backend named by cfg.Backend.
func NewBackend(ctx context.Context, cfg *config.StorageConfig, redisCfg *config.RedisConfig, logger *zap.Logger) (*Backend, error) {
	b := &Backend{
		kind:   cfg.Backend,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: logger,
	}

	switch cfg.Backend {
	case "s3":
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.s3 = client
		logger.Info("S3 storage client initialized",
			zap.String("bucket", cfg.Bucket),
			zap.String("region", cfg.Region),
			zap.String("endpoint", cfg.Endpoint),
		)
	case "redis":
		b.redis = newRedisClient(redisCfg)
		if err := b.redis.Ping(ctx).Err(); err != nil {
			_ = b.redis.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("Redis storage client initialized", zap.String("addr", redisCfg.Addr))
	case "memory":
		b.memory = make(map[string]*MemoryStore)
		logger.Warn("Using in-memory blob storage; data is lost on restart")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	return b, nil
}

// Container returns the store rooted at prefix.
func (b *Backend) Container(prefix string) Store {
	switch b.kind {
	case "s3":
		return NewS3Store(b.s3, b.bucket, prefix, b.region, b.logger)
	case "redis":
		return NewRedisStore(b.redis, prefix)
	default:
		b.mu.Lock()
		defer b.mu.Unlock()
		store, ok := b.memory[prefix]
		if !ok {
			store = NewMemoryStore()
			b.memory[prefix] = store
		}
		return store
	}
}

func (b *Backend) Close() error {
	if b.redis != nil {
		return b.redis.Close()
	}
	return nil
}

func newS3Client(ctx context.Context, cfg *config.StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

func newRedisClient(cfg *config.RedisConfig) *redis.Client {
	opt := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opt)
}
