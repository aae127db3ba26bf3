package queue

import (
	"context"
	"encoding/json"

	"contact-ingestion-db/internal/config"
	"contact-ingestion-db/internal/model"

	"github.com/go-redis/redis/v8"
)

type Producer struct {
	client *redis.Client
	cfg    *config.Config
}

func NewProducer(redisClient *RedisClient, cfg *config.Config) *Producer {
	return &Producer{
		client: redisClient.Client(),
		cfg:    cfg,
	}
}

func (p *Producer) EnqueueIngestion(ctx context.Context, msg model.IngestionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.client.LPush(ctx, p.cfg.Redis.IngestionQueue, data).Err()
}

func (p *Producer) EnqueueReprocess(ctx context.Context, msg model.ReprocessMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.client.LPush(ctx, p.cfg.Redis.ReprocessQueue, data).Err()
}
