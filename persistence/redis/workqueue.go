package redis

import (
	"context"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const WORK_QUEUE_KEY string = "WORKQ"
const WORK_ITEM_KEY string = "WORKITEM"

var _ persistence.WorkQueue = new(redisWorkQueue)

// redisWorkQueue queues work items per agent in a sorted set ordered by
// enqueue time, with item payloads in a companion hash. Items stay
// queued until acked.
type redisWorkQueue struct {
	*baseDao
	itemCodec util.EncoderDecoder[model.WorkItem]
}

func NewRedisWorkQueue(conf Config) *redisWorkQueue {
	return &redisWorkQueue{
		baseDao:   newBaseDao(conf),
		itemCodec: util.NewJsonEncoderDecoder[model.WorkItem](),
	}
}

func (q *redisWorkQueue) Enqueue(item model.WorkItem) error {
	queueKey := q.getNamespaceKey(WORK_QUEUE_KEY, item.Agent)
	itemKey := q.getNamespaceKey(WORK_ITEM_KEY, item.Agent)
	data, err := q.itemCodec.Encode(item)
	if err != nil {
		return err
	}
	ctx := context.Background()
	_, err = q.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, itemKey, item.Id, string(data))
		pipe.ZAdd(ctx, queueKey, rd.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: item.Id,
		})
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (q *redisWorkQueue) Poll(agent string, batchSize int) ([]model.WorkItem, error) {
	queueKey := q.getNamespaceKey(WORK_QUEUE_KEY, agent)
	itemKey := q.getNamespaceKey(WORK_ITEM_KEY, agent)
	ctx := context.Background()
	ids, err := q.redisClient.ZRange(ctx, queueKey, 0, int64(batchSize-1)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return []model.WorkItem{}, nil
	}
	values, err := q.redisClient.HMGet(ctx, itemKey, ids...).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var items []model.WorkItem
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		item, err := q.itemCodec.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (q *redisWorkQueue) Ack(agent string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	queueKey := q.getNamespaceKey(WORK_QUEUE_KEY, agent)
	itemKey := q.getNamespaceKey(WORK_ITEM_KEY, agent)
	ctx := context.Background()
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		members = append(members, id)
	}
	_, err := q.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.ZRem(ctx, queueKey, members...)
		pipe.HDel(ctx, itemKey, ids...)
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}
