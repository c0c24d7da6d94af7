package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rd "github.com/go-redis/redis/v9"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const DEFINITION_KEY string = "DEFINITION"
const SUBSCRIPTION_KEY string = "SUBSCRIPTION"
const SUBSCRIPTION_INDEX_KEY string = "SUBINDEX"

var _ metadata.MetadataStorage = new(redisMetadataStorage)

type redisMetadataStorage struct {
	*baseDao
	defCodec util.EncoderDecoder[model.ProcessDefinition]
	subCodec util.EncoderDecoder[model.Subscription]
}

func NewRedisMetadataStorage(conf Config) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao:  newBaseDao(conf),
		defCodec: util.NewJsonEncoderDecoder[model.ProcessDefinition](),
		subCodec: util.NewJsonEncoderDecoder[model.Subscription](),
	}
}

func (r *redisMetadataStorage) SaveProcessDefinition(def model.ProcessDefinition) error {
	key := r.getNamespaceKey(DEFINITION_KEY, def.ProcessId)
	ctx := context.Background()
	data, err := r.defCodec.Encode(def)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, key, def.VersionId, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisMetadataStorage) GetProcessDefinition(processId string, versionId string) (*model.ProcessDefinition, error) {
	key := r.getNamespaceKey(DEFINITION_KEY, processId)
	ctx := context.Background()
	data, err := r.redisClient.HGet(ctx, key, versionId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "process definition", Key: fmt.Sprintf("%s:%s", processId, versionId)}
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.defCodec.Decode([]byte(data))
}

func (r *redisMetadataStorage) DeleteProcessDefinition(processId string, versionId string) error {
	key := r.getNamespaceKey(DEFINITION_KEY, processId)
	ctx := context.Background()
	if err := r.redisClient.HDel(ctx, key, versionId).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func subscriptionField(sub model.Subscription) string {
	return fmt.Sprintf("%s:%s:%s", sub.ProcessId, sub.VersionId, sub.ElementId)
}

func (r *redisMetadataStorage) RegisterSubscription(eventName string, sub model.Subscription) error {
	key := r.getNamespaceKey(SUBSCRIPTION_KEY, eventName)
	indexKey := r.getNamespaceKey(SUBSCRIPTION_INDEX_KEY, sub.ProcessId, sub.VersionId)
	field := subscriptionField(sub)
	data, err := r.subCodec.Encode(sub)
	if err != nil {
		return err
	}
	ctx := context.Background()
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.HSet(ctx, key, field, string(data))
		pipe.SAdd(ctx, indexKey, fmt.Sprintf("%s|%s", eventName, field))
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisMetadataStorage) RemoveSubscriptions(processId string, versionId string) error {
	indexKey := r.getNamespaceKey(SUBSCRIPTION_INDEX_KEY, processId, versionId)
	ctx := context.Background()
	members, err := r.redisClient.SMembers(ctx, indexKey).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	_, err = r.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		for _, member := range members {
			parts := strings.SplitN(member, "|", 2)
			if len(parts) != 2 {
				continue
			}
			pipe.HDel(ctx, r.getNamespaceKey(SUBSCRIPTION_KEY, parts[0]), parts[1])
		}
		pipe.Del(ctx, indexKey)
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisMetadataStorage) GetSubscriptions(eventName string) ([]model.Subscription, error) {
	key := r.getNamespaceKey(SUBSCRIPTION_KEY, eventName)
	ctx := context.Background()
	values, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	subs := make([]model.Subscription, 0, len(values))
	for _, v := range values {
		sub, err := r.subCodec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, nil
}
