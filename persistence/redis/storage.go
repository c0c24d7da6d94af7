package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/util"
)

const INSTANCE_KEY string = "INSTANCE"
const TOKEN_KEY string = "TOKENS"
const CONTEXT_KEY string = "CONTEXT"
const SCHEDULE_KEY string = "SCHEDULE"

const logTokenMaxRetry = 3

var _ persistence.Storage = new(redisStorage)

type redisStorage struct {
	*baseDao
	tokenCodec util.EncoderDecoder[model.Token]
	anyCodec   util.EncoderDecoder[any]
}

func NewRedisStorage(conf Config) *redisStorage {
	return &redisStorage{
		baseDao:    newBaseDao(conf),
		tokenCodec: util.NewJsonEncoderDecoder[model.Token](),
		anyCodec:   util.NewJsonEncoderDecoder[any](),
	}
}

func (r *redisStorage) CreateInstance(processId string, versionId string, instanceId string) error {
	key := r.getNamespaceKey(INSTANCE_KEY, instanceId)
	ctx := context.Background()
	fields := map[string]any{
		"processId": processId,
		"versionId": versionId,
		"state":     string(model.INSTANCE_RUNNING),
	}
	if err := r.redisClient.HSet(ctx, key, fields).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetInstance(instanceId string) (*model.Instance, error) {
	key := r.getNamespaceKey(INSTANCE_KEY, instanceId)
	ctx := context.Background()
	fields, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(fields) == 0 {
		return nil, persistence.NotFoundError{Kind: "instance", Key: instanceId}
	}
	return &model.Instance{
		ProcessId:  fields["processId"],
		VersionId:  fields["versionId"],
		InstanceId: instanceId,
		State:      model.InstanceState(fields["state"]),
	}, nil
}

func (r *redisStorage) UpdateInstanceState(instanceId string, state model.InstanceState) error {
	key := r.getNamespaceKey(INSTANCE_KEY, instanceId)
	ctx := context.Background()
	if err := r.redisClient.HSet(ctx, key, "state", string(state)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetActiveTokens(instanceId string) ([]model.Token, error) {
	key := r.getNamespaceKey(TOKEN_KEY, instanceId)
	ctx := context.Background()
	values, err := r.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	tokens := make([]model.Token, 0, len(values))
	for _, v := range values {
		token, err := r.tokenCodec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, nil
}

// LogToken consumes and emits token sets in one transaction guarded by
// optimistic concurrency on the instance token log. When a consumed
// token has already been removed by a concurrent transition the call
// returns a ConflictError and writes nothing.
func (r *redisStorage) LogToken(instanceId string, consume []model.Token, emit []model.Token) error {
	key := r.getNamespaceKey(TOKEN_KEY, instanceId)
	ctx := context.Background()

	txn := func(tx *rd.Tx) error {
		for _, t := range consume {
			exists, err := tx.HExists(ctx, key, t.Id).Result()
			if err != nil {
				return persistence.StorageLayerError{Message: err.Error()}
			}
			if !exists {
				return persistence.ConflictError{InstanceId: instanceId, TokenId: t.Id}
			}
		}
		var emitFields []string
		for _, t := range emit {
			data, err := r.tokenCodec.Encode(t)
			if err != nil {
				return err
			}
			emitFields = append(emitFields, t.Id, string(data))
		}
		_, err := tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			for _, t := range consume {
				pipe.HDel(ctx, key, t.Id)
			}
			if len(emitFields) != 0 {
				pipe.HSet(ctx, key, emitFields)
			}
			return nil
		})
		return err
	}

	for i := 0; i < logTokenMaxRetry; i++ {
		err := r.redisClient.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, rd.TxFailedErr) {
			continue
		}
		return err
	}
	return persistence.StorageLayerError{Message: "token log transaction retries exhausted"}
}

func (r *redisStorage) GetContextValue(instanceId string, key string) (any, error) {
	hkey := r.getNamespaceKey(CONTEXT_KEY, instanceId)
	ctx := context.Background()
	data, err := r.redisClient.HGet(ctx, hkey, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	value, err := r.anyCodec.Decode([]byte(data))
	if err != nil {
		return nil, err
	}
	return *value, nil
}

func (r *redisStorage) SetContextValue(instanceId string, key string, value any) error {
	hkey := r.getNamespaceKey(CONTEXT_KEY, instanceId)
	ctx := context.Background()
	if value == nil {
		value = map[string]any{}
	}
	data, err := r.anyCodec.Encode(value)
	if err != nil {
		return err
	}
	if err := r.redisClient.HSet(ctx, hkey, key, string(data)).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) GetContextValues(instanceId string, keys []string) (map[string]any, error) {
	values := make(map[string]any, len(keys))
	for _, key := range keys {
		value, err := r.GetContextValue(instanceId, key)
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}

func (r *redisStorage) ScheduleToken(fireAt time.Time, timerSpec string, token model.Token) error {
	key := r.getNamespaceKey(SCHEDULE_KEY)
	ctx := context.Background()
	token.Attributes.TimerSpec = timerSpec
	data, err := r.tokenCodec.Encode(token)
	if err != nil {
		return err
	}
	member := rd.Z{
		Score:  float64(fireAt.UnixMilli()),
		Member: string(data),
	}
	if err := r.redisClient.ZAdd(ctx, key, member).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (r *redisStorage) ReadScheduledTokens(until time.Time) ([]model.Token, error) {
	key := r.getNamespaceKey(SCHEDULE_KEY)
	ctx := context.Background()
	max := strconv.FormatInt(until.UnixMilli(), 10)
	opt := &rd.ZRangeBy{
		Min: "0",
		Max: max,
	}
	pipe := r.redisClient.Pipeline()
	zr := pipe.ZRangeByScore(ctx, key, opt)
	pipe.ZRemRangeByScore(ctx, key, "0", max)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	values, err := zr.Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	var tokens []model.Token
	for _, v := range values {
		token, err := r.tokenCodec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, nil
}
