package config

import "time"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig        RedisConfig
	HttpPort           int
	StorageType        StorageType
	DispatcherPoolSize int
	DispatcherCapacity int
	SchedulerInterval  time.Duration
}

type RedisConfig struct {
	Addrs     []string
	Namespace string
	PoolSize  int
	Password  string
}
