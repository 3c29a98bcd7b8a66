package hostabi

import (
	"context"
	"errors"
	"time"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/oriys/booster/internal/backend/kv"
	"github.com/oriys/booster/internal/logging"
)

// AddRedisToLinker registers the bosbase_redis host-call namespace:
//
//	redis_get(key_ptr, key_len, out_ptr, out_len) -> i32
//	  bytes written, on success
//	  -1  key absent
//	  -2  value does not fit in out_len bytes
//	  -3  out_len negative, or bad guest memory
//	  -4  backend error (includes the adapter being disabled)
//
//	redis_set(key_ptr, key_len, val_ptr, val_len) -> i32
//	  0   success
//	  -1  backend error
//	  -2  bad guest memory
//
//	redis_set_ex(key_ptr, key_len, val_ptr, val_len, ttl_seconds) -> i32
//	  0   success
//	  -1  backend error
//	  -2  ttl_seconds negative, or bad guest memory
//
//	redis_exists(key_ptr, key_len) -> i32
//	  1 / 0 presence, or -1 on backend error
//
//	redis_del(key_ptr, key_len) -> i32
//	  keys removed (0 or 1), clamped to math.MaxInt32, or -1 on backend error
//
// Every code matches original_source/booster/src/redis.rs's
// add_redis_to_linker exactly.
func AddRedisToLinker(linker *wasmtime.Linker, adapter *kv.Adapter) error {
	if err := linker.FuncWrap("bosbase_redis", "redis_get",
		func(caller *wasmtime.Caller, keyPtr, keyLen, outPtr, outLen int32) (code int32) {
			defer func() { recordHostCall("redis_get", code) }()

			if outLen < 0 {
				return -3
			}
			key, err := readGuestBytes(caller, keyPtr, keyLen)
			if err != nil {
				return -3
			}
			val, err := adapter.Get(context.Background(), string(key))
			if errors.Is(err, kv.ErrNotFound) {
				return -1
			}
			if err != nil {
				logging.Op().Warn("redis_get failed", "error", err)
				return -4
			}
			if int32(len(val)) > outLen {
				return -2
			}
			n, err := writeGuestBytes(caller, outPtr, outLen, val)
			if err != nil {
				return -3
			}
			return int32(n)
		}); err != nil {
		return err
	}

	if err := linker.FuncWrap("bosbase_redis", "redis_set",
		func(caller *wasmtime.Caller, keyPtr, keyLen, valPtr, valLen int32) (code int32) {
			defer func() { recordHostCall("redis_set", code) }()

			key, kerr := readGuestBytes(caller, keyPtr, keyLen)
			val, verr := readGuestBytes(caller, valPtr, valLen)
			if kerr != nil || verr != nil {
				return -2
			}
			if err := adapter.Set(context.Background(), string(key), val); err != nil {
				logging.Op().Warn("redis_set failed", "error", err)
				return -1
			}
			return 0
		}); err != nil {
		return err
	}

	if err := linker.FuncWrap("bosbase_redis", "redis_set_ex",
		func(caller *wasmtime.Caller, keyPtr, keyLen, valPtr, valLen int32, ttlSeconds int64) (code int32) {
			defer func() { recordHostCall("redis_set_ex", code) }()

			if ttlSeconds < 0 {
				return -2
			}
			key, kerr := readGuestBytes(caller, keyPtr, keyLen)
			val, verr := readGuestBytes(caller, valPtr, valLen)
			if kerr != nil || verr != nil {
				return -2
			}
			ttl := time.Duration(ttlSeconds) * time.Second
			if err := adapter.SetWithTTL(context.Background(), string(key), val, ttl); err != nil {
				logging.Op().Warn("redis_set_ex failed", "error", err)
				return -1
			}
			return 0
		}); err != nil {
		return err
	}

	if err := linker.FuncWrap("bosbase_redis", "redis_exists",
		func(caller *wasmtime.Caller, keyPtr, keyLen int32) (code int32) {
			defer func() { recordHostCall("redis_exists", code) }()

			key, err := readGuestBytes(caller, keyPtr, keyLen)
			if err != nil {
				return -1
			}
			exists, err := adapter.Exists(context.Background(), string(key))
			if err != nil {
				logging.Op().Warn("redis_exists failed", "error", err)
				return -1
			}
			if exists {
				return 1
			}
			return 0
		}); err != nil {
		return err
	}

	return linker.FuncWrap("bosbase_redis", "redis_del",
		func(caller *wasmtime.Caller, keyPtr, keyLen int32) (code int32) {
			defer func() { recordHostCall("redis_del", code) }()

			key, err := readGuestBytes(caller, keyPtr, keyLen)
			if err != nil {
				return -1
			}
			n, err := adapter.Del(context.Background(), string(key))
			if err != nil {
				logging.Op().Warn("redis_del failed", "error", err)
				return -1
			}
			return clampInt32(n)
		})
}
