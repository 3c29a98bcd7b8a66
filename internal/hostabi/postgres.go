package hostabi

import (
	"context"

	"github.com/bytecodealliance/wasmtime-go/v14"

	"github.com/oriys/booster/internal/backend/relational"
	"github.com/oriys/booster/internal/logging"
)

// AddPostgresToLinker registers the bosbase_postgres host-call namespace:
//
//	pg_exec(sql_ptr, sql_len) -> i32
//	  rows affected, clamped to math.MaxInt32, on success
//	  -1  backend error (includes the adapter being disabled)
//	  -2  bad guest memory, or sql is not valid UTF-8
//
//	pg_query(sql_ptr, sql_len, out_ptr, out_len) -> i32
//	  bytes written, on success
//	  -1  backend error (includes the adapter being disabled)
//	  -2  serialized JSON does not fit in out_len bytes
//	  -3  out_len negative, bad guest memory, or sql is not valid UTF-8
//
// Every code matches original_source/booster/src/postgres.rs's
// add_postgres_to_linker exactly.
func AddPostgresToLinker(linker *wasmtime.Linker, adapter *relational.Adapter) error {
	err := linker.FuncWrap("bosbase_postgres", "pg_exec",
		func(caller *wasmtime.Caller, sqlPtr, sqlLen int32) (code int32) {
			defer func() { recordHostCall("pg_exec", code) }()

			sql, err := readGuestBytes(caller, sqlPtr, sqlLen)
			if err != nil || !utf8Valid(sql) {
				return -2
			}
			n, err := adapter.Exec(context.Background(), string(sql))
			if err != nil {
				logging.Op().Warn("pg_exec failed", "error", err)
				return -1
			}
			return clampInt32(n)
		})
	if err != nil {
		return err
	}

	return linker.FuncWrap("bosbase_postgres", "pg_query",
		func(caller *wasmtime.Caller, sqlPtr, sqlLen, outPtr, outLen int32) (code int32) {
			defer func() { recordHostCall("pg_query", code) }()

			if outLen < 0 {
				return -3
			}
			sql, err := readGuestBytes(caller, sqlPtr, sqlLen)
			if err != nil || !utf8Valid(sql) {
				return -3
			}
			payload, err := adapter.QueryJSON(context.Background(), string(sql))
			if err != nil {
				logging.Op().Warn("pg_query failed", "error", err)
				return -1
			}
			if int32(len(payload)) > outLen {
				return -2
			}
			n, err := writeGuestBytes(caller, outPtr, outLen, payload)
			if err != nil {
				return -3
			}
			return int32(n)
		})
}
