// Package relational implements the relational backend adapter: a thin
// pgxpool wrapper that executes guest-supplied SQL and encodes result rows
// as JSON using the exact column-type mapping the host bridge contract
// requires. It mirrors original_source/booster/src/postgres.rs's
// PostgresHost, translated onto pgx/v5 instead of tokio-postgres + bb8.
package relational

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oriys/booster/internal/config"
)

// ErrDisabled is returned by Exec/QueryJSON when no DSN was configured.
// Guest modules observe this as error code -1 through the host bridge,
// identical to a genuine backend failure — the adapter being absent is not
// distinguished from the adapter having failed.
var ErrDisabled = fmt.Errorf("relational adapter is disabled: no POSTGRES_URL configured")

// Adapter wraps an optional pgxpool.Pool. A nil pool means the adapter is
// disabled, matching the original's "construct but do nothing" behavior
// rather than refusing to start the daemon.
type Adapter struct {
	pool *pgxpool.Pool
}

// NewFromConfig builds the adapter from config.PostgresConfig. When DSN is
// empty the returned Adapter is disabled and every call returns ErrDisabled;
// this lets the daemon start without a database present (see spec scenario
// S6).
func NewFromConfig(ctx context.Context, cfg config.PostgresConfig) (*Adapter, error) {
	if cfg.DSN == "" {
		return &Adapter{}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.PoolMax > 0 {
		poolCfg.MaxConns = int32(cfg.PoolMax)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Adapter{pool: pool}, nil
}

// Enabled reports whether a DSN was configured.
func (a *Adapter) Enabled() bool {
	return a.pool != nil
}

// Close releases the pool, if any.
func (a *Adapter) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// Exec runs sql with no parameters and returns the number of rows affected.
func (a *Adapter) Exec(ctx context.Context, sql string) (int64, error) {
	if a.pool == nil {
		return 0, ErrDisabled
	}
	tag, err := a.pool.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// QueryJSON runs sql with no parameters and returns the result set encoded
// as a JSON array of objects, one per row, columns keyed by name.
func (a *Adapter) QueryJSON(ctx context.Context, sql string) ([]byte, error) {
	if a.pool == nil {
		return nil, ErrDisabled
	}

	rows, err := a.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := make([]map[string]any, 0)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = encodeColumn(fd.DataTypeOID, values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return json.Marshal(results)
}

// encodeColumn renders a single column value the way the guest/host JSON
// contract expects, switching on the Postgres OID exactly as
// original_source/booster/src/postgres.rs's query_json does: booleans and
// numbers pass through natively, UUID renders as its canonical string form,
// JSON/JSONB is embedded verbatim, BYTEA becomes standard-padded base64, and
// anything else falls back to its string form or JSON null.
func encodeColumn(oid uint32, value any) any {
	if value == nil {
		return nil
	}

	switch oid {
	case pgtype.BoolOID:
		if b, ok := value.(bool); ok {
			return b
		}
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return value
	case pgtype.Float4OID, pgtype.Float8OID:
		return value
	case pgtype.TextOID, pgtype.VarcharOID, pgtype.BPCharOID, pgtype.NameOID:
		if s, ok := value.(string); ok {
			return s
		}
	case pgtype.UUIDOID:
		if b, ok := value.([16]byte); ok {
			return formatUUID(b)
		}
		if u, ok := value.(pgtype.UUID); ok {
			return formatUUID(u.Bytes)
		}
		return fmt.Sprintf("%v", value)
	case pgtype.JSONOID, pgtype.JSONBOID:
		return json.RawMessage(marshalOrNull(value))
	case pgtype.ByteaOID:
		if b, ok := value.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b)
		}
	}

	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	if s, ok := value.(string); ok {
		return s
	}
	return nil
}

func marshalOrNull(value any) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return []byte("null")
		}
		return data
	}
}

func formatUUID(b [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
