package datasrc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/spf13/viper"

	derrors "github.com/jin-gizmo/docma/internal/errors"
	"github.com/jin-gizmo/docma/internal/plugins"
)

// ConnConfig describes how to reach a database. It is read from
// environment variables prefixed with the spec location, so location
// "sales" reads SALES_HOST, SALES_PORT, SALES_DATABASE, SALES_USER and
// SALES_PASSWORD. SALES_DSN overrides the individual settings.
type ConnConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

var envUnsafe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// LoadConnConfig reads the connection settings for location.
func LoadConnConfig(location string) (ConnConfig, error) {
	prefix := strings.ToUpper(envUnsafe.ReplaceAllString(location, "_"))
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetDefault("driver", "postgres")
	v.SetDefault("port", "5432")
	v.SetDefault("sslmode", "require")
	for _, key := range []string{"driver", "dsn", "host", "port", "database", "user", "password", "sslmode"} {
		if err := v.BindEnv(key); err != nil {
			return ConnConfig{}, err
		}
	}

	var cc ConnConfig
	if err := v.Unmarshal(&cc); err != nil {
		return ConnConfig{}, err
	}
	if cc.DSN != "" {
		return cc, nil
	}
	required := []struct{ key, val string }{{"HOST", cc.Host}, {"DATABASE", cc.Database}, {"USER", cc.User}}
	for _, r := range required {
		if r.val == "" {
			return ConnConfig{}, fmt.Errorf("%s_%s not set", prefix, r.key)
		}
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cc.Host, cc.Port),
		Path:     "/" + cc.Database,
		RawQuery: url.Values{"sslmode": {cc.SSLMode}}.Encode(),
	}
	if cc.Password != "" {
		u.User = url.UserPassword(cc.User, cc.Password)
	} else {
		u.User = url.User(cc.User)
	}
	cc.DSN = u.String()

	return cc, nil
}

// DefaultParamstyle is the placeholder style the driver understands.
func (cc ConnConfig) DefaultParamstyle() string {
	if cc.Driver == "postgres" {
		return StyleDollar
	}

	return StyleQmark
}

var (
	connMu sync.Mutex
	conns  = map[string]*sql.DB{}
)

// connect returns the cached pool for cc, opening and pinging it on first
// use.
func connect(ctx context.Context, cc ConnConfig) (*sql.DB, error) {
	key := cc.Driver + "|" + cc.DSN
	connMu.Lock()
	defer connMu.Unlock()
	if db, ok := conns[key]; ok {
		return db, nil
	}

	db, err := sql.Open(cc.Driver, cc.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, err
	}
	conns[key] = db

	return db, nil
}

// ClearConnections closes and forgets every cached connection pool.
func ClearConnections() {
	connMu.Lock()
	defer connMu.Unlock()
	for key, db := range conns {
		db.Close()
		delete(conns, key)
	}
}

// SQLProvider runs the query file named by the spec against the database
// named by its location.
func SQLProvider(ctx context.Context, spec Spec, env Env, callParams map[string]any) ([]map[string]any, error) {
	if spec.Query == "" {
		return nil, derrors.NewDataProviderError(derrors.CodeInvalid, "Query is required").WithPath(spec.String())
	}
	q, err := LoadQuery(env.Package(), spec.Query)
	if err != nil {
		return nil, err
	}

	cc, err := LoadConnConfig(spec.Location)
	if err != nil {
		return nil, connectionError(spec, err)
	}
	prepared, err := q.Prepare(env, callParams, firstNonEmpty(q.Query.Paramstyle, cc.DefaultParamstyle()))
	if err != nil {
		return nil, err
	}
	db, err := connect(ctx, cc)
	if err != nil {
		return nil, connectionError(spec, err)
	}

	rows, err := db.QueryContext(ctx, prepared.Text, prepared.Args...)
	if err != nil {
		return nil, queryError(q.Name, err)
	}
	defer rows.Close()

	out, err := scanRows(rows, q)
	if err != nil {
		return nil, err
	}
	if err := q.Check(out); err != nil {
		return nil, err
	}

	return out, nil
}

func scanRows(rows *sql.Rows, q *QuerySpec) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, queryError(q.Name, err)
	}

	out := []map[string]any{}
	for rows.Next() {
		if q.Options.RowLimit > 0 && len(out) == q.Options.RowLimit {
			return nil, q.rowLimitExceeded()
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, queryError(q.Name, err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)

				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(q.Name, err)
	}

	return out, nil
}

func connectionError(spec Spec, err error) error {
	return derrors.NewDataProviderError(derrors.CodeTransport, "Postgres connection error: %s", describeDBError(err)).
		WithPath(spec.String())
}

func queryError(name string, err error) error {
	return derrors.NewDataProviderError(derrors.CodeInvalid, "Query failed: %s", describeDBError(err)).
		WithPath(name)
}

// describeDBError prefers the server's message and detail for PostgreSQL
// errors.
func describeDBError(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		msg := pqErr.Message
		if pqErr.Detail != "" {
			msg += " (" + pqErr.Detail + ")"
		}

		return msg
	}

	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func loadSQLProvider(reg *plugins.Registrar) error {
	return reg.Add(Provider(SQLProvider), plugins.Names("sql", "postgres"), plugins.Types(plugins.TypeProvider))
}
