package snowflake

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds Snowflake database configuration
type Config struct {
	Account      string
	User         string
	Password     string
	Database     string
	Schema       string
	Warehouse    string
	Role         string
	MaxOpenConns int
	QueryTimeout time.Duration
}

// ParseConnectionString extracts components from the connection string
// Format: scheme=https;ACCOUNT=xxx;HOST=yyy;port=443;USER=zzz;PASSWORD=www;DB=aaa;WAREHOUSE=bbb;
func ParseConnectionString(connStr string) Config {
	parts := make(map[string]string)
	for _, kv := range strings.Split(connStr, ";") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(key))] = value
	}

	// Parse database.schema from DB field if present
	database, schema, _ := strings.Cut(parts["DB"], ".")

	return Config{
		Account:   parts["ACCOUNT"],
		User:      parts["USER"],
		Password:  parts["PASSWORD"],
		Database:  database,
		Schema:    schema,
		Warehouse: parts["WAREHOUSE"],
		Role:      parts["ROLE"],
	}
}

// Row is one result row keyed by upper-cased column name.
type Row map[string]any

// Value returns the raw column value, nil when absent.
func (r Row) Value(col string) any {
	return r[strings.ToUpper(col)]
}

// String returns the column as text; NULL and missing columns are "".
func (r Row) String(col string) string {
	switch v := r.Value(col).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the column as an integer; unparsable values are 0.
func (r Row) Int(col string) int64 {
	switch v := r.Value(col).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case string, []byte:
		n, err := strconv.ParseFloat(r.String(col), 64)
		if err != nil {
			return 0
		}
		return int64(n)
	default:
		return 0
	}
}

// Float returns the column as a float; unparsable values are 0.
func (r Row) Float(col string) float64 {
	switch v := r.Value(col).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string, []byte:
		f, err := strconv.ParseFloat(r.String(col), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
