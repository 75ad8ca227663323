package duckdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InterpolateQuery substitutes args into the query placeholders for logging.
// The output is valid SQL that can be pasted into the duckdb shell. It must
// never be executed: values are quoted, not escaped for every dialect.
func InterpolateQuery(query string, args []any) string {
	var b strings.Builder
	next := 0
	for _, r := range query {
		switch {
		case r == '?' && next < len(args):
			b.WriteString(sqlLiteral(args[next]))
			next++
		case r == '\n':
		case r == '\t':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sqlLiteral(arg any) string {
	switch v := arg.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%v", v)
	case time.Time:
		// Format drops the monotonic clock reading.
		return "'" + v.Format(time.RFC3339Nano) + "'"
	default:
		return sqlLiteral(fmt.Sprint(v))
	}
}
