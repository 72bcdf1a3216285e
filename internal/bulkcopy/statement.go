// Package bulkcopy builds and executes the COPY ... FROM STDIN statement that
// streams one decompressed file into the target table.
package bulkcopy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// ParseTable splits "schema.table" or "table" into an identifier. Names follow
// PostgreSQL's rules: unquoted parts fold to lower case, parts in double quotes
// keep their case and may contain dots or doubled quotes.
func ParseTable(table string) (pgx.Identifier, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fmt.Errorf("table name is required: %w", pgbulk.ErrInvalidConfig)
	}

	var ident pgx.Identifier
	rest := table
	for {
		name, tail, err := nextName(rest)
		if err != nil {
			return nil, fmt.Errorf("table %q: %v: %w", table, err, pgbulk.ErrInvalidConfig)
		}
		ident = append(ident, name)
		if tail == "" {
			break
		}
		rest = tail[1:] // skip '.'
		if rest == "" {
			return nil, fmt.Errorf("table %q: empty name component: %w", table, pgbulk.ErrInvalidConfig)
		}
	}
	if len(ident) > 2 {
		return nil, fmt.Errorf("table %q: expected [schema.]table: %w", table, pgbulk.ErrInvalidConfig)
	}
	return ident, nil
}

// parseColumn applies the same quoting and folding rules to a column name.
func parseColumn(col string) (string, error) {
	name, tail, err := nextName(strings.TrimSpace(col))
	if err != nil {
		return "", err
	}
	if tail != "" {
		return "", fmt.Errorf("unexpected %q after name", tail)
	}
	return name, nil
}

// nextName reads one name from s and returns it with the unparsed remainder,
// which is empty or starts with '.'.
func nextName(s string) (name, tail string, err error) {
	s = strings.TrimLeft(s, " ")
	if !strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s, '.')
		if end < 0 {
			end = len(s)
		}
		name = strings.TrimSpace(s[:end])
		if name == "" {
			return "", "", errors.New("empty name component")
		}
		return foldName(name), s[end:], nil
	}

	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '"' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			sb.WriteByte('"')
			i++
			continue
		}
		if sb.Len() == 0 {
			return "", "", errors.New("empty quoted name")
		}
		tail = strings.TrimLeft(s[i+1:], " ")
		if tail != "" && tail[0] != '.' {
			return "", "", fmt.Errorf("unexpected %q after quoted name", tail)
		}
		return sb.String(), tail, nil
	}
	return "", "", errors.New("unterminated quoted name")
}

// foldName lower-cases ASCII letters only, as the server does for unquoted
// identifiers.
func foldName(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

// Statement returns the COPY statement for table and format.
func Statement(table string, format pgbulk.CopyFormat) (string, error) {
	ident, err := ParseTable(table)
	if err != nil {
		return "", err
	}

	delim := format.Delimiter
	if delim == 0 {
		delim = pgbulk.DefaultDelimiter
	}
	if err := validateDelimiter(delim); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("COPY ")
	sb.WriteString(ident.Sanitize())

	if len(format.Columns) > 0 {
		cols := make([]string, len(format.Columns))
		for i, c := range format.Columns {
			name, err := parseColumn(c)
			if err != nil {
				return "", fmt.Errorf("column %d: %v: %w", i+1, err, pgbulk.ErrInvalidConfig)
			}
			cols[i] = pgx.Identifier{name}.Sanitize()
		}
		sb.WriteString(" (")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(")")
	}

	sb.WriteString(" FROM STDIN WITH (FORMAT csv, HEADER ")
	if format.Header {
		sb.WriteString("true")
	} else {
		sb.WriteString("false")
	}
	sb.WriteString(", DELIMITER ")
	sb.WriteString(quoteLiteral(string(delim)))
	if format.Null != "" {
		sb.WriteString(", NULL ")
		sb.WriteString(quoteLiteral(format.Null))
	}
	sb.WriteString(")")

	return sb.String(), nil
}

// PostgreSQL requires a single one-byte delimiter that cannot be confused with
// line breaks or CSV quoting.
func validateDelimiter(r rune) error {
	switch {
	case r > 0x7f:
		return fmt.Errorf("delimiter %q must be a single-byte character: %w", r, pgbulk.ErrInvalidConfig)
	case r == '\n', r == '\r', r == '"':
		return fmt.Errorf("delimiter %q is not allowed: %w", r, pgbulk.ErrInvalidConfig)
	}
	return nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
