package corpus

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/errors"
)

// Visit receives each record. A non-nil recErr reports a record that could
// not be decoded; the read continues. Returning an error stops the read.
type Visit func(rec Record, recErr error) error

// Source yields records in document-id order.
type Source interface {
	Read(ctx context.Context, fn Visit) error
}

// FileSource reads one JSON record per line.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Read(ctx context.Context, fn Visit) error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()
	return readLines(ctx, f, fn)
}

// ReaderSource reads JSON lines from an arbitrary reader.
type ReaderSource struct {
	R io.Reader
}

func (s ReaderSource) Read(ctx context.Context, fn Visit) error {
	return readLines(ctx, s.R, fn)
}

func readLines(ctx context.Context, r io.Reader, fn Visit) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if line%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			decodeErr := apperrors.InvalidInputf("line %d: %v", line, err)
			if err := fn(Record{}, decodeErr); err != nil {
				return err
			}
			continue
		}
		if err := fn(rec, nil); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scanning corpus: %w", err)
	}
	return nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads the speeches table. The speech column holds the
// whitespace-joined normalised tokens.
type PostgresSource struct {
	DB    *sql.DB
	Table string
}

func NewPostgresSource(db *sql.DB, table string) (*PostgresSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSource{DB: db, Table: table}, nil
}

func (s *PostgresSource) Read(ctx context.Context, fn Visit) error {
	query := fmt.Sprintf(
		`SELECT doc_id, member, party, sitting_date, cleaned_speech FROM %s ORDER BY doc_id`,
		s.Table,
	)
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("querying speeches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     Record
			speaker sql.NullString
			party   sql.NullString
			date    sql.NullTime
			text    sql.NullString
		)
		if err := rows.Scan(&rec.DocID, &speaker, &party, &date, &text); err != nil {
			return fmt.Errorf("scanning speech row: %w", err)
		}
		rec.Speaker = speaker.String
		rec.Party = party.String
		rec.Text = text.String
		if date.Valid {
			rec.Date = date.Time.Format(time.DateOnly)
		}
		if err := fn(rec, nil); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating speeches: %w", err)
	}
	return nil
}
