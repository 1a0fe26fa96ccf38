package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/yegors/flightwatch/pkg/logger"
)

// ErrNotFound is returned when no airline matches a code
var ErrNotFound = errors.New("airline not found")

// Airline is one row of the airline directory, in OpenFlights layout
type Airline struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	IATA     string `json:"iata,omitempty"`
	ICAO     string `json:"icao,omitempty"`
	Callsign string `json:"callsign,omitempty"`
	Country  string `json:"country,omitempty"`
	Active   bool   `json:"active"`
}

// AirlineStorage is a SQLite-backed airline directory
type AirlineStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAirlineStorage opens (or creates) the airline directory at dbPath
func NewAirlineStorage(dbPath string, log *logger.Logger) (*AirlineStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &AirlineStorage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *AirlineStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Debug("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS airlines (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			alias TEXT,
			iata TEXT,
			icao TEXT,
			callsign TEXT,
			country TEXT,
			active INTEGER DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create airlines table: %w", err)
	}

	for _, stmt := range []string{
		"CREATE INDEX IF NOT EXISTS idx_airlines_iata ON airlines(iata)",
		"CREATE INDEX IF NOT EXISTS idx_airlines_icao ON airlines(icao)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Count returns the number of airlines in the directory
func (s *AirlineStorage) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM airlines").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count airlines: %w", err)
	}
	return n, nil
}

// ImportFile loads an OpenFlights airlines.dat file
func (s *AirlineStorage) ImportFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open airline data: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f)
}

// Import loads OpenFlights-formatted rows:
//
//	id,name,alias,iata,icao,callsign,country,active
//
// "\N" marks an absent value. Existing rows with the same id are replaced.
// Rows that do not parse are skipped.
func (s *AirlineStorage) Import(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO airlines (id, name, alias, iata, icao, callsign, country, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare import: %w", err)
	}
	defer stmt.Close()

	imported, skipped := 0, 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read airline data: %w", err)
		}

		a, ok := parseAirline(record)
		if !ok {
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.Name, a.Alias, a.IATA, a.ICAO, a.Callsign, a.Country, a.Active); err != nil {
			return 0, fmt.Errorf("failed to insert airline %d: %w", a.ID, err)
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	s.logger.Info("Imported airline directory",
		logger.Int("imported", imported),
		logger.Int("skipped", skipped))
	return imported, nil
}

func parseAirline(record []string) (Airline, bool) {
	if len(record) < 8 {
		return Airline{}, false
	}
	field := func(i int) string {
		v := strings.TrimSpace(record[i])
		if v == `\N` || v == "-" || v == "N/A" {
			return ""
		}
		return v
	}

	var id int
	if _, err := fmt.Sscanf(field(0), "%d", &id); err != nil || id <= 0 {
		return Airline{}, false
	}
	name := field(1)
	if name == "" {
		return Airline{}, false
	}

	return Airline{
		ID:       id,
		Name:     name,
		Alias:    field(2),
		IATA:     strings.ToUpper(field(3)),
		ICAO:     strings.ToUpper(field(4)),
		Callsign: field(5),
		Country:  field(6),
		Active:   strings.EqualFold(field(7), "Y"),
	}, true
}

// Lookup finds an airline by a two-character IATA or three-letter ICAO
// code. Active carriers win over defunct ones sharing the code.
func (s *AirlineStorage) Lookup(ctx context.Context, code string) (*Airline, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var column string
	switch len(code) {
	case 2:
		column = "iata"
	case 3:
		column = "icao"
	default:
		return nil, fmt.Errorf("%w: unsupported code %q", ErrNotFound, code)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(alias, ''), COALESCE(iata, ''), COALESCE(icao, ''),
		       COALESCE(callsign, ''), COALESCE(country, ''), active
		FROM airlines
		WHERE `+column+` = ?
		ORDER BY active DESC, id ASC
		LIMIT 1
	`, code)

	var a Airline
	if err := row.Scan(&a.ID, &a.Name, &a.Alias, &a.IATA, &a.ICAO, &a.Callsign, &a.Country, &a.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("failed to look up airline %s: %w", code, err)
	}
	return &a, nil
}
