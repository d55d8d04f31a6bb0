package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

const databaseFilename = "railway_cache.db"

// evictionFraction is the share of metrics rows removed (oldest first) when
// the store goes over its size ceiling. Batch eviction keeps bookkeeping
// cheap - there are no per-access timestamp updates.
const evictionFraction = 0.2

// RequestMetrics is one lightweight observability row describing a single
// upstream call attempt.
type RequestMetrics struct {
	DurationMS    int64  `json:"duration_ms"`
	Endpoint      string `json:"endpoint"`
	StatusCode    int    `json:"status_code"`
	RequestSize   int    `json:"request_size"`
	ResponseSize  int    `json:"response_size"`
	Route         string `json:"route"`
	ServicesCount int    `json:"services_count"`
	Error         string `json:"error,omitempty"`
}

// CachedRequest is a stored request/response pair for a logical service name.
type CachedRequest struct {
	RID         string          `json:"rid"`
	ServiceName string          `json:"service_name"`
	Timestamp   string          `json:"timestamp"`
	Request     json.RawMessage `json:"request"`
	Response    json.RawMessage `json:"response"`

	Metadata struct {
		RequestSize  int `json:"request_size"`
		ResponseSize int `json:"response_size"`
	} `json:"metadata"`
}

type ServiceListing struct {
	ServiceName string `json:"service_name"`
	Records     int    `json:"records"`
}

// Store is a crash-tolerant SQLite store of request/response pairs and
// request metrics with a hard size ceiling.
//
// The size-check-then-evict-then-write sequence runs under a single mutex, so
// concurrent writers cannot both observe "under limit" and overshoot the
// ceiling by more than one in-flight write.
type Store struct {
	db       *sql.DB
	path     string
	maxBytes int64

	writeLock sync.Mutex
}

// NewStore opens (creating if needed) the cache database under directory,
// bounded to maxSizeMB megabytes.
func NewStore(directory string, maxSizeMB int) (*Store, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, err
	}

	path := filepath.Join(directory, databaseFilename)

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, err
	}

	// SQLite only supports a single writer; funnelling everything through
	// one connection avoids SQLITE_BUSY under concurrent analyses
	db.SetMaxOpenConns(1)

	store := &Store{
		db:       db,
		path:     path,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().Str("path", path).Int("maxsizemb", maxSizeMB).Msg("Request cache initialised")

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			rid TEXT PRIMARY KEY,
			duration_ms INTEGER,
			endpoint TEXT,
			status_code INTEGER,
			request_size INTEGER,
			response_size INTEGER,
			route TEXT,
			services_count INTEGER,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS service_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			rid TEXT NOT NULL,
			service_name TEXT NOT NULL,
			request_json TEXT NOT NULL,
			response_json TEXT NOT NULL,
			request_size INTEGER,
			response_size INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (rid) REFERENCES metrics (rid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_route ON metrics(route)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_endpoint ON metrics(endpoint)`,
		`CREATE INDEX IF NOT EXISTS idx_service_requests_rid ON service_requests(rid)`,
		`CREATE INDEX IF NOT EXISTS idx_service_requests_service_name ON service_requests(service_name)`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GenerateRID returns a fresh unique identifier for a metrics row.
func (s *Store) GenerateRID() string {
	return "RID_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

func (s *Store) diskSize() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}

	return info.Size()
}

// enforceSizeLimit deletes the oldest fraction of metric rows, and their
// dependent request/response rows, whenever the database file is over the
// ceiling. Callers must hold writeLock.
func (s *Store) enforceSizeLimit() {
	currentSize := s.diskSize()
	if currentSize <= s.maxBytes {
		return
	}

	log.Info().
		Int64("size", currentSize).
		Int64("limit", s.maxBytes).
		Msg("Request cache over size limit, evicting oldest entries")

	tx, err := s.db.Begin()
	if err != nil {
		log.Error().Err(err).Msg("Failed to start cache eviction")
		return
	}

	// Oldest first, ties broken by insertion order
	oldestQuery := fmt.Sprintf(`SELECT rid FROM metrics
		ORDER BY created_at ASC, rowid ASC
		LIMIT (SELECT CAST(COUNT(*) * %v AS INTEGER) FROM metrics)`, evictionFraction)

	if _, err := tx.Exec(`DELETE FROM service_requests WHERE rid IN (` + oldestQuery + `)`); err != nil {
		log.Error().Err(err).Msg("Failed to evict service request rows")
		tx.Rollback()
		return
	}

	if _, err := tx.Exec(`DELETE FROM metrics WHERE rid IN (` + oldestQuery + `)`); err != nil {
		log.Error().Err(err).Msg("Failed to evict metrics rows")
		tx.Rollback()
		return
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("Failed to commit cache eviction")
		return
	}

	if _, err := s.db.Exec(`VACUUM`); err != nil {
		log.Error().Err(err).Msg("Failed to vacuum request cache")
	}

	log.Info().Int64("size", s.diskSize()).Msg("Request cache evicted")
}

// PutMetrics inserts or replaces the metrics row for rid. Storage faults are
// logged and swallowed - a cache problem must never abort an analysis.
func (s *Store) PutMetrics(rid string, metrics RequestMetrics) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	s.enforceSizeLimit()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO metrics
		(rid, duration_ms, endpoint, status_code, request_size, response_size, route, services_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rid,
		metrics.DurationMS,
		metrics.Endpoint,
		metrics.StatusCode,
		metrics.RequestSize,
		metrics.ResponseSize,
		metrics.Route,
		metrics.ServicesCount,
		metrics.Error,
	)
	if err != nil {
		log.Error().Err(err).Str("rid", rid).Msg("Failed to store request metrics")
		return
	}

	log.Debug().Str("rid", rid).Str("endpoint", metrics.Endpoint).Msg("Stored request metrics")
}

// PutServiceRequest appends a request/response record under the given logical
// service name. Multiple records may share a name - LatestByName picks the
// newest. Storage faults are logged and swallowed.
func (s *Store) PutServiceRequest(serviceName string, requestJSON []byte, responseJSON []byte, rid string) {
	s.writeLock.Lock()
	defer s.writeLock.Unlock()

	s.enforceSizeLimit()

	_, err := s.db.Exec(`INSERT INTO service_requests
		(rid, service_name, request_json, response_json, request_size, response_size)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rid,
		serviceName,
		string(requestJSON),
		string(responseJSON),
		len(requestJSON),
		len(responseJSON),
	)
	if err != nil {
		log.Error().Err(err).Str("servicename", serviceName).Msg("Failed to store service request")
		return
	}

	log.Debug().Str("servicename", serviceName).Str("rid", rid).Msg("Stored service request")
}

// LatestByName returns the most recently written record for the logical name,
// or nil when there is none (or the store is faulty - a miss is the safe
// fallback).
func (s *Store) LatestByName(serviceName string) *CachedRequest {
	row := s.db.QueryRow(`SELECT rid, service_name, created_at, request_json, response_json, request_size, response_size
		FROM service_requests
		WHERE service_name = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, serviceName)

	return scanCachedRequest(row)
}

// MetricsByRID returns the metrics row for rid, or nil.
func (s *Store) MetricsByRID(rid string) *RequestMetrics {
	row := s.db.QueryRow(`SELECT duration_ms, endpoint, status_code, request_size, response_size, route, services_count, error
		FROM metrics WHERE rid = ?`, rid)

	var metrics RequestMetrics
	err := row.Scan(
		&metrics.DurationMS,
		&metrics.Endpoint,
		&metrics.StatusCode,
		&metrics.RequestSize,
		&metrics.ResponseSize,
		&metrics.Route,
		&metrics.ServicesCount,
		&metrics.Error,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Error().Err(err).Str("rid", rid).Msg("Failed to read request metrics")
		}
		return nil
	}

	return &metrics
}

// AllMetrics returns every stored metrics row keyed by RID, newest first in
// the underlying query.
func (s *Store) AllMetrics() map[string]RequestMetrics {
	rows, err := s.db.Query(`SELECT rid, duration_ms, endpoint, status_code, request_size, response_size, route, services_count, error
		FROM metrics ORDER BY created_at DESC`)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list request metrics")
		return map[string]RequestMetrics{}
	}
	defer rows.Close()

	all := map[string]RequestMetrics{}
	for rows.Next() {
		var rid string
		var metrics RequestMetrics

		err := rows.Scan(
			&rid,
			&metrics.DurationMS,
			&metrics.Endpoint,
			&metrics.StatusCode,
			&metrics.RequestSize,
			&metrics.ResponseSize,
			&metrics.Route,
			&metrics.ServicesCount,
			&metrics.Error,
		)
		if err != nil {
			continue
		}

		all[rid] = metrics
	}

	return all
}

// ListServices returns the distinct logical service names with their record
// counts.
func (s *Store) ListServices() []ServiceListing {
	rows, err := s.db.Query(`SELECT service_name, COUNT(*) FROM service_requests
		GROUP BY service_name ORDER BY service_name`)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list cached services")
		return nil
	}
	defer rows.Close()

	var listings []ServiceListing
	for rows.Next() {
		var listing ServiceListing
		if err := rows.Scan(&listing.ServiceName, &listing.Records); err != nil {
			continue
		}

		listings = append(listings, listing)
	}

	return listings
}

// SearchByRoute returns every stored request whose request payload targets
// the given station pair, newest first.
func (s *Store) SearchByRoute(fromLoc string, toLoc string) []CachedRequest {
	rows, err := s.db.Query(`SELECT rid, service_name, created_at, request_json, response_json, request_size, response_size
		FROM service_requests
		WHERE request_json LIKE ? AND request_json LIKE ?
		ORDER BY created_at DESC, id DESC`,
		`%"from_loc":"`+fromLoc+`"%`,
		`%"to_loc":"`+toLoc+`"%`,
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to search cached services")
		return nil
	}
	defer rows.Close()

	var results []CachedRequest
	for rows.Next() {
		if record := scanCachedRequest(rows); record != nil {
			results = append(results, *record)
		}
	}

	return results
}

type rowScanner interface {
	Scan(destinations ...any) error
}

func scanCachedRequest(row rowScanner) *CachedRequest {
	var record CachedRequest
	var requestJSON, responseJSON string

	err := row.Scan(
		&record.RID,
		&record.ServiceName,
		&record.Timestamp,
		&requestJSON,
		&responseJSON,
		&record.Metadata.RequestSize,
		&record.Metadata.ResponseSize,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Error().Err(err).Msg("Failed to read cached service request")
		}
		return nil
	}

	record.Request = json.RawMessage(requestJSON)
	record.Response = json.RawMessage(responseJSON)

	return &record
}

// Stats describes the cache contents and how close it is to its ceiling.
type Stats struct {
	MetricsCount         int     `json:"metrics_count"`
	ServiceRequestsCount int     `json:"service_requests_count"`
	RecentMetrics24h     int     `json:"recent_metrics_24h"`
	TotalCacheSizeBytes  int64   `json:"total_cache_size_bytes"`
	TotalCacheSizeMB     float64 `json:"total_cache_size_mb"`
	MaxCacheSizeMB       float64 `json:"max_cache_size_mb"`
	CacheUsagePercent    float64 `json:"cache_usage_percent"`
	DatabasePath         string  `json:"database_path"`
	StorageType          string  `json:"storage_type"`
}

func (s *Store) Stats() Stats {
	stats := Stats{
		DatabasePath: s.path,
		StorageType:  "SQLite",
	}

	s.db.QueryRow(`SELECT COUNT(*) FROM metrics`).Scan(&stats.MetricsCount)
	s.db.QueryRow(`SELECT COUNT(*) FROM service_requests`).Scan(&stats.ServiceRequestsCount)
	s.db.QueryRow(`SELECT COUNT(*) FROM metrics WHERE created_at > datetime('now', '-24 hours')`).Scan(&stats.RecentMetrics24h)

	stats.TotalCacheSizeBytes = s.diskSize()
	stats.TotalCacheSizeMB = roundMB(stats.TotalCacheSizeBytes)
	stats.MaxCacheSizeMB = roundMB(s.maxBytes)

	if s.maxBytes > 0 {
		stats.CacheUsagePercent = math.Round(float64(stats.TotalCacheSizeBytes)/float64(s.maxBytes)*10000) / 100
	}

	return stats
}

func roundMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}
