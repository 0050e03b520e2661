package requestlog

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portcullis-proxy/portcullis/internal/dbutil"
	"github.com/portcullis-proxy/portcullis/internal/proxy"
)

const logSelectColumns = "id, ts_ns, client_ip, method, target_host, target_domain, is_connect, net_ok, duration_ns, ingress_bytes, egress_bytes, http_status"

// Repo manages rolling SQLite databases for request logs. Each DB is named
// request_logs-<unix_ms>.db and lives in logDir.
type Repo struct {
	logDir      string
	maxBytes    int64
	retainCount int

	activeDB   *sql.DB
	activePath string

	// readBarrier runs before read queries to improve freshness by flushing
	// whatever Service currently has buffered.
	readBarrierMu sync.RWMutex
	readBarrier   func()
}

// NewRepo creates a Repo that manages rolling request log databases.
// maxBytes controls when the active DB is rotated; retainCount sets how
// many historical DB files are kept.
func NewRepo(logDir string, maxBytes int64, retainCount int) *Repo {
	if maxBytes <= 0 {
		maxBytes = 512 * 1024 * 1024
	}
	if retainCount <= 0 {
		retainCount = 5
	}
	return &Repo{logDir: logDir, maxBytes: maxBytes, retainCount: retainCount}
}

// Open opens (or creates) the active request log database. If a previous DB
// exists in the directory it is reused as active; a new one is created only
// when no existing DB is found.
func (r *Repo) Open() error {
	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		return fmt.Errorf("requestlog repo mkdir %s: %w", r.logDir, err)
	}

	files, err := r.listDBFiles()
	if err != nil {
		return fmt.Errorf("requestlog repo open: %w", err)
	}

	if len(files) > 0 {
		latest := files[len(files)-1]
		if err := r.openDB(latest); err != nil {
			return err
		}
		return r.cleanup()
	}
	return r.rotateDB()
}

// Close closes the active DB.
func (r *Repo) Close() error {
	if r.activeDB != nil {
		err := r.activeDB.Close()
		r.activeDB = nil
		r.activePath = ""
		return err
	}
	return nil
}

// InsertBatch inserts a batch of log entries in a single transaction.
// Returns the number of rows successfully inserted.
func (r *Repo) InsertBatch(entries []proxy.RequestLogEntry) (int, error) {
	if r.activeDB == nil {
		if err := r.recoverActiveDB(); err != nil {
			return 0, err
		}
	}

	if err := r.maybeRotate(); err != nil {
		return 0, fmt.Errorf("requestlog repo rotate: %w", err)
	}

	tx, err := r.activeDB.Begin()
	if err != nil {
		return 0, fmt.Errorf("requestlog repo begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertLog, err := tx.Prepare(`INSERT OR IGNORE INTO request_logs (
		id, ts_ns, client_ip, method, target_host, target_domain,
		is_connect, net_ok, duration_ns, ingress_bytes, egress_bytes, http_status
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("requestlog repo prepare: %w", err)
	}
	defer insertLog.Close()

	inserted := 0
	for i := range entries {
		e := &entries[i]
		id := uuid.NewString()
		ts := e.StartedAtNs
		if ts == 0 {
			ts = time.Now().UnixNano()
		}

		_, err := insertLog.Exec(
			id, ts, e.ClientIP, e.Method, e.TargetHost, e.TargetDomain,
			boolToInt(e.IsConnect), boolToInt(e.NetOK), e.DurationNs,
			e.IngressBytes, e.EgressBytes, e.HTTPStatus,
		)
		if err != nil {
			log.Printf("[requestlog] warning: skip log row insert failed: %v", err)
			continue
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("requestlog repo commit: %w", err)
	}
	return inserted, nil
}

// recoverActiveDB attempts to recover from a missing active DB handle. This
// can happen if a previous rotation closed the old DB but failed to open a
// new one.
func (r *Repo) recoverActiveDB() error {
	if r.activeDB != nil {
		return nil
	}
	if r.activePath == "" {
		return fmt.Errorf("requestlog repo: no active db")
	}
	if err := r.rotateDB(); err != nil {
		return fmt.Errorf("requestlog repo recover active db: %w", err)
	}
	return nil
}

// LogSummary is a single request log row.
type LogSummary struct {
	ID           string
	TsNs         int64
	ClientIP     string
	Method       string
	TargetHost   string
	TargetDomain string
	IsConnect    bool
	NetOK        bool
	DurationNs   int64
	IngressBytes int64
	EgressBytes  int64
	HTTPStatus   int
}

// ListFilter specifies query filters for listing logs.
type ListFilter struct {
	ClientIP     string
	TargetDomain string
	IsConnect    *bool
	NetOK        *bool
	Before       int64
	After        int64
	Limit        int
	Cursor       *ListCursor
}

// ListCursor encodes a request-log pagination position. Ordering is
// ts_ns DESC then id ASC.
type ListCursor struct {
	TsNs int64
	ID   string
}

// List queries all retained DBs and returns a page of matching log rows
// ordered by ts_ns DESC, same ts_ns by id ASC.
func (r *Repo) List(f ListFilter) ([]LogSummary, bool, *ListCursor, error) {
	r.runReadBarrier()

	files, err := r.listDBFiles()
	if err != nil {
		return nil, false, nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	fetchLimit := limit + 1

	var results []LogSummary
	for i := len(files) - 1; i >= 0; i-- {
		db, err := r.openReadOnly(files[i])
		if err != nil {
			log.Printf("[requestlog] warning: list open db failed path=%q: %v", files[i], err)
			continue
		}
		rows, err := r.queryLogs(db, f, fetchLimit)
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[requestlog] warning: list close db failed path=%q: %v", files[i], closeErr)
		}
		if err != nil {
			log.Printf("[requestlog] warning: list query failed path=%q: %v", files[i], err)
			continue
		}
		results = append(results, rows...)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].TsNs != results[j].TsNs {
			return results[i].TsNs > results[j].TsNs
		}
		return results[i].ID < results[j].ID
	})
	if len(results) == 0 {
		return []LogSummary{}, false, nil, nil
	}

	hasMore := len(results) > limit
	if hasMore {
		results = results[:limit]
	}

	var nextCursor *ListCursor
	if hasMore && len(results) > 0 {
		last := results[len(results)-1]
		nextCursor = &ListCursor{TsNs: last.TsNs, ID: last.ID}
	}
	return results, hasMore, nextCursor, nil
}

// GetByID looks up a single log row across all retained DBs.
func (r *Repo) GetByID(id string) (*LogSummary, error) {
	r.runReadBarrier()

	files, err := r.listDBFiles()
	if err != nil {
		return nil, err
	}

	var result *LogSummary
	for i := len(files) - 1; i >= 0; i-- {
		path := files[i]
		db, err := r.openReadOnly(path)
		if err != nil {
			log.Printf("[requestlog] warning: get_by_id open db failed path=%q: %v", path, err)
			continue
		}
		row := db.QueryRow("SELECT "+logSelectColumns+" FROM request_logs WHERE id = ?", id)
		s, err := scanLogSummary(row)
		closeErr := db.Close()
		if closeErr != nil {
			log.Printf("[requestlog] warning: get_by_id close db failed path=%q: %v", path, closeErr)
		}
		if err == nil {
			result = &s
			return result, nil
		}
		if err != sql.ErrNoRows {
			log.Printf("[requestlog] warning: get_by_id query failed path=%q: %v", path, err)
		}
	}
	return nil, nil
}

func (r *Repo) setReadBarrier(fn func()) {
	r.readBarrierMu.Lock()
	r.readBarrier = fn
	r.readBarrierMu.Unlock()
}

func (r *Repo) runReadBarrier() {
	r.readBarrierMu.RLock()
	barrier := r.readBarrier
	r.readBarrierMu.RUnlock()
	if barrier != nil {
		barrier()
	}
}

// --- internal helpers ---

func (r *Repo) openDB(path string) error {
	db, err := dbutil.OpenDB(path)
	if err != nil {
		return err
	}
	if _, err := db.Exec(createDDL); err != nil {
		db.Close()
		return fmt.Errorf("requestlog init schema %s: %w", path, err)
	}
	r.activeDB = db
	r.activePath = path
	return nil
}

func (r *Repo) rotateDB() error {
	if r.activeDB != nil {
		r.activeDB.Close()
		r.activeDB = nil
	}
	name := fmt.Sprintf("request_logs-%d.db", time.Now().UnixMilli())
	path := filepath.Join(r.logDir, name)
	if err := r.openDB(path); err != nil {
		return fmt.Errorf("requestlog rotate: %w", err)
	}
	return r.cleanup()
}

func (r *Repo) maybeRotate() error {
	if r.activePath == "" {
		return r.rotateDB()
	}
	totalSize, err := sqliteFilesSize(r.activePath)
	if err != nil {
		log.Printf("[requestlog] warning: stat active db failed path=%q: %v", r.activePath, err)
		return nil
	}
	if totalSize >= r.maxBytes {
		return r.rotateDB()
	}
	return nil
}

func (r *Repo) cleanup() error {
	files, err := r.listDBFiles()
	if err != nil {
		return err
	}
	if len(files) <= r.retainCount {
		return nil
	}
	toRemove := files[:len(files)-r.retainCount]
	for _, f := range toRemove {
		os.Remove(f)
		os.Remove(f + "-wal")
		os.Remove(f + "-shm")
	}
	return nil
}

func (r *Repo) listDBFiles() ([]string, error) {
	entries, err := os.ReadDir(r.logDir)
	if err != nil {
		return nil, fmt.Errorf("requestlog list dir %s: %w", r.logDir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "request_logs-") && strings.HasSuffix(name, ".db") {
			files = append(files, filepath.Join(r.logDir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (r *Repo) openReadOnly(path string) (*sql.DB, error) {
	dsn := path + "?mode=ro"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func (r *Repo) queryLogs(db *sql.DB, f ListFilter, limit int) ([]LogSummary, error) {
	var where []string
	var args []interface{}

	if f.ClientIP != "" {
		where = append(where, "client_ip = ?")
		args = append(args, f.ClientIP)
	}
	if f.TargetDomain != "" {
		where = append(where, "target_domain = ?")
		args = append(args, f.TargetDomain)
	}
	if f.IsConnect != nil {
		where = append(where, "is_connect = ?")
		args = append(args, boolToInt(*f.IsConnect))
	}
	if f.NetOK != nil {
		where = append(where, "net_ok = ?")
		args = append(args, boolToInt(*f.NetOK))
	}
	if f.Before > 0 {
		where = append(where, "ts_ns < ?")
		args = append(args, f.Before)
	}
	if f.After > 0 {
		where = append(where, "ts_ns > ?")
		args = append(args, f.After)
	}
	if f.Cursor != nil {
		where = append(where, "(ts_ns < ? OR (ts_ns = ? AND id > ?))")
		args = append(args, f.Cursor.TsNs, f.Cursor.TsNs, f.Cursor.ID)
	}

	q := "SELECT " + logSelectColumns + " FROM request_logs"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts_ns DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LogSummary
	for rows.Next() {
		s, err := scanLogSummary(rows)
		if err != nil {
			log.Printf("[requestlog] warning: skip malformed log row during scan: %v", err)
			continue
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLogSummary(s rowScanner) (LogSummary, error) {
	var row LogSummary
	var isConnect, netOK int
	err := s.Scan(
		&row.ID, &row.TsNs, &row.ClientIP, &row.Method, &row.TargetHost, &row.TargetDomain,
		&isConnect, &netOK, &row.DurationNs, &row.IngressBytes, &row.EgressBytes, &row.HTTPStatus,
	)
	if err != nil {
		return LogSummary{}, err
	}
	row.IsConnect = isConnect != 0
	row.NetOK = netOK != 0
	return row, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sqliteFilesSize returns the total size of a SQLite database set: base db
// file + optional -wal and -shm sidecar files.
func sqliteFilesSize(basePath string) (int64, error) {
	paths := []string{basePath, basePath + "-wal", basePath + "-shm"}
	var total int64
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
