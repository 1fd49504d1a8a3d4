// Package datasource provides the collaborators the tree core reads from:
// the platform's HTTP API and a local SQLite fixture, plus the logic that
// picks one of them from configuration.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/vanderheijden86/refnet/pkg/model"
)

// Collaborator is everything refnet asks of the platform.
type Collaborator interface {
	GetDirectDescendants(ctx context.Context, parentID int64, maxDepth, limit, offset int) (model.RawPage, error)
	GetViewerModel(ctx context.Context) (model.ViewerModel, error)
	GetUser(ctx context.Context, id int64) (model.RawUserRecord, error)
	ClaimedCount(ctx context.Context) (int, error)
	ClaimAll(ctx context.Context) error
}

// ErrNoSource is returned when neither an API URL nor a fixture database
// is configured.
var ErrNoSource = errors.New("no data source configured: set an API URL or a fixture database")

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeSQLite is a local fixture database
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeHTTP is the platform API
	SourceTypeHTTP SourceType = "http"
)

// Priority values for source types (higher = preferred). An explicit
// fixture wins over the API so demos never hit production by accident.
const (
	PrioritySQLite = 100
	PriorityHTTP   = 80
)

// DataSource is a candidate collaborator.
type DataSource struct {
	Type     SourceType
	Location string // file path or base URL
	Priority int
	Valid    bool
	// ValidationError describes why validation failed (if Valid is false)
	ValidationError string
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, %s)", s.Location, s.Type, s.Priority, status)
}

// Options carries the resolved configuration relevant to source selection.
type Options struct {
	APIURL    string
	Token     string
	Timeout   time.Duration
	DBPath    string
	Multiplex int
}

// DiscoverSources lists the configured sources, validated, best first.
func DiscoverSources(opts Options) []DataSource {
	var sources []DataSource
	if opts.DBPath != "" {
		sources = append(sources, DataSource{Type: SourceTypeSQLite, Location: opts.DBPath, Priority: PrioritySQLite})
	}
	if opts.APIURL != "" {
		sources = append(sources, DataSource{Type: SourceTypeHTTP, Location: opts.APIURL, Priority: PriorityHTTP})
	}
	for i := range sources {
		_ = ValidateSource(&sources[i])
	}
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].Priority > sources[j].Priority
	})
	return sources
}

// ValidateSource checks that a source is usable and records the outcome.
func ValidateSource(s *DataSource) error {
	var err error
	switch s.Type {
	case SourceTypeSQLite:
		var info os.FileInfo
		info, err = os.Stat(s.Location)
		if err == nil && info.IsDir() {
			err = fmt.Errorf("%s is a directory", s.Location)
		}
	case SourceTypeHTTP:
		var u *url.URL
		u, err = url.Parse(s.Location)
		if err == nil && (u.Scheme != "http" && u.Scheme != "https" || u.Host == "") {
			err = fmt.Errorf("not an http(s) URL: %q", s.Location)
		}
	default:
		err = fmt.Errorf("unknown source type: %s", s.Type)
	}
	s.Valid = err == nil
	if err != nil {
		s.ValidationError = err.Error()
	}
	return err
}

// SelectBestSource returns the highest priority valid source.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	if len(sources) == 0 {
		return DataSource{}, ErrNoSource
	}
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, fmt.Errorf("no valid source: %s", sources[0])
}

// Open selects and opens a collaborator. The returned closer releases it.
func Open(opts Options) (Collaborator, io.Closer, error) {
	best, err := SelectBestSource(DiscoverSources(opts))
	if err != nil {
		return nil, nil, err
	}
	return OpenSource(best, opts)
}

// OpenSource opens a specific DataSource, dispatching on its type.
func OpenSource(s DataSource, opts Options) (Collaborator, io.Closer, error) {
	switch s.Type {
	case SourceTypeSQLite:
		src, err := OpenSQLite(s.Location)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open SQLite source %s: %w", s.Location, err)
		}
		src.Multiplex = opts.Multiplex
		return src, src, nil
	case SourceTypeHTTP:
		return NewHTTPClient(s.Location, opts.Token, opts.Timeout), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown source type: %s", s.Type)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
