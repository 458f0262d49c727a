// Package schedule supplies the set of post numbers currently active in the
// content schedule spreadsheet. The archival sweep uses it to decide which
// dealer artifacts are still current.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2/jwt"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
)

const (
	sheetsEndpoint = "https://sheets.googleapis.com/v4/spreadsheets"
	tokenURL       = "https://oauth2.googleapis.com/token"
	readonlyScope  = "https://www.googleapis.com/auth/spreadsheets.readonly"

	// DefaultRefreshInterval caches spreadsheet reads; the schedule changes
	// at most a few times a week.
	DefaultRefreshInterval = 5 * time.Minute
)

// StaticSource serves a fixed set of active post numbers from configuration.
// Used in development and as the fallback when no spreadsheet is configured.
type StaticSource struct {
	active map[int]bool
}

// NewStaticSource creates a schedule source over a fixed post list.
func NewStaticSource(posts []int) interfaces.ScheduleSource {
	active := make(map[int]bool, len(posts))
	for _, p := range posts {
		active[p] = true
	}
	return &StaticSource{active: active}
}

func (s *StaticSource) ActivePostNumbers(ctx context.Context) (map[int]bool, error) {
	out := make(map[int]bool, len(s.active))
	for p := range s.active {
		out[p] = true
	}
	return out, nil
}

// SheetsSource reads active post numbers from the schedule spreadsheet.
// Rows are (post number, status); a post is active unless its status is
// "Done". Reads are cached for the refresh interval.
type SheetsSource struct {
	httpClient    *http.Client
	spreadsheetID string
	readRange     string
	refresh       time.Duration
	logger        arbor.ILogger

	mu        sync.Mutex
	cached    map[int]bool
	fetchedAt time.Time
}

// SourceOption configures the SheetsSource.
type SourceOption func(*SheetsSource)

// WithHTTPClient sets a custom HTTP client (tests).
func WithHTTPClient(httpClient *http.Client) SourceOption {
	return func(s *SheetsSource) {
		s.httpClient = httpClient
	}
}

// WithRefreshInterval sets the cache TTL.
func WithRefreshInterval(d time.Duration) SourceOption {
	return func(s *SheetsSource) {
		if d > 0 {
			s.refresh = d
		}
	}
}

// NewSheetsSource creates a spreadsheet-backed schedule source authenticated
// as a service account.
func NewSheetsSource(ctx context.Context, serviceAccountEmail, privateKey, spreadsheetID, readRange string, logger arbor.ILogger, opts ...SourceOption) (interfaces.ScheduleSource, error) {
	if serviceAccountEmail == "" || privateKey == "" {
		return nil, fmt.Errorf("missing Google service account credentials")
	}
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}

	conf := &jwt.Config{
		Email:      serviceAccountEmail,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{readonlyScope},
		TokenURL:   tokenURL,
	}
	authClient := conf.Client(ctx)
	authClient.Timeout = 30 * time.Second

	s := &SheetsSource{
		httpClient:    authClient,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
		refresh:       DefaultRefreshInterval,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type valueRange struct {
	Values [][]string `json:"values"`
}

func (s *SheetsSource) ActivePostNumbers(ctx context.Context) (map[int]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < s.refresh {
		return copyPostSet(s.cached), nil
	}

	active, err := s.fetch(ctx)
	if err != nil {
		if s.cached != nil {
			// A stale schedule beats failing the whole completion flow
			s.logger.Warn().Err(err).Msg("Schedule refresh failed, serving cached post numbers")
			return copyPostSet(s.cached), nil
		}
		return nil, err
	}

	s.cached = active
	s.fetchedAt = time.Now()
	return copyPostSet(active), nil
}

func (s *SheetsSource) fetch(ctx context.Context) (map[int]bool, error) {
	endpoint := fmt.Sprintf("%s/%s/values/%s", sheetsEndpoint, s.spreadsheetID, url.PathEscape(s.readRange))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule spreadsheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sheets API error (status %d): %s", resp.StatusCode, string(body))
	}

	var values valueRange
	if err := json.NewDecoder(resp.Body).Decode(&values); err != nil {
		return nil, fmt.Errorf("failed to decode schedule values: %w", err)
	}

	active := make(map[int]bool)
	for _, row := range values.Values {
		if len(row) == 0 {
			continue
		}
		post, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			continue // Header rows and notes
		}
		if len(row) > 1 && strings.EqualFold(strings.TrimSpace(row[1]), "Done") {
			continue
		}
		active[post] = true
	}

	s.logger.Debug().Int("active_posts", len(active)).Msg("Schedule spreadsheet refreshed")
	return active, nil
}

func copyPostSet(in map[int]bool) map[int]bool {
	out := make(map[int]bool, len(in))
	for p := range in {
		out[p] = true
	}
	return out
}
