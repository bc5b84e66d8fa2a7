package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

var (
	ErrStaleResponse = errors.New("response superseded by a newer request")
	ErrNoPage        = errors.New("page out of range")
)

type Trigger string

const (
	TriggerFilterChange Trigger = "filter_change"
	TriggerManual       Trigger = "manual"
	TriggerFocus        Trigger = "focus"
	TriggerVisible      Trigger = "visible"
	TriggerTimer        Trigger = "timer"
	TriggerDataChanged  Trigger = "data_changed"
	TriggerNavigate     Trigger = "navigate"
)

// ParseTrigger reads the reason a client gives for a fetch. Blank means
// navigate. data_changed is raised by the server only.
func ParseTrigger(value string) (Trigger, error) {
	switch t := Trigger(strings.ToLower(strings.TrimSpace(value))); t {
	case "":
		return TriggerNavigate, nil
	case TriggerNavigate, TriggerFilterChange, TriggerManual, TriggerFocus, TriggerVisible, TriggerTimer:
		return t, nil
	default:
		return "", fmt.Errorf("unknown refresh trigger %q", value)
	}
}

// Source is the paged read the pager runs against; database.Store satisfies it.
type Source interface {
	FetchWorkOrders(ctx context.Context, filter models.WorkOrderFilter, limit, offset int) ([]models.WorkOrder, int, error)
}

// Fallback serves a locally cached work order projection when the store
// cannot be reached.
type Fallback interface {
	LoadWorkOrders(ctx context.Context, key string) ([]models.WorkOrder, error)
}

type Page struct {
	Rows            []models.WorkOrder `json:"rows"`
	TotalCount      int                `json:"total_count"`
	CurrentPage     int                `json:"current_page"`
	PageSize        int                `json:"page_size"`
	TotalPages      int                `json:"total_pages"`
	HasNextPage     bool               `json:"has_next_page"`
	HasPreviousPage bool               `json:"has_previous_page"`
	FromCache       bool               `json:"from_cache,omitempty"`
	RequestID       uint64             `json:"-"`
}

// NewPage derives the navigation fields from the total count.
func NewPage(rows []models.WorkOrder, total, page, size int) *Page {
	totalPages := 0
	if size > 0 {
		totalPages = (total + size - 1) / size
	}
	if rows == nil {
		rows = []models.WorkOrder{}
	}
	return &Page{
		Rows:            rows,
		TotalCount:      total,
		CurrentPage:     page,
		PageSize:        size,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// FetchPage reads one 1-based page from source. Pages below 1 read page 1.
func FetchPage(ctx context.Context, source Source, page, size int, filter models.WorkOrderFilter) (*Page, error) {
	if page < 1 {
		page = 1
	}
	rows, total, err := source.FetchWorkOrders(ctx, filter, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
	}
	return NewPage(rows, total, page, size), nil
}

// PageLocal filters and slices an in-memory projection the way FetchPage
// pages the store.
func PageLocal(orders []models.WorkOrder, page, size int, filter models.WorkOrderFilter) *Page {
	if page < 1 {
		page = 1
	}
	matched := FilterLocal(orders, filter)
	start := min((page-1)*size, len(matched))
	end := min(start+size, len(matched))
	return NewPage(matched[start:end], len(matched), page, size)
}

// Sequencer tags overlapping requests so only the latest one may apply its
// response.
type Sequencer struct {
	mu     sync.Mutex
	latest uint64
}

func (s *Sequencer) Issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	return s.latest
}

func (s *Sequencer) IsLatest(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id == s.latest
}

// Pager holds the current page and filter for one reader. Every fetch is
// tagged with a request id and a response is applied only if no newer fetch
// was issued after it, so overlapping refresh triggers cannot move the
// current page backwards.
type Pager struct {
	source      Source
	fallback    Fallback
	fallbackKey string
	pageSize    int
	logger      zerolog.Logger

	seq Sequencer

	mu      sync.Mutex
	page    int
	filter  models.WorkOrderFilter
	current *Page
	lastErr error
}

func NewPager(source Source, pageSize int, logger zerolog.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Pager{
		source:   source,
		pageSize: pageSize,
		page:     1,
		logger:   logger.With().Str("component", "pager").Logger(),
	}
}

// WithFallback serves pages from the cached projection under key when the
// store read fails.
func (p *Pager) WithFallback(fallback Fallback, key string) *Pager {
	p.fallback = fallback
	p.fallbackKey = key
	return p
}

// FetchPage moves to page under filter and fetches it.
func (p *Pager) FetchPage(ctx context.Context, page int, filter models.WorkOrderFilter) (*Page, error) {
	return p.Load(ctx, TriggerNavigate, page, filter)
}

// Load is FetchPage with the caller's reason for fetching.
func (p *Pager) Load(ctx context.Context, trigger Trigger, page int, filter models.WorkOrderFilter) (*Page, error) {
	if page < 1 {
		page = 1
	}
	p.mu.Lock()
	p.page = page
	p.filter = filter
	p.mu.Unlock()
	return p.fetch(ctx, trigger, page, filter)
}

// SetFilter replaces the filter and returns to the first page.
func (p *Pager) SetFilter(ctx context.Context, filter models.WorkOrderFilter) (*Page, error) {
	p.mu.Lock()
	p.page = 1
	p.filter = filter
	p.mu.Unlock()
	return p.fetch(ctx, TriggerFilterChange, 1, filter)
}

// Refresh refetches the current page and filter.
func (p *Pager) Refresh(ctx context.Context, trigger Trigger) (*Page, error) {
	p.mu.Lock()
	page, filter := p.page, p.filter
	p.mu.Unlock()
	return p.fetch(ctx, trigger, page, filter)
}

func (p *Pager) Next(ctx context.Context) (*Page, error) {
	current := p.Current()
	if current == nil || !current.HasNextPage {
		return nil, ErrNoPage
	}
	return p.GoTo(ctx, current.CurrentPage+1)
}

func (p *Pager) Previous(ctx context.Context) (*Page, error) {
	current := p.Current()
	if current == nil || !current.HasPreviousPage {
		return nil, ErrNoPage
	}
	return p.GoTo(ctx, current.CurrentPage-1)
}

// GoTo fetches page n under the current filter. n must be within the page
// count of the last applied response, when there is one.
func (p *Pager) GoTo(ctx context.Context, n int) (*Page, error) {
	p.mu.Lock()
	current, filter := p.current, p.filter
	p.mu.Unlock()

	if n < 1 || (current != nil && current.TotalPages > 0 && n > current.TotalPages) {
		return nil, ErrNoPage
	}
	return p.FetchPage(ctx, n, filter)
}

// Current returns the last applied page, or nil before the first response.
func (p *Pager) Current() *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Err returns the error of the last applied request.
func (p *Pager) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Pager) fetch(ctx context.Context, trigger Trigger, page int, filter models.WorkOrderFilter) (*Page, error) {
	id := p.seq.Issue()
	logger := p.logger.With().Uint64("request_id", id).Str("trigger", string(trigger)).Int("page", page).Logger()

	result, err := FetchPage(ctx, p.source, page, p.pageSize, filter)
	if err != nil && p.fallback != nil {
		if orders, ferr := p.fallback.LoadWorkOrders(ctx, p.fallbackKey); ferr == nil {
			logger.Warn().Err(err).Msg("store unavailable, serving cached work orders")
			result, err = PageLocal(orders, page, p.pageSize, filter), nil
			result.FromCache = true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.seq.IsLatest(id) {
		logger.Debug().Msg("discarding superseded page response")
		return nil, ErrStaleResponse
	}
	if err != nil {
		p.lastErr = err
		return nil, err
	}
	result.RequestID = id
	p.current = result
	p.lastErr = nil
	return result, nil
}
