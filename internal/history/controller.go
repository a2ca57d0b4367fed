package history

import (
	"context"
	"errors"
	"sync"

	"prawnik-web/internal/dto"
	"prawnik-web/internal/gateway"
)

const PageSize = 20

var ErrNoMorePages = errors.New("no more history pages")

type Lister interface {
	ListQueries(ctx context.Context, params gateway.ListParams) (*dto.QueryListResponse, error)
	GetQuery(ctx context.Context, id string) (*dto.QueryDetail, error)
	DeleteQuery(ctx context.Context, id string) error
}

type gatewayLister struct {
	client *gateway.Client
	creds  gateway.Credentials
}

func NewGatewayLister(client *gateway.Client, creds gateway.Credentials) Lister {
	return &gatewayLister{client: client, creds: creds}
}

func (l *gatewayLister) ListQueries(ctx context.Context, params gateway.ListParams) (*dto.QueryListResponse, error) {
	return l.client.ListQueries(ctx, l.creds, params)
}

func (l *gatewayLister) GetQuery(ctx context.Context, id string) (*dto.QueryDetail, error) {
	return l.client.GetQuery(ctx, l.creds, id)
}

func (l *gatewayLister) DeleteQuery(ctx context.Context, id string) error {
	return l.client.DeleteQuery(ctx, l.creds, id)
}

// Controller accumulates history pages, newest first. The first page
// replaces the list; later pages are appended.
type Controller struct {
	loadMu sync.Mutex

	mu         sync.Mutex
	lister     Lister
	items      []dto.QueryListItem
	pagination *dto.PaginationMetadata
	page       int
	details    map[string]*dto.QueryDetail
}

func NewController(lister Lister) *Controller {
	return &Controller{lister: lister, details: make(map[string]*dto.QueryDetail)}
}

func (c *Controller) fetch(ctx context.Context, page int) (*dto.QueryListResponse, error) {
	return c.lister.ListQueries(ctx, gateway.ListParams{Page: page, PerPage: PageSize, Order: "desc"})
}

func (c *Controller) LoadFirst(ctx context.Context) (dto.HistoryPage, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.loadFirstLocked(ctx)
}

// LoadMore appends the items following the ones already listed, skipping
// ids already present. The page is derived from the number of listed
// items, so a local delete shifts the request back instead of skipping a
// row. The returned ScrollAnchor is the first newly appended item.
func (c *Controller) LoadMore(ctx context.Context) (dto.HistoryPage, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	if c.pagination == nil {
		c.mu.Unlock()
		return c.loadFirstLocked(ctx)
	}
	if !c.canLoadMoreLocked() {
		c.mu.Unlock()
		return dto.HistoryPage{}, ErrNoMorePages
	}
	offset := len(c.items)
	c.mu.Unlock()

	next := offset/PageSize + 1
	resp, err := c.fetch(ctx, next)
	if err != nil {
		return dto.HistoryPage{}, err
	}

	c.mu.Lock()
	anchor, added := c.mergeLocked(next, resp)
	more := offset%PageSize != 0 && c.remainingLocked() > 0 && next < resp.Pagination.TotalPages
	c.mu.Unlock()

	// an unaligned offset only yields the tail of a page; top up with the
	// following one
	if more {
		if resp, err = c.fetch(ctx, next+1); err == nil {
			c.mu.Lock()
			a, n := c.mergeLocked(next+1, resp)
			if anchor == "" {
				anchor = a
			}
			added += n
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if added == 0 {
		// the backend has nothing past what is listed
		c.pagination.TotalCount = len(c.items)
	}
	return c.pageLocked(anchor), nil
}

func (c *Controller) mergeLocked(page int, resp *dto.QueryListResponse) (anchor string, added int) {
	seen := make(map[string]struct{}, len(c.items))
	for _, it := range c.items {
		seen[it.QueryId] = struct{}{}
	}
	for _, it := range resp.Queries {
		if _, dup := seen[it.QueryId]; dup {
			continue
		}
		seen[it.QueryId] = struct{}{}
		if anchor == "" {
			anchor = it.QueryId
		}
		c.items = append(c.items, it)
		added++
	}
	pagination := resp.Pagination
	c.pagination = &pagination
	c.page = page
	return anchor, added
}

// loadFirstLocked runs with loadMu held.
func (c *Controller) loadFirstLocked(ctx context.Context) (dto.HistoryPage, error) {
	resp, err := c.fetch(ctx, 1)
	if err != nil {
		return dto.HistoryPage{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]dto.QueryListItem(nil), resp.Queries...)
	pagination := resp.Pagination
	c.pagination = &pagination
	c.page = 1
	return c.pageLocked(""), nil
}

func (c *Controller) remainingLocked() int {
	if c.pagination == nil {
		return 0
	}
	r := c.pagination.TotalCount - len(c.items)
	if r < 0 {
		return 0
	}
	return r
}

func (c *Controller) canLoadMoreLocked() bool {
	if c.pagination == nil {
		return false
	}
	return c.remainingLocked() > 0
}

func (c *Controller) pageLocked(anchor string) dto.HistoryPage {
	out := dto.HistoryPage{
		Items:        append([]dto.QueryListItem(nil), c.items...),
		Remaining:    c.remainingLocked(),
		CanLoadMore:  c.canLoadMoreLocked(),
		ScrollAnchor: anchor,
		Page:         c.page,
	}
	if c.pagination != nil {
		out.TotalCount = c.pagination.TotalCount
	}
	return out
}

func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Controller) CanLoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canLoadMoreLocked()
}

func (c *Controller) Items() []dto.QueryListItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dto.QueryListItem(nil), c.items...)
}

func (c *Controller) Page() dto.HistoryPage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLocked("")
}

// Delete removes id from the list before asking the backend. When the
// backend refuses, the item goes back to its original position and the
// total count is restored.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := -1
	var removed dto.QueryListItem
	for i, it := range c.items {
		if it.QueryId == id {
			idx = i
			removed = it
			break
		}
	}
	if idx >= 0 {
		c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
		if c.pagination != nil && c.pagination.TotalCount > 0 {
			c.pagination.TotalCount--
		}
	}
	c.mu.Unlock()

	err := c.lister.DeleteQuery(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if idx >= 0 {
			if idx > len(c.items) {
				idx = len(c.items)
			}
			c.items = append(c.items[:idx:idx], append([]dto.QueryListItem{removed}, c.items[idx:]...)...)
			if c.pagination != nil {
				c.pagination.TotalCount++
			}
		}
		return err
	}
	delete(c.details, id)
	return nil
}

// Details fetches the full query once and serves later calls from memory.
func (c *Controller) Details(ctx context.Context, id string) (*dto.QueryDetail, error) {
	c.mu.Lock()
	if d, ok := c.details[id]; ok {
		c.mu.Unlock()
		return d, nil
	}
	c.mu.Unlock()

	d, err := c.lister.GetQuery(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// answers still being generated are fetched again next time
	if d.FastResponse.Status.Terminal() && (d.AccurateResponse == nil || d.AccurateResponse.Status.Terminal()) {
		c.details[id] = d
	}
	return d, nil
}
