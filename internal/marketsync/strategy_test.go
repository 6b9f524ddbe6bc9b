package marketsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/owlcraft/storefront/internal/catalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStrategy struct {
	name     string
	products []catalog.Product
	err      error
	calls    int
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Acquire(ctx context.Context, src Source) ([]catalog.Product, error) {
	s.calls++
	return s.products, s.err
}

func TestChainShortCircuitsOnFirstHit(t *testing.T) {
	first := &fakeStrategy{name: "first", products: []catalog.Product{{ExternalID: "a", Name: "A", Price: 1}}}
	second := &fakeStrategy{name: "second"}
	chain := NewChainWith(testLogger(), nil, first, second)

	products := chain.Acquire(context.Background(), PinkoiSource("owlcraft"))
	require.Len(t, products, 1)
	require.Equal(t, 1, first.calls)
	require.Zero(t, second.calls, "later strategies must not run after a hit")
}

func TestChainFallsThroughFailuresAndEmptyResults(t *testing.T) {
	failing := &fakeStrategy{name: "failing", err: errors.New("blocked")}
	empty := &fakeStrategy{name: "empty"}
	winner := &fakeStrategy{name: "winner", products: []catalog.Product{{ExternalID: "a", Name: "A", Price: 1}}}
	chain := NewChainWith(testLogger(), nil, failing, empty, winner)

	products := chain.Acquire(context.Background(), PinkoiSource("owlcraft"))
	require.Len(t, products, 1)
	require.Equal(t, 1, failing.calls)
	require.Equal(t, 1, empty.calls)
	require.Equal(t, 1, winner.calls)
}

func TestChainExhaustionReturnsEmptyNotError(t *testing.T) {
	chain := NewChainWith(testLogger(), nil,
		&fakeStrategy{name: "a", err: errors.New("down")},
		&fakeStrategy{name: "b"},
	)
	require.Empty(t, chain.Acquire(context.Background(), PinkoiSource("owlcraft")))
}

func TestChainStopsWhenBudgetExpired(t *testing.T) {
	strategy := &fakeStrategy{name: "never"}
	chain := NewChainWith(testLogger(), nil, strategy)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Empty(t, chain.Acquire(ctx, PinkoiSource("owlcraft")))
	require.Zero(t, strategy.calls)
}

// fetcherFunc adapts a function to the Fetcher interface.
type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) Get(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func TestAPIStrategyPaginatesUntilShortPage(t *testing.T) {
	src := PinkoiSource("owlcraft")
	src.EndpointTemplates = src.EndpointTemplates[:1]
	src.PageSize = 2
	src.PageDelay = 0

	var urls []string
	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		urls = append(urls, url)
		switch len(urls) {
		case 1:
			return []byte(`{"items":[{"tid":"p1","name":"a","price":"10"},{"tid":"p2","name":"b","price":"20"}]}`), nil
		case 2:
			return []byte(`{"items":[{"tid":"p3","name":"c","price":"30"}]}`), nil
		}
		return nil, errors.New("unexpected extra page")
	})

	st := &apiStrategy{fetcher: fetcher, logger: testLogger()}
	products, err := st.Acquire(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, products, 3)
	require.Len(t, urls, 2, "a short page ends pagination")
	require.Contains(t, urls[0], "page=1")
	require.Contains(t, urls[1], "page=2")
}

func TestAPIStrategyTriesNextEndpointOnFailure(t *testing.T) {
	src := PinkoiSource("owlcraft")
	src.PageDelay = 0

	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if strings.Contains(url, "/apiv2/") {
			return nil, errors.New("403")
		}
		return []byte(`{"items":[{"tid":"p1","name":"a","price":"10"}]}`), nil
	})

	st := &apiStrategy{fetcher: fetcher, logger: testLogger()}
	products, err := st.Acquire(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, products, 1)
}

func TestAPIStrategyRespectsPageCeiling(t *testing.T) {
	src := PinkoiSource("owlcraft")
	src.EndpointTemplates = src.EndpointTemplates[:1]
	src.PageSize = 1
	src.MaxPages = 3
	src.PageDelay = 0

	pages := 0
	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		pages++
		return []byte(fmt.Sprintf(`{"items":[{"tid":"p%d","name":"x","price":"10"}]}`, pages)), nil
	})

	st := &apiStrategy{fetcher: fetcher, logger: testLogger()}
	products, err := st.Acquire(context.Background(), src)
	require.NoError(t, err)
	require.Equal(t, 3, pages)
	require.Len(t, products, 3)
}

// fakePage simulates lazy loading: each scroll appends to the height script
// until the content runs out, then the height stays put.
type fakePage struct {
	heights  []int
	idx      int
	scrolls  int
	captured [][]byte
	html     string
	closed   bool
}

func (p *fakePage) Height() (int, error) {
	if p.idx < len(p.heights)-1 {
		h := p.heights[p.idx]
		p.idx++
		return h, nil
	}
	return p.heights[len(p.heights)-1], nil
}

func (p *fakePage) ScrollBottom() error   { p.scrolls++; return nil }
func (p *fakePage) HTML() (string, error) { return p.html, nil }
func (p *fakePage) Captured() [][]byte    { return p.captured }
func (p *fakePage) Close() error          { p.closed = true; return nil }

type fakeBrowser struct {
	page   *fakePage
	closed bool
}

func (b *fakeBrowser) Open(ctx context.Context, url string, hints []string) (Page, error) {
	return b.page, nil
}

func (b *fakeBrowser) Close() error { b.closed = true; return nil }

func TestBrowserStrategyCapturesListingResponses(t *testing.T) {
	src := PinkoiSource("owlcraft")
	src.ScrollWait = time.Millisecond

	page := &fakePage{
		heights: []int{1000, 2000, 3000, 3000, 3000},
		captured: [][]byte{
			[]byte(`{"items":[{"tid":"p1","name":"a","price":"10"}]}`),
			[]byte(`{"items":[{"tid":"p2","name":"b","price":"20"}]}`),
		},
	}
	browser := &fakeBrowser{page: page}
	st := &browserStrategy{
		newBrowser: func() (Browser, error) { return browser, nil },
		logger:     testLogger(),
	}

	products, err := st.Acquire(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.True(t, browser.closed)
	require.True(t, page.closed)
}

func TestScrollUntilStableStopsAfterTwoStableReads(t *testing.T) {
	src := PinkoiSource("owlcraft")
	src.ScrollAttempts = 10
	src.ScrollWait = time.Millisecond

	page := &fakePage{heights: []int{1000, 2000, 2000, 2000}}
	scrollUntilStable(context.Background(), page, src)
	require.Equal(t, 3, page.scrolls, "two consecutive stable heights end scrolling")
}

func TestBrowserStrategySkipsWithoutFactory(t *testing.T) {
	st := &browserStrategy{newBrowser: nil, logger: testLogger()}
	products, err := st.Acquire(context.Background(), PinkoiSource("owlcraft"))
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestExtractDOMProductsFromCards(t *testing.T) {
	src := PinkoiSource("owlcraft")
	html := `<html><body>
		<div class="shop-item">
			<a href="/product/abc123"><h3 class="item-name">貓頭鷹胸針</h3></a>
			<span class="item-price">NT$ 520</span>
			<img src="//cdn01.pinkoi.com/product/abc123/0/320x240.jpg">
		</div>
		<div class="shop-item">
			<a href="/product/def456"><h3 class="item-name">手織圍巾</h3></a>
			<span class="item-price">$$TWD$$1860$$</span>
		</div>
	</body></html>`

	products := ExtractDOMProducts(html, src)
	require.Len(t, products, 2)
	require.Equal(t, "abc123", products[0].ExternalID)
	require.Equal(t, "貓頭鷹胸針", products[0].Name)
	require.InDelta(t, 520, products[0].Price, 0.0001)
	require.Equal(t, "https://cdn01.pinkoi.com/product/abc123/0/320x240.jpg", products[0].ImageURL)
	require.InDelta(t, 1860, products[1].Price, 0.0001)
}

func TestExtractDOMProductsPrefersInlineScript(t *testing.T) {
	src := PinkoiSource("owlcraft")
	html := `<html><head><script>
		window.__S__ = {"items":[{"tid":"s1","name":"from script","price":"300"}]};
	</script></head><body>
		<div class="shop-item"><a href="/product/dom1">from dom</a></div>
	</body></html>`

	products := ExtractDOMProducts(html, src)
	require.Len(t, products, 1)
	require.Equal(t, "s1", products[0].ExternalID)
}

func TestExtractDOMProductsAnchorFallback(t *testing.T) {
	src := ShopeeSource(777, "owlshop")
	html := `<html><body>
		<div class="item-card">
			<div class="item-title">復古皮件</div>
			<div class="item-price">$399</div>
			<a href="https://shopee.tw/復古皮件-i.777.99887766?sp_atk=x"><img src="/file/img99.jpg"></a>
		</div>
	</body></html>`

	products := ExtractDOMProducts(html, src)
	require.Len(t, products, 1)
	require.Equal(t, "99887766", products[0].ExternalID, "shopee ids come from the second URL capture group")
	require.Equal(t, "復古皮件", products[0].Name)
	require.InDelta(t, 399, products[0].Price, 0.0001)
}

func TestDetailBackfillFillsMissingImages(t *testing.T) {
	src := PinkoiSource("owlcraft")
	src.PageDelay = 0

	var visited []string
	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		visited = append(visited, url)
		return []byte(`<html><head><meta property="og:image" content="https://cdn01.pinkoi.com/product/p2/0/640x530.jpg"></head></html>`), nil
	})

	products := []catalog.Product{
		{ExternalID: "p1", SourceURL: "https://www.pinkoi.com/product/p1", ImageURL: "https://cdn01.pinkoi.com/product/p1/0/640x530.jpg"},
		{ExternalID: "p2", SourceURL: "https://www.pinkoi.com/product/p2"},
	}

	b := &detailBackfill{fetcher: fetcher, logger: testLogger()}
	b.Run(context.Background(), src, products)

	require.Len(t, visited, 1, "only image-less products get a detail visit")
	require.Equal(t, "https://cdn01.pinkoi.com/product/p2/0/640x530.jpg", products[1].ImageURL)
}

func TestDetailBackfillSkipsAboveCap(t *testing.T) {
	src := PinkoiSource("owlcraft")
	src.DetailVisitCap = 2

	fetches := 0
	fetcher := fetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		fetches++
		return nil, errors.New("should not be called")
	})

	products := make([]catalog.Product, 5)
	for i := range products {
		products[i] = catalog.Product{ExternalID: fmt.Sprintf("p%d", i), SourceURL: "https://www.pinkoi.com/product/x"}
	}

	b := &detailBackfill{fetcher: fetcher, logger: testLogger()}
	b.Run(context.Background(), src, products)
	require.Zero(t, fetches, "backfill must stay bounded")
}

func TestDetailPageImageFallsBackToGallery(t *testing.T) {
	src := PinkoiSource("owlcraft")
	html := `<html><body><div class="product-gallery"><img src="/images/main.jpg"></div></body></html>`
	require.Equal(t, "https://www.pinkoi.com/images/main.jpg", DetailPageImage(html, src, "p1"))
}
