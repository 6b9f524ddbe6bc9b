package marketsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/owlcraft/storefront/internal/catalog"
)

func TestParsePriceString(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$$TWD$$1860$$", 1860, true},
		{"$$USD$$12.50$$", 12.5, true},
		{"299", 299, true},
		{"NT$ 1,299", 1299, true},
		{"１８６０", 1860, true},
		{"", 0, false},
		{"free", 0, false},
		{"0", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParsePriceString(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			require.InDelta(t, tc.want, got, 0.0001, "input %q", tc.in)
		}
	}
}

func TestNormalizeShopeeScaledPrice(t *testing.T) {
	src := ShopeeSource(777, "owlshop")
	item := RawItem{
		"itemid":                float64(23456789),
		"shopid":                float64(777),
		"name":                  "手工皮革錢包",
		"price":                 float64(18600000),
		"price_before_discount": float64(25000000),
		"stock":                 float64(5),
		"historical_sold":       float64(120),
		"item_rating":           map[string]any{"rating_star": float64(45)},
		"image":                 "a1b2c3d4e5",
	}

	p, ok := Normalize(item, src)
	require.True(t, ok)
	require.Equal(t, catalog.SourceShopee, p.Source)
	require.Equal(t, "23456789", p.ExternalID)
	require.Equal(t, int64(777), p.ShopID)
	require.InDelta(t, 186.0, p.Price, 0.0001)
	require.NotNil(t, p.OriginalPrice)
	require.InDelta(t, 250.0, *p.OriginalPrice, 0.0001)
	require.Equal(t, 5, p.Stock)
	require.Equal(t, 120, p.SalesCount)
	require.NotNil(t, p.Rating)
	require.InDelta(t, 4.5, *p.Rating, 0.0001)
	require.Equal(t, "https://cf.shopee.tw/file/a1b2c3d4e5", p.ImageURL)
	require.Equal(t, "https://shopee.tw/product/777/23456789", p.SourceURL)
	require.True(t, p.IsActive)
}

func TestNormalizePinkoiTaggedPrice(t *testing.T) {
	src := PinkoiSource("owlcraft")
	item := RawItem{
		"tid":   "p1",
		"name":  "貓頭鷹後背包",
		"price": "$$TWD$$1200$$",
	}

	p, ok := Normalize(item, src)
	require.True(t, ok)
	require.Equal(t, catalog.SourcePinkoi, p.Source)
	require.Equal(t, "p1", p.ExternalID)
	require.Equal(t, "貓頭鷹後背包", p.Name)
	require.InDelta(t, 1200, p.Price, 0.0001)
	require.True(t, p.IsActive)
	require.Equal(t, "https://www.pinkoi.com/product/p1", p.SourceURL)
}

func TestNormalizeDropsUnusableItems(t *testing.T) {
	src := PinkoiSource("owlcraft")

	_, ok := Normalize(RawItem{"tid": "p1", "price": "100"}, src)
	require.False(t, ok, "missing name must drop the item")

	_, ok = Normalize(RawItem{"tid": "p2", "name": "x", "price": "0"}, src)
	require.False(t, ok, "non-positive price must drop the item")

	_, ok = Normalize(RawItem{"name": "x", "price": "100"}, src)
	require.False(t, ok, "missing external id must drop the item")
}

func TestNormalizeAllDedupesAndSkips(t *testing.T) {
	src := PinkoiSource("owlcraft")
	items := []RawItem{
		{"tid": "p1", "name": "first", "price": "100"},
		{"tid": "p1", "name": "duplicate", "price": "999"},
		{"tid": "p2", "name": "broken"},
		{"tid": "p3", "name": "second", "price": "200"},
	}

	products := NormalizeAll(items, src)
	require.Len(t, products, 2)
	require.Equal(t, "first", products[0].Name)
	require.Equal(t, "p3", products[1].ExternalID)
}

func TestNormalizeRating(t *testing.T) {
	require.InDelta(t, 4.8, normalizeRating(48), 0.0001)
	require.InDelta(t, 4.8, normalizeRating(4.8), 0.0001)
	require.InDelta(t, 5, normalizeRating(99), 0.0001)
	require.InDelta(t, 0, normalizeRating(-1), 0.0001)
}

func TestResolveImageURL(t *testing.T) {
	src := ShopeeSource(777, "owlshop")
	cases := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/x.jpg", "https://cdn.example.com/x.jpg"},
		{"//cdn.example.com/x.jpg", "https://cdn.example.com/x.jpg"},
		{"/file/x.jpg", "https://shopee.tw/file/x.jpg"},
		{"a1b2c3", "https://cf.shopee.tw/file/a1b2c3"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, resolveImageURL(tc.in, src, "42"), "input %q", tc.in)
	}
}

func TestRawItemExternalID(t *testing.T) {
	require.Equal(t, "p1", RawItem{"tid": "p1"}.ExternalID())
	require.Equal(t, "123", RawItem{"itemid": float64(123)}.ExternalID())
	require.Equal(t, "abc", RawItem{"external_id": "abc"}.ExternalID())
	require.Equal(t, "", RawItem{"name": "no id"}.ExternalID())
}
