package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"listing-backtest/internal/backtest"
)

const testAddress = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

func feedWindow() (time.Time, time.Time) {
	return time.UnixMilli(1_000_000).UTC(), time.UnixMilli(10_000_000).UTC()
}

func newTokenFeed(baseURL string) *TokenFeed {
	return NewTokenFeed(TokenFeedOptions{
		BaseURL:  baseURL,
		Interval: Interval1h,
		Timeout:  time.Second,
	}, noopLogger())
}

func TestTokenFeedFetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tokens":
			fmt.Fprintf(w, `[{"symbol": "foo", "chainId": 1, "contractAddress": "%s"}]`, testAddress)
		case "/klines":
			q := r.URL.Query()
			if q.Get("chainId") != "1" || q.Get("address") != testAddress {
				t.Errorf("kline 请求缺少 token 定位参数: %v", q)
			}
			if q.Get("interval") != "1h" {
				t.Errorf("interval 应为 1h, 实际 %s", q.Get("interval"))
			}
			// Unordered, with one row outside the window.
			fmt.Fprint(w, `{"data": {"klineInfos": [
                [9000000, 1.2, 1.3, 1.1, 1.25, 10.0, 12599999],
                [20000000, 9.9, 9.9, 9.9, 9.9, 1.0, 23599999],
                [5400000, 1.0, 1.1, 0.9, 1.05, 20.0, 8999999]
            ]}}`)
		}
	}))
	defer srv.Close()

	feed := newTokenFeed(srv.URL)
	start, end := feedWindow()

	// Directory matching is case-insensitive: FOO resolves the "foo" entry.
	candles, err := feed.FetchCandles(context.Background(), "FOO", start, end)
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("窗口外的行应被剔除, 期望 2 根, 实际 %d", len(candles))
	}
	if !candles[0].OpenTime.Before(candles[1].OpenTime) {
		t.Fatal("结果应按开盘时间升序")
	}
	if candles[0].Open.String() != "1" || candles[0].High.String() != "1.1" {
		t.Fatalf("K 线解析不正确: %+v", candles[0])
	}
}

func TestTokenFeedUnknownSymbol(t *testing.T) {
	var klineRequested bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tokens":
			fmt.Fprintf(w, `[{"symbol": "foo", "chainId": 1, "contractAddress": "%s"}]`, testAddress)
		case "/klines":
			klineRequested = true
		}
	}))
	defer srv.Close()

	feed := newTokenFeed(srv.URL)
	start, end := feedWindow()

	candles, err := feed.FetchCandles(context.Background(), "BAR", start, end)
	if err != nil {
		t.Fatalf("未知 symbol 应返回空序列而非错误: %v", err)
	}
	if len(candles) != 0 {
		t.Fatalf("期望空序列, 实际 %d 根", len(candles))
	}
	if klineRequested {
		t.Fatal("目录未命中时不应请求 K 线")
	}
}

func TestTokenFeedDirectoryFailureSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	feed := newTokenFeed(srv.URL)
	start, end := feedWindow()

	candles, err := feed.FetchCandles(context.Background(), "FOO", start, end)
	if err != nil {
		t.Fatalf("目录查询失败应降级为无数据: %v", err)
	}
	if len(candles) != 0 {
		t.Fatalf("期望空序列, 实际 %d 根", len(candles))
	}
}

func TestTokenFeedKlineErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tokens":
			fmt.Fprintf(w, `[{"symbol": "foo", "chainId": 1, "contractAddress": "%s"}]`, testAddress)
		case "/klines":
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	feed := newTokenFeed(srv.URL)
	start, end := feedWindow()

	if _, err := feed.FetchCandles(context.Background(), "FOO", start, end); err == nil {
		t.Fatal("K 线请求失败必须向上传播")
	}
}

func TestTokenFeedSkipsMalformedAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tokens" {
			fmt.Fprint(w, `[{"symbol": "foo", "chainId": 1, "contractAddress": "not-an-address"}]`)
		}
	}))
	defer srv.Close()

	feed := newTokenFeed(srv.URL)
	start, end := feedWindow()

	candles, err := feed.FetchCandles(context.Background(), "FOO", start, end)
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(candles) != 0 {
		t.Fatal("地址非法的目录项应被跳过")
	}
}

func TestParseIntervalRejectsUnknown(t *testing.T) {
	if _, err := ParseInterval("1h"); err != nil {
		t.Fatalf("1h 应合法: %v", err)
	}
	if _, err := ParseInterval("2h"); err == nil {
		t.Fatal("不在枚举内的 interval 应视为配置错误")
	}
}

func TestVenueFetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("symbol") != "FOOUSDT" {
			t.Errorf("交易对应为 FOOUSDT, 实际 %s", q.Get("symbol"))
		}
		if q.Get("startTime") == "" || q.Get("endTime") == "" {
			t.Errorf("缺少时间窗参数: %v", q)
		}
		fmt.Fprint(w, `[
            [3600000, "1.0", "1.2", "0.9", "1.1", "100.0", 7199999],
            [7200000, "1.1", "1.35", "1.0", "1.3", "80.0", 10799999]
        ]`)
	}))
	defer srv.Close()

	venue := NewVenue(VenueOptions{
		BaseURL:    srv.URL,
		QuoteAsset: "USDT",
		Interval:   Interval1h,
		Timeout:    time.Second,
	}, noopLogger())

	candles, err := venue.FetchCandles(context.Background(), "foo", time.UnixMilli(0), time.UnixMilli(10_000_000))
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("期望 2 根, 实际 %d", len(candles))
	}
	if candles[1].High.String() != "1.35" {
		t.Fatalf("价格字符串解析不正确: %+v", candles[1])
	}
}

func TestVenueHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code": -1121, "msg": "Invalid symbol."}`)
	}))
	defer srv.Close()

	venue := NewVenue(VenueOptions{
		BaseURL:    srv.URL,
		QuoteAsset: "USDT",
		Interval:   Interval1h,
		Timeout:    time.Second,
	}, noopLogger())

	if _, err := venue.FetchCandles(context.Background(), "FOO", time.UnixMilli(0), time.UnixMilli(1)); err == nil {
		t.Fatal("HTTP 400 应报错")
	}
}

type stubCandleFetcher struct {
	candles []backtest.Candle
	err     error
	calls   int
}

func (s *stubCandleFetcher) FetchCandles(ctx context.Context, symbol string, start, end time.Time) ([]backtest.Candle, error) {
	s.calls++
	return s.candles, s.err
}

func TestFallbackChainPrimaryHasData(t *testing.T) {
	primary := &stubCandleFetcher{candles: []backtest.Candle{{}}}
	fallback := &stubCandleFetcher{}
	chain := NewFallbackChain(primary, fallback, noopLogger())

	candles, err := chain.FetchCandles(context.Background(), "FOO", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("应返回主源数据, 实际 %d 根", len(candles))
	}
	if fallback.calls != 0 {
		t.Fatal("主源有数据时不应触发回退")
	}
}

func TestFallbackChainFallsBackOnEmpty(t *testing.T) {
	primary := &stubCandleFetcher{}
	fallback := &stubCandleFetcher{candles: []backtest.Candle{{}, {}}}
	chain := NewFallbackChain(primary, fallback, noopLogger())

	candles, err := chain.FetchCandles(context.Background(), "FOO", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("主源无数据时应使用回退源, 实际 %d 根", len(candles))
	}
}

func TestFallbackChainPrimaryErrorPropagates(t *testing.T) {
	primary := &stubCandleFetcher{err: fmt.Errorf("boom")}
	fallback := &stubCandleFetcher{candles: []backtest.Candle{{}}}
	chain := NewFallbackChain(primary, fallback, noopLogger())

	if _, err := chain.FetchCandles(context.Background(), "FOO", time.Now(), time.Now()); err == nil {
		t.Fatal("主源 HTTP 错误应传播而非回退")
	}
	if fallback.calls != 0 {
		t.Fatal("错误路径不应触发回退")
	}
}
