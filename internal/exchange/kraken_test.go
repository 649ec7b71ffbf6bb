package exchange

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octoadvisor/internal/model"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("hunter2"))

func newTestKraken(t *testing.T, handler http.Handler) *Kraken {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	k, err := NewKraken(srv.URL, "key", testSecret, "ZEUR", time.Millisecond)
	require.NoError(t, err)
	return k
}

func TestCandles_ParsesAndConvertsCursor(t *testing.T) {
	var gotSince, gotInterval string
	k := newTestKraken(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/OHLC", r.URL.Path)
		gotSince = r.URL.Query().Get("since")
		gotInterval = r.URL.Query().Get("interval")
		fmt.Fprint(w, `{"error":[],"result":{"XXBTZEUR":[
			[3599000,"99","99","99","99","99","1.0",1],
			[7200000,"101","111","91","106","103","7.25",20],
			[3600000,"100","110","90","105","102","12.5",10]
		],"last":7200000}}`)
	}))

	candles, err := k.Candles(context.Background(), "XXBTZEUR", model.TF1h, 3_600_000_000, 0)
	require.NoError(t, err)

	// ms cursor becomes a second-based since, one second back
	assert.Equal(t, "3599999", gotSince)
	assert.Equal(t, "60", gotInterval)

	// the row before the cursor is dropped, the rest sorted ascending
	require.Len(t, candles, 2)
	assert.Equal(t, int64(3_600_000_000), candles[0].Timestamp)
	assert.Equal(t, model.Candle{
		Timestamp: 3_600_000_000,
		Open:      100, High: 110, Low: 90, Close: 105, Volume: 12.5,
	}, candles[0])
	assert.Equal(t, int64(7_200_000_000), candles[1].Timestamp)
}

func TestCandles_LimitTrims(t *testing.T) {
	k := newTestKraken(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":[],"result":{"XXBTZEUR":[
			[3600,"1","1","1","1","1","1",1],
			[7200,"2","2","2","2","2","2",2],
			[10800,"3","3","3","3","3","3",3]
		],"last":10800}}`)
	}))

	candles, err := k.Candles(context.Background(), "XXBTZEUR", model.TF1h, 0, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(3_600_000), candles[0].Timestamp)
}

func TestCandles_APIErrorSurfaces(t *testing.T) {
	k := newTestKraken(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":["EQuery:Unknown asset pair"],"result":null}`)
	}))

	_, err := k.Candles(context.Background(), "NOPE", model.TF1h, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EQuery:Unknown asset pair")
}

func TestTicker_BatchesPairs(t *testing.T) {
	var batches []string
	k := newTestKraken(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pairs := r.URL.Query().Get("pair")
		batches = append(batches, pairs)
		result := make([]string, 0)
		for _, p := range strings.Split(pairs, ",") {
			result = append(result, fmt.Sprintf(
				`%q:{"c":["100.0","0.1"],"o":"90.0","h":["105","110"],"l":["85","80"],"v":["10","20"]}`, p))
		}
		fmt.Fprintf(w, `{"error":[],"result":{%s}}`, strings.Join(result, ","))
	}))

	pairs := make([]string, 12)
	for i := range pairs {
		pairs[i] = fmt.Sprintf("PAIR%02dZEUR", i)
	}
	tickers, err := k.Ticker(context.Background(), pairs)
	require.NoError(t, err)

	// 12 pairs must go out as 10 + 2
	require.Len(t, batches, 2)
	assert.Len(t, strings.Split(batches[0], ","), 10)
	assert.Len(t, strings.Split(batches[1], ","), 2)

	require.Len(t, tickers, 12)
	tk := tickers["PAIR00ZEUR"]
	assert.Equal(t, "100", tk.Last.String())
	assert.Equal(t, "90", tk.Open24h.String())
	assert.Equal(t, "110", tk.High24h.String())
	assert.Equal(t, "20", tk.Volume24h.String())
}

func TestBalance_SignsPrivateRequest(t *testing.T) {
	var apiKey, apiSign, nonce string
	k := newTestKraken(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/0/private/Balance", r.URL.Path)
		apiKey = r.Header.Get("API-Key")
		apiSign = r.Header.Get("API-Sign")
		require.NoError(t, r.ParseForm())
		nonce = r.PostFormValue("nonce")
		fmt.Fprint(w, `{"error":[],"result":{"XXBT":"0.5234","ZEUR":"150.25"}}`)
	}))

	balances, err := k.Balance(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "key", apiKey)
	assert.NotEmpty(t, nonce)
	// signature must be valid base64 of a 64 byte HMAC-SHA512
	raw, err := base64.StdEncoding.DecodeString(apiSign)
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	require.Len(t, balances, 2)
	assert.Equal(t, "0.5234", balances["XXBT"].String())
}

func TestFetchPortfolio_AssemblesSnapshot(t *testing.T) {
	k := newTestKraken(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/0/private/Balance":
			fmt.Fprint(w, `{"error":[],"result":{"XXBT":"0.5","ZEUR":"100.0","XDGE":"0.00001"}}`)
		case "/0/private/TradeBalance":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "ZEUR", r.PostFormValue("asset"))
			fmt.Fprint(w, `{"error":[],"result":{"eb":"20100.00","tb":"100.00","mf":"100.00"}}`)
		case "/0/private/OpenOrders":
			fmt.Fprint(w, `{"error":[],"result":{"open":{"TX1":{"descr":{"pair":"XXBTZEUR","type":"buy","ordertype":"limit","price":"35000.0"},"vol":"0.1","opentm":1756277200.5}}}}`)
		case "/0/private/TradesHistory":
			fmt.Fprint(w, `{"error":[],"result":{"trades":{"T1":{"pair":"XXBTZEUR","type":"sell","price":"41000.0","vol":"0.05","cost":"2050.0","fee":"5.33","time":1756177200.25}},"count":1}}`)
		case "/0/public/Ticker":
			// dust assets must not show up here
			assert.Equal(t, "XXBTZEUR", r.URL.Query().Get("pair"))
			fmt.Fprint(w, `{"error":[],"result":{"XXBTZEUR":{"c":["40000.0","0.1"],"o":"38000.0","h":["40500","41000"],"l":["37500","37000"],"v":["12","25"]}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	p, err := k.FetchPortfolio(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "kraken", p.Exchange)
	assert.Equal(t, "0.5", p.Balances["XXBT"].String())
	assert.Equal(t, "20100", p.TradeBalance.Equity.String())

	require.Contains(t, p.OpenOrders, "TX1")
	assert.Equal(t, "buy", p.OpenOrders["TX1"].Type)
	assert.Equal(t, "35000", p.OpenOrders["TX1"].Price.String())

	require.Contains(t, p.Trades, "T1")
	assert.Equal(t, "2050", p.Trades["T1"].Cost.String())

	require.Contains(t, p.Ticker, "XXBTZEUR")
	assert.Equal(t, "40000", p.Ticker["XXBTZEUR"].Last.String())
}
