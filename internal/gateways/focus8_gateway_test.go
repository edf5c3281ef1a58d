package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

// fakeFocus8 issues sessions s1, s2, ... and accepts only the latest one.
type fakeFocus8 struct {
	logins        atomic.Int32
	expireFirst   atomic.Bool
	accountResult int
	voucherResult int
	lastVoucher   atomic.Value
	lastWhere     atomic.Value
}

func (f *fakeFocus8) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	if path == focus8LoginPath {
		n := f.logins.Add(1)
		writeJSON(ctx, fasthttp.StatusOK, fmt.Sprintf(`{"result":1,"data":[{"fSessionId":"s%d"}]}`, n))
		return
	}

	session := string(ctx.Request.Header.Peek(focus8SessionKey))
	current := fmt.Sprintf("s%d", f.logins.Load())
	if session != current || (f.expireFirst.Load() && session == "s1") {
		writeJSON(ctx, fasthttp.StatusOK, `{"result":-1,"message":"Invalid Session"}`)
		return
	}

	switch {
	case path == focus8AccountPath:
		f.lastWhere.Store(string(ctx.QueryArgs().Peek("where")))
		writeJSON(ctx, fasthttp.StatusOK, fmt.Sprintf(`{"result":%d,"message":"lookup","data":[{"iMasterId":881}]}`, f.accountResult))
	case strings.HasPrefix(path, "/Focus8API/Transactions/Vouchers/"):
		f.lastVoucher.Store(string(ctx.PostBody()))
		writeJSON(ctx, fasthttp.StatusOK, fmt.Sprintf(`{"result":%d,"message":"Voucher rejected","data":[{"VoucherNo":"SI/0042"}]}`, f.voucherResult))
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func newTestFocus8(t *testing.T, f *fakeFocus8) *Focus8Client {
	return NewFocus8Client(Focus8Config{
		BaseURL:   "http://focus8.test/",
		Username:  "erp",
		Password:  "pw",
		CompanyID: "0A0",
		Dial:      serve(t, f.handle),
	})
}

func sampleVoucher() *model.SalesVoucher {
	return &model.SalesVoucher{
		Header: model.SalesVoucherHeader{Date: "15/10/2026", CustomerAC: 881, Branch: 2, SalesMan: 3, District: 4, SNarration: "Order 7"},
		Body:   []model.SalesVoucherLine{{Item: 11, Quantity: 5, Rate: 120.5}},
	}
}

func TestFocus8Client_PushSalesVoucher(t *testing.T) {
	f := &fakeFocus8{accountResult: 1, voucherResult: 1}
	client := newTestFocus8(t, f)

	voucherNo, err := client.PushSalesVoucher(context.Background(), sampleVoucher())
	require.NoError(t, err)
	assert.Equal(t, "SI/0042", voucherNo)
	assert.Equal(t, int32(1), f.logins.Load())

	var sent struct {
		Data []model.SalesVoucher `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.lastVoucher.Load().(string)), &sent))
	require.Len(t, sent.Data, 1)
	assert.Equal(t, *sampleVoucher(), sent.Data[0])

	_, err = client.PushSalesVoucher(context.Background(), sampleVoucher())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.logins.Load(), "session is reused")
}

func TestFocus8Client_RenewsInvalidSessionOnce(t *testing.T) {
	f := &fakeFocus8{accountResult: 1, voucherResult: 1}
	f.expireFirst.Store(true)
	client := newTestFocus8(t, f)

	voucherNo, err := client.PushSalesVoucher(context.Background(), sampleVoucher())
	require.NoError(t, err)
	assert.Equal(t, "SI/0042", voucherNo)
	assert.Equal(t, int32(2), f.logins.Load())
}

func TestFocus8Client_RejectedVoucher(t *testing.T) {
	f := &fakeFocus8{accountResult: 1, voucherResult: 0}
	client := newTestFocus8(t, f)

	_, err := client.PushSalesVoucher(context.Background(), sampleVoucher())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternalService))
	assert.Contains(t, err.Error(), "Voucher rejected")
}

func TestFocus8Client_LookupAccountID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := &fakeFocus8{accountResult: 1}
		client := newTestFocus8(t, f)

		id, err := client.LookupAccountID(context.Background(), "DL'01")
		require.NoError(t, err)
		assert.Equal(t, int64(881), id)
		assert.Equal(t, "sCode eq 'DL''01'", f.lastWhere.Load())
	})

	t.Run("unsuccessful result is not found", func(t *testing.T) {
		f := &fakeFocus8{accountResult: 0}
		client := newTestFocus8(t, f)

		id, err := client.LookupAccountID(context.Background(), "DL01")
		require.NoError(t, err)
		assert.Zero(t, id)
	})
}

func TestFocus8Client_LoginFailure(t *testing.T) {
	client := NewFocus8Client(Focus8Config{
		BaseURL: "http://focus8.test",
		Dial: serve(t, func(ctx *fasthttp.RequestCtx) {
			writeJSON(ctx, fasthttp.StatusOK, `{"result":0,"message":"bad credentials"}`)
		}),
	})

	_, err := client.PushSalesVoucher(context.Background(), sampleVoucher())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternalService))
}
