package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createBatch(t *testing.T, repo *CouponRepository, points int64, codes ...string) *model.Batch {
	t.Helper()
	batch, err := repo.CreateBatchWithCoupons(context.Background(), &model.Batch{
		Name:             "Emulsion 20L",
		RedeemablePoints: points,
		Value:            1000,
		Quantity:         len(codes),
		CreatedBy:        1,
	}, codes)
	require.NoError(t, err)
	return batch
}

func TestCouponRepository_CreateBatchWithCoupons(t *testing.T) {
	repo := NewCouponRepository(SetupTestDB(t))
	ctx := context.Background()

	batch := createBatch(t, repo, 50, "AAAA", "BBBB", "CCCC")
	assert.NotZero(t, batch.ID)

	coupons, total, err := repo.ListByBatch(ctx, model.CouponFilter{BatchID: batch.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, coupons, 3)
	assert.Equal(t, "AAAA", coupons[0].Code)

	c, err := repo.GetByCode(ctx, "BBBB")
	require.NoError(t, err)
	require.NotNil(t, c.Batch)
	assert.Equal(t, int64(50), c.Batch.RedeemablePoints)
	assert.Nil(t, c.PointsRedeemedBy)
}

func TestCouponRepository_DuplicateCodeRollsBackBatch(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewCouponRepository(db)
	ctx := context.Background()

	createBatch(t, repo, 50, "AAAA")

	_, err := repo.CreateBatchWithCoupons(ctx, &model.Batch{Name: "second", RedeemablePoints: 10, Quantity: 2, CreatedBy: 1}, []string{"ZZZZ", "AAAA"})
	assert.ErrorIs(t, err, ErrDuplicateCouponCode)

	var batches int64
	require.NoError(t, db.Read(ctx).Model(&BatchEntity{}).Count(&batches).Error)
	assert.Equal(t, int64(1), batches)

	_, err = repo.GetByCode(ctx, "ZZZZ")
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestCouponRepository_ClaimChannel(t *testing.T) {
	repo := NewCouponRepository(SetupTestDB(t))
	ctx := context.Background()
	createBatch(t, repo, 50, "AAAA")
	now := time.Now()

	require.NoError(t, repo.ClaimChannel(ctx, "AAAA", model.ChannelPoints, "9100000001", now))

	err := repo.ClaimChannel(ctx, "AAAA", model.ChannelPoints, "9100000002", now)
	assert.ErrorIs(t, err, ErrCouponAlreadyRedeemed)

	// channels are independent
	require.NoError(t, repo.ClaimChannel(ctx, "AAAA", model.ChannelCash, "9100000002", now))

	err = repo.ClaimChannel(ctx, "MISSING", model.ChannelPoints, "9100000001", now)
	assert.ErrorIs(t, err, ErrCouponNotFound)

	c, err := repo.GetByCode(ctx, "AAAA")
	require.NoError(t, err)
	require.NotNil(t, c.PointsRedeemedBy)
	assert.Equal(t, "9100000001", *c.PointsRedeemedBy)
	assert.Equal(t, "9100000002", *c.RedeemedBy(model.ChannelCash))
}

func TestCouponRepository_ConcurrentClaimsSingleWinner(t *testing.T) {
	repo := NewCouponRepository(SetupTestDB(t))
	ctx := context.Background()
	createBatch(t, repo, 50, "RACE")

	const scanners = 8
	var wg sync.WaitGroup
	results := make(chan error, scanners)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- repo.ClaimChannel(ctx, "RACE", model.ChannelPoints, fmt.Sprintf("91000000%02d", i), time.Now())
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrCouponAlreadyRedeemed)
	}
	assert.Equal(t, 1, wins)
}
