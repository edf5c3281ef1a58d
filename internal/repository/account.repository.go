package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateAccount    = errors.New("account mobile or dealer code already exists")
)

type balanceColumn string

const (
	columnRewardPoints balanceColumn = "reward_points"
	columnCash         balanceColumn = "cash"
)

type AccountRepository struct {
	*pg.DB
}

func NewAccountRepository(db *pg.DB) *AccountRepository {
	return &AccountRepository{
		db,
	}
}

func (r *AccountRepository) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	entity := toAccountEntity(acc)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if pg.IsDuplicateKey(err) {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	return toAccountModel(entity), nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *AccountRepository) GetByMobile(ctx context.Context, mobile string) (*model.Account, error) {
	return r.getBy(ctx, "mobile = ?", mobile)
}

func (r *AccountRepository) GetByDealerCode(ctx context.Context, dealerCode string) (*model.Account, error) {
	return r.getBy(ctx, "dealer_code = ? AND role = ?", dealerCode, string(model.RoleDealer))
}

func (r *AccountRepository) getBy(ctx context.Context, query string, args ...interface{}) (*model.Account, error) {
	var entity AccountEntity
	err := r.Read(ctx).WithContext(ctx).
		Where(query, args...).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return toAccountModel(&entity), nil
}

// CreditPoints adds n reward points in one statement and returns the new balance.
func (r *AccountRepository) CreditPoints(ctx context.Context, id, n int64) (int64, error) {
	return r.adjust(ctx, id, columnRewardPoints, n)
}

// DebitPoints removes n reward points only if the balance covers it.
func (r *AccountRepository) DebitPoints(ctx context.Context, id, n int64) (int64, error) {
	return r.adjust(ctx, id, columnRewardPoints, -n)
}

func (r *AccountRepository) CreditCash(ctx context.Context, id, n int64) (int64, error) {
	return r.adjust(ctx, id, columnCash, n)
}

func (r *AccountRepository) DebitCash(ctx context.Context, id, n int64) (int64, error) {
	return r.adjust(ctx, id, columnCash, -n)
}

// adjust applies delta with a single conditional UPDATE; the guard on the
// current value is what keeps concurrent debits from overdrawing.
func (r *AccountRepository) adjust(ctx context.Context, id int64, col balanceColumn, delta int64) (int64, error) {
	if delta == 0 {
		return 0, fmt.Errorf("zero %s adjustment", col)
	}

	q := r.Write(ctx).WithContext(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", id)
	if delta < 0 {
		q = q.Where(fmt.Sprintf("%s >= ?", col), -delta)
	}

	result := q.Update(string(col), gorm.Expr(fmt.Sprintf("%s + ?", col), delta))
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientBalance
	}

	return r.balance(ctx, id, col)
}

func (r *AccountRepository) balance(ctx context.Context, id int64, col balanceColumn) (int64, error) {
	var value int64
	err := r.Write(ctx).WithContext(ctx).
		Model(&AccountEntity{}).
		Select(string(col)).
		Where("id = ?", id).
		Scan(&value).
		Error
	if err != nil {
		return 0, err
	}
	return value, nil
}
