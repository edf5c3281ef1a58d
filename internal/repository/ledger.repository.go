package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDuplicateUniqueCode = errors.New("ledger unique code already used")
	ErrCounterNotAdvanced  = errors.New("daily counter was not advanced")
)

type LedgerRepository struct {
	*pg.DB
}

func NewLedgerRepository(db *pg.DB) *LedgerRepository {
	return &LedgerRepository{
		db,
	}
}

// Append stores an immutable entry. A reused unique code on the same side
// surfaces as ErrDuplicateUniqueCode.
func (r *LedgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error) {
	entity := toLedgerEntryEntity(entry)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if pg.IsDuplicateKey(err) {
			return nil, ErrDuplicateUniqueCode
		}
		return nil, err
	}

	return toLedgerEntryModel(entity), nil
}

func (r *LedgerRepository) ListByAccount(ctx context.Context, f model.LedgerFilter) ([]*model.LedgerEntry, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&LedgerEntryEntity{}).Where("account_id = ?", f.AccountID)

	if f.Kind != nil {
		q = q.Where("kind = ?", string(*f.Kind))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at ASC, id ASC"
	if f.Desc {
		order = "created_at DESC, id DESC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*LedgerEntryEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toLedgerEntryModels(entities), total, nil
}

// ListByUniqueCode returns the entries sharing a transfer code.
func (r *LedgerRepository) ListByUniqueCode(ctx context.Context, code string) ([]*model.LedgerEntry, error) {
	var entities []*LedgerEntryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("unique_code = ?", code).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toLedgerEntryModels(entities), nil
}

// MaxSequenceForDay scans the transfer codes of one day ({dealer}_{MMDDYY}_{seq})
// and returns the highest sequence found, 0 when none.
func (r *LedgerRepository) MaxSequenceForDay(ctx context.Context, mmddyy string) (int64, error) {
	var codes []string
	err := r.Read(ctx).WithContext(ctx).
		Model(&LedgerEntryEntity{}).
		Where("unique_code LIKE ?", "%"+mmddyy+"%").
		Where("side = ?", string(model.SideDebit)).
		Pluck("unique_code", &codes).
		Error
	if err != nil {
		return 0, err
	}

	var highest int64
	for _, code := range codes {
		seq, ok := parseSequence(code, mmddyy)
		if ok && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

// parseSequence reads the trailing sequence of a code; dealer codes may
// themselves contain underscores so only the last two segments are used.
func parseSequence(code, mmddyy string) (int64, bool) {
	parts := strings.Split(code, "_")
	if len(parts) < 3 || parts[len(parts)-2] != mmddyy {
		return 0, false
	}
	seq, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil || seq <= 0 {
		return 0, false
	}
	return seq, true
}

type DailyCounterRepository struct {
	*pg.DB
}

func NewDailyCounterRepository(db *pg.DB) *DailyCounterRepository {
	return &DailyCounterRepository{
		db,
	}
}

// Next increments the global counter of day and returns the new value. On the
// first use of a day the row is seeded from seed() before incrementing. Callers
// run it inside the transaction that consumes the value so a rollback gives
// the number back.
func (r *DailyCounterRepository) Next(ctx context.Context, day string, seed func(ctx context.Context) (int64, error)) (int64, error) {
	advanced, err := r.increment(ctx, day)
	if err != nil {
		return 0, err
	}

	if !advanced {
		start, err := seed(ctx)
		if err != nil {
			return 0, err
		}

		err = r.Write(ctx).WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&DailyCounterEntity{Day: day, Seq: start}).
			Error
		if err != nil {
			return 0, err
		}

		advanced, err = r.increment(ctx, day)
		if err != nil {
			return 0, err
		}
		if !advanced {
			return 0, ErrCounterNotAdvanced
		}
	}

	var entity DailyCounterEntity
	if err := r.Write(ctx).WithContext(ctx).Where("day = ?", day).First(&entity).Error; err != nil {
		return 0, err
	}
	return entity.Seq, nil
}

func (r *DailyCounterRepository) increment(ctx context.Context, day string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&DailyCounterEntity{}).
		Where("day = ?", day).
		Update("seq", gorm.Expr("seq + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
