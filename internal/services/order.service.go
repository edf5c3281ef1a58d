package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/paint-rewards/internal/apperr"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/pkg/logger"
	"github.com/nimasrn/paint-rewards/pkg/prom"
)

const erpDateLayout = "02/01/2006"

// JobPublisher hands ERP sync jobs to the background processor.
type JobPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type ErpClient interface {
	// LookupAccountID resolves a customer account in the ERP masters; 0 means not found.
	LookupAccountID(ctx context.Context, code string) (int64, error)
	PushSalesVoucher(ctx context.Context, v *model.SalesVoucher) (string, error)
}

type OrderService struct {
	accounts    AccountRepository
	orders      OrderRepository
	jobs        JobPublisher
	erp         ErpClient
	callTimeout time.Duration
	now         func() time.Time
}

func NewOrderService(accounts AccountRepository, orders OrderRepository, jobs JobPublisher, erp ErpClient, callTimeout time.Duration) *OrderService {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &OrderService{
		accounts:    accounts,
		orders:      orders,
		jobs:        jobs,
		erp:         erp,
		callTimeout: callTimeout,
		now:         time.Now,
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, dealerID int64, items []model.OrderItemRequest) (*model.Order, error) {
	dealer, err := s.accounts.GetByID(ctx, dealerID)
	if err != nil {
		return nil, translate(err)
	}
	if dealer.Role != model.RoleDealer {
		return nil, apperr.Forbidden("Only dealers can place orders")
	}
	if !dealer.Active() {
		return nil, apperr.Forbidden("Account is inactive")
	}
	if err := model.ValidateOrderItems(items); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	order, err := s.orders.Create(ctx, dealer.ID, items)
	if err != nil {
		err = translate(err)
		report("create order", err, "dealer_id", dealerID)
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		err = translate(err)
		report("get order", err, "order_id", id)
		return nil, err
	}
	return order, nil
}

// VerifyOrder moves a CREATED order to VERIFIED and queues the ERP push. A
// queue failure is recorded on the order; verification itself stands.
func (s *OrderService) VerifyOrder(ctx context.Context, orderID, actorID int64) (*model.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeVerifier(ctx, order, actorID); err != nil {
		report("authorize verifier", err, "order_id", orderID, "actor_id", actorID)
		return nil, err
	}

	if err := s.orders.MarkVerified(ctx, orderID, actorID, s.now()); err != nil {
		if errors.Is(err, repository.ErrOrderStateChanged) {
			return nil, apperr.Conflict("Order already verified")
		}
		err = translate(err)
		report("verify order", err, "order_id", orderID)
		return nil, err
	}

	s.enqueueSync(ctx, orderID)
	return s.GetOrder(ctx, orderID)
}

// RetrySync queues a FAILED ERP push again.
func (s *OrderService) RetrySync(ctx context.Context, orderID, actorID int64) (*model.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeVerifier(ctx, order, actorID); err != nil {
		report("authorize verifier", err, "order_id", orderID, "actor_id", actorID)
		return nil, err
	}

	if err := s.orders.ResetFailedSync(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrOrderStateChanged) {
			return nil, apperr.Conflict("Only failed syncs can be retried")
		}
		err = translate(err)
		report("retry order sync", err, "order_id", orderID)
		return nil, err
	}

	s.enqueueSync(ctx, orderID)
	return s.GetOrder(ctx, orderID)
}

func (s *OrderService) enqueueSync(ctx context.Context, orderID int64) {
	job := model.ErpSyncJob{OrderID: orderID, Requested: s.now()}
	if _, err := s.jobs.PublishJSON(ctx, job, map[string]string{"order_id": strconv.FormatInt(orderID, 10)}); err != nil {
		logger.Error("erp sync enqueue failed", "order_id", orderID, "error", err)
		if err := s.orders.SetSyncResult(ctx, orderID, model.SyncStatusFailed, "", "enqueue failed: "+err.Error()); err != nil {
			logger.Error("erp sync status update failed", "order_id", orderID, "error", err)
		}
	}
}

// authorizeVerifier allows the super user or the sales executive linked to the dealer.
func (s *OrderService) authorizeVerifier(ctx context.Context, order *model.Order, actorID int64) error {
	actor, err := s.accounts.GetByID(ctx, actorID)
	if err != nil {
		return translate(err)
	}
	if !actor.Active() {
		return apperr.Forbidden("Account is inactive")
	}
	switch actor.Role {
	case model.RoleSuperUser:
		return nil
	case model.RoleSalesExecutive:
		dealer, err := s.accounts.GetByID(ctx, order.DealerID)
		if err != nil {
			return translate(err)
		}
		if dealer.SalesExecutiveID != nil && *dealer.SalesExecutiveID == actor.ID {
			return nil
		}
	}
	return apperr.Forbidden("Not permitted to verify this order")
}

// SyncToERP pushes a verified order as a sales voucher and records the
// outcome on the order. It is what the processor runs for each queued job.
func (s *OrderService) SyncToERP(ctx context.Context, orderID int64) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return translate(err)
	}
	if order.Status != model.OrderStatusVerified {
		return apperr.Conflict("Order is not verified")
	}
	if order.SyncStatus == model.SyncStatusSuccess {
		logger.Info("erp sync skipped, already synced", "order_id", orderID, "voucher_no", order.VoucherNo)
		return nil
	}

	voucherNo, err := s.push(ctx, order)
	if err != nil {
		prom.IncERPSync("failed")
		logger.Error("erp sync failed", "order_id", orderID, "error", err)
		if serr := s.orders.SetSyncResult(ctx, orderID, model.SyncStatusFailed, "", err.Error()); serr != nil {
			return translate(serr)
		}
		return err
	}

	prom.IncERPSync("success")
	logger.Info("erp sync done", "order_id", orderID, "voucher_no", voucherNo)
	return translate(s.orders.SetSyncResult(ctx, orderID, model.SyncStatusSuccess, voucherNo, ""))
}

func (s *OrderService) push(ctx context.Context, order *model.Order) (string, error) {
	dealer, err := s.accounts.GetByID(ctx, order.DealerID)
	if err != nil {
		return "", translate(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	accountID := dealer.ErpAccountID
	if accountID == 0 && dealer.DealerCode != "" {
		accountID, err = s.erp.LookupAccountID(callCtx, dealer.DealerCode)
		if err != nil {
			return "", apperr.ExternalService("erp account lookup failed", err)
		}
	}
	if accountID == 0 {
		return "", apperr.Validation("dealer has no ERP account")
	}

	voucher := &model.SalesVoucher{
		Header: model.SalesVoucherHeader{
			Date:       order.CreatedAt.Format(erpDateLayout),
			CustomerAC: accountID,
			Branch:     dealer.ErpBranchID,
			SalesMan:   dealer.ErpSalesmanID,
			District:   dealer.ErpDistrictID,
			SNarration: fmt.Sprintf("Order #%d", order.ID),
		},
		Body: make([]model.SalesVoucherLine, len(order.Items)),
	}
	for i, it := range order.Items {
		voucher.Body[i] = model.SalesVoucherLine{Item: it.ItemID, Quantity: it.Quantity, Rate: it.Rate}
	}

	voucherNo, err := s.erp.PushSalesVoucher(callCtx, voucher)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return "", err
		}
		return "", apperr.ExternalService("erp voucher push failed", err)
	}
	return voucherNo, nil
}
