package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/models"
	"github.com/Sarvesh28D/FragsHub-sub000/razorpay"
	"github.com/Sarvesh28D/FragsHub-sub000/repositories"
	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
)

const (
	paymentGateway = "razorpay"

	orderTTL          = 24 * time.Hour
	refundBatchSize   = 50
	paiseInRupee      = 100
	refundQueuePrefix = "rfq_"
)

type PaymentConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	AutoApprove   bool
}

type CreateOrderInput struct {
	TeamID string `json:"teamId"`
}

// OrderResult: всё, что нужно фронтенду для открытия Razorpay Checkout.
type OrderResult struct {
	OrderID  string `json:"orderId"`
	TeamID   string `json:"teamId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	KeyID    string `json:"keyId"`
}

// VerifyPaymentInput uses the field names of the Checkout success handler.
type VerifyPaymentInput struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type RefundInput struct {
	PaymentID string `json:"paymentId"`
	TeamID    string `json:"teamId"`
	Reason    string `json:"reason"`
}

type RefundQueueReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Deferred  int `json:"deferred"`
}

type PaymentService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderResult, error)
	VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Team, error)
	RefundPayment(ctx context.Context, input RefundInput) (*models.Refund, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ExpireStaleOrders(ctx context.Context) (int, error)
	ProcessRefundQueue(ctx context.Context) (*RefundQueueReport, error)
}

type paymentService struct {
	orderRepo  repositories.PaymentOrderRepository
	refundRepo repositories.RefundRepository
	teamRepo   repositories.TeamRepository
	tx         repositories.Transactor
	gateway    PaymentGateway
	approver   Approver
	notifier   NotificationService
	cfg        PaymentConfig
	timeout    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

type PaymentServiceDeps struct {
	OrderRepo       repositories.PaymentOrderRepository
	RefundRepo      repositories.RefundRepository
	TeamRepo        repositories.TeamRepository
	Tx              repositories.Transactor
	Gateway         PaymentGateway
	Approver        Approver
	Notifier        NotificationService
	Config          PaymentConfig
	UpstreamTimeout time.Duration
	Logger          *slog.Logger
}

func NewPaymentService(d PaymentServiceDeps) PaymentService {
	if d.Config.Currency == "" {
		d.Config.Currency = "INR"
	}
	return &paymentService{
		orderRepo:  d.OrderRepo,
		refundRepo: d.RefundRepo,
		teamRepo:   d.TeamRepo,
		tx:         d.Tx,
		gateway:    d.Gateway,
		approver:   d.Approver,
		notifier:   d.Notifier,
		cfg:        d.Config,
		timeout:    d.UpstreamTimeout,
		logger:     d.Logger,
		now:        time.Now,
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderResult, error) {
	if strings.TrimSpace(input.TeamID) == "" {
		return nil, &ValidationError{Fields: map[string]string{"teamId": "is required"}}
	}
	team, err := s.teamRepo.GetByID(ctx, input.TeamID)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	if team.PaymentStatus == models.PaymentPaid {
		return nil, ErrTeamAlreadyPaid
	}
	if team.RegistrationStatus == models.RegistrationRejected {
		return nil, ErrTeamAlreadyRejected
	}
	amount := team.EntryFee * paiseInRupee
	if amount <= 0 {
		return nil, &ValidationError{Fields: map[string]string{"entryFee": "team has no entry fee to pay"}}
	}

	// Лимит Razorpay на receipt 40 символов, поэтому без префикса "team_".
	receipt := strings.TrimPrefix(team.ID, "team_")
	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	order, err := s.gateway.CreateOrder(upCtx, razorpay.CreateOrderParams{
		Amount:   amount,
		Currency: s.cfg.Currency,
		Receipt:  receipt,
		Notes:    map[string]string{"teamId": team.ID},
	})
	cancel()
	if err != nil {
		return nil, upstream(paymentGateway, "create order", err)
	}

	// Новая попытка оплаты после истечения или возврата.
	if team.PaymentStatus == models.PaymentExpired || team.PaymentStatus == models.PaymentRefunded {
		if err := s.teamRepo.UpdatePaymentStatus(ctx, nil, team.ID, models.PaymentPending, nil); err != nil {
			return nil, mapTeamRepoError(err)
		}
	}

	local := &models.PaymentOrder{
		ID:        order.ID,
		TeamID:    team.ID,
		Amount:    amount,
		Currency:  s.cfg.Currency,
		Receipt:   receipt,
		Status:    models.OrderCreated,
		CreatedAt: s.now().UTC(),
	}
	if err := s.orderRepo.CreateOrder(ctx, local); err != nil {
		return nil, fmt.Errorf("failed to store payment order: %w", err)
	}

	s.logger.InfoContext(ctx, "payment order created",
		slog.String("order_id", local.ID), slog.String("team_id", team.ID), slog.Int64("amount", amount))
	return &OrderResult{
		OrderID:  local.ID,
		TeamID:   team.ID,
		Amount:   amount,
		Currency: local.Currency,
		Receipt:  receipt,
		KeyID:    s.cfg.KeyID,
	}, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Team, error) {
	v := &validator{}
	v.check(input.OrderID != "", "razorpay_order_id", "is required")
	v.check(input.PaymentID != "", "razorpay_payment_id", "is required")
	v.check(input.Signature != "", "razorpay_signature", "is required")
	if err := v.err(); err != nil {
		return nil, err
	}
	// Подпись проверяется до любого чтения или записи.
	if !razorpay.VerifyPaymentSignature(input.OrderID, input.PaymentID, input.Signature, s.cfg.KeySecret) {
		s.logger.WarnContext(ctx, "payment signature mismatch", slog.String("order_id", input.OrderID))
		return nil, ErrInvalidSignature
	}

	order, err := s.orderRepo.GetOrder(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !order.Status.Settled() {
		if err := s.settle(ctx, order, input.PaymentID, models.OrderVerified); err != nil {
			return nil, err
		}
		s.afterPaid(ctx, order.TeamID)
	}

	team, err := s.teamRepo.GetByID(ctx, order.TeamID)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	return team, nil
}

// settle помечает заказ и команду оплаченными в одной транзакции.
func (s *paymentService) settle(ctx context.Context, order *models.PaymentOrder, paymentID string, status models.OrderStatus) error {
	err := s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.orderRepo.MarkOrder(ctx, exec, order.ID, status, &paymentID); err != nil {
			return err
		}
		return s.teamRepo.UpdatePaymentStatus(ctx, exec, order.TeamID, models.PaymentPaid, &paymentID)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to settle order %s: %w", order.ID, err)
	}
	s.logger.InfoContext(ctx, "payment settled",
		slog.String("order_id", order.ID), slog.String("payment_id", paymentID), slog.String("team_id", order.TeamID))
	return nil
}

func (s *paymentService) afterPaid(ctx context.Context, teamID string) {
	s.notifier.Notify(ctx, NotifyPaymentCaptured, "Payment received", fmt.Sprintf("Team %s completed payment", teamID))
	if !s.cfg.AutoApprove || s.approver == nil {
		return
	}
	if _, err := s.approver.ApproveTeam(ctx, teamID, SystemActor); err != nil {
		s.logger.WarnContext(ctx, "auto-approval failed", slog.String("team_id", teamID), slog.Any("error", err))
	}
}

func (s *paymentService) RefundPayment(ctx context.Context, input RefundInput) (*models.Refund, error) {
	input.PaymentID = strings.TrimSpace(input.PaymentID)
	input.TeamID = strings.TrimSpace(input.TeamID)
	if (input.PaymentID == "") == (input.TeamID == "") {
		return nil, &ValidationError{Fields: map[string]string{"paymentId": "exactly one of paymentId or teamId is required"}}
	}

	var (
		team      *models.Team
		paymentID = input.PaymentID
		err       error
	)
	if input.TeamID != "" {
		if team, err = s.teamRepo.GetByID(ctx, input.TeamID); err != nil {
			return nil, mapTeamRepoError(err)
		}
		if team.PaymentStatus != models.PaymentPaid || team.PaymentID == nil {
			return nil, ErrTeamNotPaid
		}
		paymentID = *team.PaymentID
	} else {
		order, err := s.orderRepo.GetSettledByPaymentID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, repositories.ErrOrderNotFound) {
				return nil, ErrOrderNotFound
			}
			return nil, err
		}
		if team, err = s.teamRepo.GetByID(ctx, order.TeamID); err != nil {
			return nil, mapTeamRepoError(err)
		}
	}

	existing, err := s.refundRepo.ListByTeam(ctx, team.ID)
	if err != nil {
		return nil, err
	}
	for _, rf := range existing {
		if rf.PaymentID == paymentID && rf.Status != models.RefundFailed {
			return nil, ErrRefundAlreadyRequested
		}
	}

	amount := team.EntryFee * paiseInRupee
	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	gw, err := s.gateway.CreateRefund(upCtx, paymentID, razorpay.CreateRefundParams{
		Amount: amount,
		Notes:  map[string]string{"teamId": team.ID, "reason": input.Reason},
	})
	cancel()
	if err != nil {
		return nil, upstream(paymentGateway, "create refund", err)
	}

	now := s.now().UTC()
	refund := &models.Refund{
		ID:              gw.ID,
		TeamID:          team.ID,
		PaymentID:       paymentID,
		Amount:          amount,
		Reason:          input.Reason,
		Status:          refundStatus(gw.Status),
		GatewayRefundID: strPtr(gw.ID),
		CreatedAt:       now,
	}
	err = s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.refundRepo.Create(ctx, exec, refund); err != nil {
			return err
		}
		return s.teamRepo.UpdatePaymentStatus(ctx, exec, team.ID, models.PaymentRefunded, nil)
	})
	if err != nil {
		// Возврат в Razorpay уже создан; вебхук refund.processed догонит статус.
		s.logger.ErrorContext(ctx, "refund issued but not recorded",
			slog.String("refund_id", gw.ID), slog.String("team_id", team.ID), slog.Any("error", err))
		if errors.Is(err, repositories.ErrRefundExists) {
			return nil, ErrRefundAlreadyRequested
		}
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	s.logger.InfoContext(ctx, "refund issued", slog.String("refund_id", gw.ID), slog.String("team_id", team.ID))
	return refund, nil
}

func refundStatus(gatewayStatus string) models.RefundStatus {
	switch gatewayStatus {
	case "processed":
		return models.RefundProcessed
	case "failed":
		return models.RefundFailed
	default:
		return models.RefundPending
	}
}

// HandleWebhook проверяет подпись тела и разбирает событие. Неизвестные события игнорируются.
func (s *paymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !razorpay.VerifyWebhookSignature(body, signature, s.cfg.WebhookSecret) {
		s.logger.WarnContext(ctx, "webhook signature mismatch")
		return ErrInvalidSignature
	}
	if !gjson.ValidBytes(body) {
		return &ValidationError{Fields: map[string]string{"body": "is not valid JSON"}}
	}

	event := gjson.GetBytes(body, "event").String()
	switch event {
	case "payment.captured":
		return s.onPaymentCaptured(ctx, body)
	case "payment.failed":
		return s.onPaymentFailed(ctx, body)
	case "refund.processed":
		return s.onRefundProcessed(ctx, body)
	default:
		s.logger.InfoContext(ctx, "ignoring webhook event", slog.String("event", event))
		return nil
	}
}

func (s *paymentService) onPaymentCaptured(ctx context.Context, body []byte) error {
	entity := gjson.GetBytes(body, "payload.payment.entity")
	orderID := entity.Get("order_id").String()
	paymentID := entity.Get("id").String()
	if orderID == "" || paymentID == "" {
		return &ValidationError{Fields: map[string]string{"payload.payment.entity": "order_id and id are required"}}
	}

	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			s.logger.WarnContext(ctx, "captured payment for unknown order", slog.String("order_id", orderID))
			return nil
		}
		return err
	}

	switch order.Status {
	case models.OrderCaptured:
		return nil
	case models.OrderVerified:
		// Команда уже оплачена через verify; статус команды не трогаем, он мог уйти в refunded.
		return s.orderRepo.MarkOrder(ctx, nil, order.ID, models.OrderCaptured, &paymentID)
	}
	if err := s.settle(ctx, order, paymentID, models.OrderCaptured); err != nil {
		return err
	}
	s.afterPaid(ctx, order.TeamID)
	return nil
}

func (s *paymentService) onPaymentFailed(ctx context.Context, body []byte) error {
	entity := gjson.GetBytes(body, "payload.payment.entity")
	orderID := entity.Get("order_id").String()
	if orderID == "" {
		return nil
	}
	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return nil
		}
		return err
	}
	// Неудачная попытка не отменяет уже подтверждённую оплату.
	if order.Status != models.OrderCreated {
		return nil
	}
	if err := s.orderRepo.MarkOrder(ctx, nil, order.ID, models.OrderFailed, nil); err != nil {
		return err
	}
	s.notifier.Notify(ctx, NotifyPaymentFailed, "Payment failed",
		fmt.Sprintf("Team %s: %s", order.TeamID, entity.Get("error_description").String()))
	return nil
}

func (s *paymentService) onRefundProcessed(ctx context.Context, body []byte) error {
	refundID := gjson.GetBytes(body, "payload.refund.entity.id").String()
	if refundID == "" {
		return nil
	}
	teamID, err := s.refundRepo.MarkStatusByGatewayID(ctx, refundID, models.RefundProcessed)
	if err != nil {
		if errors.Is(err, repositories.ErrRefundNotFound) {
			s.logger.WarnContext(ctx, "processed refund is unknown", slog.String("refund_id", refundID))
			return nil
		}
		return err
	}
	if err := s.teamRepo.UpdatePaymentStatus(ctx, nil, teamID, models.PaymentRefunded, nil); err != nil {
		return mapTeamRepoError(err)
	}
	s.notifier.Notify(ctx, NotifyRefundProcessed, "Refund processed", fmt.Sprintf("Refund %s for team %s", refundID, teamID))
	return nil
}

// ExpireStaleOrders истекает заказы, висящие в created дольше суток.
func (s *paymentService) ExpireStaleOrders(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-orderTTL)
	expired, err := s.orderRepo.ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, e := range expired {
		s.logger.InfoContext(ctx, "payment order expired", slog.String("order_id", e.OrderID), slog.String("team_id", e.TeamID))
	}
	return len(expired), nil
}

// ProcessRefundQueue отправляет в Razorpay возвраты, поставленные в очередь при отклонении.
// Явный отказ шлюза (4xx) помечает возврат failed, таймаут или 5xx оставляет его в очереди.
func (s *paymentService) ProcessRefundQueue(ctx context.Context) (*RefundQueueReport, error) {
	queued, err := s.refundRepo.ListQueued(ctx, refundBatchSize)
	if err != nil {
		return nil, err
	}

	report := &RefundQueueReport{}
	var result *multierror.Error
	for _, rf := range queued {
		if err := s.processQueuedRefund(ctx, rf); err != nil {
			if rejectedByGateway(err) {
				if markErr := s.refundRepo.MarkStatus(ctx, rf.ID, models.RefundFailed); markErr != nil {
					err = multierror.Append(err, markErr)
				}
				report.Failed++
			} else {
				report.Deferred++
			}
			result = multierror.Append(result, fmt.Errorf("refund %s: %w", rf.ID, err))
			continue
		}
		report.Processed++
	}

	if err := result.ErrorOrNil(); err != nil {
		s.logger.WarnContext(ctx, "refund queue finished with errors",
			slog.Int("processed", report.Processed), slog.Int("failed", report.Failed), slog.Any("error", err))
		return report, err
	}
	return report, nil
}

var errRefundWithoutPayment = errors.New("refund has no payment id")

// rejectedByGateway: повторять бессмысленно.
func rejectedByGateway(err error) bool {
	if errors.Is(err, errRefundWithoutPayment) {
		return true
	}
	var apiErr *razorpay.APIError
	return errors.As(err, &apiErr) &&
		apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
}

// processQueuedRefund отправляет возврат с receipt = id в очереди. Если прошлый запуск
// успел создать возврат в Razorpay, но не записал его, повторно деньги не отправляются:
// найденный по receipt возврат просто записывается.
func (s *paymentService) processQueuedRefund(ctx context.Context, rf models.Refund) error {
	if rf.PaymentID == "" {
		return errRefundWithoutPayment
	}
	queueID := strings.TrimPrefix(rf.ID, refundQueuePrefix)

	gw, err := s.findGatewayRefund(ctx, rf.PaymentID, queueID)
	if err != nil {
		return err
	}
	if gw != nil {
		s.logger.InfoContext(ctx, "refund already issued at gateway, recording it",
			slog.String("refund_id", rf.ID), slog.String("gateway_refund_id", gw.ID))
	} else {
		upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
		gw, err = s.gateway.CreateRefund(upCtx, rf.PaymentID, razorpay.CreateRefundParams{
			Amount:  rf.Amount,
			Receipt: queueID,
			Notes:   map[string]string{"teamId": rf.TeamID, "queueId": queueID},
		})
		cancel()
		if err != nil {
			return upstream(paymentGateway, "create refund", err)
		}
	}

	return s.tx.InTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.refundRepo.UpdateFromGateway(ctx, exec, rf.ID, gw.ID, refundStatus(gw.Status)); err != nil {
			return err
		}
		return s.teamRepo.UpdatePaymentStatus(ctx, exec, rf.TeamID, models.PaymentRefunded, nil)
	})
}

func (s *paymentService) findGatewayRefund(ctx context.Context, paymentID, receipt string) (*razorpay.Refund, error) {
	upCtx, cancel := withUpstreamTimeout(ctx, s.timeout)
	issued, err := s.gateway.ListRefunds(upCtx, paymentID)
	cancel()
	if err != nil {
		return nil, upstream(paymentGateway, "list refunds", err)
	}
	for i := range issued {
		if issued[i].Receipt == receipt {
			return &issued[i], nil
		}
	}
	return nil, nil
}
