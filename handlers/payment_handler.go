package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/Sarvesh28D/FragsHub-sub000/services"
)

// razorpaySignatureHeader: HMAC-SHA256 сырого тела, подписанный webhook secret.
const razorpaySignatureHeader = "X-Razorpay-Signature"

type PaymentHandler struct {
	paymentService services.PaymentService
}

func NewPaymentHandler(ps services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// CreateOrder godoc
// @Summary Создать заказ Razorpay на взнос команды
// @Tags payments
// @Accept json
// @Produce json
// @Param body body services.CreateOrderInput true "ID команды"
// @Success 201 {object} services.OrderResult
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "Команда уже оплатила"
// @Router /payments/create-order [post]
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var input services.CreateOrderInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	order, err := h.paymentService.CreateOrder(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusCreated, order, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// VerifyPayment godoc
// @Summary Подтвердить оплату после Checkout
// @Description Проверяет HMAC-SHA256 над orderId|paymentId и отмечает команду оплатившей.
// @Tags payments
// @Accept json
// @Produce json
// @Param body body services.VerifyPaymentInput true "Поля, которые вернул Razorpay Checkout"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Неверная подпись"
// @Router /payments/verify [post]
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var input services.VerifyPaymentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.paymentService.VerifyPayment(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"verified": true, "team": team}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// @Summary Вернуть взнос
// @Tags payments
// @Accept json
// @Produce json
// @Param body body services.RefundInput true "paymentId или teamId"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /payments/refund [post]
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	var input services.RefundInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	refund, err := h.paymentService.RefundPayment(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"refund": refund}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Webhook принимает события Razorpay. Тело читается как есть: подпись считается по сырым байтам.
// @Summary Webhook Razorpay
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC-SHA256 тела"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string "Неверная подпись"
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxJSONBytes))
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequestResponse(w, r, errors.New("failed to read request body"))
		return
	}

	signature := r.Header.Get(razorpaySignatureHeader)
	if signature == "" {
		badRequestResponse(w, r, errors.New("missing "+razorpaySignatureHeader+" header"))
		return
	}

	if err := h.paymentService.HandleWebhook(r.Context(), body, signature); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"status": "ok"}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}
