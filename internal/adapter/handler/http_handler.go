package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vlima/comanda/internal/adapter/report"
	"github.com/vlima/comanda/internal/config"
	"github.com/vlima/comanda/internal/core/domain"
	"github.com/vlima/comanda/internal/core/service"
)

type HTTPHandler struct {
	svc      *service.POSService
	reporter *report.Generator
	keystore config.Keystore
}

func NewHTTPHandler(svc *service.POSService, reporter *report.Generator, keystore config.Keystore) *HTTPHandler {
	return &HTTPHandler{svc: svc, reporter: reporter, keystore: keystore}
}

type errorResponse struct {
	Error string `json:"error"`
}

type createOrderRequest struct {
	Items       []service.OrderLine `json:"items"`
	Observation string              `json:"observation"`
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type closeTableRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type salesReportResponse struct {
	Summary service.SalesSummary `json:"summary"`
	Report  string               `json:"report"`
}

type configResponse struct {
	RestartRequired bool `json:"restart_required"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.GetProductsOnce(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	saved, err := h.svc.SaveProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.GetOrdersOnce(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	tableID, ok := tableIDVar(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), tableID, req.Items, req.Observation)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.svc.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) CloseTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := tableIDVar(w, r)
	if !ok {
		return
	}

	var req closeTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.svc.RequestTableClose(r.Context(), tableID, req.PaymentMethod); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) FinalizeTable(w http.ResponseWriter, r *http.Request) {
	tableID, ok := tableIDVar(w, r)
	if !ok {
		return
	}

	if err := h.svc.FinalizeTable(r.Context(), tableID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) SalesReport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.SalesReport(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, salesReportResponse{
		Summary: summary,
		Report:  h.reporter.Summarize(r.Context(), summary),
	})
}

func (h *HTTPHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var c config.Config
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := config.Save(h.keystore, c); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{RestartRequired: true})
}

func (h *HTTPHandler) ClearConfig(w http.ResponseWriter, r *http.Request) {
	if err := config.Clear(h.keystore); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configResponse{RestartRequired: true})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrPayloadTooLarge):
		// Distinct from generic failure so the UI can tell staff the image,
		// not the save, is the problem.
		status = http.StatusRequestEntityTooLarge
		message = "imagem muito grande"
	case errors.Is(err, service.ErrInsufficientStock):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrProductNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrNoPaymentMethod):
		status = http.StatusBadRequest
		message = err.Error()
	default:
		logrus.WithError(err).Error("request failed")
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func tableIDVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	tableID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || tableID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid table id"})
		return 0, false
	}
	return tableID, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
