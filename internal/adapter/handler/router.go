package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const (
	readTimeout       = 5 * time.Minute
	readHeaderTimeout = 30 * time.Second
	writeTimeout      = 5 * time.Minute
)

type Server struct {
	Router *mux.Router
	server *http.Server
}

func SetupRoutes(h *HTTPHandler, ws *WSHandler) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products", h.SaveProduct).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)

	api.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", h.UpdateOrderStatus).Methods(http.MethodPatch)

	api.HandleFunc("/tables/{id}/orders", h.CreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/tables/{id}/close", h.CloseTable).Methods(http.MethodPost)
	api.HandleFunc("/tables/{id}/finalize", h.FinalizeTable).Methods(http.MethodPost)

	api.HandleFunc("/reports/sales", h.SalesReport).Methods(http.MethodGet)

	api.HandleFunc("/config", h.SaveConfig).Methods(http.MethodPut)
	api.HandleFunc("/config", h.ClearConfig).Methods(http.MethodDelete)

	router.HandleFunc("/ws/tables/{id}", ws.ServeTable).Methods(http.MethodGet)

	return &Server{Router: router}
}

func (svr *Server) Run(addr string) error {
	svr.server = &http.Server{
		Addr:              addr,
		Handler:           svr.Router,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	return svr.server.ListenAndServe()
}

func (svr *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return svr.server.Shutdown(ctx)
}
