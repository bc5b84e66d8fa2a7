package server

import (
	"net/http"

	"github.com/tarisrizki/provisioning-telkom/internal/auth"
)

func SetupRoutes(svc *Service, guard *auth.Guard) http.Handler {
	mux := http.NewServeMux()
	user := func(h http.HandlerFunc) http.Handler { return guard.RequireUser(h) }
	admin := func(h http.HandlerFunc) http.Handler { return guard.RequireAdmin(h) }

	mux.HandleFunc("GET /healthz", svc.Healthz)

	mux.HandleFunc("POST /api/login", svc.Login)
	mux.HandleFunc("POST /api/logout", svc.Logout)
	mux.Handle("GET /api/me", user(svc.Me))
	mux.Handle("PUT /api/me", user(svc.UpdateMe))

	mux.Handle("GET /api/work-orders", user(svc.ListWorkOrders))
	mux.Handle("GET /api/work-orders/{id}", user(svc.GetWorkOrder))
	mux.Handle("PATCH /api/work-orders/{id}", admin(svc.PatchWorkOrder))
	mux.Handle("DELETE /api/work-orders", admin(svc.PurgeWorkOrders))

	mux.Handle("POST /api/uploads", user(svc.UploadFile))
	mux.Handle("GET /api/uploads", user(svc.ListUploads))

	mux.Handle("GET /api/stats", user(svc.GetStats))
	mux.Handle("GET /api/stats/top", user(svc.GetTopItems))
	mux.Handle("GET /api/stats/monthly", user(svc.GetMonthly))
	mux.Handle("GET /api/reports/export", user(svc.ExportReport))

	mux.Handle("GET /api/users", admin(svc.ListUsers))
	mux.Handle("POST /api/users", admin(svc.CreateUser))
	mux.Handle("PUT /api/users/{id}", admin(svc.UpdateUser))
	mux.Handle("DELETE /api/users/{id}", admin(svc.DeleteUser))

	return instrument(mux, svc.logger, svc.metrics)
}
