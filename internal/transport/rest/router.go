package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/norruva/dpp-service/internal/audit"
	"github.com/norruva/dpp-service/internal/auth"
	"github.com/norruva/dpp-service/internal/company"
	"github.com/norruva/dpp-service/internal/metrics"
	"github.com/norruva/dpp-service/internal/product"
	"github.com/norruva/dpp-service/internal/transport/middleware"
	"github.com/norruva/dpp-service/internal/transport/swagger"
	"github.com/norruva/dpp-service/internal/webhook"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth    *auth.Handler
	Product *product.Handler
	Company *company.Handler
	Webhook *webhook.Handler
	Audit   *audit.Handler
}

// Options carries router-level configuration.
type Options struct {
	AllowedOrigins string
	MetricsEnabled bool
	MetricsPath    string
	Cache          Pinger
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, rbac *auth.RBACAuthorization, opts Options, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, opts.Cache)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// OpenAPI spec and Swagger UI live outside the API prefix.
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	if opts.MetricsEnabled {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		// Public passport view: no auth, published passports only.
		r.Get("/passports/{id}", h.Product.GetPublicPassport)

		// Protected routes
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Route("/products", func(er chi.Router) {
				er.Get("/", h.Product.ListProducts)
				er.Get("/{id}", h.Product.GetProduct)

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductCreate))
					mr.Post("/", h.Product.CreateProduct)
					mr.Post("/bulk", h.Product.BulkCreate)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductEdit))
					mr.Put("/{id}", h.Product.UpdateProduct)
					mr.Post("/{id}/custody", h.Product.AddCustodyStep)
					mr.Post("/{id}/ownership/transfer", h.Product.TransferOwnership)
					mr.Patch("/{id}/archive", h.Product.ArchiveProduct)
					mr.Post("/bulk/archive", h.Product.BulkArchive)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductDelete))
					mr.Delete("/{id}", h.Product.DeleteProduct)
					mr.Post("/bulk/delete", h.Product.BulkDelete)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductSubmit))
					mr.Patch("/{id}/submit", h.Product.SubmitForReview)
					mr.Post("/bulk/submit", h.Product.BulkSubmit)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductApprove))
					mr.Patch("/{id}/approve", h.Product.ApprovePassport)
					mr.Post("/bulk/anchor", h.Product.BulkAnchor)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductReject))
					mr.Patch("/{id}/reject", h.Product.RejectPassport)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductResolve))
					mr.Patch("/{id}/resolve", h.Product.ResolveComplianceIssue)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductOverride))
					mr.Patch("/{id}/override-verification", h.Product.OverrideVerification)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductGenerateZKP))
					mr.Post("/{id}/proof", h.Product.GenerateZKProof)
					mr.Post("/{id}/proof/verify", h.Product.VerifyZKProof)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductCustomsInspect))
					mr.Post("/{id}/customs-inspection", h.Product.PerformCustomsInspection)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductRecycle))
					mr.Patch("/{id}/recycle", h.Product.MarkAsRecycled)
				})

				er.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionProductServiceRecord))
					mr.Post("/{id}/service-records", h.Product.AddServiceRecord)
				})
			})

			pr.Route("/companies", func(cr chi.Router) {
				cr.Get("/{id}", h.Company.Get)

				cr.Group(func(mr chi.Router) {
					mr.Use(rbac.Require(auth.ActionCompanyManage))
					mr.Post("/", h.Company.Create)
					mr.Put("/{id}/settings", h.Company.UpdateSettings)
				})
			})

			pr.Route("/webhooks", func(wr chi.Router) {
				wr.Use(rbac.Require(auth.ActionWebhookManage))
				wr.Post("/", h.Webhook.Register)
				wr.Get("/", h.Webhook.List)
				wr.Get("/{id}", h.Webhook.Get)
				wr.Put("/{id}", h.Webhook.Update)
				wr.Delete("/{id}", h.Webhook.Delete)
			})

			pr.Group(func(ar chi.Router) {
				ar.Use(rbac.Require(auth.ActionAuditView))
				ar.Get("/audit-log", h.Audit.List)
			})
		})
	})
}
