package company_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/norruva/dpp-service/internal/auth"
	"github.com/norruva/dpp-service/internal/company"
)

type stubCompanyService struct {
	companies map[string]*company.Company
}

func (s *stubCompanyService) CreateCompany(dto company.CreateCompanyDTO) (*company.Company, error) {
	c := &company.Company{ID: "new-co", Name: dto.Name, Settings: dto.Settings}
	s.companies[c.ID] = c
	return c, nil
}

func (s *stubCompanyService) GetCompany(id string) (*company.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return nil, company.ErrCompanyNotFound
	}
	return c, nil
}

func (s *stubCompanyService) UpdateSettings(id string, settings company.Settings) (*company.Company, error) {
	c, ok := s.companies[id]
	if !ok {
		return nil, company.ErrCompanyNotFound
	}
	c.Settings = settings
	return c, nil
}

var _ = Describe("CompanyHandler", func() {
	var (
		handler *company.Handler
		router  *chi.Mux

		admin    *auth.User
		member   *auth.User
		outsider *auth.User
	)

	get := func(id string, user *auth.User) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/companies/"+id, nil)
		if user != nil {
			req = req.WithContext(auth.ContextWithUser(req.Context(), user))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		service := &stubCompanyService{companies: map[string]*company.Company{
			"acme": {
				ID:   "acme",
				Name: "Acme Electronics",
				Settings: company.Settings{
					WebhookSigningEnabled: true,
					WebhookSigningSecret:  "super-secret-hmac-key",
				},
			},
		}}
		handler = company.NewHandler(service)

		router = chi.NewRouter()
		router.Get("/companies/{id}", handler.Get)

		admin = &auth.User{ID: "u-admin", CompanyID: "norruva", Roles: []auth.Role{auth.RoleAdmin}, IsActive: true}
		member = &auth.User{ID: "u-member", CompanyID: "acme", Roles: []auth.Role{auth.RoleSupplier}, IsActive: true}
		outsider = &auth.User{ID: "u-outsider", CompanyID: "other-co", Roles: []auth.Role{auth.RoleSupplier}, IsActive: true}
	})

	Describe("Get", func() {
		It("should never serialize the webhook signing secret", func() {
			rec := get("acme", admin)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"webhook_signing_enabled":true`))
			Expect(rec.Body.String()).ToNot(ContainSubstring("super-secret-hmac-key"))
			Expect(rec.Body.String()).ToNot(ContainSubstring("webhook_signing_secret"))
		})

		It("should let a member read their own company", func() {
			rec := get("acme", member)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"name":"Acme Electronics"`))
		})

		It("should mask a foreign company as not found for non-global callers", func() {
			rec := get("acme", outsider)

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(rec.Body.String()).To(ContainSubstring("COMPANY_NOT_FOUND"))
			Expect(rec.Body.String()).ToNot(ContainSubstring("super-secret-hmac-key"))
		})

		It("should require authentication", func() {
			rec := get("acme", nil)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
