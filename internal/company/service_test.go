package company_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/company"
)

func TestCompany(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Company Suite")
}

// Mock repository for testing
type mockCompanyRepository struct {
	companies   map[string]*company.Company
	createError error
}

func newMockCompanyRepository() *mockCompanyRepository {
	return &mockCompanyRepository{companies: make(map[string]*company.Company)}
}

func (m *mockCompanyRepository) Create(c *company.Company) error {
	if m.createError != nil {
		return m.createError
	}
	m.companies[c.ID] = c
	return nil
}

func (m *mockCompanyRepository) GetByID(id string) (*company.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, company.ErrCompanyNotFound
	}
	return c, nil
}

func (m *mockCompanyRepository) GetAll() ([]*company.Company, error) {
	var out []*company.Company
	for _, c := range m.companies {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCompanyRepository) Update(c *company.Company) error {
	if _, ok := m.companies[c.ID]; !ok {
		return company.ErrCompanyNotFound
	}
	m.companies[c.ID] = c
	return nil
}

var _ = Describe("CompanyService", func() {
	var (
		service *company.Service
		repo    *mockCompanyRepository
	)

	BeforeEach(func() {
		repo = newMockCompanyRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = company.NewService(repo, logger)
	})

	Describe("CreateCompany", func() {
		It("should create a tenant with its settings", func() {
			c, err := service.CreateCompany(company.CreateCompanyDTO{
				Name: "Acme Electronics",
				Settings: company.Settings{
					WebhookSigningEnabled: true,
					WebhookSigningSecret:  "secret",
				},
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(c.ID).ToNot(BeEmpty())
			Expect(c.Settings.WebhookSigningEnabled).To(BeTrue())
		})

		It("should reject an empty name", func() {
			_, err := service.CreateCompany(company.CreateCompanyDTO{})

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("should propagate repository failures", func() {
			repo.createError = errors.New("unique violation")

			_, err := service.CreateCompany(company.CreateCompanyDTO{Name: "Acme"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetCompany", func() {
		It("should map a repository miss to not found", func() {
			_, err := service.GetCompany("ghost")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeCompanyNotFound))
		})
	})

	Describe("UpdateSettings", func() {
		It("should replace settings wholesale", func() {
			c, err := service.CreateCompany(company.CreateCompanyDTO{
				Name:     "Acme",
				Settings: company.Settings{AIEnabled: true, WebhookSigningEnabled: true, WebhookSigningSecret: "s"},
			})
			Expect(err).ToNot(HaveOccurred())

			updated, err := service.UpdateSettings(c.ID, company.Settings{WebhookSigningEnabled: false})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Settings.AIEnabled).To(BeFalse())
			Expect(updated.Settings.WebhookSigningEnabled).To(BeFalse())
			Expect(updated.Settings.WebhookSigningSecret).To(BeEmpty())
		})
	})
})
