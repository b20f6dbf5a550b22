package auth_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/auth"
)

// Mock repository for testing
type mockUserRepository struct {
	usersByEmail map[string]*auth.User
	usersByID    map[string]*auth.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		usersByEmail: make(map[string]*auth.User),
		usersByID:    make(map[string]*auth.User),
	}
}

func (m *mockUserRepository) add(u *auth.User) {
	m.usersByEmail[u.Email] = u
	m.usersByID[u.ID] = u
}

func (m *mockUserRepository) GetUserByEmail(email string) (*auth.User, error) {
	u, ok := m.usersByEmail[email]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func (m *mockUserRepository) GetUserByID(id string) (*auth.User, error) {
	u, ok := m.usersByID[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

var _ = Describe("AuthService", func() {
	var (
		service  *auth.Service
		userRepo *mockUserRepository
		tokenGen *auth.JWTTokenGenerator
	)

	BeforeEach(func() {
		userRepo = newMockUserRepository()
		tokenGen = auth.NewJWTTokenGenerator("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
		service = auth.NewService(userRepo, tokenGen, bcrypt.MinCost)

		hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
		Expect(err).ToNot(HaveOccurred())
		userRepo.add(&auth.User{
			ID:           "user-1",
			Email:        "supplier@acme.example",
			PasswordHash: string(hash),
			IsActive:     true,
		})
	})

	Describe("Authenticate", func() {
		Context("with valid credentials", func() {
			It("should issue an access and refresh token pair", func() {
				tokens, err := service.Authenticate(auth.LoginDTO{
					Email:    "supplier@acme.example",
					Password: "correct-horse",
				})

				Expect(err).ToNot(HaveOccurred())
				Expect(tokens.AccessToken).ToNot(BeEmpty())
				Expect(tokens.RefreshToken).ToNot(BeEmpty())

				claims, err := tokenGen.ValidateToken(tokens.AccessToken)
				Expect(err).ToNot(HaveOccurred())
				Expect(claims.UserID).To(Equal("user-1"))
			})
		})

		Context("with a wrong password", func() {
			It("should return invalid credentials", func() {
				_, err := service.Authenticate(auth.LoginDTO{
					Email:    "supplier@acme.example",
					Password: "wrong",
				})
				Expect(err).To(Equal(internal.ErrInvalidCredentials))
			})
		})

		Context("with an unknown email", func() {
			It("should return the same invalid credentials error", func() {
				_, err := service.Authenticate(auth.LoginDTO{
					Email:    "nobody@example.com",
					Password: "whatever",
				})
				Expect(err).To(Equal(internal.ErrInvalidCredentials))
			})
		})

		Context("with an inactive account", func() {
			It("should refuse even the right password", func() {
				userRepo.usersByEmail["supplier@acme.example"].IsActive = false

				_, err := service.Authenticate(auth.LoginDTO{
					Email:    "supplier@acme.example",
					Password: "correct-horse",
				})
				Expect(err).To(Equal(internal.ErrUserInactive))
			})
		})

		Context("with a missing field", func() {
			It("should fail validation", func() {
				_, err := service.Authenticate(auth.LoginDTO{Email: "supplier@acme.example"})

				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			})
		})
	})

	Describe("RefreshTokens", func() {
		It("should rotate the pair for a valid refresh token", func() {
			tokens, err := service.Authenticate(auth.LoginDTO{
				Email:    "supplier@acme.example",
				Password: "correct-horse",
			})
			Expect(err).ToNot(HaveOccurred())

			rotated, err := service.RefreshTokens(tokens.RefreshToken)

			Expect(err).ToNot(HaveOccurred())
			Expect(rotated.AccessToken).ToNot(BeEmpty())
			Expect(rotated.RefreshToken).ToNot(BeEmpty())
		})

		It("should reject garbage tokens", func() {
			_, err := service.RefreshTokens("not-a-jwt")
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})

		It("should reject tokens signed with a different secret", func() {
			other := auth.NewJWTTokenGenerator("other-access", "other-refresh", time.Minute, time.Hour)
			foreign, err := other.GenerateRefreshToken("user-1", "supplier@acme.example")
			Expect(err).ToNot(HaveOccurred())

			_, err = service.RefreshTokens(foreign)
			Expect(err).To(Equal(internal.ErrInvalidToken))
		})
	})

	Describe("GetUser", func() {
		It("should load the user by id", func() {
			u, err := service.GetUser("user-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(u.Email).To(Equal("supplier@acme.example"))
		})

		It("should map a miss to not found", func() {
			_, err := service.GetUser("ghost")

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeNotFound))
		})
	})
})
