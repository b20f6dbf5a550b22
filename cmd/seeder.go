package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal/auth"
	"github.com/norruva/dpp-service/internal/company"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample tenants and users for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"audit_log", "webhooks", "products", "users", "companies"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)

		acme := seedCompany(db, "Acme Electronics", company.Settings{WebhookSigningEnabled: true, WebhookSigningSecret: "dev-webhook-signing-secret-acme"})
		greenloop := seedCompany(db, "GreenLoop Recycling", company.Settings{})

		seedUser(db, "admin@norruva.dev", "Platform Admin", acme.ID, string(hash), auth.RoleAdmin)
		seedUser(db, "supplier@acme.dev", "Acme Supplier", acme.ID, string(hash), auth.RoleSupplier)
		seedUser(db, "auditor@norruva.dev", "Passport Auditor", acme.ID, string(hash), auth.RoleAuditor)
		seedUser(db, "compliance@norruva.dev", "Compliance Manager", acme.ID, string(hash), auth.RoleComplianceManager)
		seedUser(db, "recycler@greenloop.dev", "GreenLoop Recycler", greenloop.ID, string(hash), auth.RoleRecycler)
		seedUser(db, "customs@norruva.dev", "Customs Officer", acme.ID, string(hash), auth.RoleCustomsOfficer)
	},
}

func seedCompany(db *gorm.DB, name string, settings company.Settings) *company.Company {
	var existing company.Company
	if err := db.Where("name = ?", name).First(&existing).Error; err == nil {
		fmt.Printf("company %q already exists\n", name)
		return &existing
	}

	c := &company.Company{
		ID:       uuid.New().String(),
		Name:     name,
		Settings: settings,
	}
	if err := db.Create(c).Error; err != nil {
		log.Fatalf("failed to seed company %q: %v", name, err)
	}
	fmt.Printf("Seeded company: %s\n", name)
	return c
}

func seedUser(db *gorm.DB, email, name, companyID, passwordHash string, roles ...auth.Role) {
	var existing auth.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		fmt.Printf("user %s already exists\n", email)
		return
	}

	u := &auth.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CompanyID:    companyID,
		Roles:        roles,
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		log.Fatalf("failed to seed user %s: %v", email, err)
	}
	fmt.Printf("Seeded user: %s (%v)\n", email, roles)
}
