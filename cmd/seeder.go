package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/core/role"
	"github.com/frahmantamala/ward-census/internal/user"
	userpg "github.com/frahmantamala/ward-census/internal/user/postgres"
	"github.com/frahmantamala/ward-census/internal/ward"
	wardpg "github.com/frahmantamala/ward-census/internal/ward/postgres"
	"github.com/frahmantamala/ward-census/pkg/logger"
	"github.com/spf13/cobra"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with wards and starter accounts",
	Long:  `Seed the database with the hospital wards and one account per role for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gdb, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx := context.Background()
		lg := logger.LoggerWrapper()

		wards := wardpg.NewWardRepository(gdb)
		for i, w := range seedWards {
			w.SortOrder = i + 1
			w.IsActive = true
			if err := wards.Upsert(ctx, &w); err != nil {
				log.Fatalf("failed to upsert ward %s: %v", w.ID, err)
			}
			fmt.Printf("Seeded ward: %s (%s)\n", w.ID, w.Name)
		}

		// sessions are not touched when seeding, so no terminator is needed
		users := user.NewService(userpg.NewUserRepository(gdb), nil, cfg.Security.BCryptCost, lg)
		system := &internal.Principal{Username: "seeder", Role: role.Developer}

		for _, acc := range seedAccounts {
			acc.Password = seedPassword
			if _, err := users.Create(ctx, system, acc); err != nil {
				var appErr *internal.AppError
				if errors.As(err, &appErr) && appErr.StatusCode == http.StatusConflict {
					fmt.Println("user already exists:", acc.Username)
					continue
				}
				log.Fatalf("failed to create user %s: %v", acc.Username, err)
			}
			fmt.Printf("Seeded %s user: %s\n", acc.Role, acc.Username)
		}
	},
}

var seedWards = []ward.Ward{
	{ID: "MED1", Name: "Medical Ward 1", BedCapacity: 30},
	{ID: "MED2", Name: "Medical Ward 2", BedCapacity: 30},
	{ID: "SUR1", Name: "Surgical Ward 1", BedCapacity: 28},
	{ID: "ICU", Name: "Intensive Care Unit", BedCapacity: 12},
	{ID: "PED", Name: "Pediatric Ward", BedCapacity: 20},
	{ID: "OBG", Name: "Obstetrics Ward", BedCapacity: 24},
}

var seedAccounts = []user.CreateUserDTO{
	{Username: "nurse.med1", FirstName: "Nina", LastName: "Ward", Role: role.Nurse, Wards: []string{"MED1"}},
	{Username: "nurse.icu", FirstName: "Ian", LastName: "Care", Role: role.Nurse, Wards: []string{"ICU"}},
	{Username: "approver", FirstName: "Ada", LastName: "Review", Role: role.Approver, Wards: []string{"MED1", "MED2", "SUR1"}},
	{Username: "admin", FirstName: "Sam", LastName: "Admin", Role: role.Admin},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "password given to every seeded account")
}
