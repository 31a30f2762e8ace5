// Command seed loads a starter set of restaurants and menus and creates the
// first admin account. Running it twice skips what already exists.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"ms-lunch/internal/auth"
	authdb "ms-lunch/internal/auth/db"
	"ms-lunch/internal/config"
	"ms-lunch/internal/database"
	"ms-lunch/internal/database/migrations"
	"ms-lunch/internal/logger"
	"ms-lunch/internal/models"
	"ms-lunch/internal/restaurant"
	restdb "ms-lunch/internal/restaurant/db"
	"ms-lunch/internal/utils"
)

type seedRestaurant struct {
	input restaurant.RestaurantInput
	menu  []restaurant.MenuItemInput
}

func item(name, category, price string, tags ...string) restaurant.MenuItemInput {
	return restaurant.MenuItemInput{
		Name:     name,
		Category: category,
		Price:    decimal.RequireFromString(price),
		Tags:     tags,
	}
}

var starterRestaurants = []seedRestaurant{
	{
		input: restaurant.RestaurantInput{Name: "Ichiran Corner", Cuisine: "Japanese", Description: "Ramen and rice bowls"},
		menu: []restaurant.MenuItemInput{
			item("Tonkotsu Ramen", "Noodles", "12.00"),
			item("Miso Ramen", "Noodles", "11.50", "vegetarian"),
			item("Chicken Katsu Don", "Rice", "10.50"),
			item("Gyoza (6)", "Sides", "5.00"),
		},
	},
	{
		input: restaurant.RestaurantInput{Name: "Bombay Kitchen", Cuisine: "Indian", Description: "Curries, dal and tandoor"},
		menu: []restaurant.MenuItemInput{
			item("Butter Chicken", "Curry", "11.00", "spicy"),
			item("Tarka Dal", "Curry", "7.00", "vegan"),
			item("Garlic Naan", "Bread", "2.50", "vegetarian"),
			item("Mango Lassi", "Drinks", "3.50", "vegetarian"),
		},
	},
	{
		input: restaurant.RestaurantInput{Name: "Green Bowl", Cuisine: "Salads", Description: "Build your own bowls"},
		menu: []restaurant.MenuItemInput{
			item("Falafel Bowl", "Bowls", "9.50", "vegan"),
			item("Chicken Caesar", "Salads", "9.00"),
			item("Halloumi Wrap", "Wraps", "8.50", "vegetarian"),
		},
	},
}

func seedRestaurants(ctx context.Context, svc *restaurant.Service, log *logger.Logger) error {
	existing, err := svc.ListRestaurants(ctx, false)
	if err != nil {
		return err
	}
	names := make(map[string]bool, len(existing))
	for _, r := range existing {
		names[r.Name] = true
	}

	for _, s := range starterRestaurants {
		if names[s.input.Name] {
			log.Info("SEED", fmt.Sprintf("Restaurant %q already present", s.input.Name))
			continue
		}
		created, err := svc.CreateRestaurant(ctx, s.input)
		if err != nil {
			return fmt.Errorf("create restaurant %q: %w", s.input.Name, err)
		}
		items, err := svc.BulkUpload(ctx, created.ID, s.menu)
		if err != nil {
			return fmt.Errorf("upload menu of %q: %w", s.input.Name, err)
		}
		log.Info("SEED", fmt.Sprintf("Created %s with %d menu items", created.Name, len(items)))
	}
	return nil
}

func seedAdmin(ctx context.Context, svc *auth.Service, users *authdb.DB, email, password string, log *logger.Logger) error {
	user, err := svc.Register(ctx, email, password, "Lunch Admin")
	if utils.CodeOf(err) == "EMAIL_ALREADY_EXISTS" {
		user, err = users.GetUserByEmail(ctx, email)
	}
	if err != nil {
		return fmt.Errorf("register admin: %w", err)
	}
	if user == nil {
		return errors.New("admin user vanished after registration")
	}
	if user.Role == models.RoleAdmin {
		log.Info("SEED", fmt.Sprintf("Admin %s already present", email))
		return nil
	}
	if _, err := users.UpdateRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	log.LogSecurity("ROLE_CHANGE", fmt.Sprintf("Seeded admin %s", email))
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()
	bunDB, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.Driver == "sqlite" {
		err = database.CreateSchema(ctx, bunDB)
	} else {
		err = migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.Database.MigrationsDir}, log).Up()
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to prepare schema: %v", err))
	}

	if err := seedRestaurants(ctx, restaurant.NewService(&restdb.DB{Bun: bunDB}, log), log); err != nil {
		log.Fatal("SEED", err.Error())
	}

	email := os.Getenv("SEED_ADMIN_EMAIL")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Warn("SEED", "SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD not set, skipping admin user")
		return
	}
	users := &authdb.DB{Bun: bunDB}
	authService := auth.NewService(users, nil, nil, cfg.Auth.AllowedEmailDomain, log)
	if err := seedAdmin(ctx, authService, users, email, password, log); err != nil {
		log.Fatal("SEED", err.Error())
	}
	log.Info("SEED", "✅ Seed complete")
}
