package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedCatalog(db)
	seedCoupons(db)

	log.Println("Seeding completed successfully!")
}

func seedCatalog(db *sql.DB) {
	log.Println("Seeding catalog...")

	categories := []struct {
		Name string
		Slug string
	}{
		{"Snakes", "snakes"},
		{"Terrariums", "terrariums"},
		{"Feeding", "feeding"},
	}
	for _, c := range categories {
		if _, err := db.Exec(`
			INSERT INTO categories (name, slug) VALUES ($1, $2)
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name`,
			c.Name, c.Slug); err != nil {
			log.Fatalf("Failed to seed category %s: %v", c.Slug, err)
		}
	}

	// Prices are in the base currency, weights in grams.
	products := []struct {
		Category    string
		Name        string
		Slug        string
		Description string
		Price       string
		WeightG     int
	}{
		{"snakes", "Ball Python", "ball-python", "Calm and easy to keep.", "12000.00", 1500},
		{"snakes", "Corn Snake", "corn-snake", "A classic starter snake.", "7500.00", 900},
		{"snakes", "King Snake", "king-snake", "Striking banded pattern.", "9800.00", 1100},
		{"snakes", "Milk Snake", "milk-snake", "Vivid tricolour rings.", "8600.00", 800},
		{"terrariums", "Glass Terrarium 60L", "glass-terrarium-60l", "Front-opening, mesh top.", "15500.00", 18000},
		{"terrariums", "Glass Terrarium 120L", "glass-terrarium-120l", "For adult snakes.", "24900.00", 32000},
		{"terrariums", "Heat Mat 14W", "heat-mat-14w", "Thermostat-ready heat mat.", "2100.00", 400},
		{"feeding", "Frozen Mice 10-pack", "frozen-mice-10", "Adult feeder mice.", "1200.00", 350},
		{"feeding", "Water Bowl", "water-bowl", "Heavy ceramic, tip-proof.", "900.00", 700},
	}
	for _, p := range products {
		if _, err := db.Exec(`
			INSERT INTO products (category_id, name, slug, description, price, weight_g, available)
			VALUES ((SELECT id FROM categories WHERE slug = $1), $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (slug) DO UPDATE
			SET name = EXCLUDED.name, description = EXCLUDED.description,
			    price = EXCLUDED.price, weight_g = EXCLUDED.weight_g`,
			p.Category, p.Name, p.Slug, p.Description, p.Price, p.WeightG); err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Slug, err)
		}
	}
}

func seedCoupons(db *sql.DB) {
	log.Println("Seeding coupons...")

	coupons := []struct {
		Code    string
		Percent int
		Days    int
	}{
		{"WELCOME10", 10, 365},
		{"SUMMER15", 15, 90},
	}
	for _, c := range coupons {
		if _, err := db.Exec(`
			INSERT INTO coupons (code, valid_from, valid_to, discount_percent, active)
			VALUES ($1, now(), now() + make_interval(days => $2), $3, TRUE)
			ON CONFLICT (code) DO UPDATE
			SET valid_to = EXCLUDED.valid_to, discount_percent = EXCLUDED.discount_percent, active = TRUE`,
			c.Code, c.Days, c.Percent); err != nil {
			log.Fatalf("Failed to seed coupon %s: %v", c.Code, err)
		}
	}
}
