package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type seedFile struct {
	Dealerships []seedDealership `json:"dealerships"`
}

type seedDealership struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PhoneNumber string     `json:"phone_number"`
	Email       string     `json:"email"`
	Hours       string     `json:"hours"`
	Personality string     `json:"personality"`
	Timezone    string     `json:"timezone"`
	Users       []seedUser `json:"users"`
}

type seedUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/seed-dealerships.go <dealerships-file.json>")
		fmt.Println("Example: go run scripts/seed-dealerships.go testdata/sample-dealerships.json")
		os.Exit(1)
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		fmt.Println("DATABASE_URL is required")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("error reading file: %v\n", err)
		os.Exit(1)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		fmt.Printf("error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		fmt.Printf("error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	for _, d := range seed.Dealerships {
		_, err := pool.Exec(ctx, `
			INSERT INTO dealerships (id, name, phone_number, email, hours, personality, timezone)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				phone_number = EXCLUDED.phone_number,
				email = EXCLUDED.email,
				hours = EXCLUDED.hours,
				personality = EXCLUDED.personality,
				timezone = EXCLUDED.timezone`,
			d.ID, d.Name, d.PhoneNumber, d.Email, d.Hours, d.Personality, d.Timezone,
		)
		if err != nil {
			fmt.Printf("error seeding dealership %s: %v\n", d.ID, err)
			os.Exit(1)
		}
		fmt.Printf("seeded dealership %s (%s)\n", d.Name, d.ID)

		for _, u := range d.Users {
			_, err := pool.Exec(ctx, `
				INSERT INTO dealership_users (id, dealership_id, name, phone, email, role, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					phone = EXCLUDED.phone,
					email = EXCLUDED.email,
					role = EXCLUDED.role,
					active = EXCLUDED.active`,
				u.ID, d.ID, u.Name, u.Phone, u.Email, u.Role, u.Active,
			)
			if err != nil {
				fmt.Printf("error seeding user %s: %v\n", u.ID, err)
				os.Exit(1)
			}
			fmt.Printf("  seeded user %s (%s)\n", u.Name, u.Role)
		}
	}

	fmt.Println("done")
}
