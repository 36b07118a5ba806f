package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointments/internal/appointment"
	"github.com/hackgods/doctor-appointments/internal/auth"
	"github.com/hackgods/doctor-appointments/internal/config"
	"github.com/hackgods/doctor-appointments/internal/db"
)

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

type seededUser struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Name     string
	Role     appointment.Role
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	doctors := flag.Int("doctors", 20, "number of doctors to create")
	patients := flag.Int("patients", 500, "number of patients to create")
	tokens := flag.Int("tokens", 3, "dev tokens to print per role")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Println("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	seededDoctors, err := seedDoctors(context.Background(), pool, *doctors)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	seededPatients, err := seedPatients(context.Background(), pool, *patients)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")

	printTokens(cfg.JWTSecret, *tokenTTL, seededDoctors, *tokens)
	printTokens(cfg.JWTSecret, *tokenTTL, seededPatients, *tokens)
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]seededUser, error) {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	result := make([]seededUser, 0, count)
	for i := 0; i < count; i++ {
		u := seededUser{
			ID:       uuid.New(),
			DoctorID: uuid.New(),
			Name:     "Dr. " + gofakeit.Name(),
			Role:     appointment.RoleDoctor,
		}
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		fee := float64(gofakeit.Number(20, 200))

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, phone_number, role, created_at)
			VALUES ($1, $2, $3, $4, 'doctor', now())
		`, u.ID, u.Name, uniqueEmail(), gofakeit.Phone())
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, user_id, specialization, consultation_fee, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, u.DoctorID, u.ID, spec, fee)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return result, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]seededUser, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	result := make([]seededUser, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			u := seededUser{ID: uuid.New(), Name: gofakeit.Name(), Role: appointment.RolePatient}

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, phone_number, role, created_at)
				VALUES ($1, $2, $3, $4, 'patient', now())
			`, u.ID, u.Name, uniqueEmail(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			result = append(result, u)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return result, nil
}

// uniqueEmail avoids collisions with rows from earlier seed runs.
func uniqueEmail() string {
	return fmt.Sprintf("%s.%s@%s", gofakeit.Username(), uuid.NewString()[:8], gofakeit.DomainName())
}

func printTokens(secret string, ttl time.Duration, users []seededUser, n int) {
	if n > len(users) {
		n = len(users)
	}
	for _, u := range users[:n] {
		tok, err := auth.IssueToken(secret, u.ID, u.Role, ttl)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		if u.Role == appointment.RoleDoctor {
			fmt.Printf("%-8s %s doctor_id=%s\n  %s\n", u.Role, u.Name, u.DoctorID, tok)
			continue
		}
		fmt.Printf("%-8s %s\n  %s\n", u.Role, u.Name, tok)
	}
}
