package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/forms"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Pediatrics",
	"ENT",
}

var timezones = []string{"UTC", "Asia/Dubai", "Europe/London", "Asia/Karachi"}

var serviceFees = map[string]int64{
	"consultation": 15000,
	"follow-up":    8000,
	"vaccination":  5000,
}

type seeded struct {
	clinicID    uuid.UUID
	doctors     []uuid.UUID
	receptionID uuid.UUID
	patients    []uuid.UUID
}

func main() {
	clinics := flag.Int("clinics", 3, "number of clinics")
	doctors := flag.Int("doctors", 5, "doctors per clinic")
	patients := flag.Int("patients", 500, "patients per clinic")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("seed starting", zap.Int("clinics", *clinics))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	repo := clinic.NewPgRepository(pool)
	templates := forms.NewPgTemplates(pool)

	for i := 0; i < *clinics; i++ {
		s, err := seedClinic(ctx, pool, faker, *doctors, *patients)
		if err != nil {
			logger.Fatal("seed clinic", zap.Error(err))
		}
		if err := repo.SaveRules(ctx, s.clinicID, bookingRules(s.doctors)); err != nil {
			logger.Fatal("seed booking config", zap.Error(err))
		}
		if err := templates.Insert(ctx, intakeTemplate(s.clinicID, faker)); err != nil {
			logger.Fatal("seed form template", zap.Error(err))
		}

		token, err := api.SignToken(cfg.JWTSecret, tenancy.Session{
			UserID:   s.receptionID,
			ClinicID: s.clinicID,
			Roles:    []tenancy.Role{tenancy.RoleReception},
		}, 24*time.Hour)
		if err != nil {
			logger.Fatal("sign token", zap.Error(err))
		}

		logger.Info("clinic seeded",
			zap.String("clinic_id", s.clinicID.String()),
			zap.String("doctor_id", s.doctors[0].String()),
			zap.String("patient_id", s.patients[0].String()),
			zap.String("reception_token", token),
		)
	}

	logger.Info("seed complete")
}

func seedClinic(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, doctors, patients int) (seeded, error) {
	s := seeded{clinicID: uuid.New(), receptionID: uuid.New()}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO clinics (id, name, timezone, modules)
			VALUES ($1, $2, $3, $4)
		`, s.clinicID, faker.Company()+" Clinic", timezones[faker.Number(0, len(timezones)-1)],
			[]string{
				string(clinic.ModuleLaboratory),
				string(clinic.ModulePharmacy),
				string(clinic.ModuleBilling),
			})
		if err != nil {
			return fmt.Errorf("insert clinic: %w", err)
		}

		if err := insertStaff(ctx, tx, s.clinicID, s.receptionID, faker.Name(), tenancy.RoleReception); err != nil {
			return err
		}
		for i := 0; i < doctors; i++ {
			id := uuid.New()
			if err := insertStaff(ctx, tx, s.clinicID, id, "Dr. "+faker.Name(), tenancy.RoleDoctor); err != nil {
				return err
			}
			s.doctors = append(s.doctors, id)
		}
		for _, role := range []tenancy.Role{tenancy.RoleLaboratory, tenancy.RolePharmacy, tenancy.RoleClinicAdmin} {
			if err := insertStaff(ctx, tx, s.clinicID, uuid.New(), faker.Name(), role); err != nil {
				return err
			}
		}

		for i := 0; i < patients; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, clinic_id, name, email, phone)
				VALUES ($1, $2, $3, $4, $5)
			`, id, s.clinicID, faker.Name(), faker.Email(), faker.Phone())
			if err != nil {
				return fmt.Errorf("insert patient: %w", err)
			}
			s.patients = append(s.patients, id)
		}
		return nil
	})
	return s, err
}

func insertStaff(ctx context.Context, tx pgx.Tx, clinicID, id uuid.UUID, name string, role tenancy.Role) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO staff (id, clinic_id, name, email, roles)
		VALUES ($1, $2, $3, $4, $5)
	`, id, clinicID, name, gofakeit.Email(), []string{string(role)})
	if err != nil {
		return fmt.Errorf("insert staff: %w", err)
	}
	return nil
}

func bookingRules(doctors []uuid.UUID) availability.RuleSet {
	rules := availability.RuleSet{
		Enabled: true,
		Doctors: doctors,
		OffDays: []time.Weekday{time.Friday},
		Fees:    map[string]int64{},
	}
	for service, fee := range serviceFees {
		rules.Services = append(rules.Services, service)
		rules.Fees[service] = fee
	}
	for h := 9; h < 17; h++ {
		rules.Slots = append(rules.Slots,
			availability.Slot(fmt.Sprintf("%02d:00", h)),
			availability.Slot(fmt.Sprintf("%02d:30", h)),
		)
	}
	normalized, _ := rules.Normalize()
	return normalized
}

func intakeTemplate(clinicID uuid.UUID, faker *gofakeit.Faker) forms.Template {
	return forms.Template{
		ID:        uuid.New(),
		ClinicID:  clinicID,
		Name:      "General intake",
		Specialty: specialties[faker.Number(0, len(specialties)-1)],
		Fields: []forms.Field{
			{ID: "complaint", Type: forms.FieldTextarea, Label: "Chief complaint", Required: true},
			{ID: "temperature", Type: forms.FieldNumber, Label: "Temperature (C)"},
			{ID: "severity", Type: forms.FieldDropdown, Label: "Severity", Required: true, Options: []string{"mild", "moderate", "severe"}},
			{ID: "smoker", Type: forms.FieldCheckbox, Label: "Smoker"},
			{ID: "onset", Type: forms.FieldDate, Label: "Onset date"},
		},
	}
}
