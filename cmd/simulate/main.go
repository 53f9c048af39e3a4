package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Racers       int
	BookingRatio float64
	ReviewRatio  float64
	PatientLimit int
	ClinicID     string
	PostgresDSN  string
	JWTSecret    string
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeError
)

// DataPool is the clinic the simulation books against.
type DataPool struct {
	Clinic   *clinic.Clinic
	Patients []uuid.UUID
	Token    string

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Metrics struct {
	Race    OperationMetrics
	Booking OperationMetrics
	Review  OperationMetrics
	ListDay OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  *zap.Logger
	metrics Metrics
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		_, _ = os.Stderr.WriteString("invalid config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New("dev", "info")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Int("racers", cfg.Racers),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}

	logger.Info("data loaded",
		zap.String("clinic_id", dataPool.Clinic.ID.String()),
		zap.Int("patients", len(dataPool.Patients)),
		zap.Int("doctors", len(dataPool.Clinic.Rules.Doctors)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	if err := sim.Race(context.Background()); err != nil {
		logger.Error("race phase failed", zap.Error(err))
	}
	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, err
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Racers:       getInt("SIM_RACERS", 50),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ReviewRatio:  getFloat("SIM_REVIEW_RATIO", 0.2),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		ClinicID:     os.Getenv("SIM_CLINIC_ID"),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
	}

	total := cfg.BookingRatio + cfg.ReviewRatio
	if total > 1 {
		cfg.BookingRatio /= total
		cfg.ReviewRatio /= total
	}

	if cfg.Workers <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Racers <= 1 {
		return SimConfig{}, fmt.Errorf("SIM_RACERS must be > 1")
	}
	if cfg.Duration <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	}
	return cfg, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	clinicID, err := pickClinic(ctx, pool, cfg.ClinicID)
	if err != nil {
		return nil, err
	}

	c, err := clinic.LoadActive(ctx, clinic.NewPgRepository(pool), clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	if !c.Rules.Enabled || len(c.Rules.Doctors) == 0 || len(c.Rules.Slots) == 0 || len(c.Rules.Services) == 0 {
		return nil, fmt.Errorf("clinic %s has no usable booking configuration", clinicID)
	}

	rows, err := pool.Query(ctx, `
		SELECT id FROM patients WHERE clinic_id = $1 LIMIT $2
	`, clinicID, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	dataPool := &DataPool{Clinic: c}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}

	dataPool.Token, err = api.SignToken(cfg.JWTSecret, tenancy.Session{
		UserID:   uuid.New(),
		ClinicID: clinicID,
		Roles:    []tenancy.Role{tenancy.RoleReception},
	}, cfg.Duration+time.Hour)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return dataPool, nil
}

func pickClinic(ctx context.Context, pool *pgxpool.Pool, raw string) (uuid.UUID, error) {
	if raw != "" {
		return uuid.Parse(raw)
	}
	var id uuid.UUID
	err := pool.QueryRow(ctx, `
		SELECT c.id FROM clinics c JOIN booking_configs b ON b.clinic_id = c.id
		WHERE c.active AND b.enabled
		ORDER BY c.created_at LIMIT 1
	`).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("pick clinic: %w", err)
	}
	return id, nil
}

// openDates lists bookable calendar days over the next few weeks.
func openDates(rules availability.RuleSet, from time.Time) []time.Time {
	var out []time.Time
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 28; i++ {
		d := start.AddDate(0, 0, i)
		if rules.CheckOpen(d) == nil {
			out = append(out, d)
		}
	}
	return out
}

type bookingBody struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Service   string `json:"service"`
}

// Race fires identical bookings for one slot at once. Exactly one must win.
func (s *Simulator) Race(ctx context.Context) error {
	rules := s.pool.Clinic.Rules
	dates := openDates(rules, s.pool.Clinic.Today(time.Now()))
	if len(dates) == 0 {
		return fmt.Errorf("no open dates")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	body := bookingBody{
		DoctorID: rules.Doctors[rng.Intn(len(rules.Doctors))].String(),
		Date:     availability.DateKey(dates[rng.Intn(len(dates))]),
		Time:     string(rules.Slots[rng.Intn(len(rules.Slots))]),
		Service:  rules.Services[0],
	}

	s.logger.Info("race starting",
		zap.Int("racers", s.config.Racers),
		zap.String("doctor_id", body.DoctorID),
		zap.String("date", body.Date),
		zap.String("time", body.Time),
	)

	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.config.Racers; i++ {
		b := body
		b.PatientID = s.pool.Patients[i%len(s.pool.Patients)].String()
		g.Go(func() error {
			<-start
			s.metrics.Race.Record(s.book(gctx, b))
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		return err
	}

	if won := s.metrics.Race.Success; won != 1 {
		s.logger.Error("race admitted the wrong number of bookings", zap.Int64("successes", won))
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("load phase starting", zap.Duration("duration", s.config.Duration))

	dates := openDates(s.pool.Clinic.Rules, s.pool.Clinic.Today(time.Now()))

	var g errgroup.Group
	for i := 0; i < s.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			s.worker(ctx, workerID, dates)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("load phase complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int, dates []time.Time) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	rules := s.pool.Clinic.Rules

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio && len(dates) > 0:
			s.metrics.Booking.Record(s.book(ctx, bookingBody{
				PatientID: s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
				DoctorID:  rules.Doctors[rng.Intn(len(rules.Doctors))].String(),
				Date:      availability.DateKey(dates[rng.Intn(len(dates))]),
				Time:      string(rules.Slots[rng.Intn(len(rules.Slots))]),
				Service:   rules.Services[rng.Intn(len(rules.Services))],
			}))
		case r < s.config.BookingRatio+s.config.ReviewRatio:
			if id, ok := s.pool.GetRandomAppointment(rng); ok {
				s.metrics.Review.Record(s.approve(ctx, id))
			}
		case len(dates) > 0:
			s.metrics.ListDay.Record(s.listDay(ctx, dates[rng.Intn(len(dates))]))
		}
	}
}

func (s *Simulator) book(ctx context.Context, body bookingBody) (time.Duration, outcome) {
	payload, _ := json.Marshal(body)
	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", payload)
	latency := time.Since(start)
	if err != nil {
		return latency, outcomeError
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.ID != uuid.Nil {
			s.pool.AddAppointment(created.ID)
		}
		return latency, outcomeSuccess
	case http.StatusUnprocessableEntity:
		var e api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Code == "SlotTaken" {
			return latency, outcomeConflict
		}
	}
	return latency, outcomeError
}

func (s *Simulator) approve(ctx context.Context, id uuid.UUID) (time.Duration, outcome) {
	payload, _ := json.Marshal(api.TransitionRequest{Action: "approve"})
	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments/"+id.String()+"/transitions", payload)
	latency := time.Since(start)
	if err != nil {
		return latency, outcomeError
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return latency, outcomeSuccess
	case http.StatusConflict:
		return latency, outcomeConflict
	}
	return latency, outcomeError
}

func (s *Simulator) listDay(ctx context.Context, date time.Time) (time.Duration, outcome) {
	start := time.Now()
	resp, err := s.do(ctx, http.MethodGet, "/appointments?date="+availability.DateKey(date)+"&limit=50", nil)
	latency := time.Since(start)
	if err != nil {
		return latency, outcomeError
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return latency, outcomeSuccess
	}
	return latency, outcomeError
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.pool.Token)
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + rule())
	fmt.Println("SIMULATION REPORT")
	fmt.Println(rule())
	fmt.Printf("Clinic: %s\n", s.pool.Clinic.ID)
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Same-slot race", &s.metrics.Race)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Approve", &s.metrics.Review)
	printOperationReport("List by day", &s.metrics.ListDay)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
