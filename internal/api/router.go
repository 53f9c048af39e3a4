package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/assessment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/orders"
)

type AppointmentService interface {
	Availability(ctx context.Context, clinicID, doctorID uuid.UUID, date time.Time, service string) ([]availability.SlotStatus, error)
	Create(ctx context.Context, req appointment.CreateRequest) (*appointment.Appointment, error)
	Transition(ctx context.Context, id uuid.UUID, action appointment.Action) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetByReference(ctx context.Context, code string) (*appointment.Appointment, error)
	List(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	DoctorQueue(ctx context.Context, date *time.Time) ([]appointment.Appointment, error)
}

type AssessmentService interface {
	Record(ctx context.Context, req assessment.RecordRequest) (*assessment.Result, error)
}

type OrderService interface {
	Complete(ctx context.Context, id uuid.UUID) (*orders.Order, error)
	Queue(ctx context.Context, d orders.Department) ([]orders.Order, error)
	ForDoctor(ctx context.Context, status orders.Status) ([]orders.Order, error)
	ForAssessment(ctx context.Context, assessmentID uuid.UUID) ([]orders.Order, error)
}

type BookingConfigService interface {
	BookingConfig(ctx context.Context) (availability.RuleSet, error)
	SaveBookingConfig(ctx context.Context, rules availability.RuleSet) (availability.RuleSet, error)
}

type RouterConfig struct {
	Appointments  AppointmentService
	Assessments   AssessmentService
	Orders        OrderService
	BookingConfig BookingConfigService

	Health   *HealthHandler
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	JWTSecret       string
	CORSOrigins     []string
	PublicRateLimit int
	RequestTimeout  time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler("", "")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.PublicRateLimit <= 0 {
		cfg.PublicRateLimit = 60
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	auth := Authenticate(cfg.JWTSecret, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		r.Route("/public/clinics/{clinicID}", func(r chi.Router) {
			r.Use(httprate.LimitByIP(cfg.PublicRateLimit, time.Minute))
			r.Get("/availability", availabilityHandler(cfg.Appointments, logger, true))
			r.With(auth).Post("/appointments", createAppointmentHandler(cfg.Appointments, logger, true))
		})

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/availability", availabilityHandler(cfg.Appointments, logger, false))

			r.Post("/appointments", createAppointmentHandler(cfg.Appointments, logger, false))
			r.Get("/appointments", listAppointmentsHandler(cfg.Appointments, logger))
			r.Get("/appointments/reference/{code}", getByReferenceHandler(cfg.Appointments, logger))
			r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments, logger))
			r.Post("/appointments/{id}/transitions", transitionHandler(cfg.Appointments, logger))
			r.Post("/appointments/{id}/assessment", recordAssessmentHandler(cfg.Assessments, logger))

			r.Get("/doctor/queue", doctorQueueHandler(cfg.Appointments, logger))
			r.Get("/doctor/orders", doctorOrdersHandler(cfg.Orders, logger))
			r.Get("/assessments/{id}/orders", assessmentOrdersHandler(cfg.Orders, logger))

			r.Get("/departments/{department}/orders", departmentQueueHandler(cfg.Orders, logger))
			r.Post("/orders/{id}/complete", completeOrderHandler(cfg.Orders, logger))

			r.Get("/clinic/booking-config", getBookingConfigHandler(cfg.BookingConfig, logger))
			r.Put("/clinic/booking-config", putBookingConfigHandler(cfg.BookingConfig, logger))
		})
	})

	return r
}
