package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/assessment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/forms"
	"github.com/hackgods/clinic-scheduling/internal/orders"
	"github.com/hackgods/clinic-scheduling/internal/tenancy"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.Validation(name + " must be a valid UUID").With("field", name)
	}
	return id, nil
}

func queryUUID(r *http.Request, name string, required bool) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if required {
			return uuid.Nil, apperr.Validation(name + " is required").With("field", name)
		}
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(name + " must be a valid UUID").With("field", name)
	}
	return id, nil
}

func bodyUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(field + " must be a valid UUID").With("field", field)
	}
	return id, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := availability.ParseDate(raw)
	if err != nil {
		return nil, apperr.Validation(err.Error()).With("field", name)
	}
	return &d, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation(name + " must be a non-negative integer").With("field", name)
	}
	return n, nil
}

// availabilityHandler serves the slot picker. The public variant takes the
// clinic from the path; the scoped variant from the session.
func availabilityHandler(svc AppointmentService, logger *zap.Logger, public bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var clinicID uuid.UUID
		if public {
			id, err := pathUUID(r, "clinicID")
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			clinicID = id
		} else {
			sess, err := tenancy.MustSession(r.Context())
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			clinicID = sess.ClinicID
		}

		doctorID, err := queryUUID(r, "doctor_id", true)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		date, err := queryDate(r, "date")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		if date == nil {
			writeError(w, r, logger, apperr.Validation("date is required").With("field", "date"))
			return
		}
		service := strings.TrimSpace(r.URL.Query().Get("service"))

		slots, err := svc.Availability(r.Context(), clinicID, doctorID, *date, service)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			DoctorID: doctorID,
			Date:     availability.DateKey(*date),
			Service:  service,
			Slots:    slots,
		})
	}
}

func createAppointmentHandler(svc AppointmentService, logger *zap.Logger, public bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := tenancy.MustSession(r.Context())
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		if public {
			clinicID, err := pathUUID(r, "clinicID")
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			if clinicID != sess.ClinicID {
				writeError(w, r, logger, apperr.NotFound("clinic"))
				return
			}
		}

		var req CreateAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, logger, err)
			return
		}

		create := appointment.CreateRequest{
			Time:     req.Time,
			Service:  req.Service,
			Source:   appointment.Source(req.Source),
			Override: req.Override,
			Fee:      req.Fee,
		}
		if create.DoctorID, err = bodyUUID("doctor_id", req.DoctorID); err != nil {
			writeError(w, r, logger, err)
			return
		}
		if req.PatientID != "" {
			if create.PatientID, err = bodyUUID("patient_id", req.PatientID); err != nil {
				writeError(w, r, logger, err)
				return
			}
		}
		if create.Date, err = availability.ParseDate(req.Date); err != nil {
			writeError(w, r, logger, apperr.Validation(err.Error()).With("field", "date"))
			return
		}

		switch {
		case public:
			create.Source = appointment.SourcePublicLink
		case create.Source == "" && sess.HasRole(tenancy.RolePatient):
			create.Source = appointment.SourcePatientPortal
		case create.Source == "":
			create.Source = appointment.SourceReception
		}

		appt, err := svc.Create(r.Context(), create)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f appointment.Filter
		var err error

		if f.Date, err = queryDate(r, "date"); err != nil {
			writeError(w, r, logger, err)
			return
		}
		if f.DoctorID, err = queryUUID(r, "doctor_id", false); err != nil {
			writeError(w, r, logger, err)
			return
		}
		if f.PatientID, err = queryUUID(r, "patient_id", false); err != nil {
			writeError(w, r, logger, err)
			return
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			for _, s := range strings.Split(raw, ",") {
				st := appointment.Status(strings.TrimSpace(s))
				if !st.Valid() {
					writeError(w, r, logger, apperr.Validation("unknown status "+s).With("field", "status"))
					return
				}
				f.Statuses = append(f.Statuses, st)
			}
		}
		if f.Limit, err = queryInt(r, "limit"); err != nil {
			writeError(w, r, logger, err)
			return
		}
		if f.Offset, err = queryInt(r, "offset"); err != nil {
			writeError(w, r, logger, err)
			return
		}

		list, err := svc.List(r.Context(), f)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(list))
	}
}

func getAppointmentHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getByReferenceHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetByReference(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		var req TransitionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, logger, err)
			return
		}

		appt, err := svc.Transition(r.Context(), id, appointment.Action(req.Action))
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func doctorQueueHandler(svc AppointmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := queryDate(r, "date")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		list, err := svc.DoctorQueue(r.Context(), date)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(list))
	}
}

func recordAssessmentHandler(svc AssessmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		var req RecordAssessmentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, logger, err)
			return
		}

		templateID, err := bodyUUID("template_id", req.TemplateID)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		res, err := svc.Record(r.Context(), assessment.RecordRequest{
			AppointmentID: id,
			TemplateID:    templateID,
			Answers:       forms.Answers(req.Answers),
			Instructions:  req.Instructions,
		})
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		resp := AssessmentResponse{
			Assessment:  res.Assessment,
			Appointment: toAppointmentResponse(&res.Appointment),
			Orders:      res.Orders,
			Warnings:    res.Warnings,
		}
		if resp.Orders == nil {
			resp.Orders = []orders.Order{}
		}
		if resp.Warnings == nil {
			resp.Warnings = []orders.Warning{}
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func departmentQueueHandler(svc OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := orders.ParseDepartment(chi.URLParam(r, "department"))
		if !ok {
			writeError(w, r, logger, apperr.Validation("unknown department").With("field", "department"))
			return
		}

		list, err := svc.Queue(r.Context(), d)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		if list == nil {
			list = []orders.Order{}
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func orderList(w http.ResponseWriter, r *http.Request, logger *zap.Logger, list []orders.Order, err error) {
	if err != nil {
		writeError(w, r, logger, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func doctorOrdersHandler(svc OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, ok := orders.ParseStatus(r.URL.Query().Get("status"))
		if !ok {
			writeError(w, r, logger, apperr.Validation("unknown order status").With("field", "status"))
			return
		}

		list, err := svc.ForDoctor(r.Context(), status)
		orderList(w, r, logger, list, err)
	}
}

func assessmentOrdersHandler(svc OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		list, err := svc.ForAssessment(r.Context(), id)
		orderList(w, r, logger, list, err)
	}
}

func completeOrderHandler(svc OrderService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		order, err := svc.Complete(r.Context(), id)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

func getBookingConfigHandler(svc BookingConfigService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := svc.BookingConfig(r.Context())
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, rules)
	}
}

func putBookingConfigHandler(svc BookingConfigService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookingConfigRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, logger, err)
			return
		}

		rules := availability.RuleSet{
			Enabled:  req.Enabled,
			Services: req.Services,
			Holidays: req.Holidays,
			Fees:     req.Fees,
		}
		for _, d := range req.Doctors {
			id, err := bodyUUID("doctors", d)
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			rules.Doctors = append(rules.Doctors, id)
		}
		for _, s := range req.Slots {
			rules.Slots = append(rules.Slots, availability.Slot(s))
		}
		for _, d := range req.OffDays {
			rules.OffDays = append(rules.OffDays, time.Weekday(d))
		}

		saved, err := svc.SaveBookingConfig(r.Context(), rules)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, saved)
	}
}
