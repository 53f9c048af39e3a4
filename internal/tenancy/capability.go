package tenancy

// Capability is a single permission checked against the session's roles.
type Capability string

const (
	CapBookOwn                Capability = "appointment.book_own"
	CapBookForPatient         Capability = "appointment.book_for_patient"
	CapOverrideAvailability   Capability = "appointment.override_availability"
	CapReviewBooking          Capability = "appointment.review"
	CapCheckIn                Capability = "appointment.check_in"
	CapCancelAny              Capability = "appointment.cancel_any"
	CapCancelOwn              Capability = "appointment.cancel_own"
	CapViewClinicSchedule     Capability = "appointment.view_clinic"
	CapViewOwnAppointments    Capability = "appointment.view_own"
	CapRecordAssessment       Capability = "assessment.record"
	CapViewDoctorQueue        Capability = "doctor.queue"
	CapManageBookingConfig    Capability = "clinic.booking_config"
	CapCompleteLabOrder       Capability = "orders.complete.laboratory"
	CapCompleteRadiologyOrder Capability = "orders.complete.radiology"
	CapCompletePharmacyOrder  Capability = "orders.complete.pharmacy"
)

var grants = map[Role]map[Capability]bool{
	RoleClinicAdmin: set(
		CapBookForPatient, CapOverrideAvailability, CapReviewBooking, CapCheckIn,
		CapCancelAny, CapViewClinicSchedule, CapManageBookingConfig,
	),
	RoleReception: set(
		CapBookForPatient, CapOverrideAvailability, CapReviewBooking, CapCheckIn,
		CapCancelAny, CapViewClinicSchedule,
	),
	RoleDoctor:     set(CapRecordAssessment, CapViewDoctorQueue, CapViewClinicSchedule),
	RolePatient:    set(CapBookOwn, CapCancelOwn, CapViewOwnAppointments),
	RoleLaboratory: set(CapCompleteLabOrder),
	RoleRadiology:  set(CapCompleteRadiologyOrder),
	RolePharmacy:   set(CapCompletePharmacyOrder),
	RoleAccountant: set(CapViewClinicSchedule),
}

func set(caps ...Capability) map[Capability]bool {
	m := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		m[c] = true
	}
	return m
}
