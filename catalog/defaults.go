package catalog

import "github.com/shopspring/decimal"

// Ids of the built-in tasks. Stored catalogs may use any ids.
const (
	DefaultPersonalCareID       = "default-personal-care"
	DefaultCompanionshipID      = "default-companionship"
	DefaultMealPreparationID    = "default-meal-preparation"
	DefaultLightHousekeepingID  = "default-light-housekeeping"
	DefaultMedicationReminderID = "default-medication-reminders"
	DefaultMobilityAssistanceID = "default-mobility-assistance"
	DefaultErrandsID            = "default-errands-shopping"
	DefaultDoctorEscortID       = "default-doctor-appointment-escort"
	DefaultHospitalDischargeID  = "default-hospital-discharge"
)

// Fallback hourly rates for the two special categories, used when the catalog
// has no task of that category to derive them from.
var (
	FallbackDoctorAppointmentRate = decimal.NewFromInt(45)
	FallbackHospitalDischargeRate = decimal.NewFromInt(55)
)

// DefaultTasks returns the built-in catalog: seven standard tasks plus the
// doctor-appointment escort and hospital discharge.
func DefaultTasks() []Task {
	return []Task{
		standard(DefaultPersonalCareID, "Personal Care", 30, 35, false),
		standard(DefaultCompanionshipID, "Companionship", 60, 32, false),
		standard(DefaultMealPreparationID, "Meal Preparation", 30, 33, false),
		standard(DefaultLightHousekeepingID, "Light Housekeeping", 45, 35, true),
		standard(DefaultMedicationReminderID, "Medication Reminders", 15, 30, false),
		standard(DefaultMobilityAssistanceID, "Mobility Assistance", 30, 35, false),
		standard(DefaultErrandsID, "Errands & Shopping", 60, 34, true),
		{
			ID:               DefaultDoctorEscortID,
			Name:             "Doctor Appointment Escort",
			IncludedMinutes:  120,
			BaseCost:         FallbackDoctorAppointmentRate,
			IsHospitalDoctor: true,
			Category:         CategoryDoctorAppointment,
		},
		{
			ID:                      DefaultHospitalDischargeID,
			Name:                    "Hospital Discharge",
			IncludedMinutes:         180,
			BaseCost:                FallbackHospitalDischargeRate,
			IsHospitalDoctor:        true,
			Category:                CategoryHospitalDischarge,
			RequiresDischargeUpload: true,
		},
	}
}

func standard(id, name string, minutes int, cost int64, hst bool) Task {
	return Task{
		ID:              id,
		Name:            name,
		IncludedMinutes: minutes,
		BaseCost:        decimal.NewFromInt(cost),
		Category:        CategoryStandard,
		ApplyHST:        hst,
	}
}
