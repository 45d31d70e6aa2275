package factory

import (
	"encoding/json"
	"fmt"

	"github.com/carepoint/booking-engine/catalog"
	"github.com/carepoint/booking-engine/generic"
	"github.com/shopspring/decimal"
)

// TaskJSON mirrors a task catalog row.
type TaskJSON struct {
	ID                      string  `json:"id"`
	TaskName                string  `json:"task_name"`
	IncludedMinutes         int     `json:"included_minutes"`
	BaseCost                float64 `json:"base_cost"`
	IsHospitalDoctor        bool    `json:"is_hospital_doctor"`
	ServiceCategory         string  `json:"service_category"`
	RequiresDischargeUpload bool    `json:"requires_discharge_upload"`
	ApplyHST                bool    `json:"apply_hst"`
}

// ParseTask parses a posted task. Field invariants are checked by the catalog.
func ParseTask(data []byte) (catalog.Task, error) {
	var tj TaskJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return catalog.Task{}, generic.NewValidationError("task", fmt.Sprintf("failed to parse JSON: %v", err))
	}
	return TaskFromJSON(tj)
}

// TaskFromJSON converts the schema type.
func TaskFromJSON(tj TaskJSON) (catalog.Task, error) {
	category, err := catalog.ParseServiceCategory(tj.ServiceCategory)
	if err != nil {
		return catalog.Task{}, err
	}
	return catalog.Task{
		ID:                      tj.ID,
		Name:                    tj.TaskName,
		IncludedMinutes:         tj.IncludedMinutes,
		BaseCost:                decimal.NewFromFloat(tj.BaseCost),
		IsHospitalDoctor:        tj.IsHospitalDoctor || category != catalog.CategoryStandard,
		Category:                category,
		RequiresDischargeUpload: tj.RequiresDischargeUpload,
		ApplyHST:                tj.ApplyHST,
	}, nil
}

func TaskToJSON(t catalog.Task) TaskJSON {
	return TaskJSON{
		ID:                      t.ID,
		TaskName:                t.Name,
		IncludedMinutes:         t.IncludedMinutes,
		BaseCost:                toFloat(t.BaseCost),
		IsHospitalDoctor:        t.IsHospitalDoctor,
		ServiceCategory:         string(t.Category),
		RequiresDischargeUpload: t.RequiresDischargeUpload,
		ApplyHST:                t.ApplyHST,
	}
}

// MarshalTasks encodes a task list, e.g. for the shared catalog cache.
func MarshalTasks(tasks []catalog.Task) ([]byte, error) {
	out := make([]TaskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskToJSON(t))
	}
	return json.Marshal(out)
}

// UnmarshalTasks decodes a task list written by MarshalTasks.
func UnmarshalTasks(data []byte) ([]catalog.Task, error) {
	var tjs []TaskJSON
	if err := json.Unmarshal(data, &tjs); err != nil {
		return nil, fmt.Errorf("failed to parse task list: %w", err)
	}
	tasks := make([]catalog.Task, 0, len(tjs))
	for _, tj := range tjs {
		t, err := TaskFromJSON(tj)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", tj.ID, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
