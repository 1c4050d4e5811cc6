package models

// ClassReport summarises a student's performance in one class offering.
type ClassReport struct {
	ClassID   string          `json:"class_id"`
	ClassName string          `json:"class_name"`
	Average   float64         `json:"average"`
	Grades    []Grade         `json:"grades"`
	ByPeriod  []PeriodSummary `json:"by_period,omitempty"`
}

// PeriodSummary aggregates grades within an academic period.
type PeriodSummary struct {
	Period     int               `json:"period"`
	Average    float64           `json:"average"`
	ByCategory []CategorySummary `json:"by_category,omitempty"`
}

// CategorySummary aggregates grades of one category within a period.
type CategorySummary struct {
	Type    string  `json:"type"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// StudentReport is the full academic record for one student. OverallAverage
// is the mean of per-class averages, not a flat mean of every grade.
type StudentReport struct {
	StudentID      string        `json:"student_id"`
	StudentName    string        `json:"student_name"`
	OverallAverage float64       `json:"overall_average"`
	Passing        bool          `json:"passing"`
	Classes        []ClassReport `json:"classes"`
}

// DashboardSummary holds the counts shown on the admin landing page.
type DashboardSummary struct {
	ActiveStudents int `json:"active_students"`
	ActiveTeachers int `json:"active_teachers"`
	ActiveParents  int `json:"active_parents"`
	ActiveClasses  int `json:"active_classes"`
}
