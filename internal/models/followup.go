package models

import "time"

// FollowUpTask is one row of the store's follow_up_tasks view: an admission
// with an outstanding balance needing a collection contact. This layer only
// filters and buckets it.
type FollowUpTask struct {
	AdmissionID      string     `db:"admission_id" json:"admission_id"`
	StudentName      string     `db:"student_name" json:"student_name"`
	BatchName        string     `db:"batch_name" json:"batch_name"`
	AssignedTo       *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	LocationID       string     `db:"location_id" json:"location_id"`
	NextTaskDueDate  time.Time  `db:"next_task_due_date" json:"next_task_due_date"`
	TotalDueAmount   float64    `db:"total_due_amount" json:"total_due_amount"`
	LastLogCreatedAt *time.Time `db:"last_log_created_at" json:"last_log_created_at,omitempty"`
}

// FollowUpCounts partitions outstanding tasks by due date relative to today.
type FollowUpCounts struct {
	Today    int `json:"today"`
	Overdue  int `json:"overdue"`
	Upcoming int `json:"upcoming"`
}

// FollowUpDateFilter selects which bucket the task list shows.
type FollowUpDateFilter string

const (
	FollowUpToday    FollowUpDateFilter = "today"
	FollowUpOverdue  FollowUpDateFilter = "overdue"
	FollowUpUpcoming FollowUpDateFilter = "upcoming"
)

// FollowUpFilter captures the query parameters of the worklist endpoint.
type FollowUpFilter struct {
	DateFilter   FollowUpDateFilter
	SearchTerm   string
	BatchName    string
	AssignedTo   string
	DueAmountMin float64
	StartDate    *time.Time
	EndDate      *time.Time
}

// FollowUpLog records a collection contact made against an admission.
type FollowUpLog struct {
	ID              string     `db:"id" json:"id"`
	AdmissionID     string     `db:"admission_id" json:"admission_id"`
	LocationID      string     `db:"location_id" json:"location_id"`
	Note            string     `db:"note" json:"note"`
	NextTaskDueDate *time.Time `db:"next_task_due_date" json:"next_task_due_date,omitempty"`
	CreatedBy       string     `db:"created_by" json:"created_by"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}
