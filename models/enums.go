package models

import (
	"strings"
)

type LoanStatus string

const (
	LoanStatusIssued   LoanStatus = "issued"
	LoanStatusOverdue  LoanStatus = "overdue"
	LoanStatusReturned LoanStatus = "returned"
)

// OpenLoanStatuses are the states a loan can still leave.
var OpenLoanStatuses = []LoanStatus{LoanStatusIssued, LoanStatusOverdue}

func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusIssued, LoanStatusOverdue, LoanStatusReturned:
		return true
	}
	return false
}

func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusIssued || s == LoanStatusOverdue
}

// CanTransitionTo reports whether the ledger allows s -> next.
// issued -> overdue, issued|overdue -> returned, overdue -> overdue (fine refresh).
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	switch s {
	case LoanStatusIssued:
		return next == LoanStatusOverdue || next == LoanStatusReturned
	case LoanStatusOverdue:
		return next == LoanStatusOverdue || next == LoanStatusReturned
	default:
		return false
	}
}

type Department string

const (
	DepartmentCSE       Department = "CSE"
	DepartmentECE       Department = "ECE"
	DepartmentEEE       Department = "EEE"
	DepartmentCivil     Department = "CIVIL"
	DepartmentMech      Department = "MECH"
	DepartmentEnglish   Department = "ENGLISH"
	DepartmentMaths     Department = "MATHS"
	DepartmentPhysics   Department = "PHYSICS"
	DepartmentChemistry Department = "CHEMISTRY"
	DepartmentGeneral   Department = "GENERAL"
)

var departments = []Department{
	DepartmentCSE, DepartmentECE, DepartmentEEE, DepartmentCivil, DepartmentMech,
	DepartmentEnglish, DepartmentMaths, DepartmentPhysics, DepartmentChemistry, DepartmentGeneral,
}

func Departments() []Department {
	out := make([]Department, len(departments))
	copy(out, departments)
	return out
}

// ParseDepartment accepts a department key in any case.
func ParseDepartment(key string) (Department, error) {
	d := Department(strings.ToUpper(strings.TrimSpace(key)))
	for _, known := range departments {
		if d == known {
			return d, nil
		}
	}
	return "", &InvalidDepartmentError{Department: key}
}

type LoanEventType string

const (
	LoanEventIssued   LoanEventType = "loan.issued"
	LoanEventOverdue  LoanEventType = "loan.overdue"
	LoanEventReturned LoanEventType = "loan.returned"
)

// Outbox publish statuses for LoanEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
