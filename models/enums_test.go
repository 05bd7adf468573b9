package models

import (
	"errors"
	"testing"
)

func TestLoanStatus_Transitions(t *testing.T) {
	cases := []struct {
		from, to LoanStatus
		ok       bool
	}{
		{LoanStatusIssued, LoanStatusOverdue, true},
		{LoanStatusIssued, LoanStatusReturned, true},
		{LoanStatusOverdue, LoanStatusReturned, true},
		{LoanStatusOverdue, LoanStatusOverdue, true},
		{LoanStatusOverdue, LoanStatusIssued, false},
		{LoanStatusIssued, LoanStatusIssued, false},
		{LoanStatusReturned, LoanStatusIssued, false},
		{LoanStatusReturned, LoanStatusOverdue, false},
		{LoanStatusReturned, LoanStatusReturned, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestLoanStatus_Open(t *testing.T) {
	for _, s := range OpenLoanStatuses {
		if !s.IsOpen() || !s.IsValid() {
			t.Fatalf("%s should be a valid open status", s)
		}
	}
	if LoanStatusReturned.IsOpen() {
		t.Fatalf("returned must not be open")
	}
	if LoanStatus("lost").IsValid() {
		t.Fatalf("unknown status reported valid")
	}
}

func TestParseDepartment(t *testing.T) {
	for _, key := range []string{"cse", "CSE", " Maths ", "general", "CIVIL"} {
		if _, err := ParseDepartment(key); err != nil {
			t.Fatalf("ParseDepartment(%q): %v", key, err)
		}
	}
	got, _ := ParseDepartment("chemistry")
	if got != DepartmentChemistry {
		t.Fatalf("expected CHEMISTRY, got %s", got)
	}

	_, err := ParseDepartment("ART")
	var ide *InvalidDepartmentError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InvalidDepartmentError, got %v", err)
	}
	if ide.Department != "ART" {
		t.Fatalf("expected the rejected key in the error, got %q", ide.Department)
	}
	if len(Departments()) != 10 {
		t.Fatalf("expected 10 departments, got %d", len(Departments()))
	}
}
