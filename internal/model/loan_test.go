package model

import "testing"

func TestCanTransitionTo(t *testing.T) {
	allowed := []struct{ from, to string }{
		{LoanStatusPending, LoanStatusApproved},
		{LoanStatusPending, LoanStatusRejected},
		{LoanStatusApproved, LoanStatusDisbursed},
		{LoanStatusDisbursed, LoanStatusClosed},
	}
	for _, tr := range allowed {
		if !CanTransitionTo(tr.from, tr.to) {
			t.Errorf("%s -> %s 应该允许", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to string }{
		{LoanStatusPending, LoanStatusDisbursed},
		{LoanStatusPending, LoanStatusClosed},
		{LoanStatusApproved, LoanStatusRejected},
		{LoanStatusApproved, LoanStatusClosed},
		{LoanStatusApproved, LoanStatusApproved},
		{LoanStatusRejected, LoanStatusApproved},
		{LoanStatusDisbursed, LoanStatusApproved},
		{LoanStatusClosed, LoanStatusDisbursed},
		{LoanStatusClosed, LoanStatusPending},
	}
	for _, tr := range forbidden {
		if CanTransitionTo(tr.from, tr.to) {
			t.Errorf("%s -> %s 不应该允许", tr.from, tr.to)
		}
	}
}

func TestTerminalStatusHasNoTransitions(t *testing.T) {
	for _, status := range []string{LoanStatusRejected, LoanStatusClosed} {
		if targets, ok := ValidLoanStatusTransitions[status]; ok && len(targets) > 0 {
			t.Errorf("终态 %s 不应有后续转换: %v", status, targets)
		}
	}
}

func TestIsValidLoanType(t *testing.T) {
	for _, lt := range []string{LoanTypePersonal, LoanTypeHome, LoanTypeCar, LoanTypeBusiness} {
		if !IsValidLoanType(lt) {
			t.Errorf("%s 应该是合法贷款类型", lt)
		}
	}
	if IsValidLoanType("PAYDAY") {
		t.Error("PAYDAY 不应该是合法贷款类型")
	}
	if IsValidLoanType("") {
		t.Error("空字符串不应该是合法贷款类型")
	}
}
