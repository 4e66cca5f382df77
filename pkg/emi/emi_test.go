package emi

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeEMI(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		tenure    int
		want      string
	}{
		{"标准两年期", "50000", "12.5", 24, "2365.37"},
		{"一年期", "100000", "8.4", 12, "8717.35"},
		{"零利率平摊", "12000", "0", 24, "500.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeEMI(dec(tt.principal), dec(tt.rate), tt.tenure)
			if err != nil {
				t.Fatalf("ComputeEMI 失败: %v", err)
			}
			if got.StringFixed(2) != tt.want {
				t.Errorf("ComputeEMI(%s, %s, %d) = %s, want %s",
					tt.principal, tt.rate, tt.tenure, got.StringFixed(2), tt.want)
			}
		})
	}
}

func TestComputeEMIDeterministic(t *testing.T) {
	first, err := ComputeEMI(dec("50000"), dec("12.5"), 24)
	if err != nil {
		t.Fatalf("ComputeEMI 失败: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ComputeEMI(dec("50000"), dec("12.5"), 24)
		if err != nil {
			t.Fatalf("ComputeEMI 失败: %v", err)
		}
		if !again.Equal(first) {
			t.Fatalf("相同输入得到不同结果: %s vs %s", again, first)
		}
	}
}

func TestComputeEMIInvalidInput(t *testing.T) {
	if _, err := ComputeEMI(dec("0"), dec("12.5"), 24); !errors.Is(err, ErrInvalidPrincipal) {
		t.Errorf("本金为0应返回 ErrInvalidPrincipal, got %v", err)
	}
	if _, err := ComputeEMI(dec("-100"), dec("12.5"), 24); !errors.Is(err, ErrInvalidPrincipal) {
		t.Errorf("本金为负应返回 ErrInvalidPrincipal, got %v", err)
	}
	if _, err := ComputeEMI(dec("50000"), dec("-1"), 24); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("利率为负应返回 ErrInvalidRate, got %v", err)
	}
	if _, err := ComputeEMI(dec("50000"), dec("12.5"), 0); !errors.Is(err, ErrInvalidTenure) {
		t.Errorf("期数为0应返回 ErrInvalidTenure, got %v", err)
	}
}

func TestSplitPayment(t *testing.T) {
	interest, principal, newOutstanding := SplitPayment(dec("10000"), dec("12"), dec("500"))

	if interest.StringFixed(2) != "100.00" {
		t.Errorf("利息 = %s, want 100.00", interest.StringFixed(2))
	}
	if principal.StringFixed(2) != "400.00" {
		t.Errorf("本金 = %s, want 400.00", principal.StringFixed(2))
	}
	if newOutstanding.StringFixed(2) != "9600.00" {
		t.Errorf("剩余本金 = %s, want 9600.00", newOutstanding.StringFixed(2))
	}

	// 拆分守恒：利息 + 本金 = 还款额
	if !interest.Add(principal).Equal(dec("500")) {
		t.Errorf("拆分不守恒: %s + %s != 500", interest, principal)
	}
}

func TestSplitPaymentBelowInterest(t *testing.T) {
	// 还款额连利息都不够时，本金记0，余额不变
	interest, principal, newOutstanding := SplitPayment(dec("10000"), dec("12"), dec("50"))

	if !principal.IsZero() {
		t.Errorf("本金 = %s, want 0", principal)
	}
	if interest.StringFixed(2) != "50.00" {
		t.Errorf("利息 = %s, want 50.00", interest.StringFixed(2))
	}
	if !newOutstanding.Equal(dec("10000")) {
		t.Errorf("剩余本金 = %s, want 10000", newOutstanding)
	}
}

func TestSplitPaymentOverpay(t *testing.T) {
	// 多还的部分不产生负余额，剩余本金下限为0
	interest, principal, newOutstanding := SplitPayment(dec("200"), dec("12.5"), dec("300"))

	if interest.StringFixed(2) != "2.08" {
		t.Errorf("利息 = %s, want 2.08", interest.StringFixed(2))
	}
	if principal.StringFixed(2) != "297.92" {
		t.Errorf("本金 = %s, want 297.92", principal.StringFixed(2))
	}
	if !newOutstanding.IsZero() {
		t.Errorf("剩余本金 = %s, want 0", newOutstanding)
	}
}
