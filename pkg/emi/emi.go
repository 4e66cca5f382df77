package emi

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 等额本息（EMI）计算引擎
// ============================================================================
//
// 纯计算组件，无任何副作用：相同输入永远得到相同输出。
// 所有金额计算使用 decimal，结果保留2位小数（四舍五入）。
//
// EMI 公式：
//   月利率 r = 年利率 / 1200
//   r = 0 时：EMI = 本金 / 期数
//   否则：  EMI = 本金 * r * (1+r)^n / ((1+r)^n - 1)
//
// ============================================================================

var (
	ErrInvalidPrincipal = errors.New("本金必须大于0")
	ErrInvalidRate      = errors.New("年利率不能为负数")
	ErrInvalidTenure    = errors.New("贷款期数必须大于0")
)

var twelveHundred = decimal.NewFromInt(1200)

// ComputeEMI 计算每月还款额
//
// principal: 本金（>0）
// annualRatePercent: 年利率百分比，如 12.5 表示 12.5%
// tenureMonths: 期数（月）
func ComputeEMI(principal decimal.Decimal, annualRatePercent decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, ErrInvalidPrincipal
	}
	if annualRatePercent.IsNegative() {
		return decimal.Zero, ErrInvalidRate
	}
	if tenureMonths <= 0 {
		return decimal.Zero, ErrInvalidTenure
	}

	tenure := decimal.NewFromInt(int64(tenureMonths))

	// 零利率退化为等额本金平摊
	if annualRatePercent.IsZero() {
		return principal.Div(tenure).Round(2), nil
	}

	monthlyRate := annualRatePercent.Div(twelveHundred)
	compound := decimal.NewFromInt(1).Add(monthlyRate).Pow(tenure) // (1+r)^n

	numerator := principal.Mul(monthlyRate).Mul(compound)
	denominator := compound.Sub(decimal.NewFromInt(1))

	return numerator.Div(denominator).Round(2), nil
}

// SplitPayment 将一笔还款拆分为利息和本金
//
// 利息 = 未还本金 * 年利率 / 1200，保留2位小数；
// 本金 = 还款额 - 利息；如果还款额连利息都不够，本金记 0、利息记全额；
// 新的未还本金 = 原未还本金 - 本金部分，下限为 0。
func SplitPayment(outstanding decimal.Decimal, annualRatePercent decimal.Decimal, payment decimal.Decimal) (interest, principal, newOutstanding decimal.Decimal) {
	interest = outstanding.Mul(annualRatePercent).Div(twelveHundred).Round(2)
	principal = payment.Sub(interest)

	if principal.IsNegative() {
		// 还款额不足以覆盖当月利息
		principal = decimal.Zero
		interest = payment
	}

	newOutstanding = outstanding.Sub(principal)
	if newOutstanding.IsNegative() {
		newOutstanding = decimal.Zero
	}

	return interest, principal, newOutstanding
}
