package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shivam8897/dubeys-banking-management-system/internal/model"
	"github.com/shivam8897/dubeys-banking-management-system/internal/repository"
)

func TestLoanApply(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	svc := NewLoanService(db, nil)

	loan, err := svc.Apply(context.Background(), customer.ID, model.LoanTypePersonal, dec(t, "50000"), dec(t, "12.5"), 24, "customer")
	if err != nil {
		t.Fatalf("贷款申请失败: %v", err)
	}

	if loan.Status != model.LoanStatusPending {
		t.Errorf("status = %s, want PENDING", loan.Status)
	}
	if loan.EMI.StringFixed(2) != "2365.37" {
		t.Errorf("emi = %s, want 2365.37", loan.EMI.StringFixed(2))
	}
	if !loan.Outstanding.Equal(loan.Principal) {
		t.Errorf("outstanding = %s, want %s", loan.Outstanding, loan.Principal)
	}

	// 申请即产生审计记录
	entries, err := svc.ListLoanAudit(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("查询审计记录失败: %v", err)
	}
	if len(entries) != 1 || entries[0].NewStatus != model.LoanStatusPending {
		t.Errorf("审计记录 = %+v, want 1条 PENDING", entries)
	}
}

func TestLoanApplyValidation(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	if _, err := svc.Apply(ctx, customer.ID, "PAYDAY", dec(t, "50000"), dec(t, "12.5"), 24, "customer"); !errors.Is(err, ErrInvalidLoanType) {
		t.Errorf("err = %v, want ErrInvalidLoanType", err)
	}
	if _, err := svc.Apply(ctx, customer.ID, model.LoanTypePersonal, dec(t, "0"), dec(t, "12.5"), 24, "customer"); !errors.Is(err, ErrInvalidLoanTerms) {
		t.Errorf("err = %v, want ErrInvalidLoanTerms", err)
	}
	if _, err := svc.Apply(ctx, customer.ID, model.LoanTypePersonal, dec(t, "50000"), dec(t, "12.5"), 0, "customer"); !errors.Is(err, ErrInvalidLoanTerms) {
		t.Errorf("err = %v, want ErrInvalidLoanTerms", err)
	}
}

func TestLoanLifecycle(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	account := mustAccount(t, db, customer.ID, "5000")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypeHome, dec(t, "50000"), dec(t, "12.5"), 24, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}

	if err := svc.Approve(ctx, loan.ID, "officer-01", "资质合格"); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	approved, _ := svc.GetLoan(ctx, loan.ID)
	if approved.Status != model.LoanStatusApproved {
		t.Fatalf("status = %s, want APPROVED", approved.Status)
	}
	if approved.ApprovedAt == nil {
		t.Error("approved_at 应该被记录")
	}

	if err := svc.Disburse(ctx, loan.ID, account.ID, "officer-01"); err != nil {
		t.Fatalf("放款失败: %v", err)
	}
	disbursed, _ := svc.GetLoan(ctx, loan.ID)
	if disbursed.Status != model.LoanStatusDisbursed {
		t.Fatalf("status = %s, want DISBURSED", disbursed.Status)
	}
	if disbursed.DisbursedAt == nil {
		t.Error("disbursed_at 应该被记录")
	}
	if !disbursed.Outstanding.Equal(dec(t, "50000")) {
		t.Errorf("outstanding = %s, want 50000", disbursed.Outstanding)
	}

	// 放款即入账，账户余额增加本金并产生流水
	if balance := accountBalance(t, db, account.ID); !balance.Equal(dec(t, "55000")) {
		t.Errorf("账户余额 = %s, want 55000", balance)
	}
	if n := transactionCount(t, db, account.ID); n != 2 {
		t.Errorf("流水数 = %d, want 2", n)
	}

	// 还款
	payment, err := svc.MakePayment(ctx, loan.ID, dec(t, "2365.37"), "customer")
	if err != nil {
		t.Fatalf("还款失败: %v", err)
	}
	if !payment.PrincipalPart.Add(payment.InterestPart).Equal(payment.Amount) {
		t.Errorf("拆分不守恒: %s + %s != %s", payment.PrincipalPart, payment.InterestPart, payment.Amount)
	}

	after, _ := svc.GetLoan(ctx, loan.ID)
	if !after.Outstanding.Equal(payment.OutstandingAfter) {
		t.Errorf("贷款余额 = %s, 还款记录 = %s", after.Outstanding, payment.OutstandingAfter)
	}
	if after.Status != model.LoanStatusDisbursed {
		t.Errorf("status = %s, want DISBURSED", after.Status)
	}
}

func TestLoanApproveTwice(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypeCar, dec(t, "30000"), dec(t, "10"), 12, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}
	if err := svc.Approve(ctx, loan.ID, "officer-01", ""); err != nil {
		t.Fatalf("首次审批失败: %v", err)
	}

	// 重复审批必须失败，状态保持 APPROVED
	if err := svc.Approve(ctx, loan.ID, "officer-02", ""); !errors.Is(err, repository.ErrLoanStatusInvalid) {
		t.Errorf("err = %v, want ErrLoanStatusInvalid", err)
	}
	after, _ := svc.GetLoan(ctx, loan.ID)
	if after.Status != model.LoanStatusApproved {
		t.Errorf("status = %s, want APPROVED", after.Status)
	}
}

func TestLoanRejectIsTerminal(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	account := mustAccount(t, db, customer.ID, "5000")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypeBusiness, dec(t, "80000"), dec(t, "15"), 36, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}
	if err := svc.Reject(ctx, loan.ID, "officer-01", "负债过高"); err != nil {
		t.Fatalf("拒绝失败: %v", err)
	}

	if err := svc.Approve(ctx, loan.ID, "officer-02", ""); !errors.Is(err, repository.ErrLoanStatusInvalid) {
		t.Errorf("拒绝后审批: err = %v, want ErrLoanStatusInvalid", err)
	}
	if err := svc.Disburse(ctx, loan.ID, account.ID, "officer-02"); !errors.Is(err, repository.ErrLoanStatusInvalid) {
		t.Errorf("拒绝后放款: err = %v, want ErrLoanStatusInvalid", err)
	}
}

func TestLoanDisburseRequiresApproval(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	account := mustAccount(t, db, customer.ID, "5000")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypePersonal, dec(t, "10000"), dec(t, "12"), 12, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}

	if err := svc.Disburse(ctx, loan.ID, account.ID, "officer-01"); !errors.Is(err, repository.ErrLoanStatusInvalid) {
		t.Errorf("err = %v, want ErrLoanStatusInvalid", err)
	}
	if balance := accountBalance(t, db, account.ID); !balance.Equal(dec(t, "5000")) {
		t.Errorf("账户余额 = %s, want 5000", balance)
	}
}

func TestLoanDisburseOwnerMismatch(t *testing.T) {
	db := newTestDB(t)
	borrower := mustCustomer(t, db, "Wang")
	other := mustCustomer(t, db, "Li")
	otherAccount := mustAccount(t, db, other.ID, "5000")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, borrower.ID, model.LoanTypePersonal, dec(t, "10000"), dec(t, "12"), 12, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}
	if err := svc.Approve(ctx, loan.ID, "officer-01", ""); err != nil {
		t.Fatalf("审批失败: %v", err)
	}

	// 放款账户属于别的客户：必须报归属错误而不是账户不存在
	if err := svc.Disburse(ctx, loan.ID, otherAccount.ID, "officer-01"); !errors.Is(err, ErrAccountOwnerMismatch) {
		t.Errorf("err = %v, want ErrAccountOwnerMismatch", err)
	}

	// 贷款状态和账户余额都不能变
	after, _ := svc.GetLoan(ctx, loan.ID)
	if after.Status != model.LoanStatusApproved {
		t.Errorf("status = %s, want APPROVED", after.Status)
	}
	if balance := accountBalance(t, db, otherAccount.ID); !balance.Equal(dec(t, "5000")) {
		t.Errorf("账户余额 = %s, want 5000", balance)
	}
}

func TestLoanPaymentStaleVersionConflict(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	account := mustAccount(t, db, customer.ID, "5000")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypePersonal, dec(t, "10000"), dec(t, "12"), 12, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}
	if err := svc.Approve(ctx, loan.ID, "officer-01", ""); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	if err := svc.Disburse(ctx, loan.ID, account.ID, "officer-01"); err != nil {
		t.Fatalf("放款失败: %v", err)
	}

	repo := repository.NewLoanRepository(db)
	stale, err := repo.GetByID(ctx, loan.ID)
	if err != nil {
		t.Fatalf("查询贷款失败: %v", err)
	}

	// 快照读取后另一笔还款先落库，版本号前进
	if _, err := svc.MakePayment(ctx, loan.ID, dec(t, "500"), "customer"); err != nil {
		t.Fatalf("还款失败: %v", err)
	}
	current, _ := repo.GetByID(ctx, loan.ID)

	// 基于过期版本号的扣减必须报乐观锁冲突，未还本金不变
	err = repo.ApplyPayment(ctx, nil, loan.ID, stale.Outstanding.Sub(dec(t, "500")), false, stale.Version)
	if !errors.Is(err, repository.ErrOptimisticLock) {
		t.Fatalf("err = %v, want ErrOptimisticLock", err)
	}
	unchanged, _ := repo.GetByID(ctx, loan.ID)
	if !unchanged.Outstanding.Equal(current.Outstanding) {
		t.Errorf("未还本金 = %s, want %s", unchanged.Outstanding, current.Outstanding)
	}
}

func TestLoanPaymentAutoClose(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	account := mustAccount(t, db, customer.ID, "5000")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypePersonal, dec(t, "1000"), dec(t, "12"), 12, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}
	if err := svc.Approve(ctx, loan.ID, "officer-01", ""); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	if err := svc.Disburse(ctx, loan.ID, account.ID, "officer-01"); err != nil {
		t.Fatalf("放款失败: %v", err)
	}

	// 第一笔还款：利息 1000*12/1200=10，本金840，剩余160
	first, err := svc.MakePayment(ctx, loan.ID, dec(t, "850"), "customer")
	if err != nil {
		t.Fatalf("还款失败: %v", err)
	}
	if first.OutstandingAfter.StringFixed(2) != "160.00" {
		t.Fatalf("剩余本金 = %s, want 160.00", first.OutstandingAfter.StringFixed(2))
	}
	mid, _ := svc.GetLoan(ctx, loan.ID)
	if mid.Status != model.LoanStatusDisbursed {
		t.Fatalf("未结清贷款 status = %s, want DISBURSED", mid.Status)
	}

	// 第二笔超额还款：剩余本金归零（不产生负数），贷款自动关闭
	second, err := svc.MakePayment(ctx, loan.ID, dec(t, "300"), "customer")
	if err != nil {
		t.Fatalf("还款失败: %v", err)
	}
	if !second.OutstandingAfter.IsZero() {
		t.Errorf("剩余本金 = %s, want 0", second.OutstandingAfter)
	}

	closed, _ := svc.GetLoan(ctx, loan.ID)
	if closed.Status != model.LoanStatusClosed {
		t.Errorf("status = %s, want CLOSED", closed.Status)
	}

	// 自动结清产生 DISBURSED -> CLOSED 审计记录
	entries, err := svc.ListLoanAudit(ctx, loan.ID)
	if err != nil {
		t.Fatalf("查询审计记录失败: %v", err)
	}
	var foundClose bool
	for _, e := range entries {
		if e.OldStatus == model.LoanStatusDisbursed && e.NewStatus == model.LoanStatusClosed {
			foundClose = true
		}
	}
	if !foundClose {
		t.Error("缺少结清审计记录")
	}

	// 结清后不能再还款
	if _, err := svc.MakePayment(ctx, loan.ID, dec(t, "100"), "customer"); !errors.Is(err, repository.ErrLoanStatusInvalid) {
		t.Errorf("err = %v, want ErrLoanStatusInvalid", err)
	}
}

func TestLoanPaymentHistory(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	account := mustAccount(t, db, customer.ID, "5000")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypePersonal, dec(t, "10000"), dec(t, "12"), 12, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}
	if err := svc.Approve(ctx, loan.ID, "officer-01", ""); err != nil {
		t.Fatalf("审批失败: %v", err)
	}
	if err := svc.Disburse(ctx, loan.ID, account.ID, "officer-01"); err != nil {
		t.Fatalf("放款失败: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.MakePayment(ctx, loan.ID, dec(t, "500"), "customer"); err != nil {
			t.Fatalf("第 %d 笔还款失败: %v", i+1, err)
		}
	}

	payments, err := svc.ListPayments(ctx, loan.ID)
	if err != nil {
		t.Fatalf("查询还款记录失败: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("还款记录数 = %d, want 3", len(payments))
	}

	// 每笔还款后的余额必须严格递减，且与贷款当前余额衔接
	for i := 1; i < len(payments); i++ {
		if !payments[i].OutstandingAfter.LessThan(payments[i-1].OutstandingAfter) {
			t.Errorf("余额未递减: %s -> %s",
				payments[i-1].OutstandingAfter, payments[i].OutstandingAfter)
		}
	}
	final, _ := svc.GetLoan(ctx, loan.ID)
	if !final.Outstanding.Equal(payments[2].OutstandingAfter) {
		t.Errorf("贷款余额 = %s, 最后一笔还款后 = %s", final.Outstanding, payments[2].OutstandingAfter)
	}
}

func TestLoanOutboxEvents(t *testing.T) {
	db := newTestDB(t)
	customer := mustCustomer(t, db, "Wang")
	svc := NewLoanService(db, nil)
	ctx := context.Background()

	loan, err := svc.Apply(ctx, customer.ID, model.LoanTypePersonal, dec(t, "10000"), dec(t, "12"), 12, "customer")
	if err != nil {
		t.Fatalf("申请失败: %v", err)
	}
	if err := svc.Approve(ctx, loan.ID, "officer-01", ""); err != nil {
		t.Fatalf("审批失败: %v", err)
	}

	// 申请和审批各产生一条待发送事件
	var count int64
	if err := db.Model(&model.OutboxMessage{}).
		Where("message_key = ? AND status = ?", loan.LoanNo, model.OutboxStatusPending).
		Count(&count).Error; err != nil {
		t.Fatalf("统计outbox失败: %v", err)
	}
	if count != 2 {
		t.Errorf("outbox 消息数 = %d, want 2", count)
	}
}
