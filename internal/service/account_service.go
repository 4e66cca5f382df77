package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/model"
	"github.com/shivam8897/dubeys-banking-management-system/internal/repository"
	"github.com/shivam8897/dubeys-banking-management-system/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount       = errors.New("金额必须大于0")
	ErrSameAccount         = errors.New("转出和转入账户不能相同")
	ErrBelowMinimumDeposit = errors.New("初始存款低于账户类型最低余额要求")
	ErrAccountHasOpenLoans = errors.New("客户存在未结清贷款，不能关闭账户")
	ErrTransactionNotFound = errors.New("交易流水不存在")
)

// AccountService 账本服务
// 账户余额的唯一合法变更入口：开户、存款、取款、关户
// 每一次成功的余额变更都和一条流水在同一事务内落库
type AccountService struct {
	db              *gorm.DB
	customerRepo    *repository.CustomerRepository
	accountTypeRepo *repository.AccountTypeRepository
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	loanRepo        *repository.LoanRepository
	auditRepo       *repository.AuditRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:              db,
		customerRepo:    repository.NewCustomerRepository(db),
		accountTypeRepo: repository.NewAccountTypeRepository(db),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		loanRepo:        repository.NewLoanRepository(db),
		auditRepo:       repository.NewAuditRepository(db),
	}
}

// OpenAccount 开户
// 客户必须是 ACTIVE，初始存款不得低于账户类型的最低余额
func (s *AccountService) OpenAccount(ctx context.Context, customerID, accountTypeID int64, initialDeposit decimal.Decimal) (*model.Account, error) {
	if err := s.customerRepo.CheckActive(ctx, customerID); err != nil {
		return nil, err
	}

	accountType, err := s.accountTypeRepo.GetByID(ctx, accountTypeID)
	if err != nil {
		return nil, err
	}

	if initialDeposit.LessThan(accountType.MinBalance) {
		return nil, ErrBelowMinimumDeposit
	}

	account := &model.Account{
		AccountNo:     idgen.GenerateAccountNo(),
		CustomerID:    customerID,
		AccountTypeID: accountTypeID,
		Balance:       initialDeposit,
		Status:        model.AccountStatusActive,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Create(ctx, tx, account); err != nil {
			return fmt.Errorf("创建账户失败: %w", err)
		}

		record := &model.TransactionRecord{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     account.ID,
			Kind:          model.TransactionKindDeposit,
			Amount:        initialDeposit,
			BalanceAfter:  initialDeposit,
			Description:   "开户初始存款",
		}
		if err := s.transactionRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("开户成功: accountNo=%s, customerID=%d, balance=%s",
		account.AccountNo, customerID, initialDeposit.StringFixed(2))

	return account, nil
}

// Deposit 存款，返回入账后余额
func (s *AccountService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if account.Status != model.AccountStatusActive {
		return decimal.Zero, repository.ErrAccountInactive
	}

	newBalance := account.Balance.Add(amount)

	// 余额变更和流水追加必须同时生效
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Deposit(ctx, tx, accountID, amount, account.Version); err != nil {
			return err
		}

		record := &model.TransactionRecord{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     accountID,
			Kind:          model.TransactionKindDeposit,
			Amount:        amount,
			BalanceAfter:  newBalance,
			Description:   description,
		}
		if err := s.transactionRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// Withdraw 取款，返回出账后余额
// 取款后余额低于账户类型最低余额时整笔失败，余额不变
func (s *AccountService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if account.Status != model.AccountStatusActive {
		return decimal.Zero, repository.ErrAccountInactive
	}

	minBalance := account.AccountType.MinBalance
	newBalance := account.Balance.Sub(amount)
	if newBalance.LessThan(minBalance) {
		return decimal.Zero, repository.ErrBalanceNotEnough
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Withdraw(ctx, tx, accountID, amount, minBalance, account.Version); err != nil {
			return err
		}

		record := &model.TransactionRecord{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     accountID,
			Kind:          model.TransactionKindWithdrawal,
			Amount:        amount,
			BalanceAfter:  newBalance,
			Description:   description,
		}
		if err := s.transactionRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

// CloseAccount 关闭账户
// 前置条件：余额为零、客户名下没有未结清贷款；关闭是状态转换，数据永不删除
func (s *AccountService) CloseAccount(ctx context.Context, accountID int64, actor string) error {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status != model.AccountStatusActive {
		return repository.ErrAccountInactive
	}

	hasOpen, err := s.loanRepo.HasOpenLoans(ctx, account.CustomerID)
	if err != nil {
		return err
	}
	if hasOpen {
		return ErrAccountHasOpenLoans
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.Close(ctx, tx, accountID, account.Version); err != nil {
			return err
		}

		entry := &model.AuditEntry{
			LoanID:    0, // 系统级事件
			OldStatus: model.AccountStatusActive,
			NewStatus: model.AccountStatusClosed,
			Actor:     actor,
			Remarks:   fmt.Sprintf("账户关闭: %s", account.AccountNo),
		}
		if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
			return fmt.Errorf("写入审计日志失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return err
	}

	log.Printf("账户已关闭: accountNo=%s, actor=%s", account.AccountNo, actor)
	return nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

// GetAccountByNo 按账号查询，柜面和对外渠道只认账号不认内部ID
func (s *AccountService) GetAccountByNo(ctx context.Context, accountNo string) (*model.Account, error) {
	return s.accountRepo.GetByAccountNo(ctx, accountNo)
}

func (s *AccountService) ListAccounts(ctx context.Context, customerID int64) ([]*model.Account, error) {
	return s.accountRepo.ListByCustomerID(ctx, customerID)
}

func (s *AccountService) ListAccountTypes(ctx context.Context) ([]*model.AccountType, error) {
	return s.accountTypeRepo.List(ctx)
}

// GetTransaction 按流水号查询单笔流水，用于交易回单核对
func (s *AccountService) GetTransaction(ctx context.Context, transactionNo string) (*model.TransactionRecord, error) {
	record, err := s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrTransactionNotFound
	}
	return record, nil
}

func (s *AccountService) ListTransactions(ctx context.Context, accountID int64, page, pageSize int) ([]*model.TransactionRecord, int64, error) {
	return s.transactionRepo.ListByAccountID(ctx, accountID, page, pageSize)
}

func (s *AccountService) ListTransactionsByRange(ctx context.Context, accountID int64, from, to time.Time) ([]*model.TransactionRecord, error) {
	return s.transactionRepo.ListByAccountIDAndRange(ctx, accountID, from, to)
}

// CreateCustomer 建档属于外围管理功能，这里只提供最小实现
func (s *AccountService) CreateCustomer(ctx context.Context, name, email, phone string) (*model.Customer, error) {
	customer := &model.Customer{
		Name:   name,
		Email:  email,
		Phone:  phone,
		Status: model.CustomerStatusActive,
	}
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}
