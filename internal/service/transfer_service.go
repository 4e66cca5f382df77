package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/infrastructure/lock"
	"github.com/shivam8897/dubeys-banking-management-system/internal/model"
	"github.com/shivam8897/dubeys-banking-management-system/internal/repository"
	"github.com/shivam8897/dubeys-banking-management-system/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransferService 转账服务
//
// 【关键点】防死锁：锁的获取顺序固定按账户ID升序
// Redis锁和数据库行锁都遵循同一顺序，并发的 A→B 和 B→A 不会互相等待
//
// 【重要】原子性：借记和贷记在同一个数据库事务内执行
// 借记条件不满足（余额不足/版本冲突/账户非ACTIVE）时整个事务回滚，
// 两个账户的余额都保持不变，绝不出现单边账
type TransferService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewTransferService(db *gorm.DB, redisClient *redis.Client) *TransferService {
	return &TransferService{
		db:              db,
		redisClient:     redisClient,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// TransferResult 转账结果，包含两条互相关联的流水号
type TransferResult struct {
	OutTransactionNo string          `json:"out_transaction_no"`
	InTransactionNo  string          `json:"in_transaction_no"`
	FromBalance      decimal.Decimal `json:"from_balance"`
	ToBalance        decimal.Decimal `json:"to_balance"`
}

// Transfer 两腿转账
func (s *TransferService) Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, description string) (*TransferResult, error) {
	if fromAccountID == toAccountID {
		return nil, ErrSameAccount
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	// ============ 第一步：按升序获取分布式锁（未配置Redis时跳过，正确性由数据库CAS兜底） ============
	if s.redisClient != nil {
		holder := idgen.GenerateTransactionNo()
		firstID, secondID := lock.SortAccountIDs(fromAccountID, toAccountID)

		firstLock := lock.NewAccountLock(s.redisClient, firstID, holder)
		if err := firstLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("获取账户锁失败: %w", err)
		}
		defer firstLock.Unlock(context.Background())

		secondLock := lock.NewAccountLock(s.redisClient, secondID, holder)
		if err := secondLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("获取账户锁失败: %w", err)
		}
		defer secondLock.Unlock(context.Background())
	}

	// ============ 第二步：读取快照并做前置校验 ============
	fromAccount, err := s.accountRepo.GetByID(ctx, fromAccountID)
	if err != nil {
		return nil, err
	}
	toAccount, err := s.accountRepo.GetByID(ctx, toAccountID)
	if err != nil {
		return nil, err
	}

	if fromAccount.Status != model.AccountStatusActive || toAccount.Status != model.AccountStatusActive {
		return nil, repository.ErrAccountInactive
	}

	minBalance := fromAccount.AccountType.MinBalance
	fromNewBalance := fromAccount.Balance.Sub(amount)
	if fromNewBalance.LessThan(minBalance) {
		return nil, repository.ErrBalanceNotEnough
	}
	toNewBalance := toAccount.Balance.Add(amount)

	result := &TransferResult{
		OutTransactionNo: idgen.GenerateTransactionNo(),
		InTransactionNo:  idgen.GenerateTransactionNo(),
		FromBalance:      fromNewBalance,
		ToBalance:        toNewBalance,
	}

	// ============ 第三步：借记+贷记+双流水，单事务内完成 ============
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 行锁获取顺序同样按ID升序，和Redis锁保持一致
		ordered := []func() error{}
		debit := func() error {
			return s.accountRepo.Withdraw(ctx, tx, fromAccountID, amount, minBalance, fromAccount.Version)
		}
		credit := func() error {
			return s.accountRepo.Deposit(ctx, tx, toAccountID, amount, toAccount.Version)
		}
		if fromAccountID < toAccountID {
			ordered = append(ordered, debit, credit)
		} else {
			ordered = append(ordered, credit, debit)
		}
		for _, op := range ordered {
			if err := op(); err != nil {
				return err
			}
		}

		outRecord := &model.TransactionRecord{
			TransactionNo:    result.OutTransactionNo,
			AccountID:        fromAccountID,
			Kind:             model.TransactionKindTransferOut,
			Amount:           amount,
			BalanceAfter:     fromNewBalance,
			CounterAccountID: toAccountID,
			Description:      description,
		}
		if err := s.transactionRepo.Create(ctx, tx, outRecord); err != nil {
			return fmt.Errorf("记录转出流水失败: %w", err)
		}

		inRecord := &model.TransactionRecord{
			TransactionNo:    result.InTransactionNo,
			AccountID:        toAccountID,
			Kind:             model.TransactionKindTransferIn,
			Amount:           amount,
			BalanceAfter:     toNewBalance,
			CounterAccountID: fromAccountID,
			Description:      description,
		}
		if err := s.transactionRepo.Create(ctx, tx, inRecord); err != nil {
			return fmt.Errorf("记录转入流水失败: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	log.Printf("转账成功: from=%d, to=%d, amount=%s, outTxn=%s",
		fromAccountID, toAccountID, amount.StringFixed(2), result.OutTransactionNo)

	return result, nil
}
