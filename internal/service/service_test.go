package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shivam8897/dubeys-banking-management-system/internal/infrastructure/database"
	"github.com/shivam8897/dubeys-banking-management-system/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试用例独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}

	return db
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("金额格式错误 %q: %v", s, err)
	}
	return d
}

func mustCustomer(t *testing.T, db *gorm.DB, name string) *model.Customer {
	t.Helper()
	customer := &model.Customer{
		Name:   name,
		Email:  fmt.Sprintf("%s@example.com", strings.ToLower(name)),
		Status: model.CustomerStatusActive,
	}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("创建客户失败: %v", err)
	}
	return customer
}

func accountTypeID(t *testing.T, db *gorm.DB, typeName string) int64 {
	t.Helper()
	var accountType model.AccountType
	if err := db.Where("type_name = ?", typeName).First(&accountType).Error; err != nil {
		t.Fatalf("查询账户类型 %s 失败: %v", typeName, err)
	}
	return accountType.ID
}

// mustAccount 开一个 SAVINGS 账户（最低余额1000）
func mustAccount(t *testing.T, db *gorm.DB, customerID int64, balance string) *model.Account {
	t.Helper()
	svc := NewAccountService(db)
	account, err := svc.OpenAccount(context.Background(), customerID, accountTypeID(t, db, "SAVINGS"), dec(t, balance))
	if err != nil {
		t.Fatalf("开户失败: %v", err)
	}
	return account
}

func accountBalance(t *testing.T, db *gorm.DB, accountID int64) decimal.Decimal {
	t.Helper()
	var account model.Account
	if err := db.Where("id = ?", accountID).First(&account).Error; err != nil {
		t.Fatalf("查询账户失败: %v", err)
	}
	return account.Balance
}

func transactionCount(t *testing.T, db *gorm.DB, accountID int64) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&model.TransactionRecord{}).Where("account_id = ?", accountID).Count(&count).Error; err != nil {
		t.Fatalf("统计流水失败: %v", err)
	}
	return count
}
