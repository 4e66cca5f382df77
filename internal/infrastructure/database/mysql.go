package database

import (
	"fmt"
	"log"
	"time"

	"github.com/shivam8897/dubeys-banking-management-system/internal/config"
	"github.com/shivam8897/dubeys-banking-management-system/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 连接
func InitMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("连接 MySQL 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("获取底层 DB 失败: %v", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	DB = db
	log.Println("MySQL 连接成功")
	return db
}

// Migrate 迁移表结构并写入账户类型参考数据
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Customer{},
		&model.AccountType{},
		&model.Account{},
		&model.TransactionRecord{},
		&model.Loan{},
		&model.LoanPayment{},
		&model.AuditEntry{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return err
	}

	return seedAccountTypes(db)
}

// seedAccountTypes 账户类型为不可变参考数据，仅在不存在时写入
func seedAccountTypes(db *gorm.DB) error {
	types := []model.AccountType{
		{TypeName: "SAVINGS", MinBalance: decimal.NewFromInt(1000), InterestRate: decimal.NewFromFloat(3.5)},
		{TypeName: "CURRENT", MinBalance: decimal.NewFromInt(5000), InterestRate: decimal.Zero},
		{TypeName: "FIXED_DEPOSIT", MinBalance: decimal.NewFromInt(10000), InterestRate: decimal.NewFromFloat(6.5)},
	}

	for _, t := range types {
		var count int64
		if err := db.Model(&model.AccountType{}).Where("type_name = ?", t.TypeName).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&t).Error; err != nil {
			return err
		}
	}

	return nil
}
