package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一笔贷款同时收到两笔还款请求（比如网络抖动导致重复提交）
//
// 如果没有锁：
//   goroutine1: 读取未还本金=2000 -> 还款2000 -> 未还=0     OK
//   goroutine2: 读取未还本金=2000 -> 还款2000 -> 重复扣减！
//
// 数据库层面的乐观锁（version CAS）已经保证不会双重入账，
// 分布式锁是在它之上的粗粒度互斥，把冲突挡在事务之前，
// 减少 ErrOptimisticLock 重试。未部署 Redis 时可以不加，正确性不受影响。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	// SET key value NX EX timeout
	// EX 设置过期时间，防止持有锁的进程崩溃后死锁
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 使用 Lua 脚本验证 value 后再删除，避免误删其他持有者的锁：
// A 获取锁 -> A 处理超时锁过期 -> B 获取锁 -> A 执行完调用 Unlock，
// 如果不验证 value，A 会把 B 的锁删掉
//
// 脚本返回 0 说明锁已经不属于当前持有者（过期后被别人抢走），
// 返回 ErrLockExpired 提示调用方这段临界区的互斥保护已经失效
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	deleted, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockExpired
	}
	return nil
}

// ============================================================================
// 便捷函数：账户锁与贷款锁
// ============================================================================

// NewAccountLock 创建账户锁（按账户维度）
//
// 不同账户可以并发操作，同一账户的并发变更被串行化
func NewAccountLock(client *redis.Client, accountID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("ledger:lock:account:%d", accountID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// NewLoanLock 创建贷款锁（按贷款维度）
//
// 同一贷款的并发还款必须串行，否则两笔还款会基于同一个未还本金计算
func NewLoanLock(client *redis.Client, loanID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("ledger:lock:loan:%d", loanID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// SortAccountIDs 返回按升序排列的两个账户ID
//
// 【关键点】转账涉及两个账户，必须按固定全序（账户ID升序）获取锁，
// 否则两笔方向相反的并发转账会互相持有对方需要的锁而死锁
func SortAccountIDs(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}
