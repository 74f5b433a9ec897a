// Package tasks 后台定时任务
package tasks

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 单次清理任务的超时
const purgeTimeout = 30 * time.Second

// Purger 清理已处理的审批申请
type Purger interface {
	PurgeDecided(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler cron 调度器封装
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler 创建调度器；表达式为标准 5 段格式（分 时 日 月 周）
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{sugar: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// RegisterPurge 注册审批申请清理任务
func (s *Scheduler) RegisterPurge(spec string, purger Purger, retention time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		PurgeDecidedRequests(context.Background(), purger, retention, s.logger)
	})
	if err != nil {
		return err
	}
	s.logger.Info("已注册申请清理任务", zap.String("spec", spec), zap.Duration("retention", retention))
	return nil
}

// Jobs 已注册的任务数
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start 启动调度（非阻塞）
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时任务已启动", zap.Int("jobs", s.Jobs()))
}

// Stop 停止调度，等待正在执行的任务结束或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("定时任务已停止")
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// PurgeDecidedRequests 执行一次清理
func PurgeDecidedRequests(ctx context.Context, purger Purger, retention time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	start := time.Now()
	n, err := purger.PurgeDecided(ctx, retention)
	if err != nil {
		logger.Error("清理已处理申请失败", zap.Error(err))
		return
	}
	logger.Info("申请清理任务完成",
		zap.Int64("deleted", n),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// cronLogger 将 cron 内部日志转到 zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
