package hostlink

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/wfunc/egm-aft/internal/models"
	"github.com/wfunc/egm-aft/internal/repository"
	"go.uber.org/zap"
)

const (
	recorderBatchSize     = 100
	recorderQueueSize     = 1000
	recorderFlushInterval = 5 * time.Second
)

// Exchange 一次请求应答
type Exchange struct {
	Address  byte
	Command  byte
	Request  []byte
	Response []byte
	Err      error
	Duration time.Duration
}

// FrameRecorder 链路通信记录
type FrameRecorder interface {
	Record(exchange Exchange)
}

// FrameLog 链路通信日志，后台批量写入数据库
type FrameLog struct {
	repo      *repository.HostFrameLogRepository
	logger    *zap.Logger
	mu        sync.Mutex
	buffer    []*models.HostFrameLog
	queue     chan *models.HostFrameLog
	stopCh    chan struct{}
	wg        conc.WaitGroup
	sessionID string
	interval  time.Duration
}

// NewFrameLog 创建链路日志并启动后台写入
func NewFrameLog(repo *repository.HostFrameLogRepository, logger *zap.Logger) *FrameLog {
	return newFrameLog(repo, logger, recorderFlushInterval)
}

func newFrameLog(repo *repository.HostFrameLogRepository, logger *zap.Logger, interval time.Duration) *FrameLog {
	l := &FrameLog{
		repo:      repo,
		logger:    logger,
		buffer:    make([]*models.HostFrameLog, 0, recorderBatchSize),
		queue:     make(chan *models.HostFrameLog, recorderQueueSize),
		stopCh:    make(chan struct{}),
		sessionID: uuid.NewString(),
		interval:  interval,
	}
	l.wg.Go(l.backgroundWriter)
	return l
}

// Record 记录一次请求应答（两行，共享请求ID）
func (l *FrameLog) Record(exchange Exchange) {
	requestID := uuid.NewString()
	extra := models.JSONData{"session_id": l.sessionID}

	request := &models.HostFrameLog{
		Direction:  models.FrameFromHost,
		Address:    exchange.Address,
		Command:    exchange.Command,
		HexData:    hex.EncodeToString(exchange.Request),
		BytesCount: len(exchange.Request),
		RequestID:  requestID,
		Extra:      extra,
	}
	if exchange.Err != nil {
		request.ErrorMsg = exchange.Err.Error()
	}
	l.enqueue(request)

	if exchange.Response != nil {
		l.enqueue(&models.HostFrameLog{
			Direction:  models.FrameToHost,
			Address:    exchange.Address,
			Command:    exchange.Command,
			HexData:    hex.EncodeToString(exchange.Response),
			BytesCount: len(exchange.Response),
			RequestID:  requestID,
			Duration:   exchange.Duration.Milliseconds(),
			Extra:      extra,
		})
	}
}

func (l *FrameLog) enqueue(row *models.HostFrameLog) {
	select {
	case l.queue <- row:
	default:
		l.logger.Warn("链路日志缓冲区满，丢弃日志")
	}
}

// backgroundWriter 批量写入，缓冲满或定时刷新
func (l *FrameLog) backgroundWriter() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case row := <-l.queue:
			l.mu.Lock()
			l.buffer = append(l.buffer, row)
			if len(l.buffer) >= recorderBatchSize {
				l.flushBuffer()
			}
			l.mu.Unlock()

		case <-ticker.C:
			l.mu.Lock()
			l.flushBuffer()
			l.mu.Unlock()

		case <-l.stopCh:
			l.mu.Lock()
			l.drainQueue()
			l.flushBuffer()
			l.mu.Unlock()
			return
		}
	}
}

// drainQueue 退出前取出队列中剩余的日志
func (l *FrameLog) drainQueue() {
	for {
		select {
		case row := <-l.queue:
			l.buffer = append(l.buffer, row)
		default:
			return
		}
	}
}

func (l *FrameLog) flushBuffer() {
	if len(l.buffer) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.repo.CreateBatch(ctx, l.buffer); err != nil {
		l.logger.Error("批量写入链路日志失败", zap.Error(err))
	} else {
		l.logger.Debug("批量写入链路日志成功", zap.Int("count", len(l.buffer)))
	}
	l.buffer = make([]*models.HostFrameLog, 0, recorderBatchSize)
}

// Close 停止后台写入并刷新剩余日志
func (l *FrameLog) Close() {
	close(l.stopCh)
	l.wg.Wait()
}
