package hostlink

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/wfunc/egm-aft/internal/config"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/logger"
	"go.uber.org/zap"
)

const maxRetryInterval = 30 * time.Second

// Stats 链路统计
type Stats struct {
	Connected    bool      `json:"connected"`
	Frames       uint64    `json:"frames"`
	CRCErrors    uint64    `json:"crc_errors"`
	ForeignFrame uint64    `json:"foreign_frames"`
	Failed       uint64    `json:"failed"`
	Reconnects   uint64    `json:"reconnects"`
	LastFrameAt  time.Time `json:"last_frame_at"`
}

// Link 主机链路轮询循环
type Link struct {
	open          Opener
	address       byte
	handler       *Handler
	recorder      FrameRecorder
	retryTimes    int
	retryInterval time.Duration
	logger        *zap.Logger

	mu    sync.Mutex
	port  Port
	stats Stats
}

// NewLink 创建主机链路
func NewLink(cfg config.SerialConfig, open Opener, handler *Handler, logger *zap.Logger) *Link {
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Link{
		open:          open,
		address:       cfg.Address,
		handler:       handler,
		retryTimes:    cfg.RetryTimes,
		retryInterval: interval,
		logger:        logger,
	}
}

// SetRecorder 设置通信记录器
func (l *Link) SetRecorder(recorder FrameRecorder) {
	l.recorder = recorder
}

// Stats 链路统计快照
func (l *Link) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Run 打开端口并循环处理主机请求，ctx 取消时返回
func (l *Link) Run(ctx context.Context) error {
	if err := l.connect(ctx); err != nil {
		return err
	}
	defer l.disconnect()

	// 关闭端口以打断阻塞中的读取
	stop := context.AfterFunc(ctx, l.disconnect)
	defer stop()

	for {
		port := l.currentPort()
		if port == nil {
			if ctx.Err() != nil {
				return nil
			}
			if err := l.connect(ctx); err != nil {
				return err
			}
			continue
		}

		raw, frame, err := ReadFrame(port)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if l.dropFrame(raw, err) {
				continue
			}
			l.logger.Error("链路读取失败，准备重连", zap.Error(err))
			l.disconnect()
			continue
		}

		if err := l.serve(ctx, port, raw, frame); err != nil {
			l.logger.Error("链路写入失败，准备重连", zap.Error(err))
			l.disconnect()
		}
	}
}

// dropFrame 帧级错误丢弃该帧，返回是否可以继续读取
func (l *Link) dropFrame(raw []byte, err error) bool {
	switch {
	case apperrors.Is(err, apperrors.ErrFrameCRC):
		l.mu.Lock()
		l.stats.CRCErrors++
		l.mu.Unlock()
		l.logger.Warn("帧CRC错误，丢弃", zap.Binary("raw", raw), zap.Error(err))
		l.record(Exchange{Request: raw, Err: err})
		return true
	case apperrors.Is(err, apperrors.ErrFrameTruncated) && !errors.Is(err, io.ErrUnexpectedEOF):
		l.logger.Warn("帧长度错误，丢弃", zap.Binary("raw", raw), zap.Error(err))
		return true
	default:
		return false
	}
}

// serve 处理一帧并写回应答；只有写入失败才返回错误
func (l *Link) serve(ctx context.Context, port Port, raw []byte, frame *Frame) error {
	if frame.Address != l.address {
		l.mu.Lock()
		l.stats.ForeignFrame++
		l.mu.Unlock()
		l.logger.Debug("非本机地址的帧，忽略", zap.Stringer("frame", frame))
		return nil
	}

	start := time.Now()
	data, err := l.handler.Handle(ctx, frame)

	l.mu.Lock()
	l.stats.Frames++
	l.stats.LastFrameAt = start
	if err != nil {
		l.stats.Failed++
	}
	l.mu.Unlock()

	if err != nil {
		// 无法处理的请求不应答，主机按超时重发
		logger.LogHostCommand(frame.Command, raw, nil, err)
		l.record(Exchange{Address: frame.Address, Command: frame.Command, Request: raw, Err: err, Duration: time.Since(start)})
		return nil
	}

	response, err := (&Frame{Address: l.address, Command: frame.Command, Data: data}).Encode()
	if err != nil {
		logger.LogHostCommand(frame.Command, raw, nil, err)
		return nil
	}
	if _, err := port.Write(response); err != nil {
		logger.LogHostCommand(frame.Command, raw, response, err)
		return apperrors.Wrap(err, apperrors.ErrSerialPortWrite)
	}

	logger.LogHostCommand(frame.Command, raw, response, nil)
	l.record(Exchange{
		Address:  frame.Address,
		Command:  frame.Command,
		Request:  raw,
		Response: response,
		Duration: time.Since(start),
	})
	return nil
}

func (l *Link) record(exchange Exchange) {
	if l.recorder != nil {
		l.recorder.Record(exchange)
	}
}

func (l *Link) currentPort() Port {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}

// connect 打开端口，失败时按间隔重试（间隔逐次加倍，RetryTimes 为0时不限次数）
func (l *Link) connect(ctx context.Context) error {
	interval := l.retryInterval
	for attempt := 1; ; attempt++ {
		port, err := l.open()
		if err == nil {
			if flushErr := port.Flush(); flushErr != nil {
				l.logger.Warn("清空串口缓冲失败", zap.Error(flushErr))
			}
			l.mu.Lock()
			l.port = port
			l.stats.Connected = true
			if attempt > 1 {
				l.stats.Reconnects++
			}
			l.mu.Unlock()
			l.logger.Info("主机链路已连接", zap.Int("attempt", attempt))
			return nil
		}

		if l.retryTimes > 0 && attempt >= l.retryTimes {
			return apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "重试 %d 次后仍无法打开串口", attempt)
		}
		l.logger.Warn("打开串口失败，等待重试",
			zap.Int("attempt", attempt),
			zap.Duration("interval", interval),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, maxRetryInterval)
	}
}

// disconnect 关闭当前端口
func (l *Link) disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.port == nil {
		return
	}
	if err := l.port.Close(); err != nil {
		l.logger.Warn("关闭串口失败", zap.Error(err))
	}
	l.port = nil
	l.stats.Connected = false
	l.logger.Info("主机链路已断开")
}
