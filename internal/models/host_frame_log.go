package models

import (
	"time"

	"gorm.io/gorm"
)

// FrameDirection 帧方向
type FrameDirection string

const (
	FrameFromHost FrameDirection = "RECEIVE"
	FrameToHost   FrameDirection = "SEND"
)

// HostFrameLog 主机链路通信日志
type HostFrameLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`

	Direction  FrameDirection `gorm:"type:varchar(10);index;not null" json:"direction"`
	Address    uint8          `json:"address"`
	Command    uint8          `gorm:"index" json:"command"`
	HexData    string         `gorm:"type:text" json:"hex_data,omitempty"`
	BytesCount int            `gorm:"default:0" json:"bytes_count"`
	ErrorMsg   string         `gorm:"type:text" json:"error_msg,omitempty"`
	RequestID  string         `gorm:"type:varchar(36);index" json:"request_id,omitempty"` // 关联请求与应答
	Duration   int64          `gorm:"default:0" json:"duration,omitempty"`                // 处理时长（毫秒）
	Timestamp  int64          `gorm:"index" json:"timestamp"`                             // Unix时间戳（毫秒）
	Extra      JSONData       `gorm:"type:text" json:"extra,omitempty"`
}

// TableName 指定表名
func (HostFrameLog) TableName() string {
	return "host_frame_logs"
}

// BeforeCreate 创建前的钩子
func (l *HostFrameLog) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.Timestamp == 0 {
		l.Timestamp = now.UnixMilli()
	}
	return nil
}

// HostFrameLogQuery 查询参数
type HostFrameLogQuery struct {
	Direction FrameDirection `json:"direction,omitempty"`
	Command   *uint8         `json:"command,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	StartTime *time.Time     `json:"start_time,omitempty"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
	HasError  *bool          `json:"has_error,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Offset    int            `json:"offset,omitempty"`
}
