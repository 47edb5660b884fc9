package hostlink

import (
	"io"
	"os"

	"github.com/tarm/serial"
	"github.com/wfunc/egm-aft/internal/config"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
)

// Port 串口抽象（测试中可替换）
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Opener 打开链路端口
type Opener func() (Port, error)

// SerialOpener 按配置打开主机链路串口
func SerialOpener(cfg config.SerialConfig) Opener {
	return func() (Port, error) {
		if _, err := os.Stat(cfg.Port); err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "串口设备不存在: %s", cfg.Port)
		}

		port, err := serial.OpenPort(&serial.Config{
			Name:        cfg.Port,
			Baud:        cfg.BaudRate,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: cfg.ReadTimeout,
		})
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "打开串口失败: %s", cfg.Port)
		}
		return port, nil
	}
}
