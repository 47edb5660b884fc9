package hostlink

import (
	"fmt"
	"io"

	apperrors "github.com/wfunc/egm-aft/internal/errors"
)

// 长轮询指令
const (
	CmdTransferFunds  byte = 0x72 // 转账
	CmdRegister       byte = 0x73 // 机台注册
	CmdGameLockStatus byte = 0x74 // 锁机与状态查询
	CmdSetReceiptData byte = 0x75 // 设置收据数据
)

const (
	frameOverhead       = 5 // 地址(1) + 命令(1) + 长度(1) + CRC(2)
	maxFrameData        = 255
	crcKermitPolynomial = 0x8408
)

// Frame 主机链路数据帧
type Frame struct {
	Address byte
	Command byte
	Data    []byte
}

// Encode 编码为线路字节：地址、命令、长度、数据、CRC（低字节在前）
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Data) > maxFrameData {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "帧数据过长: %d", len(f.Data))
	}

	buf := make([]byte, 0, frameOverhead+len(f.Data))
	buf = append(buf, f.Address, f.Command, byte(len(f.Data)))
	buf = append(buf, f.Data...)
	crc := CRC16Kermit(buf)
	return append(buf, byte(crc), byte(crc>>8)), nil
}

// DecodeFrame 解析完整帧并校验CRC
func DecodeFrame(raw []byte) (*Frame, error) {
	if len(raw) < frameOverhead {
		return nil, apperrors.Newf(apperrors.ErrFrameTruncated, "帧长度 %d", len(raw))
	}

	length := int(raw[2])
	if len(raw) != frameOverhead+length {
		return nil, apperrors.Newf(apperrors.ErrFrameTruncated, "长度字段 %d 与帧长度 %d 不符", length, len(raw))
	}

	body := raw[:3+length]
	received := uint16(raw[3+length]) | uint16(raw[4+length])<<8
	if calc := CRC16Kermit(body); calc != received {
		return nil, apperrors.Newf(apperrors.ErrFrameCRC, "calc=0x%04X recv=0x%04X", calc, received)
	}

	data := make([]byte, length)
	copy(data, raw[3:3+length])
	return &Frame{Address: raw[0], Command: raw[1], Data: data}, nil
}

// ReadFrame 从链路读取一帧，返回原始字节供日志使用
func ReadFrame(r io.Reader) ([]byte, *Frame, error) {
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, readError(err)
	}

	raw := make([]byte, frameOverhead+int(header[2]))
	copy(raw, header)
	if _, err := io.ReadFull(r, raw[3:]); err != nil {
		return header, nil, readError(err)
	}

	frame, err := DecodeFrame(raw)
	return raw, frame, err
}

func readError(err error) error {
	switch err {
	case io.EOF:
		return err
	case io.ErrUnexpectedEOF:
		return apperrors.Wrap(err, apperrors.ErrFrameTruncated)
	default:
		return apperrors.Wrap(err, apperrors.ErrSerialPortRead)
	}
}

// CRC16Kermit CRC-16/KERMIT（多项式0x1021反射，初值0）
func CRC16Kermit(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcKermitPolynomial
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// String 帧摘要
func (f *Frame) String() string {
	return fmt.Sprintf("addr=0x%02X cmd=0x%02X len=%d", f.Address, f.Command, len(f.Data))
}
