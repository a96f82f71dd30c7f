package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// 数据包类型，与Minecraft服务器的Source RCON实现保持一致
const (
	PacketTypeResponse int32 = 0 // 服务器响应
	PacketTypeCommand  int32 = 2 // 执行命令
	PacketTypeLogin    int32 = 3 // 登录认证
)

// size字段的合法范围，超出即认为流已失去同步
const (
	minPacketSize = 10
	maxPacketSize = 4096
)

// Packet 单个RCON数据包，只在一次协议往返期间存在
type Packet struct {
	RequestID int32  // 请求ID，由客户端分配并由服务器回显
	Type      int32  // 数据包类型
	Payload   string // 载荷内容
}

// encodePacket 将数据包编码为线上格式并一次性写入。
// 格式: size(4) | request_id(4) | type(4) | payload | 0x00 | 0x00，全部小端序，
// size统计自身之后的全部字节数。
func encodePacket(w io.Writer, p Packet) error {
	size := int32(4 + 4 + len(p.Payload) + 2)
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.RequestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.Type))
	copy(buf[12:], p.Payload)
	// 末尾两个零字节终止符由make的零值保证

	if _, err := w.Write(buf); err != nil {
		return wrapError(ErrCommandFailed, "发送数据包失败", err)
	}
	return nil
}

// decodePacket 从流中读取一个完整数据包
func decodePacket(r io.Reader) (Packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		// 在包边界上读到EOF是对端的正常关闭，包中途的EOF才是数据不完整
		if errors.Is(err, io.EOF) {
			return Packet{}, wrapError(ErrServerClosedConnection, "读取数据包长度时连接被服务器关闭", err)
		}
		return Packet{}, classifyReadError(err, "数据包长度")
	}

	if size < minPacketSize || size > maxPacketSize {
		return Packet{}, newError(ErrInvalidResponse, fmt.Sprintf("数据包长度异常: %d", size))
	}

	var requestID, packetType int32
	if err := binary.Read(r, binary.LittleEndian, &requestID); err != nil {
		return Packet{}, classifyReadError(err, "请求ID")
	}
	if err := binary.Read(r, binary.LittleEndian, &packetType); err != nil {
		return Packet{}, classifyReadError(err, "数据包类型")
	}

	// 载荷分段读取直到填满，单次短读不算错误
	payload := make([]byte, size-8)
	read := 0
	for read < len(payload) {
		n, err := r.Read(payload[read:])
		read += n
		if read >= len(payload) {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Packet{}, wrapError(ErrServerClosedConnection, "读取载荷时连接被服务器关闭", err)
			}
			return Packet{}, classifyReadError(err, "数据包载荷")
		}
		if n == 0 {
			// 读到0字节说明对端已经关闭
			return Packet{}, newError(ErrServerClosedConnection, "服务器关闭了连接")
		}
	}

	// 去掉末尾的零字节终止符，剩余内容按UTF-8解码，无效序列做替换
	body := bytes.TrimRight(payload, "\x00")
	return Packet{
		RequestID: requestID,
		Type:      packetType,
		Payload:   strings.ToValidUTF8(string(body), "�"),
	}, nil
}
