package rcon

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestPacketRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		p    Packet
	}{
		{"空载荷", Packet{RequestID: 1, Type: PacketTypeLogin, Payload: ""}},
		{"普通命令", Packet{RequestID: 7, Type: PacketTypeCommand, Payload: "list"}},
		{"中文载荷", Packet{RequestID: 42, Type: PacketTypeResponse, Payload: "当前在线玩家: 3人"}},
		{"负请求ID", Packet{RequestID: -1, Type: PacketTypeResponse, Payload: "auth failed"}},
		{"最大长度载荷", Packet{RequestID: 9, Type: PacketTypeResponse, Payload: strings.Repeat("a", 4086)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := encodePacket(&buf, tc.p); err != nil {
				t.Fatalf("encodePacket() error: %v", err)
			}

			got, err := decodePacket(&buf)
			if err != nil {
				t.Fatalf("decodePacket() error: %v", err)
			}
			if got.RequestID != tc.p.RequestID {
				t.Errorf("RequestID = %d, want %d", got.RequestID, tc.p.RequestID)
			}
			if got.Type != tc.p.Type {
				t.Errorf("Type = %d, want %d", got.Type, tc.p.Type)
			}
			if got.Payload != tc.p.Payload {
				t.Errorf("Payload = %q, want %q", got.Payload, tc.p.Payload)
			}
		})
	}
}

func TestEncodeWireFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := encodePacket(&buf, Packet{RequestID: 5, Type: PacketTypeCommand, Payload: "say hi"}); err != nil {
		t.Fatalf("encodePacket() error: %v", err)
	}

	raw := buf.Bytes()
	wantLen := 4 + 4 + 4 + 6 + 2
	if len(raw) != wantLen {
		t.Fatalf("编码后总长度 = %d, want %d", len(raw), wantLen)
	}

	size := int32(binary.LittleEndian.Uint32(raw[0:4]))
	if size != 16 {
		t.Errorf("size字段 = %d, want 16", size)
	}
	id := int32(binary.LittleEndian.Uint32(raw[4:8]))
	if id != 5 {
		t.Errorf("request_id字段 = %d, want 5", id)
	}
	typ := int32(binary.LittleEndian.Uint32(raw[8:12]))
	if typ != PacketTypeCommand {
		t.Errorf("type字段 = %d, want %d", typ, PacketTypeCommand)
	}
	if string(raw[12:18]) != "say hi" {
		t.Errorf("载荷 = %q, want %q", raw[12:18], "say hi")
	}
	if raw[18] != 0 || raw[19] != 0 {
		t.Errorf("结束符 = % x, want 00 00", raw[18:20])
	}
}

func TestDecodeRejectsSizeOutOfRange(t *testing.T) {
	for _, size := range []int32{9, 4097} {
		var buf bytes.Buffer
		binary.Write(&buf, binary.LittleEndian, size)
		buf.Write(make([]byte, 16))

		_, err := decodePacket(&buf)
		if err == nil {
			t.Fatalf("size=%d 时 decodePacket() 应当失败", size)
		}
		if got := KindOf(err); got != ErrInvalidResponse {
			t.Errorf("size=%d 的错误类别 = %v, want %v", size, got, ErrInvalidResponse)
		}
	}
}

func TestDecodeAcceptsSizeBoundaries(t *testing.T) {
	// size=10是空载荷包，size=4096是最大载荷包，都必须能解码
	for _, payloadLen := range []int{0, 4086} {
		var buf bytes.Buffer
		if err := encodePacket(&buf, Packet{RequestID: 1, Type: PacketTypeResponse, Payload: strings.Repeat("x", payloadLen)}); err != nil {
			t.Fatalf("encodePacket() error: %v", err)
		}
		if _, err := decodePacket(&buf); err != nil {
			t.Errorf("载荷长度 %d 时 decodePacket() error: %v", payloadLen, err)
		}
	}
}

func TestDecodeShortHeaderIsBufferError(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x10, 0x00})

	_, err := decodePacket(buf)
	if err == nil {
		t.Fatal("残缺的包头应当解码失败")
	}
	if got := KindOf(err); got != ErrBufferError {
		t.Errorf("错误类别 = %v, want %v", got, ErrBufferError)
	}
}

func TestDecodeEOFAtPacketBoundary(t *testing.T) {
	// 包边界上的EOF是对端的正常关闭
	_, err := decodePacket(bytes.NewBuffer(nil))
	if err == nil {
		t.Fatal("空流应当解码失败")
	}
	if got := KindOf(err); got != ErrServerClosedConnection {
		t.Errorf("错误类别 = %v, want %v", got, ErrServerClosedConnection)
	}
}

func TestDecodeTruncatedPayloadIsServerClosed(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, int32(20))
	binary.Write(&buf, binary.LittleEndian, int32(3))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	buf.WriteString("abc") // 载荷缺12-3=9字节后流结束

	_, err := decodePacket(&buf)
	if err == nil {
		t.Fatal("载荷被截断时应当解码失败")
	}
	if got := KindOf(err); got != ErrServerClosedConnection {
		t.Errorf("错误类别 = %v, want %v", got, ErrServerClosedConnection)
	}
}

func TestDecodeStripsTrailingZeros(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("done\x00\x00\x00")
	size := int32(4 + 4 + len(payload))
	binary.Write(&buf, binary.LittleEndian, size)
	binary.Write(&buf, binary.LittleEndian, int32(2))
	binary.Write(&buf, binary.LittleEndian, PacketTypeResponse)
	buf.Write(payload)

	got, err := decodePacket(&buf)
	if err != nil {
		t.Fatalf("decodePacket() error: %v", err)
	}
	if got.Payload != "done" {
		t.Errorf("Payload = %q, want %q", got.Payload, "done")
	}
}

func TestDecodeReplacesInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{'o', 'k', 0xff, 0xfe, 0x00, 0x00}
	size := int32(4 + 4 + len(payload))
	binary.Write(&buf, binary.LittleEndian, size)
	binary.Write(&buf, binary.LittleEndian, int32(2))
	binary.Write(&buf, binary.LittleEndian, PacketTypeResponse)
	buf.Write(payload)

	got, err := decodePacket(&buf)
	if err != nil {
		t.Fatalf("decodePacket() error: %v", err)
	}
	if !strings.HasPrefix(got.Payload, "ok") {
		t.Errorf("Payload = %q, 应当以ok开头", got.Payload)
	}
	if !strings.Contains(got.Payload, "�") {
		t.Errorf("Payload = %q, 无效字节应当被替换为U+FFFD", got.Payload)
	}
}
