package monitor

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/classb/pkg/link"
)

// FrameRecord mirrors FrameRecord in record.proto.
type FrameRecord struct {
	Address              uint32   `protobuf:"varint,1,opt,name=address,proto3" json:"address,omitempty"`
	Payload              []byte   `protobuf:"bytes,2,opt,name=payload,proto3" json:"payload,omitempty"`
	Crc                  uint32   `protobuf:"varint,3,opt,name=crc,proto3" json:"crc,omitempty"`
	Timestamp            int64    `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	NodeId               string   `protobuf:"bytes,5,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

// Reset implements proto.Message.
func (m *FrameRecord) Reset() { *m = FrameRecord{} }

// String implements proto.Message.
func (m *FrameRecord) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*FrameRecord) ProtoMessage() {}

// NewFrameRecord creates a FrameRecord from a decoded packet.
func NewFrameRecord(pkt *link.Packet, nodeID string, at time.Time) *FrameRecord {
	return &FrameRecord{
		Address:   uint32(pkt.Address),
		Payload:   pkt.Payload,
		Crc:       uint32(pkt.CRC),
		Timestamp: at.UnixNano(),
		NodeId:    nodeID,
	}
}

// Packet converts the record back to a packet.
func (m *FrameRecord) Packet() *link.Packet {
	return &link.Packet{
		Address: byte(m.Address),
		Payload: m.Payload,
		CRC:     uint16(m.Crc),
	}
}

// Time returns Timestamp as time.Time.
func (m *FrameRecord) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}
