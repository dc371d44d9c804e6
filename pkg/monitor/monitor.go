// Package monitor sniffs a link and publishes every verified frame.
package monitor

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/classb/pkg/framework"
	"github.com/robotalks/classb/pkg/link"
)

// FramesTopic is the topic suffix under the node ID.
const FramesTopic = "frames"

// Publisher publishes a message to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Monitor decodes frames from Reader and publishes them as FrameRecord.
// It never writes to the link.
type Monitor struct {
	Reader    io.Reader
	Publisher Publisher
	NodeID    string
	// OnFrame is optional and called for every decoded frame.
	OnFrame func(*FrameRecord)
	// Now is the clock, defaults to time.Now.
	Now func() time.Time

	frames    uint64
	pubErrors uint64
	decoder   *link.Decoder
}

// New creates a Monitor.
func New(r io.Reader, pub Publisher, nodeID string) *Monitor {
	m := &Monitor{Reader: r, Publisher: pub, NodeID: nodeID}
	m.decoder = link.NewDecoder(link.HandlePacketFunc(m.handlePacket))
	return m
}

// Topic is where records are published, relative to the queue prefix.
func (m *Monitor) Topic() string {
	return m.NodeID + "/" + FramesTopic
}

// Frames returns the number of frames decoded.
func (m *Monitor) Frames() uint64 {
	return atomic.LoadUint64(&m.frames)
}

// PublishErrors returns the number of records failed to publish.
func (m *Monitor) PublishErrors() uint64 {
	return atomic.LoadUint64(&m.pubErrors)
}

// Discards returns the number of partial or corrupted frames dropped.
func (m *Monitor) Discards() int {
	if m.decoder == nil {
		return 0
	}
	return m.decoder.Discards()
}

// Run implements Runnable.
func (m *Monitor) Run(ctx context.Context) error {
	if m.decoder == nil {
		m.decoder = link.NewDecoder(link.HandlePacketFunc(m.handlePacket))
	}
	if closer, ok := m.Reader.(io.Closer); ok {
		return fx.RunWithContextCloser(ctx, closer, m.copy)
	}
	return fx.RunWithContextCancel(ctx, nil, m.copy)
}

func (m *Monitor) copy() error {
	_, err := io.Copy(m.decoder, m.Reader)
	return err
}

func (m *Monitor) handlePacket(pkt *link.Packet) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	rec := NewFrameRecord(pkt, m.NodeID, now())
	atomic.AddUint64(&m.frames, 1)
	glog.V(2).Infof("frame %02x: % x", pkt.Address, pkt.Payload)
	if fn := m.OnFrame; fn != nil {
		fn(rec)
	}
	if m.Publisher == nil {
		return
	}
	encoded, err := proto.Marshal(rec)
	if err == nil {
		err = m.Publisher.Publish(m.Topic(), encoded)
	}
	if err != nil {
		atomic.AddUint64(&m.pubErrors, 1)
		glog.Warningf("publish frame %02x: %v", pkt.Address, err)
	}
}

// FollowHandler decodes FrameRecords published by monitors and calls fn
// with the node ID taken from the topic.
func FollowHandler(fn func(node string, rec *FrameRecord)) MessageHandler {
	return func(topic string, payload []byte) {
		var rec FrameRecord
		if err := proto.Unmarshal(payload, &rec); err != nil {
			glog.Warningf("invalid record on %q: %v", topic, err)
			return
		}
		node := rec.NodeId
		if n := len(topic) - len(FramesTopic) - 1; node == "" && n > 0 {
			node = topic[:n]
		}
		fn(node, &rec)
	}
}

// Follow subscribes to frames published by all monitors under the queue prefix.
func Follow(q *Queue, fn func(node string, rec *FrameRecord)) *Subscription {
	return q.Sub("+/"+FramesTopic, FollowHandler(fn))
}
