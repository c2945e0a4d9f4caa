// Package uvc speaks the USB Video Class protocol directly over bulk
// transfers. It backs cameras whose kernel driver never materialized a
// V4L2 node, trading the driver's buffer management for raw endpoint
// reads.
package uvc

import (
	"encoding/binary"
	"fmt"
)

// streamingControlLen is the UVC 1.0 probe/commit block size.
const streamingControlLen = 26

// StreamingControl is the video probe and commit control block
// exchanged during format negotiation (UVC 1.0, little endian).
type StreamingControl struct {
	Hint                   uint16
	FormatIndex            uint8
	FrameIndex             uint8
	FrameInterval          uint32
	KeyFrameRate           uint16
	PFrameRate             uint16
	CompQuality            uint16
	CompWindowSize         uint16
	Delay                  uint16
	MaxVideoFrameSize      uint32
	MaxPayloadTransferSize uint32
}

func (c *StreamingControl) MarshalBinary() ([]byte, error) {
	buf := make([]byte, streamingControlLen)
	binary.LittleEndian.PutUint16(buf[0:2], c.Hint)
	buf[2] = c.FormatIndex
	buf[3] = c.FrameIndex
	binary.LittleEndian.PutUint32(buf[4:8], c.FrameInterval)
	binary.LittleEndian.PutUint16(buf[8:10], c.KeyFrameRate)
	binary.LittleEndian.PutUint16(buf[10:12], c.PFrameRate)
	binary.LittleEndian.PutUint16(buf[12:14], c.CompQuality)
	binary.LittleEndian.PutUint16(buf[14:16], c.CompWindowSize)
	binary.LittleEndian.PutUint16(buf[16:18], c.Delay)
	binary.LittleEndian.PutUint32(buf[18:22], c.MaxVideoFrameSize)
	binary.LittleEndian.PutUint32(buf[22:26], c.MaxPayloadTransferSize)
	return buf, nil
}

func (c *StreamingControl) UnmarshalBinary(data []byte) error {
	if len(data) < streamingControlLen {
		return fmt.Errorf("control block too short: %d bytes, need %d", len(data), streamingControlLen)
	}
	c.Hint = binary.LittleEndian.Uint16(data[0:2])
	c.FormatIndex = data[2]
	c.FrameIndex = data[3]
	c.FrameInterval = binary.LittleEndian.Uint32(data[4:8])
	c.KeyFrameRate = binary.LittleEndian.Uint16(data[8:10])
	c.PFrameRate = binary.LittleEndian.Uint16(data[10:12])
	c.CompQuality = binary.LittleEndian.Uint16(data[12:14])
	c.CompWindowSize = binary.LittleEndian.Uint16(data[14:16])
	c.Delay = binary.LittleEndian.Uint16(data[16:18])
	c.MaxVideoFrameSize = binary.LittleEndian.Uint32(data[18:22])
	c.MaxPayloadTransferSize = binary.LittleEndian.Uint32(data[22:26])
	return nil
}
