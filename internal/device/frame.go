package device

import "encoding/binary"

// Wire layout of one iFocus protocol frame:
//
//	bytes 0..14   5 consecutive EMG samples, 3 bytes each,
//	              little-endian 24-bit two's complement
//	bytes 15..20  one IMU tri-axis sample, 3 x int16 little-endian
//
// The EMG samples within a frame are time-ordered; the IMU sample covers
// the same interval, which is why the IMU rate is 1/5 of the EMG rate.
const (
	emgSamplesPerFrame = 5
	emgSampleBytes     = 3
	imuPayloadBytes    = 6
	frameSize          = emgSamplesPerFrame*emgSampleBytes + imuPayloadBytes

	// emgScale converts a raw 24-bit ADC count to microvolts.
	emgScale = 0.0240405
	// imuScale converts a raw int16 count to degrees.
	imuScale = 0.01
)

// Frame is one decoded protocol unit: five time-ordered EMG samples in
// microvolts and one IMU tri-axis sample in degrees.
type Frame struct {
	EMG [5]float64
	IMU [3]float64
}

// Decode decodes a single frame from the front of buf. It returns the frame,
// the number of bytes consumed, and ok=false when buf does not yet hold a
// complete frame (the caller must retain the bytes and retry after the next
// read).
func Decode(buf []byte) (Frame, int, bool) {
	if len(buf) < frameSize {
		return Frame{}, 0, false
	}
	var f Frame
	for i := 0; i < emgSamplesPerFrame; i++ {
		off := i * emgSampleBytes
		raw := uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16
		v := int32(raw)
		if raw&0x00800000 != 0 {
			v = int32(raw | 0xFF000000)
		}
		f.EMG[i] = float64(v) * emgScale
	}
	imu := buf[emgSamplesPerFrame*emgSampleBytes : frameSize]
	for i := 0; i < 3; i++ {
		raw := int16(binary.LittleEndian.Uint16(imu[i*2:]))
		f.IMU[i] = float64(raw) * imuScale
	}
	return f, frameSize, true
}

// EncodeFrame builds the wire representation of a frame from raw ADC counts.
// It is the inverse of Decode before unit conversion and exists for the
// simulated transport and tests.
func EncodeFrame(emg [5]int32, imu [3]int16) []byte {
	buf := make([]byte, frameSize)
	for i, v := range emg {
		off := i * emgSampleBytes
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
	}
	for i, v := range imu {
		binary.LittleEndian.PutUint16(buf[emgSamplesPerFrame*emgSampleBytes+i*2:], uint16(v))
	}
	return buf
}

// EMGScale is the physical conversion factor in microvolts per LSB.
func EMGScale() float64 { return emgScale }

// FrameSize is the wire size of one frame in bytes.
func FrameSize() int { return frameSize }
