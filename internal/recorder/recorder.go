// Package recorder persists the filtered EMG stream to an EDF file, one
// one-second data record per EMG-rate batch of samples.
package recorder

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/OpenPSG/edf"
)

// channel indices into the buffered sample streams.
const (
	chRaw = iota
	chBandpass
	chNotch
	chEnvelope
	channelCount
)

var channelLabels = [channelCount]string{
	"Raw_EMG",
	"Bandpass_Filter",
	"Notch_Filter",
	"RMS_Envelope",
}

// physicalRange covers the full 24-bit ADC swing in microvolts.
const physicalRange = 210000.0

// Recorder buffers per-tick sample batches and flushes whole one-second
// records to an EDF file. After a successful open, write failures are
// downgraded to warnings so a disk problem never disturbs acquisition.
type Recorder struct {
	mu     sync.Mutex
	f      *os.File
	w      *edf.Writer
	fs     int
	buf    [channelCount][]float64
	closed bool
}

// New creates the EDF file and writes its provisional header. fs is the EMG
// sample rate; each data record holds fs samples per channel.
func New(path string, fs int) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: create %s: %w", path, err)
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate " + time.Now().Format("02-Jan-2006") + " EMG acquisition",
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		SignalCount:        channelCount,
	}
	for _, label := range channelLabels {
		hdr.Signals = append(hdr.Signals, edf.SignalHeader{
			Label:             label,
			TransducerType:    "EMG surface electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       -physicalRange,
			PhysicalMax:       physicalRange,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  fs,
		})
	}

	w, err := edf.Create(f, hdr)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("recorder: write header: %w", err)
	}
	log.Printf("[recorder] recording to %s (%d Hz)", path, fs)
	return &Recorder{f: f, w: w, fs: fs}, nil
}

// Append buffers one batch of equal-length sample slices and flushes every
// complete one-second record.
func (r *Recorder) Append(raw, bandpass, notch, envelope []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.buf[chRaw] = append(r.buf[chRaw], raw...)
	r.buf[chBandpass] = append(r.buf[chBandpass], bandpass...)
	r.buf[chNotch] = append(r.buf[chNotch], notch...)
	r.buf[chEnvelope] = append(r.buf[chEnvelope], envelope...)
	r.flushFull()
}

// flushFull writes records while every channel has a full second buffered.
// Caller holds the lock.
func (r *Recorder) flushFull() {
	for r.buffered() >= r.fs {
		record := make([][]float64, channelCount)
		for i := range r.buf {
			record[i] = r.buf[i][:r.fs]
			r.buf[i] = r.buf[i][r.fs:]
		}
		if err := r.w.WriteRecord(record); err != nil {
			log.Printf("[recorder] warning: write record: %v", err)
			return
		}
	}
}

// buffered returns the shortest channel buffer length; channels fill in
// lockstep but a torn Append must not produce a ragged record.
func (r *Recorder) buffered() int {
	n := len(r.buf[0])
	for _, b := range r.buf[1:] {
		if len(b) < n {
			n = len(b)
		}
	}
	return n
}

// Close flushes the zero-padded tail record, finalizes the header and closes
// the file. Idempotent.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if n := r.buffered(); n > 0 {
		record := make([][]float64, channelCount)
		for i := range r.buf {
			tail := make([]float64, r.fs)
			copy(tail, r.buf[i][:n])
			record[i] = tail
			r.buf[i] = nil
		}
		if err := r.w.WriteRecord(record); err != nil {
			log.Printf("[recorder] warning: write tail record: %v", err)
		}
	}
	if err := r.w.Close(); err != nil {
		log.Printf("[recorder] warning: finalize header: %v", err)
	}
	if err := r.f.Close(); err != nil {
		return fmt.Errorf("recorder: close file: %w", err)
	}
	log.Printf("[recorder] closed")
	return nil
}
