// SPDX-License-Identifier: MIT
// Package record writes admitted meter samples to a 16-bit mono WAV file
// so a session can be replayed through the wav source later.
package record

import (
	"fmt"
	"os"
	"sync/atomic"

	applog "ledmeter/internal/log"
	"ledmeter/internal/meter"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth  = 16
	numChans  = 1
	pcmFormat = 1

	// DefaultChunkSize samples are buffered before each encoder write.
	DefaultChunkSize = 256
)

// Recorder buffers samples and hands them to the WAV encoder in chunks.
// Write is called from the meter loop; Stop must not run until the loop
// has returned.
type Recorder struct {
	sampleRate int

	isRecording int32 // Atomic flag
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer
	pending     int

	written uint64
	err     error
}

func NewRecorder(sampleRate int) *Recorder {
	return &Recorder{sampleRate: sampleRate}
}

// Start creates filename and begins recording.
func (r *Recorder) Start(filename string) error {
	if atomic.LoadInt32(&r.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	r.outputFile = file
	r.wavEncoder = wav.NewEncoder(file, r.sampleRate, bitDepth, numChans, pcmFormat)
	r.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: numChans,
			SampleRate:  r.sampleRate,
		},
		Data:           make([]int, DefaultChunkSize),
		SourceBitDepth: bitDepth,
	}
	r.pending = 0
	r.written = 0
	r.err = nil

	atomic.StoreInt32(&r.isRecording, 1)
	applog.Infof("Recorder: writing %s at %d Hz", filename, r.sampleRate)
	return nil
}

// Write appends one sample. Encoder failures stop the recording; the
// first one is returned by Stop.
func (r *Recorder) Write(s meter.Sample) {
	if atomic.LoadInt32(&r.isRecording) == 0 {
		return
	}
	r.sampleBuf.Data[r.pending] = int(s)
	r.pending++
	if r.pending == len(r.sampleBuf.Data) {
		r.flush()
	}
}

func (r *Recorder) flush() {
	if r.pending == 0 || r.err != nil {
		return
	}
	chunk := &audio.IntBuffer{
		Format:         r.sampleBuf.Format,
		Data:           r.sampleBuf.Data[:r.pending],
		SourceBitDepth: bitDepth,
	}
	if err := r.wavEncoder.Write(chunk); err != nil {
		r.err = fmt.Errorf("failed to write samples: %w", err)
		applog.Errorf("Recorder: %v", r.err)
		atomic.StoreInt32(&r.isRecording, 0)
		return
	}
	r.written += uint64(r.pending)
	r.pending = 0
}

// Stop flushes buffered samples, finalizes the header and closes the file.
func (r *Recorder) Stop() error {
	if r.wavEncoder == nil {
		return nil
	}
	r.flush()
	atomic.StoreInt32(&r.isRecording, 0)

	err := r.err
	if cerr := r.wavEncoder.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to finalize recording: %w", cerr)
	}
	r.wavEncoder = nil

	if cerr := r.outputFile.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close recording: %w", cerr)
	}
	r.outputFile = nil

	applog.Infof("Recorder: %d samples written", r.written)
	return err
}

func (r *Recorder) IsRecording() bool {
	return atomic.LoadInt32(&r.isRecording) == 1
}

// Written counts samples handed to the encoder so far.
func (r *Recorder) Written() uint64 {
	return r.written
}

// Tee returns a source that records every sample read from src.
func Tee(src meter.Source, r *Recorder) meter.Source {
	return &tee{src: src, rec: r}
}

type tee struct {
	src meter.Source
	rec *Recorder
}

func (t *tee) ReadSample() meter.Sample {
	s := t.src.ReadSample()
	t.rec.Write(s)
	return s
}
