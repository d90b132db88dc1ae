package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Metadata describes a probed recording.
type Metadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
}

// Prober extracts audio metadata from a recording reference.
type Prober interface {
	Probe(path string) (Metadata, error)
}

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// SupportedExtension reports whether the filename carries an ingestible
// audio extension.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".mp3", ".m4a":
		return true
	}
	return false
}

// WAVProber reads RIFF/WAVE headers directly. Non-WAV formats are rejected;
// deployments with wider codec needs plug in their own Prober.
type WAVProber struct{}

func (WAVProber) Probe(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	var header [12]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return Metadata{}, fmt.Errorf("read riff header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Metadata{}, ErrUnsupportedFormat
	}

	var meta Metadata
	var byteRate uint32
	haveFmt := false

	// Walk chunks until both fmt and data are seen.
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Metadata{}, err
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			var fmtChunk [16]byte
			if _, err := io.ReadFull(f, fmtChunk[:]); err != nil {
				return Metadata{}, fmt.Errorf("read fmt chunk: %w", err)
			}
			meta.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			meta.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			byteRate = binary.LittleEndian.Uint32(fmtChunk[8:12])
			haveFmt = true
			if size > 16 {
				if _, err := f.Seek(int64(size-16), io.SeekCurrent); err != nil {
					return Metadata{}, err
				}
			}
		case "data":
			if haveFmt && byteRate > 0 {
				meta.DurationSeconds = float64(size) / float64(byteRate)
			}
			return finishProbe(meta, haveFmt)
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				return Metadata{}, err
			}
		}
		// Chunks are word-aligned.
		if size%2 == 1 {
			if _, err := f.Seek(1, io.SeekCurrent); err != nil {
				return Metadata{}, err
			}
		}
	}
	return finishProbe(meta, haveFmt)
}

func finishProbe(meta Metadata, haveFmt bool) (Metadata, error) {
	if !haveFmt {
		return Metadata{}, ErrUnsupportedFormat
	}
	return meta, nil
}

// StubProber returns fixed metadata without touching the file. Used in
// tests and stub deployments.
type StubProber struct {
	Meta Metadata
	Err  error
}

func (p StubProber) Probe(string) (Metadata, error) {
	if p.Err != nil {
		return Metadata{}, p.Err
	}
	if p.Meta == (Metadata{}) {
		return Metadata{DurationSeconds: 120, SampleRate: 16000, Channels: 1}, nil
	}
	return p.Meta, nil
}
