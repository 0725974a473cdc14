package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// WAVHeader holds the fields of the fmt chunk that matter for decoding.
type WAVHeader struct {
	Format        uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
	NumFrames     int
}

// ReadWAV reads a RIFF/WAVE stream and returns mono float32 samples.
// 16-bit PCM and 32-bit float data are supported, including the extensible
// wrapper; multi-channel audio is averaged down to mono.
func ReadWAV(r io.Reader) ([]float32, WAVHeader, error) {
	var header WAVHeader

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, header, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" {
		return nil, header, errors.New("not a RIFF file")
	}
	if string(riff[8:12]) != "WAVE" {
		return nil, header, errors.New("not a WAVE file")
	}

	var fmtFound bool
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, header, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if err := readFmtChunk(r, size, &header); err != nil {
				return nil, header, err
			}
			fmtFound = true

		case "data":
			if !fmtFound {
				return nil, header, errors.New("data chunk before fmt chunk")
			}
			return readDataChunk(r, size, header)

		default:
			skip := int64(size)
			if size%2 != 0 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, header, fmt.Errorf("skip chunk %q: %w", id, err)
			}
		}
	}

	if !fmtFound {
		return nil, header, errors.New("missing fmt chunk")
	}
	return nil, header, errors.New("missing data chunk")
}

// ReadWAVFile opens path and reads it with ReadWAV.
func ReadWAVFile(path string) ([]float32, WAVHeader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WAVHeader{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}

func readFmtChunk(r io.Reader, size uint32, h *WAVHeader) error {
	if size < 16 {
		return fmt.Errorf("fmt chunk too short: %d bytes", size)
	}
	body := make([]byte, size+size%2)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read fmt chunk: %w", err)
	}

	h.Format = binary.LittleEndian.Uint16(body[0:])
	h.NumChannels = binary.LittleEndian.Uint16(body[2:])
	h.SampleRate = binary.LittleEndian.Uint32(body[4:])
	h.BitsPerSample = binary.LittleEndian.Uint16(body[14:])

	if h.Format == wavFormatExtensible {
		// cbSize(2) validBits(2) channelMask(4) then the sub-format GUID,
		// whose first two bytes carry the real format code.
		if size < 26 {
			return errors.New("extensible fmt chunk too short")
		}
		h.Format = binary.LittleEndian.Uint16(body[24:])
	}

	if h.NumChannels == 0 {
		return errors.New("fmt chunk declares zero channels")
	}
	if h.SampleRate == 0 {
		return errors.New("fmt chunk declares zero sample rate")
	}
	switch {
	case h.Format == wavFormatPCM && h.BitsPerSample == 16:
	case h.Format == wavFormatFloat && h.BitsPerSample == 32:
	default:
		return fmt.Errorf("unsupported audio format %d with %d bits per sample (need 16-bit PCM or 32-bit float)",
			h.Format, h.BitsPerSample)
	}
	return nil
}

func readDataChunk(r io.Reader, size uint32, h WAVHeader) ([]float32, WAVHeader, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, h, fmt.Errorf("read sample data: %w", err)
	}

	frameBytes := int(h.NumChannels) * int(h.BitsPerSample) / 8
	data = data[:len(data)-len(data)%frameBytes]

	var samples []float32
	if h.Format == wavFormatFloat {
		samples, err = DecodeFloat32LE(make([]float32, 0, len(data)/4), data)
	} else {
		samples, err = DecodePCM16LE(make([]float32, 0, len(data)/2), data)
	}
	if err != nil {
		return nil, h, err
	}

	samples = Downmix(samples, int(h.NumChannels))
	h.NumFrames = len(samples)
	return samples, h, nil
}

// WriteWAV writes mono float32 samples as a 16-bit PCM WAV stream.
func WriteWAV(w io.Writer, sampleRate int, samples []float32) error {
	pcm := EncodePCM16LE(make([]byte, 0, 2*len(samples)), samples)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	_, err := w.Write(buf.Bytes())
	return err
}
