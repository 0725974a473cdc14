package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// buildWAV assembles a WAV stream with an arbitrary fmt chunk body.
func buildWAV(fmtBody []byte, extra []byte, data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(len(fmtBody)))
	buf.Write(fmtBody)

	if extra != nil {
		buf.WriteString("LIST")
		binary.Write(&buf, binary.LittleEndian, uint32(len(extra)))
		buf.Write(extra)
		if len(extra)%2 != 0 {
			buf.WriteByte(0)
		}
	}

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func fmtBody(format, channels uint16, rate uint32, bits uint16) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, format)
	binary.Write(&b, binary.LittleEndian, channels)
	binary.Write(&b, binary.LittleEndian, rate)
	binary.Write(&b, binary.LittleEndian, rate*uint32(channels)*uint32(bits)/8)
	binary.Write(&b, binary.LittleEndian, channels*bits/8)
	binary.Write(&b, binary.LittleEndian, bits)
	return b.Bytes()
}

func TestWAVRoundTrip(t *testing.T) {
	in := make([]float32, 160)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	var buf bytes.Buffer
	if err := WriteWAV(&buf, 16000, in); err != nil {
		t.Fatalf("WriteWAV() returned error: %v", err)
	}

	out, header, err := ReadWAV(&buf)
	if err != nil {
		t.Fatalf("ReadWAV() returned error: %v", err)
	}
	if header.SampleRate != 16000 || header.NumChannels != 1 || header.NumFrames != len(in) {
		t.Fatalf("unexpected header %+v", header)
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1.0/32768 {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestReadWAVStereoWithExtraChunk(t *testing.T) {
	pcm := EncodePCM16LE(nil, []float32{0.5, -0.5, 0.25, 0.25})
	data := buildWAV(fmtBody(wavFormatPCM, 2, 8000, 16), []byte("odd"), pcm)

	out, header, err := ReadWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadWAV() returned error: %v", err)
	}
	if header.SampleRate != 8000 || header.NumChannels != 2 {
		t.Fatalf("unexpected header %+v", header)
	}
	if len(out) != 2 || out[0] != 0 || out[1] != 0.25 {
		t.Fatalf("expected downmixed [0 0.25], got %v", out)
	}
}

func TestReadWAVFloatExtensible(t *testing.T) {
	body := fmtBody(wavFormatExtensible, 1, 16000, 32)
	var ext bytes.Buffer
	ext.Write(body)
	binary.Write(&ext, binary.LittleEndian, uint16(22)) // cbSize
	binary.Write(&ext, binary.LittleEndian, uint16(32)) // valid bits
	binary.Write(&ext, binary.LittleEndian, uint32(4))  // channel mask
	binary.Write(&ext, binary.LittleEndian, uint16(wavFormatFloat))
	ext.Write(make([]byte, 14)) // rest of the GUID

	var samples bytes.Buffer
	binary.Write(&samples, binary.LittleEndian, []float32{0.125, -0.75})

	out, header, err := ReadWAV(bytes.NewReader(buildWAV(ext.Bytes(), nil, samples.Bytes())))
	if err != nil {
		t.Fatalf("ReadWAV() returned error: %v", err)
	}
	if header.Format != wavFormatFloat {
		t.Fatalf("expected the sub-format to be resolved, got %d", header.Format)
	}
	if len(out) != 2 || out[0] != 0.125 || out[1] != -0.75 {
		t.Fatalf("unexpected samples %v", out)
	}
}

func TestReadWAVRejects(t *testing.T) {
	tests := map[string][]byte{
		"not riff":    []byte("RIFX\x00\x00\x00\x00WAVE"),
		"not wave":    []byte("RIFF\x00\x00\x00\x00AVI "),
		"8-bit":       buildWAV(fmtBody(wavFormatPCM, 1, 16000, 8), nil, []byte{1, 2}),
		"no data":     buildWAV(fmtBody(wavFormatPCM, 1, 16000, 16), nil, nil)[:36],
		"zero rate":   buildWAV(fmtBody(wavFormatPCM, 1, 0, 16), nil, []byte{0, 0}),
		"short fmt":   buildWAV([]byte{1, 0}, nil, nil),
		"truncated":   []byte("RIFF"),
		"data no fmt": append([]byte("RIFF\x00\x00\x00\x00WAVEdata\x02\x00\x00\x00"), 0, 0),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ReadWAV(bytes.NewReader(data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	WriteWAV(f, 16000, make([]float32, 320))
	f.Close()

	out, header, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile() returned error: %v", err)
	}
	if len(out) != 320 || header.NumFrames != 320 {
		t.Fatalf("expected 320 frames, got %d", len(out))
	}

	if _, _, err := ReadWAVFile(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestSelectDevice(t *testing.T) {
	devices := []DeviceInfo{
		{ID: "capture-0", Name: "HDMI Output"},
		{ID: "capture-1", Name: "USB Microphone", IsDefault: true},
	}

	d, err := SelectDevice(devices, "")
	if err != nil || d.ID != "capture-1" {
		t.Fatalf("expected the default device, got %v (%v)", d, err)
	}
	if d, _ := SelectDevice(devices, "capture-0"); d.ID != "capture-0" {
		t.Fatalf("expected selection by id, got %v", d)
	}
	if d, _ := SelectDevice(devices, "usb"); d.ID != "capture-1" {
		t.Fatalf("expected selection by name, got %v", d)
	}
	if _, err := SelectDevice(devices, "bluetooth"); err == nil {
		t.Fatal("expected error for an unmatched selector")
	}
	if _, err := SelectDevice(nil, ""); err == nil {
		t.Fatal("expected error without devices")
	}

	if n, err := deviceIndex("capture-1", 2); err != nil || n != 1 {
		t.Fatalf("expected index 1, got %d (%v)", n, err)
	}
	for _, id := range []string{"capture-2", "mic-0", "capture-x"} {
		if _, err := deviceIndex(id, 2); err == nil {
			t.Errorf("expected error for %s", id)
		}
	}
}
