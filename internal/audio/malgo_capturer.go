package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoCapturer implements the Capturer interface using malgo
type MalgoCapturer struct {
	config       CaptureConfig
	device       *malgo.Device
	malgoContext *malgo.AllocatedContext
	infos        []malgo.DeviceInfo // keeps the selected device ID alive
	buf          []float32
	running      bool
	mu           sync.RWMutex
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

// NewMalgoCapturer creates a new malgo-based audio capturer
func NewMalgoCapturer(config CaptureConfig) (*MalgoCapturer, error) {
	if config.SampleRate == 0 {
		return nil, fmt.Errorf("capture sample rate must be positive")
	}
	if config.Channels == 0 {
		config.Channels = 1
	}
	return &MalgoCapturer{config: config}, nil
}

// Start opens the device and begins calling sink from the audio thread
func (m *MalgoCapturer) Start(ctx context.Context, sink Sink) error {
	if sink == nil {
		return fmt.Errorf("capture sink is required")
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("capturer is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		m.setStopped()
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoContext = malgoCtx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = m.config.Channels
	deviceConfig.SampleRate = m.config.SampleRate
	deviceConfig.PeriodSizeInFrames = m.config.BufferFrames

	if m.config.DeviceID != "" {
		m.infos, err = malgoCtx.Devices(malgo.Capture)
		if err != nil {
			m.release()
			return fmt.Errorf("failed to enumerate devices: %w", err)
		}
		idx, err := deviceIndex(m.config.DeviceID, len(m.infos))
		if err != nil {
			m.release()
			return err
		}
		deviceConfig.Capture.DeviceID = m.infos[idx].ID.Pointer()
	}

	channels := int(m.config.Channels)
	m.buf = make([]float32, 0, int(m.config.BufferFrames)*channels)

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(_, pInputSamples []byte, _ uint32) {
		samples, err := DecodeFloat32LE(m.buf[:0], pInputSamples)
		if err != nil {
			return
		}
		m.buf = samples
		sink(Downmix(samples, channels))
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		m.release()
		return fmt.Errorf("failed to initialize device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.device = nil
		m.release()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		select {
		case <-ctx.Done():
			m.Stop()
		case <-m.stopChan:
		}
	}()

	return nil
}

// Stop stops audio capture
func (m *MalgoCapturer) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	var stopErr error
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			stopErr = fmt.Errorf("failed to stop device: %w", err)
		}
		m.device.Uninit()
		m.device = nil
	}
	m.freeContext()

	return stopErr
}

// SampleRate returns the configured device rate
func (m *MalgoCapturer) SampleRate() float64 {
	if m.device != nil {
		return float64(m.device.SampleRate())
	}
	return float64(m.config.SampleRate)
}

// IsRunning returns true if capture is currently active
func (m *MalgoCapturer) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Wait blocks until the context watcher has exited
func (m *MalgoCapturer) Wait() {
	m.wg.Wait()
}

func (m *MalgoCapturer) release() {
	m.freeContext()
	m.setStopped()
}

func (m *MalgoCapturer) freeContext() {
	if m.malgoContext != nil {
		_ = m.malgoContext.Uninit()
		m.malgoContext.Free()
		m.malgoContext = nil
	}
	m.infos = nil
}

func (m *MalgoCapturer) setStopped() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}
