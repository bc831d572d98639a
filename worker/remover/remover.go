// Package remover defines the background-removal capability and its implementations.
//
// The pipeline treats removal as opaque: bytes in, bytes out, or an error. Progress
// reported through Config.Progress is advisory and may never be called.
package remover

import (
	"context"
	"errors"
	"fmt"
)

const (
	DeviceGPU = "gpu"
	DeviceCPU = "cpu"
)

var (
	ErrUnsupportedDevice = errors.New("unsupported device")
	ErrEmptyOutput       = errors.New("remover returned no output")
)

type Config struct {
	Device   string
	Progress func(percent int)
}

func (c Config) report(percent int) {
	if c.Progress != nil {
		c.Progress(percent)
	}
}

func (c Config) Validate() error {
	switch c.Device {
	case "", DeviceGPU, DeviceCPU:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDevice, c.Device)
	}
}

// Remover removes the background from an encoded image and returns an encoded PNG.
// Implementations are not required to be safe for concurrent use.
type Remover interface {
	Remove(ctx context.Context, src []byte, cfg Config) ([]byte, error)
}

type Func func(ctx context.Context, src []byte, cfg Config) ([]byte, error)

func (f Func) Remove(ctx context.Context, src []byte, cfg Config) ([]byte, error) {
	return f(ctx, src, cfg)
}
