package blackcl

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/haormj/tvgen/accelerated"
	"gitlab.com/microo8/blackcl"
)

//go:embed matmul.cl
var matmulSrc string

const localGroupSize = 64

// OpenCL runs the product as a float32 kernel on the default OpenCL device.
// Inputs whose accumulation does not fit the float32 mantissa are refused.
type OpenCL struct {
	device *blackcl.Device
	kernel *blackcl.Kernel

	bufferCache map[string]map[int]*blackcl.Vector
}

func New() *OpenCL {
	return &OpenCL{
		bufferCache: make(map[string]map[int]*blackcl.Vector),
	}
}

// Release implements accelerated.Backend. It releases every cached buffer
// and the device, returning all failures joined.
func (o *OpenCL) Release() error {
	var errs []error

	for _, bufferMap := range o.bufferCache {
		for _, buffer := range bufferMap {
			if err := buffer.Release(); err != nil {
				errs = append(errs, fmt.Errorf("accelerated/blackcl: failed to release buffer: %w", err))
			}
		}
	}

	o.bufferCache = make(map[string]map[int]*blackcl.Vector)

	if o.device != nil {
		if err := o.device.Release(); err != nil {
			errs = append(errs, fmt.Errorf("accelerated/blackcl: failed to release device: %w", err))
		}

		o.device = nil
	}

	return errors.Join(errs...)
}

// AllocBuffer returns a device vector of the given size, reusing the one
// previously allocated under the same tag.
func (o *OpenCL) AllocBuffer(bufferTag string, size int) (*blackcl.Vector, error) {
	if _, ok := o.bufferCache[bufferTag]; !ok {
		o.bufferCache[bufferTag] = make(map[int]*blackcl.Vector)
	}

	if buffer, ok := o.bufferCache[bufferTag][size]; ok {
		return buffer, nil
	}

	buffer, err := o.device.NewVector(size)
	if err != nil {
		return nil, fmt.Errorf("accelerated/blackcl: failed to create buffer: %w", err)
	}

	o.bufferCache[bufferTag][size] = buffer

	return buffer, nil
}

// MatMul implements accelerated.Backend.
func (o *OpenCL) MatMul(out []uint64, a []uint64, b []uint64, m int, k int, n int) error {
	if err := accelerated.CheckShape(out, a, b, m, k, n); err != nil {
		return err
	}

	if err := accelerated.CheckExact(a, b, k, accelerated.Float32Exact); err != nil {
		return fmt.Errorf("accelerated/blackcl: %w", err)
	}

	if o.device == nil {
		return errors.New("accelerated/blackcl: device is not set up")
	}

	outDev, err := o.AllocBuffer("out", len(out))
	if err != nil {
		return fmt.Errorf("accelerated/blackcl: failed to create out device vector: %w", err)
	}

	aDev, err := o.AllocBuffer("a", len(a))
	if err != nil {
		return fmt.Errorf("accelerated/blackcl: failed to create a device vector: %w", err)
	}

	aDevCopyComplete := aDev.Copy(toFloat32(a))

	bDev, err := o.AllocBuffer("b", len(b))
	if err != nil {
		return fmt.Errorf("accelerated/blackcl: failed to create b device vector: %w", err)
	}

	bDevCopyComplete := bDev.Copy(toFloat32(b))

	if err := <-aDevCopyComplete; err != nil {
		return fmt.Errorf("accelerated/blackcl: failed to copy a to device: %w", err)
	}

	if err := <-bDevCopyComplete; err != nil {
		return fmt.Errorf("accelerated/blackcl: failed to copy b to device: %w", err)
	}

	if err := <-o.MatMulDevMem(outDev, aDev, bDev, m, k, n); err != nil {
		return err
	}

	outHost, err := outDev.Data()
	if err != nil {
		return fmt.Errorf("accelerated/blackcl: failed to get out data: %w", err)
	}

	for i := range out {
		out[i] = uint64(outHost[i])
	}

	return nil
}

// MatMulDevMem runs the kernel on vectors already resident on the device.
// One work item computes one output element.
func (o *OpenCL) MatMulDevMem(out *blackcl.Vector, a *blackcl.Vector, b *blackcl.Vector, m int, k int, n int) <-chan error {
	globalSize := m * n
	localSize := 1

	if globalSize%localGroupSize == 0 {
		localSize = localGroupSize
	}

	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)

		if err := <-o.kernel.Global(globalSize).Local(localSize).Run(out, a, b, uint32(m), uint32(k), uint32(n)); err != nil {
			errChan <- fmt.Errorf("accelerated/blackcl: failed to run matmul: %w", err)
		}
	}()

	return errChan
}

// SetupContext implements accelerated.Backend.
func (o *OpenCL) SetupContext() error {
	var err error

	o.device, err = blackcl.GetDefaultDevice()
	if err != nil {
		return fmt.Errorf("accelerated/blackcl: failed to get default device: %w", err)
	}

	o.device.AddProgram(matmulSrc)
	o.kernel = o.device.Kernel("matmul")

	return nil
}

func toFloat32(vals []uint64) []float32 {
	f := make([]float32, len(vals))
	for i, v := range vals {
		f[i] = float32(v)
	}

	return f
}

var _ accelerated.Backend = &OpenCL{}
