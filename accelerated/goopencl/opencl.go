package goopencl

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/haormj/tvgen/accelerated"
	"github.com/passkeyra/go-opencl/opencl"
)

//go:embed matmul.cl
var matmulSrc string

const float32Size = 4

var errNoDevice = errors.New("no available device")

type shape struct {
	m, k, n int
}

type program struct {
	prog   opencl.Program
	kernel opencl.Kernel
}

// OpenCL runs the float32 matmul kernel through the go-opencl bindings on
// the first available GPU. Kernel arguments are buffers only, so the matrix
// shape is compiled in and one program is kept per shape.
type OpenCL struct {
	device       opencl.Device
	context      opencl.Context
	commandQueue opencl.CommandQueue

	hasContext bool
	hasQueue   bool
	programs   map[shape]*program
}

// Release implements accelerated.Backend. Objects are released in reverse
// creation order.
func (o *OpenCL) Release() error {
	for s, p := range o.programs {
		p.kernel.Release()
		p.prog.Release()
		delete(o.programs, s)
	}

	if o.hasQueue {
		o.commandQueue.Release()
		o.hasQueue = false
	}

	if o.hasContext {
		o.context.Release()
		o.hasContext = false
	}

	return nil
}

var _ accelerated.Backend = &OpenCL{}

// firstDevice returns the first available OpenCL device of type deviceType.
func firstDevice(deviceType opencl.DeviceType) (opencl.Device, error) {
	var none opencl.Device

	platforms, err := opencl.GetPlatforms()
	if err != nil {
		return none, err
	}

	for _, platform := range platforms {
		devices, err := platform.GetDevices(deviceType)
		if err != nil {
			return none, err
		}

		for _, device := range devices {
			var available bool
			err = device.GetInfo(opencl.DeviceAvailable, &available)
			if err == nil && available {
				return device, nil
			}
		}
	}

	return none, errNoDevice
}

// SetupContext implements accelerated.Backend.
func (o *OpenCL) SetupContext() error {
	var err error

	o.device, err = firstDevice(opencl.DeviceTypeGPU)
	if err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to find device: %w", err)
	}

	o.context, err = o.device.CreateContext()
	if err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to create context: %w", err)
	}

	o.hasContext = true

	o.commandQueue, err = o.context.CreateCommandQueue(o.device)
	if err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to create command queue: %w", err)
	}

	o.hasQueue = true
	o.programs = make(map[shape]*program)

	return nil
}

// programSource prefixes the kernel with the dimensions it is built for.
func programSource(s shape) string {
	return fmt.Sprintf("#define M (%du)\n#define K (%du)\n#define N (%du)\n", s.m, s.k, s.n) + matmulSrc
}

func (o *OpenCL) programFor(s shape) (*program, error) {
	if p, ok := o.programs[s]; ok {
		return p, nil
	}

	prog, err := o.context.CreateProgramWithSource(programSource(s))
	if err != nil {
		return nil, fmt.Errorf("accelerated/goopencl: failed to create program: %w", err)
	}

	if err = prog.Build(o.device, nil); err != nil {
		prog.Release()
		return nil, fmt.Errorf("accelerated/goopencl: failed to build program: %w", err)
	}

	kernel, err := prog.CreateKernel("matmul")
	if err != nil {
		prog.Release()
		return nil, fmt.Errorf("accelerated/goopencl: failed to create kernel: %w", err)
	}

	p := &program{prog: prog, kernel: kernel}
	o.programs[s] = p

	return p, nil
}

// MatMul implements accelerated.Backend.
func (o *OpenCL) MatMul(out []uint64, a []uint64, b []uint64, m int, k int, n int) error {
	if err := accelerated.CheckShape(out, a, b, m, k, n); err != nil {
		return err
	}

	if err := accelerated.CheckExact(a, b, k, accelerated.Float32Exact); err != nil {
		return fmt.Errorf("accelerated/goopencl: %w", err)
	}

	if !o.hasQueue {
		return errors.New("accelerated/goopencl: context is not set up")
	}

	p, err := o.programFor(shape{m: m, k: k, n: n})
	if err != nil {
		return err
	}

	oclA, err := o.context.CreateBuffer([]opencl.MemFlags{opencl.MemReadOnly}, uint64(len(a)*float32Size))
	if err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to create a buffer: %w", err)
	}
	defer oclA.Release()

	oclB, err := o.context.CreateBuffer([]opencl.MemFlags{opencl.MemReadOnly}, uint64(len(b)*float32Size))
	if err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to create b buffer: %w", err)
	}
	defer oclB.Release()

	oclOut, err := o.context.CreateBuffer([]opencl.MemFlags{opencl.MemWriteOnly}, uint64(len(out)*float32Size))
	if err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to create out buffer: %w", err)
	}
	defer oclOut.Release()

	if err = o.commandQueue.EnqueueWriteBuffer(oclA, true, toFloat32(a)); err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to copy a to device: %w", err)
	}

	if err = o.commandQueue.EnqueueWriteBuffer(oclB, true, toFloat32(b)); err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to copy b to device: %w", err)
	}

	if err = setArgs(p.kernel, &oclOut, &oclA, &oclB); err != nil {
		return err
	}

	if err = o.commandQueue.EnqueueNDRangeKernel(p.kernel, uint32(1), []uint64{uint64(m * n)}); err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to run matmul: %w", err)
	}

	outHost := make([]float32, len(out))

	if err = o.commandQueue.EnqueueReadBuffer(oclOut, true, outHost); err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to read out buffer: %w", err)
	}

	for i := range out {
		out[i] = uint64(outHost[i])
	}

	return nil
}

// setArgs binds the kernel's buffer arguments. go-opencl only accepts
// *opencl.Buffer values here.
func setArgs(kernel opencl.Kernel, out, a, b *opencl.Buffer) error {
	if err := kernel.SetArg(0, 8, out); err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to set out arg: %w", err)
	}

	if err := kernel.SetArg(1, 8, a); err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to set a arg: %w", err)
	}

	if err := kernel.SetArg(2, 8, b); err != nil {
		return fmt.Errorf("accelerated/goopencl: failed to set b arg: %w", err)
	}

	return nil
}

func toFloat32(vals []uint64) []float32 {
	f := make([]float32, len(vals))
	for i, v := range vals {
		f[i] = float32(v)
	}

	return f
}
