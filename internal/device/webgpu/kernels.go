// Package webgpu implements a device.Accelerator on WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings;
// the backend is built on Windows only.
package webgpu

import (
	"fmt"

	"github.com/born-ml/april/internal/device"
)

// workgroupSize is the fixed WGSL workgroup size. Kernels grid-stride, so any
// number of workgroups covers any length.
const workgroupSize = 256

// Capabilities are the geometry limits reported by the WebGPU backend.
func Capabilities() device.Capabilities {
	caps := device.DefaultCapabilities()
	caps.MaxThreadsPerBlock = workgroupSize
	return caps
}

// paramsWGSL is the uniform shared by all kernels: element count, offsets
// into y and x, and the scalar operand.
const paramsWGSL = `struct Params {
    n: u32,
    y_off: u32,
    x_off: u32,
    scalar: f32,
}
`

// unaryShader returns a kernel updating y in place with expr, which may
// refer to y[k] and params.scalar.
func unaryShader(expr string) string {
	return paramsWGSL + fmt.Sprintf(`
@group(0) @binding(0) var<storage, read_write> y: array<f32>;
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let stride = nwg.x * %du;
    for (var i = gid.x; i < params.n; i = i + stride) {
        let k = params.y_off + i;
        y[k] = %s;
    }
}
`, workgroupSize, workgroupSize, expr)
}

// binaryShader returns a kernel updating y in place with expr, which may
// also refer to x[j].
func binaryShader(expr string) string {
	return paramsWGSL + fmt.Sprintf(`
@group(0) @binding(0) var<storage, read_write> y: array<f32>;
@group(0) @binding(1) var<storage, read> x: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(%d)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) nwg: vec3<u32>) {
    let stride = nwg.x * %du;
    for (var i = gid.x; i < params.n; i = i + stride) {
        let k = params.y_off + i;
        let j = params.x_off + i;
        y[k] = %s;
    }
}
`, workgroupSize, workgroupSize, expr)
}

// kernel names the shaders by operation.
type kernel struct {
	name   string
	binary bool
	source string
}

var kernels = map[string]kernel{
	"fill":       {"fill", false, unaryShader("params.scalar")},
	"scal":       {"scal", false, unaryShader("y[k] * params.scalar")},
	"scalar_add": {"scalar_add", false, unaryShader("y[k] + params.scalar")},
	"axpy":       {"axpy", true, binaryShader("y[k] + params.scalar * x[j]")},
	"cmul":       {"cmul", true, binaryShader("y[k] * x[j]")},
}

// workgroups returns how many workgroups a kernel over n elements dispatches.
func workgroups(n int) int {
	_, blocks := device.ComputeBlockAndGridSizesForArray(n, Capabilities())
	return blocks
}
