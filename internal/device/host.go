package device

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// HostFeatures records the instruction set extensions of the host CPU.
type HostFeatures struct {
	SSE41   bool
	AVX     bool
	AVX2    bool
	FMA     bool
	AVX512F bool
	ASIMD   bool // ARM64 Advanced SIMD (NEON)
}

// DetectHost reads the host CPU features.
func DetectHost() HostFeatures {
	return HostFeatures{
		SSE41:   cpu.X86.HasSSE41,
		AVX:     cpu.X86.HasAVX,
		AVX2:    cpu.X86.HasAVX2,
		FMA:     cpu.X86.HasFMA,
		AVX512F: cpu.X86.HasAVX512F,
		ASIMD:   cpu.ARM64.HasASIMD,
	}
}

// VectorPath names the widest vector path the host supports.
func (h HostFeatures) VectorPath() string {
	switch {
	case h.AVX512F:
		return "avx512"
	case h.AVX2 && h.FMA:
		return "avx2"
	case h.SSE41:
		return "sse4"
	case h.ASIMD:
		return "neon"
	default:
		return "scalar"
	}
}

// VectorWidth returns the float32 lanes of the vector path.
func (h HostFeatures) VectorWidth() int {
	switch h.VectorPath() {
	case "avx512":
		return 16
	case "avx2":
		return 8
	case "sse4", "neon":
		return 4
	default:
		return 1
	}
}

// String lists the detected extensions.
func (h HostFeatures) String() string {
	var names []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"SSE4.1", h.SSE41},
		{"AVX", h.AVX},
		{"AVX2", h.AVX2},
		{"FMA", h.FMA},
		{"AVX512F", h.AVX512F},
		{"ASIMD", h.ASIMD},
	} {
		if f.ok {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, " ")
}
