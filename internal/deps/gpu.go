package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// NvidiaSMI is the NVIDIA management CLI used to detect CUDA devices.
const NvidiaSMI = "nvidia-smi"

const gpuProbeTimeout = 5 * time.Second

// GPU describes the outcome of a CUDA device probe.
type GPU struct {
	Available bool
	Devices   []string
	Detail    string
}

// DetectGPU reports whether a CUDA-capable GPU is usable. It requires
// nvidia-smi on PATH and at least one device in `nvidia-smi -L`.
func DetectGPU(ctx context.Context) GPU {
	path, err := exec.LookPath(NvidiaSMI)
	if err != nil {
		return GPU{Detail: "nvidia-smi not found"}
	}

	ctx, cancel := context.WithTimeout(ctx, gpuProbeTimeout)
	defer cancel()
	output, err := exec.CommandContext(ctx, path, "-L").Output() //nolint:gosec
	if err != nil {
		return GPU{Detail: "nvidia-smi failed: " + err.Error()}
	}

	devices := parseDeviceList(string(output))
	if len(devices) == 0 {
		return GPU{Detail: "no CUDA devices listed"}
	}
	return GPU{Available: true, Devices: devices}
}

func parseDeviceList(output string) []string {
	var devices []string
	for line := range strings.Lines(output) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "GPU ") {
			devices = append(devices, line)
		}
	}
	return devices
}
