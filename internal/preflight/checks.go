package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"vidscribe/internal/config"
	"vidscribe/internal/deps"
	"vidscribe/internal/engine"
	"vidscribe/internal/notifications"
)

// MinFreeBytes is the free space below which the output volume check fails.
const MinFreeBytes uint64 = 512 << 20

// gpuDetector is replaced in tests.
var gpuDetector = deps.DetectGPU

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckWritableLocation passes when path is a writable directory or, if it
// does not exist yet, when its nearest existing ancestor is writable so the
// run can create it.
func CheckWritableLocation(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}
	ancestor, err := existingAncestor(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, ancestor, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckFreeSpace reports the free space on the volume holding path.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	target, err := existingAncestor(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(target, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", target, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize) //nolint:gosec
	detail := fmt.Sprintf("%s free on %s", FormatBytes(free), target)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need at least %s)", detail, FormatBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the binaries a run uses under cfg.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

// CheckGPU reports CUDA availability. It blocks only when the device is
// pinned to cuda; under auto a missing GPU means a CPU run.
func CheckGPU(ctx context.Context, cfg *config.Config) Result {
	const name = "GPU"
	if cfg.Model.Device == config.DeviceCPU {
		return Result{Name: name, Passed: true, Optional: true, Detail: "CPU selected"}
	}
	gpu := gpuDetector(ctx)
	optional := cfg.Model.Device != config.DeviceCUDA
	if !gpu.Available {
		detail := gpu.Detail
		if optional {
			detail += "; transcription will run on CPU"
		}
		return Result{Name: name, Optional: optional, Detail: detail}
	}
	return Result{Name: name, Passed: true, Optional: optional, Detail: strings.Join(gpu.Devices, "; ")}
}

// CheckMirror summarizes the S3 mirror configuration.
func CheckMirror(cfg *config.Config) Result {
	const name = "S3 mirror"
	if !cfg.Storage.S3Enabled {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	detail := "s3://" + cfg.Storage.Bucket
	if prefix := strings.Trim(cfg.Storage.Prefix, "/"); prefix != "" {
		detail += "/" + prefix
	}
	if cfg.Storage.Endpoint != "" {
		detail += " via " + cfg.Storage.Endpoint
	}
	return Result{Name: name, Passed: true, Optional: !cfg.Storage.Required, Detail: detail}
}

// CheckVAD reports whether the voice-activity settings apply to the backend.
func CheckVAD(cfg *config.Config) Result {
	const name = "Voice activity filter"
	if caveat := engine.VADCaveat(cfg.Model.Backend, cfg.VAD); caveat != "" {
		return Result{Name: name, Passed: false, Optional: true, Detail: caveat}
	}
	if !cfg.VAD.Enabled {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf(
		"min_silence=%dms speech_pad=%dms min_speech=%dms",
		cfg.VAD.MinSilenceMS, cfg.VAD.SpeechPadMS, cfg.VAD.MinSpeechMS)}
}

// CheckNotifications summarizes the ntfy configuration.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: notifications.Endpoint(topic)}
}

func existingAncestor(path string) (string, error) {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no existing ancestor for %s", path)
		}
		current = parent
	}
}

// FormatBytes renders a byte count with binary units.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
