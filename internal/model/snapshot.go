package model

// TempUnavailable is the display value for a sensor that could not be read.
const TempUnavailable = "N/A"

// GPUStats holds the device-0 readings of an NVIDIA accelerator. The
// pointer form on Snapshot distinguishes "GPU absent/disabled" from
// "GPU reporting zeros".
type GPUStats struct {
	LoadPercent float64 `json:"load_percent"`
	TempCelsius float64 `json:"temp_celsius"`
	VRAMUsedMB  uint64  `json:"vram_used_mb"`
	VRAMTotalMB uint64  `json:"vram_total_mb"`
}

// Snapshot is the display-ready result of one sampling cycle. Every field
// carries a defined fallback (nil, 0 or "N/A") when its source failed, so
// a snapshot is always fully constructed, never partially valid.
type Snapshot struct {
	Hostname        string    `json:"hostname"`
	TimestampUnix   int64     `json:"timestamp_unix"`
	CPUUsagePercent float64   `json:"cpu_usage_percent"`
	CPUTempCelsius  *float64  `json:"cpu_temp_celsius"`
	RAMUsagePercent int       `json:"ram_usage_percent"`
	DownloadMBPS    float64   `json:"download_mb_s"`
	UploadMBPS      float64   `json:"upload_mb_s"`
	UPSTemp         string    `json:"ups_temp"`
	GPU             *GPUStats `json:"gpu"`
	Interfaces      []string  `json:"interfaces"`
}

type FrameType string

const (
	FrameTypeSnapshot FrameType = "snapshot"
	FrameTypeSettings FrameType = "settings"
)

// Frame is transport-agnostic framing for the presentation feed.
type Frame struct {
	Type          FrameType `json:"type"`
	TimestampUnix int64     `json:"timestamp_unix"`
	Payload       any       `json:"payload"`
}
