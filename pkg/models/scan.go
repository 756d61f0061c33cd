package models

// Attempt records a single decode try: which adapter ran, on which raster
// variant, how long it took and how it ended. Attempts are diagnostic only;
// they never influence the cascade outcome.
type Attempt struct {
	Adapter      string `json:"adapter"`
	Angle        int    `json:"angle"`
	Preprocessed bool   `json:"preprocessed"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	Status       string `json:"status"`
}

// ScanResult is the terminal output of the decoding cascade for one request.
type ScanResult struct {
	Success              bool      `json:"success"`
	Content              *string   `json:"content"`
	Decoder              string    `json:"decoder,omitempty"`
	LevelUsed            int       `json:"level_used"`
	ProcessingTimeMs     int64     `json:"processing_time_ms"`
	RotationAngle        *int      `json:"rotation_angle"`
	PreprocessingApplied bool      `json:"preprocessing_applied"`
	FallbackDegraded     bool      `json:"fallback_degraded,omitempty"`
	RequestID            string    `json:"request_id,omitempty"`
	Attempts             []Attempt `json:"attempts,omitempty"`
}

// CascadeMetrics is a point-in-time snapshot of per-level success counters.
type CascadeMetrics struct {
	TotalRequests    int64            `json:"total_requests"`
	DirectSuccess    int64            `json:"direct_success"`
	RotationSuccess  int64            `json:"rotation_success"`
	MLSuccess        int64            `json:"ml_success"`
	FallbackSuccess  int64            `json:"fallback_success"`
	TotalFailures    int64            `json:"total_failures"`
	FallbackDegraded int64            `json:"fallback_degraded"`
	PerDecoder       map[string]int64 `json:"per_decoder"`
}
