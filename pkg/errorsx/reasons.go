package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSTTTranscribe ReasonCode = "stt_transcribe"
	ReasonSTTNormalize  ReasonCode = "stt_normalize"

	ReasonTTSSynthesize  ReasonCode = "tts_synthesize"
	ReasonTTSConnect     ReasonCode = "tts_connect"
	ReasonTTSRateLimit   ReasonCode = "tts_rate_limit"
	ReasonTTSCircuitOpen ReasonCode = "tts_circuit_open"

	ReasonDeviceWrite   ReasonCode = "device_write"
	ReasonDeviceRecover ReasonCode = "device_recover"

	ReasonLLMAuth      ReasonCode = "llm_auth"
	ReasonLLMStream    ReasonCode = "llm_stream"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonClassifier ReasonCode = "classifier"
	ReasonCapture    ReasonCode = "capture"
)
