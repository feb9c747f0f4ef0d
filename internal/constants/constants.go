package constants

// DummyAPIKey is used as a placeholder when connecting to OpenAI-compatible services
// that don't require authentication. Many services expect a token in the request
// header but don't validate it.
const DummyAPIKey = "not-needed"

// Defaults for the hosted chat-completion gateway.
const (
	DefaultGatewayURL  = "https://ai.gateway.lovable.dev/v1"
	DefaultModel       = "google/gemini-2.5-flash"
	DefaultTemperature = 0.7
)

// LocalUserID owns every analysis when token verification is disabled.
const LocalUserID = "local"

// CORS headers sent by the analyze-text function.
const (
	CORSAllowOrigin  = "*"
	CORSAllowHeaders = "authorization, x-client-info, apikey, content-type"
)
