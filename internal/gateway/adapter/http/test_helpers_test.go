package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"codes-api/internal/gateway/config"
	"codes-api/internal/shared/logger"

	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "development",
		Port:              "3000",
		MongoDBURI:        "mongodb://localhost:27017",
		ProductionOrigin:  "https://seu-dominio.com",
		DevelopmentOrigin: "http://localhost:8080",
		APIPrefix:         "/api",
		RateLimitMax:      100,
		RateLimitWindow:   15 * time.Minute,
		RequestTimeout:    time.Second,
		JSONBodyLimit:     10 << 20,
		FormBodyLimit:     100 << 10,
		FormParamLimit:    1000,
		FormNestDepth:     5,
		FormArrayLimit:    20,
	}
}

func quietLogger() logger.Logger {
	return logger.NewLoggerWithConfig("fatal", "text")
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	return body
}
