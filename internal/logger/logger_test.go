package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_FallsBackToGlobal(t *testing.T) {
	entry := G(context.Background())
	assert.Equal(t, L.Logger, entry.Logger)
}

func TestWithLogger_RoundTrip(t *testing.T) {
	custom := logrus.NewEntry(logrus.New()).WithField("component", "test")
	ctx := WithLogger(context.Background(), custom)

	got := GetLogger(ctx)
	assert.Equal(t, "test", got.Data["component"])
	assert.Equal(t, custom.Logger, got.Logger)
}

func TestSetLogLevel(t *testing.T) {
	orig := L.Logger.GetLevel()
	defer L.Logger.SetLevel(orig)

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	assert.Error(t, SetLogLevel("loud"))
}

func TestSetLogFormat_JSON(t *testing.T) {
	var buf bytes.Buffer
	origOut := L.Logger.Out
	origFmt := L.Logger.Formatter
	origLevel := L.Logger.GetLevel()
	defer func() {
		L.Logger.SetOutput(origOut)
		L.Logger.Formatter = origFmt
		L.Logger.SetLevel(origLevel)
	}()

	SetLogOutput(&buf)
	SetLogFormat("json")
	L.Logger.SetLevel(logrus.InfoLevel)

	G(context.Background()).WithField("skill", "docker-best-practices").Info("recorded")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "recorded", line["message"])
	assert.Equal(t, "info", line["logLevel"])
	assert.Equal(t, "docker-best-practices", line["skill"])
}
