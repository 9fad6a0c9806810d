package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxnID(t *testing.T) {
	_, ok := TxnID(nil)
	assert.False(t, ok)

	ctx := WithTxnID(context.Background(), "abc")
	id, ok := TxnID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)

	assert.Equal(t, "abc", Logger(ctx).Data["txnid"])
	assert.NotContains(t, Logger(context.Background()).Data, "txnid")
}

func TestConfigure(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetFormatter(&logrus.TextFormatter{})
	defer logrus.SetOutput(os.Stderr)

	cfg := viper.New()
	cfg.Set("logging.level", "warning")
	cfg.Set("logging.format", "json")
	cfg.Set("logging.location", filepath.Join(t.TempDir(), "bridge.log"))
	require.NoError(t, Configure(cfg))
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel())

	var buf bytes.Buffer
	logrus.SetOutput(&buf)
	Logger(WithTxnID(context.Background(), "t1")).Warn("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "t1", entry["txnid"])
	assert.NotEmpty(t, entry["instance"])

	cfg.Set("logging.level", "chatty")
	assert.Error(t, Configure(cfg))

	cfg.Set("logging.level", "info")
	cfg.Set("logging.format", "xml")
	assert.Error(t, Configure(cfg))
}
