package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// 未初始化时所有包级函数必须安全可用（no-op），
// 依赖本包打日志的库代码和测试不应被迫先调用 Init。
func TestLoggingBeforeInitDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Debugf("debug %d", 1)
		Info("info")
		Infof("info %s", "x")
		Infow("info", "key", "value")
		Warn("warn")
		Warnf("warn %s", "x")
		Error("error", errors.New("boom"))
		Errorf("error %v", errors.New("boom"))
		Sync()
	})
}

func TestInitReplacesLogger(t *testing.T) {
	Init("debug", "console", "")
	assert.NotPanics(t, func() {
		Infof("after init %d", 42)
		Sync()
	})
}
