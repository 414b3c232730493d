package definition

import (
	"fmt"

	plog "github.com/prometheus/common/log"
)

// PrometheusLogger forwards to github.com/prometheus/common/log, an
// alternate types.Logger a deployment can select in place of
// DefaultLogger.
type PrometheusLogger struct{}

func (PrometheusLogger) Info(v ...interface{})                 { plog.Info(v...) }
func (PrometheusLogger) Infof(format string, v ...interface{})  { plog.Infof(format, v...) }
func (PrometheusLogger) Warn(v ...interface{})                 { plog.Warn(v...) }
func (PrometheusLogger) Warnf(format string, v ...interface{})  { plog.Warnf(format, v...) }
func (PrometheusLogger) Error(v ...interface{})                { plog.Error(v...) }
func (PrometheusLogger) Errorf(format string, v ...interface{}) { plog.Errorf(format, v...) }
func (PrometheusLogger) Debug(v ...interface{})                { plog.Debug(v...) }
func (PrometheusLogger) Debugf(format string, v ...interface{}) { plog.Debugf(format, v...) }
func (PrometheusLogger) Fatal(v ...interface{})                { plog.Fatal(v...) }
func (PrometheusLogger) Fatalf(format string, v ...interface{}) { plog.Fatalf(format, v...) }
func (PrometheusLogger) Panic(v ...interface{})                 { panic(fmt.Sprint(v...)) }
func (PrometheusLogger) Panicf(format string, v ...interface{}) { panic(fmt.Sprintf(format, v...)) }
