package logger

import (
	"os"

	"go.uber.org/zap"
)

// Logger is the key/value logging facade the rest of the code uses.
// Printf is there so the instance can be handed to fasthttp directly.
type Logger interface {
	Info(msg string, values ...any)
	Warn(msg string, values ...any)
	Error(msg string, values ...any)
	Debug(msg string, values ...any)
	Panic(msg string, values ...any)
	Fatal(err error, values ...any)
	Printf(format string, args ...interface{})
}

type ZapLogger struct {
	log *zap.SugaredLogger
}

var instance *ZapLogger

func init() {
	var config zap.Config
	if os.Getenv("LOG_ENV") == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	if _, err := NewLogger(config); err != nil {
		panic(err)
	}
}

func NewLogger(config zap.Config) (*ZapLogger, error) {
	l, err := config.Build()
	if err != nil {
		return nil, err
	}
	defer l.Sync() //nolint
	l = l.WithOptions(zap.AddCallerSkip(2))
	instance = &ZapLogger{log: l.Sugar()}
	return instance, nil
}

func GetLogger() *ZapLogger {
	if instance == nil {
		panic("logger not initialized")
	}
	return instance
}

func (l *ZapLogger) Info(msg string, values ...any)  { l.log.Infow(msg, values...) }
func (l *ZapLogger) Warn(msg string, values ...any)  { l.log.Warnw(msg, values...) }
func (l *ZapLogger) Error(msg string, values ...any) { l.log.Errorw(msg, values...) }
func (l *ZapLogger) Debug(msg string, values ...any) { l.log.Debugw(msg, values...) }
func (l *ZapLogger) Panic(msg string, values ...any) { l.log.Panicw(msg, values...) }

func (l *ZapLogger) Fatal(err error, values ...any) { l.log.Fatalw(err.Error(), values...) }

func (l *ZapLogger) Printf(format string, args ...interface{}) { l.log.Infof(format, args...) }

func Info(msg string, values ...any)  { GetLogger().Info(msg, values...) }
func Warn(msg string, values ...any)  { GetLogger().Warn(msg, values...) }
func Error(msg string, values ...any) { GetLogger().Error(msg, values...) }
func Debug(msg string, values ...any) { GetLogger().Debug(msg, values...) }
func Panic(msg string, values ...any) { GetLogger().Panic(msg, values...) }
func Fatal(err error, values ...any)  { GetLogger().Fatal(err, values...) }
