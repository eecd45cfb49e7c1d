package utils

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig - настройки логирования
//
// Output:
// - "" или "stderr" - вывод в stderr
// - "stdout" - вывод в stdout
// - путь к файлу - запись в файл с ротацией (lumberjack)
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal
	Format      string // json, text
	Output      string
	Development bool

	// Ротация файлов (только для файлового вывода)
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger - обертка над zap.Logger с доменными хелперами
//
// Встраивает *zap.Logger, поэтому доступны Info/Warn/Error/With и т.д.
// sugar используется для printf-стиля (Infof, Warnf).
type Logger struct {
	*zap.Logger
	sugar *zap.SugaredLogger
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// InitLogger создает логгер по конфигурации
//
// Никогда не возвращает nil: при ошибке открытия файла
// логгер пишет в stderr.
func InitLogger(cfg LogConfig) *Logger {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "text") || strings.EqualFold(cfg.Format, "console") {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, outputSyncer(cfg), zap.NewAtomicLevelAt(level))

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	base := zap.New(core, opts...)
	return &Logger{
		Logger: base,
		sugar:  base.Sugar(),
	}
}

// outputSyncer выбирает приемник логов
func outputSyncer(cfg LogConfig) zapcore.WriteSyncer {
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		return zapcore.Lock(os.Stderr)
	case "stdout":
		return zapcore.Lock(os.Stdout)
	}

	// Проверяем что файл можно открыть, иначе fallback на stderr
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zapcore.Lock(os.Stderr)
	}
	_ = f.Close()

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	})
}

// parseLevel переводит строку в уровень zap (по умолчанию info)
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// With возвращает дочерний логгер с дополнительными полями
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{Logger: child, sugar: child.Sugar()}
}

// WithComponent - дочерний логгер для компонента (handler, service, stream...)
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithAutomation - дочерний логгер с automation_id
func (l *Logger) WithAutomation(automationID string) *Logger {
	return l.With(AutomationID(automationID))
}

// WithUser - дочерний логгер с user_id
func (l *Logger) WithUser(userID int) *Logger {
	return l.With(UserID(userID))
}

// WithCredential - дочерний логгер с exchange_credential_id
func (l *Logger) WithCredential(credentialID int) *Logger {
	return l.With(CredentialID(credentialID))
}

// Sugar возвращает SugaredLogger для printf-стиля
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// NewNop - логгер, который ничего не пишет (тесты, TUI)
func NewNop() *Logger {
	l := zap.NewNop()
	return &Logger{Logger: l, sugar: l.Sugar()}
}

// ============ Глобальный логгер ============

// InitGlobalLogger создает логгер и делает его глобальным
func InitGlobalLogger(cfg LogConfig) *Logger {
	logger := InitLogger(cfg)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger заменяет глобальный логгер
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger возвращает глобальный логгер, создавая дефолтный при первом вызове
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()
	if logger != nil {
		return logger
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{Level: "info", Format: "json"})
	}
	return globalLogger
}

// L - короткий алиас GetGlobalLogger
func L() *Logger {
	return GetGlobalLogger()
}

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetGlobalLogger().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetGlobalLogger().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(format, args...) }

// ============ Доменные конструкторы полей ============

func AutomationID(id string) zap.Field   { return zap.String("automation_id", id) }
func UserID(id int) zap.Field            { return zap.Int("user_id", id) }
func CredentialID(id int) zap.Field      { return zap.Int("exchange_credential_id", id) }
func StrategyID(id int) zap.Field        { return zap.Int("strategy_id", id) }
func LogID(id int64) zap.Field           { return zap.Int64("log_id", id) }
func ProductID(id string) zap.Field      { return zap.String("product_id", id) }
func Asset(symbol string) zap.Field      { return zap.String("asset", symbol) }
func Amount(amount string) zap.Field     { return zap.String("amount", amount) }
func Action(action string) zap.Field     { return zap.String("action", action) }
func Status(status string) zap.Field     { return zap.String("status", status) }
func Component(name string) zap.Field    { return zap.String("component", name) }
func RequestID(id string) zap.Field      { return zap.String("request_id", id) }
func Subscribers(n int) zap.Field        { return zap.Int("subscribers", n) }
func Latency(ms float64) zap.Field       { return zap.Float64("latency_ms", ms) }
func Elapsed(d time.Duration) zap.Field  { return zap.Duration("elapsed", d) }

// Переэкспорт базовых конструкторов zap, чтобы не импортировать zap в каждом пакете

func String(key, val string) zap.Field          { return zap.String(key, val) }
func Int(key string, val int) zap.Field         { return zap.Int(key, val) }
func Int64(key string, val int64) zap.Field     { return zap.Int64(key, val) }
func Float64(key string, val float64) zap.Field { return zap.Float64(key, val) }
func Bool(key string, val bool) zap.Field       { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) zap.Field {
	return zap.Duration(key, val)
}
func Err(err error) zap.Field                    { return zap.Error(err) }
func Any(key string, val interface{}) zap.Field { return zap.Any(key, val) }

// fieldsToInterface превращает поля в плоский список key, value для sugar-логгера
func fieldsToInterface(fields []zap.Field) []interface{} {
	enc := zapcore.NewMapObjectEncoder()
	result := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		f.AddTo(enc)
		result = append(result, f.Key, enc.Fields[f.Key])
	}
	return result
}

// Infow пишет сообщение через sugar с полями zap
func (l *Logger) Infow(msg string, fields ...zap.Field) {
	l.sugar.Infow(msg, fieldsToInterface(fields)...)
}
