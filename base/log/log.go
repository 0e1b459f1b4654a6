package log

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type (
	Level   string
	OutType int
)

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"

	infoFileOutName  = "gate"
	errorFileOutName = "error"

	// ConsoleOut 控制台输出
	ConsoleOut OutType = 1
	// InfoFileOut 一般日志
	InfoFileOut OutType = 2
	// ErrorFileOut 错误日志，只记录warn以上
	ErrorFileOut OutType = 4

	// NormalOut 文件输出
	NormalOut = InfoFileOut | ErrorFileOut
)

var (
	// Builder 初始化Logger的builder
	Builder      = &builder{logger: &loggerProxy{}}
	levelMapping = map[Level]zapcore.Level{
		LevelDebug: zap.DebugLevel,
		LevelInfo:  zap.InfoLevel,
		LevelWarn:  zap.WarnLevel,
		LevelError: zap.ErrorLevel,
	}
	aliasMap = map[string]OutType{
		"console": ConsoleOut,
		"file":    NormalOut,
	}
	proxy *loggerProxy
	once  sync.Once
)

// OutTypeAlias 文本配置转OutType，用|分割，如 console|file
func OutTypeAlias(name string) OutType {
	names := strings.Split(strings.ToLower(name), "|")
	var r OutType
	for _, s := range names {
		r |= aliasMap[strings.TrimSpace(s)]
	}
	return lo.Ternary(r == 0, ConsoleOut, r)
}

type loggerProxy struct {
	name         string
	path         string
	level        Level
	out          OutType
	maxSize      int //单位Mb
	maxAge       int //单位天
	maxBackUps   int
	enableRotate bool

	zapLevel zap.AtomicLevel
	logger   atomic.Value
	dLogger  *zap.SugaredLogger
	nLogger  *zap.SugaredLogger
}

func (lp *loggerProxy) changeLogLevel(level Level, force bool) {
	zl, ok := levelMapping[level]
	if !ok {
		zl = zap.InfoLevel
	}
	if !force && zl == lp.zapLevel.Level() {
		return
	}
	lp.zapLevel.SetLevel(zl)
	// debug模式下打印caller
	lp.logger.Store(lo.Ternary(zl == zap.DebugLevel, lp.dLogger, lp.nLogger))
}

// ChangeLogLevel 运行时切换日志等级
func ChangeLogLevel(level Level) {
	proxy.changeLogLevel(level, false)
}

// IsDebugEnabled 是否打开了debug
func IsDebugEnabled() bool {
	return proxy.zapLevel.Enabled(zapcore.DebugLevel)
}

type builder struct {
	logger *loggerProxy
}

func (b *builder) Name(name string) *builder {
	b.logger.name = name
	return b
}

// Path 日志文件目录
func (b *builder) Path(path string) *builder {
	b.logger.path = path
	return b
}

func (b *builder) Level(level Level) *builder {
	b.logger.level = level
	return b
}

func (b *builder) OutType(out OutType) *builder {
	b.logger.out = out
	return b
}

func (b *builder) MaxSize(size int) *builder {
	b.logger.maxSize = size
	return b
}

func (b *builder) MaxAge(age int) *builder {
	b.logger.maxAge = age
	return b
}

func (b *builder) MaxBackUps(count int) *builder {
	b.logger.maxBackUps = count
	return b
}

func (b *builder) EnableRotate(enable bool) *builder {
	b.logger.enableRotate = enable
	return b
}

// Build 只会生效一次，之后只能通过ChangeLogLevel修改等级
func (b *builder) Build() {
	once.Do(func() {
		p := b.logger
		if p.out <= 0 {
			p.out = ConsoleOut
		}
		if p.out&NormalOut > 0 {
			if p.path == "" {
				p.path = "./log"
			}
			if err := os.MkdirAll(p.path, 0755); err != nil {
				panic("fail to create log directory: " + err.Error())
			}
		}
		if p.level == "" {
			p.level = LevelDebug
		}
		p.zapLevel = zap.NewAtomicLevelAt(levelMapping[p.level])
		hp := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.WarnLevel
		})
		encoder := zapcore.NewConsoleEncoder(consoleEncoderConfig())
		cores := make([]zapcore.Core, 0, 3)
		if p.out&ConsoleOut > 0 {
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), p.zapLevel))
		}
		if p.out&InfoFileOut > 0 {
			filename := lo.Ternary(p.name == "", infoFileOutName, p.name) + ".log"
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(b.getWriter(filename)), p.zapLevel))
		}
		if p.out&ErrorFileOut > 0 {
			filename := lo.Ternary(p.name == "", errorFileOutName, p.name+"-"+errorFileOutName) + ".log"
			cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(b.getWriter(filename)), hp))
		}
		proxy = p.install(zap.New(zapcore.NewTee(cores...)))
	})
}

func (lp *loggerProxy) install(lg *zap.Logger) *loggerProxy {
	lp.nLogger = lg.Sugar()
	lp.dLogger = lg.WithOptions(zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	lp.changeLogLevel(lp.level, true)
	return lp
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = timeEncoder
	return cfg
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02T15:04:05.000Z07:00"))
}

func (b *builder) getWriter(name string) io.Writer {
	fullName := filepath.Join(b.logger.path, name)
	if !b.logger.enableRotate {
		f, err := os.OpenFile(fullName, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			panic("fail to open log file")
		}
		return f
	}
	return &lumberjack.Logger{
		Filename:   fullName,
		MaxSize:    b.logger.maxSize,
		MaxAge:     b.logger.maxAge,
		MaxBackups: b.logger.maxBackUps,
	}
}

func current() *zap.SugaredLogger {
	return proxy.logger.Load().(*zap.SugaredLogger)
}

// Debug 调试模式下会打印caller
func Debug(format string, a ...any) {
	current().Debugf(format, a...)
}

func Info(format string, a ...any) {
	current().Infof(format, a...)
}

func Warn(format string, a ...any) {
	current().Warnf(format, a...)
}

func Error(format string, a ...any) {
	current().Errorf(format, a...)
}

func Fatal(format string, a ...any) {
	current().Fatalf(format, a...)
}

// PanicStack 从panic中恢复并打印日志
// 注意recover必须在当前函数调用
func PanicStack(prefix string, r any) {
	buf := make([]byte, 1024)
	l := runtime.Stack(buf, false)
	Error("%s: %v-> %s", prefix, r, buf[:l])
}

func Flush() {
	if proxy.dLogger != nil {
		_ = proxy.dLogger.Sync()
	}
	if proxy.nLogger != nil {
		_ = proxy.nLogger.Sync()
	}
}

func init() {
	// 默认只输出到控制台，方便测试
	p := &loggerProxy{level: LevelDebug, out: ConsoleOut}
	p.zapLevel = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	encoder := zapcore.NewConsoleEncoder(consoleEncoderConfig())
	proxy = p.install(zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), p.zapLevel)))
}
