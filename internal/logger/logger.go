// Package logger 基于 zerolog 的结构化日志，支持控制台与滚动文件双写
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志接口，键值对以 key, value 交替传入
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
}

// Options 日志配置
type Options struct {
	Level   string   // debug / info / warn / error
	Writers []string // console / file
	File    string   // file 输出路径
}

type zlog struct {
	l zerolog.Logger
}

// New 按配置创建日志实例
func New(opts Options) Logger {
	var outs []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			outs = append(outs, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		case "file":
			file := opts.File
			if file == "" {
				file = "cdpauth.log"
			}
			outs = append(outs, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    50, // MB
				MaxBackups: 3,
				MaxAge:     7, // 天
			})
		}
	}
	if len(outs) == 0 {
		outs = append(outs, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(zerolog.MultiLevelWriter(outs...)).Level(level).With().Timestamp().Logger()
	return &zlog{l: l}
}

// NewNop 创建丢弃全部输出的日志实例，测试用
func NewNop() Logger {
	return &zlog{l: zerolog.Nop()}
}

func (z *zlog) Debug(msg string, kv ...any) { emit(z.l.Debug(), msg, kv) }
func (z *zlog) Info(msg string, kv ...any)  { emit(z.l.Info(), msg, kv) }
func (z *zlog) Warn(msg string, kv ...any)  { emit(z.l.Warn(), msg, kv) }
func (z *zlog) Error(msg string, kv ...any) { emit(z.l.Error(), msg, kv) }

func (z *zlog) Err(err error, msg string, kv ...any) {
	emit(z.l.Error().Err(err), msg, kv)
}

// emit 将交替的键值对附加到事件后输出
func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
