package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdpauth/internal/cdp"
	"cdpauth/internal/config"
	"cdpauth/internal/handler"
	"cdpauth/internal/logger"
	"cdpauth/internal/storage"
	"cdpauth/pkg/api"
)

func main() {
	cfgPath := flag.String("config", "cdpauth.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config error:", err)
		os.Exit(1)
	}

	l := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	db, err := storage.NewDB(cfg.Sqlite.Dsn, l)
	if err != nil {
		l.Err(err, "打开数据库失败")
		os.Exit(1)
	}
	defer db.Close()

	mgr := cdp.New(cfg.DevTools.URL, cfg.Inject.Concurrency, l)
	if err := mgr.AttachTarget(cfg.DevTools.Target); err != nil {
		l.Err(err, "附加浏览器目标失败", "devtools", cfg.DevTools.URL)
		os.Exit(1)
	}
	defer mgr.Detach()

	svc, err := api.New(api.Options{
		Engine:     mgr,
		DB:         db,
		Logger:     l,
		Debounce:   time.Duration(cfg.Inject.DebounceMS) * time.Millisecond,
		FlushDelay: time.Duration(cfg.Inject.FlushDelayMS) * time.Millisecond,
	})
	if err != nil {
		l.Err(err, "初始化服务失败")
		os.Exit(1)
	}
	defer svc.Close()

	// 请求观察钩子直接喂给追踪器
	mgr.SetObserver(func(rawURL, kind string) { svc.Track(rawURL) })

	if err := mgr.Start(); err != nil {
		l.Err(err, "启用请求拦截失败")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 持久开关为开时恢复上次的注入状态
	if on, err := svc.GetEnabled(); err == nil && on {
		if err := svc.Enable(ctx); err != nil {
			l.Err(err, "恢复注入状态失败")
		}
	}

	// 界面进程通过 stdin/stdout 按行交换 JSON 消息
	h := handler.New(svc, l)
	go serveMessages(ctx, h)

	l.Info("cdpauthd 已启动", "devtools", cfg.DevTools.URL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	l.Info("收到退出信号，冲刷统计后退出")
}

// serveMessages 按行读取消息并写回响应
func serveMessages(ctx context.Context, h *handler.Handler) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	out := bufio.NewWriter(os.Stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := h.Handle(ctx, line)
		out.Write(resp)
		out.WriteByte('\n')
		out.Flush()
	}
}
