package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamhub/videoproxy/internal/activereq"
	"github.com/streamhub/videoproxy/internal/config"
	"github.com/streamhub/videoproxy/internal/connpool"
	"github.com/streamhub/videoproxy/internal/logging"
	"github.com/streamhub/videoproxy/internal/metacache"
	"github.com/streamhub/videoproxy/internal/originclient"
	"github.com/streamhub/videoproxy/internal/rangeengine"
	"github.com/streamhub/videoproxy/internal/router"
	"github.com/streamhub/videoproxy/internal/segcache"
	"github.com/streamhub/videoproxy/internal/stats"
	"github.com/streamhub/videoproxy/internal/supervisor"
	"github.com/streamhub/videoproxy/internal/version"
	"github.com/streamhub/videoproxy/internal/webdavbrowse"
)

// cliOptions holds the parsed flag/env values run acts on; a plain struct so
// tests can build one directly without going through the flag set.
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run wires up and starts the proxy from parsed CLI options, returning a
// process exit code so main and tests share one code path.
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["target"] = cfg.Global.TargetBaseURL()
		fields["auth_mode"] = cfg.Global.AuthMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序遵循“配置 → 连接池 → 源站客户端 → 缓存 → Range 引擎 →
	// 路由 → 监督器”，保证所有请求共享同一组实例，便于观察 stats/metrics。
	transport := connpool.New(connpool.DefaultConfig())
	client := originclient.New(transport, cfg.Global.TargetUsername, cfg.Global.TargetPassword, cfg.Global.UpstreamTimeout.DurationValue())

	segCache := segcache.New(cfg.Global.SegmentCacheCap.Bytes(), cfg.Global.SegmentSize.Bytes())
	metaCache := metacache.NewMetadataCache(cfg.Global.MetadataTTL.DurationValue())
	redirectCache := metacache.NewRedirectCache(cfg.Global.RedirectTTL.DurationValue())
	preloadCache := metacache.NewPreloadCache(cfg.Global.PreloadTTL.DurationValue())
	defer metaCache.Stop()
	defer redirectCache.Stop()
	defer preloadCache.Stop()

	engine := rangeengine.New(client, segCache, metaCache, redirectCache)
	recorder := stats.New()
	requests := activereq.New()

	registry := prometheus.NewRegistry()
	stats.RegisterCollectors(registry, recorder, metaCache, redirectCache, segCache)

	browser := webdavbrowse.New(cfg.Global.TargetBaseURL(), cfg.Global.TargetUsername, cfg.Global.TargetPassword, transport)

	app, err := router.NewApp(router.Deps{
		Logger:        logger,
		Global:        cfg.Global,
		Engine:        engine,
		Recorder:      recorder,
		Requests:      requests,
		Browser:       browser,
		Transport:     transport,
		MetaCache:     metaCache,
		RedirectCache: redirectCache,
		SegCache:      segCache,
		Registry:      registry,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建路由失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["target"] = cfg.Global.TargetBaseURL()
	fields["listen_port"] = cfg.Global.ListenPort
	fields["auth_mode"] = cfg.Global.AuthMode()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listenAddr := fmt.Sprintf(":%d", cfg.Global.ListenPort)
	sweepers := supervisor.Sweepers{
		Metadata: metaCache,
		Redirect: redirectCache,
		Preload:  preloadCache,
	}
	if err := supervisor.Run(ctx, logger, app, listenAddr, sweepers); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("videoproxy", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 PROXY_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("PROXY_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}
