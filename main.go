package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/browserwing/contactwing/api"
	"github.com/browserwing/contactwing/config"
	"github.com/browserwing/contactwing/executor"
	"github.com/browserwing/contactwing/pkg/logger"
	"github.com/browserwing/contactwing/services/device"
	"github.com/browserwing/contactwing/services/explorer"
	"github.com/browserwing/contactwing/storage"
)

// 构建信息变量，通过Makefile的LDFLAGS注入
var (
	Version   = "v0.1.0"
	BuildTime = ""
	GoVersion = ""
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "config.toml", "Path to config file (default: config.toml)")
	serial := flag.String("device", "", "Device serial (default: the only connected device)")
	filter := flag.String("filter", "", "Search filter label recorded with every contact")
	serve := flag.Bool("serve", false, "Serve the status and contact query API while exploring")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Go Version: %s\n", GoVersion)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if cfg == nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("Failed to load config file, using default config: %v", err)
	}

	// 优先级: 命令行参数 > 环境变量 > 配置文件
	if *serial != "" {
		cfg.Device.Serial = *serial
	}
	if *filter != "" {
		cfg.Explorer.Filter = *filter
	}
	if *serve {
		cfg.Server.Enabled = true
	}

	logger.InitLogger(cfg.Log)

	if cfg.Explorer.Filter == "" {
		log.Fatalf("Search filter is required (-filter or CONTACTWING_FILTER)")
	}

	db, err := storage.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Database initialization successful")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupGracefulShutdown(cancel)

	adb, err := device.Connect(ctx, cfg.Device, nil)
	if err != nil {
		log.Fatalf("Failed to connect device: %v", err)
	}
	log.Printf("✓ Device %s connected", adb.Serial())

	xmlDir, pngDir, err := prepareJobDir(cfg.Explorer.WorkDir, time.Now())
	if err != nil {
		log.Fatalf("Failed to create job directory: %v", err)
	}
	log.Printf("✓ Job directory: %s", filepath.Dir(xmlDir))

	rules, err := explorer.RulesForLocale(cfg.Explorer.Locale)
	if err != nil {
		log.Fatalf("Invalid explorer locale: %v", err)
	}
	extractor, err := explorer.NewExtractor(rules)
	if err != nil {
		log.Fatalf("Failed to compile extraction rules: %v", err)
	}

	session := explorer.NewSession(cfg.Explorer.Filter, db)
	reader := executor.NewSnapshotReader(adb, xmlDir, session.Steps)
	nav := executor.NewNavigator(adb, reader, cfg.App.Package, selectorsFromConfig(cfg.App), cfg.Explorer.SettleDelay())
	budget := explorer.BudgetFromConfig(cfg.Explorer)
	exp := explorer.New(nav, session, db, extractor, explorer.Options{
		PNGDir: pngDir,
		Budget: budget,
		Crop:   device.CropImage,
	})

	var srv *http.Server
	if cfg.Server.Enabled {
		handler := api.NewHandler(db, session, cfg)
		router := api.SetupRouter(handler, pngDir, cfg.Debug)
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		srv = &http.Server{Addr: addr, Handler: router}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Failed to start server: %v", err)
			}
		}()
		log.Printf("🚀 Status API started at http://%s", addr)
	}

	err = explorer.NewRunner(exp, nav, budget).Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		log.Println("Exploration stopped")
	case err != nil:
		log.Printf("Exploration failed: %v", err)
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to stop server: %v", err)
		} else {
			log.Println("✓ Server stopped")
		}
	}
	log.Println("Program exited")
}

// setupGracefulShutdown 收到退出信号时取消探索，当前步骤结束后退出
func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("\nReceived exit signal: %v", sig)
		log.Println("Exiting gracefully...")
		cancel()

		// 第二次信号直接退出
		<-sigChan
		log.Println("Force exit")
		os.Exit(1)
	}()

	log.Println("✓ Graceful shutdown mechanism started")
}

// prepareJobDir 创建 job_<时间> 目录及其 xml、png 子目录
func prepareJobDir(workDir string, now time.Time) (string, string, error) {
	jobDir := filepath.Join(workDir, "job_"+now.Format("2006-01-02_15-04-05"))
	xmlDir := filepath.Join(jobDir, "xml")
	pngDir := filepath.Join(jobDir, "png")
	for _, dir := range []string{xmlDir, pngDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", "", err
		}
	}
	return xmlDir, pngDir, nil
}

func selectorsFromConfig(app *config.AppConfig) executor.Selectors {
	sel := func(s config.SelectorConfig) executor.Selector {
		return executor.Selector{Attr: s.Attribute, Value: s.Value}
	}
	return executor.Selectors{
		EntryMenu:      sel(app.EntryMenu),
		AddContact:     sel(app.AddContact),
		AdvancedSearch: sel(app.AdvancedSearch),
		SearchButton:   sel(app.SearchButton),
		FriendList:     sel(app.FriendList),
		AvatarEntry:    sel(app.AvatarEntry),
		AvatarImage:    sel(app.AvatarImage),
	}
}
