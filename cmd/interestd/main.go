package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/interest/internal/config"
	coresys "github.com/l1jgo/interest/internal/core/system"
	"github.com/l1jgo/interest/internal/data"
	"github.com/l1jgo/interest/internal/handler"
	gonet "github.com/l1jgo/interest/internal/net"
	"github.com/l1jgo/interest/internal/net/packet"
	"github.com/l1jgo/interest/internal/persist"
	"github.com/l1jgo/interest/internal/scripting"
	"github.com/l1jgo/interest/internal/system"
	"github.com/l1jgo/interest/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             interestd  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        區塊興趣管理 · 觀察者伺服器        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printSkip(msg string) {
	fmt.Printf("  \033[90m- %s\033[0m\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("INTERESTD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Database (optional)
	printSection("資料庫")

	var viewerRepo *persist.ViewerRepo
	var saver system.ViewerSaver
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功")

		version, err := persist.RunMigrations(ctx, db.Pool)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("資料庫版本", int(version))

		viewerRepo = persist.NewViewerRepo(db)
		saver = viewerRepo
	} else {
		printSkip("資料庫停用，觀察者狀態不保存")
	}
	fmt.Println()

	// 4. Data and scripts
	printSection("資料載入")

	spawnList, err := data.LoadSpawnList(cfg.Data.SpawnList)
	if err != nil {
		return fmt.Errorf("load spawn list: %w", err)
	}
	printStat("機器人生成表", len(spawnList.Entries()))

	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("lua engine: %w", err)
	}
	defer luaEngine.Close()
	printOK("Lua 腳本載入完成")

	// 5. World state and bots
	worldState := world.NewState(cfg.View, log)
	botCount := spawnBots(worldState, spawnList, luaEngine, cfg.View, log)
	printStat("機器人觀察者", botCount)
	fmt.Println()

	// 6. Message handlers
	pktReg := packet.NewRegistry(log)
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     worldState,
		Scripting: luaEngine,
		Viewers:   viewerRepo,
	}
	handler.RegisterAll(pktReg, deps)

	// 7. Observer listener
	netServer := gonet.NewServer(cfg, log)
	if err := netServer.Start(); err != nil {
		return fmt.Errorf("net server: %w", err)
	}

	// 8. Journal (optional)
	var journal *persist.Journal
	var journalWriter system.JournalWriter
	if cfg.Journal.Enabled {
		journal = persist.NewJournal(cfg.Journal.Dir)
		journalWriter = journal
	}

	// 9. Systems
	store := gonet.NewSessionStore()
	persistSys := system.NewPersistenceSystem(worldState, saver, journalWriter,
		cfg.Persist.IntervalTicks, cfg.Journal.IntervalTicks, log)

	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, pktReg, store, worldState, cfg.Network.MaxMessagesPerTick, log))
	runner.Register(system.NewWanderSystem(worldState, luaEngine))
	runner.Register(system.NewTrackingSystem(worldState))
	runner.Register(system.NewOutputSystem(worldState, store))
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(worldState.ECS))

	// 10. Game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	var poll <-chan time.Time
	if cfg.Network.InputPoll > 0 && cfg.Network.InputPoll < cfg.Network.TickRate {
		pollTicker := time.NewTicker(cfg.Network.InputPoll)
		defer pollTicker.Stop()
		poll = pollTicker.C
	}

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("監聽位址 %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case <-poll:
			runner.TickPhase(coresys.PhaseInput, 0)
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))

			// 把尚未派送的離線事件送達存檔系統後再做最後存檔
			worldState.Bus.SwapBuffers()
			worldState.Bus.DispatchAll()
			persistSys.SaveAll()
			if journal != nil {
				if err := journal.Close(); err != nil {
					log.Warn("興趣日誌關閉失敗", zap.Error(err))
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := netServer.Shutdown(ctx); err != nil {
				log.Warn("關閉監聽失敗", zap.Error(err))
			}
			cancel()
			log.Info("伺服器已停止")
			return nil
		}
	}
}

// spawnBots adds the spawn list's bot viewers. The view-distance policy is
// applied the same way as for observers.
func spawnBots(ws *world.State, list *data.SpawnList, eng *scripting.Engine, view config.ViewConfig, log *zap.Logger) int {
	count := 0
	for _, b := range list.Expand() {
		requested := b.ViewDistance
		if requested == 0 {
			requested = view.ViewDistance
		}
		_, err := ws.SpawnViewer(world.ViewerSpec{
			Name:        b.Name,
			X:           b.X,
			Z:           b.Z,
			Requested:   requested,
			Effective:   eng.ClampViewDistance(requested, view.MaxViewDistance),
			Bot:         true,
			WanderRange: b.WanderRange,
		})
		if err != nil {
			log.Warn("機器人生成失敗", zap.String("name", b.Name), zap.Error(err))
			continue
		}
		count++
	}
	return count
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
