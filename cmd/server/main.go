package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gaia-mud/gaia/pkg/account"
	"github.com/gaia-mud/gaia/pkg/boltstore"
	"github.com/gaia-mud/gaia/pkg/game"
	"github.com/gaia-mud/gaia/pkg/world"
)

// envDefault returns the environment variable value if set, otherwise
// the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func envInt(envVar string, fallback int) int {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("GAIA_CONF", ""), "Path to YAML config file (env: GAIA_CONF)")
	storePath := flag.String("store", envDefault("GAIA_STORE", ""), "Path to bbolt world database (env: GAIA_STORE)")
	telnetPort := flag.Int("telnet-port", envInt("GAIA_TELNET_PORT", 0), "Telnet listen port, overrides config (env: GAIA_TELNET_PORT)")
	wsPort := flag.Int("ws-port", envInt("GAIA_WS_PORT", 0), "WebSocket listen port, overrides config (env: GAIA_WS_PORT)")
	worldDir := flag.String("worlddir", envDefault("GAIA_WORLDDIR", ""), "World definition directory (env: GAIA_WORLDDIR)")
	sourceDir := flag.String("sourcedir", envDefault("GAIA_SOURCEDIR", ""), "G source directory for load/reload (env: GAIA_SOURCEDIR)")
	textDir := flag.String("textdir", envDefault("GAIA_TEXTDIR", ""), "Text files directory (env: GAIA_TEXTDIR)")
	metricsAddr := flag.String("metrics", envDefault("GAIA_METRICS", ""), "Prometheus metrics listen address (env: GAIA_METRICS)")
	adminPass := flag.String("adminpass", envDefault("GAIA_ADMINPASS", ""), "Bootstrap admin password (env: GAIA_ADMINPASS)")
	debug := flag.Bool("debug", os.Getenv("GAIA_DEBUG") == "true", "Enable debug logging (env: GAIA_DEBUG)")
	flag.Parse()

	cfg, err := game.LoadConfig(*confFile)
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(1)
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *telnetPort != 0 {
		cfg.TelnetPort = *telnetPort
	}
	if *wsPort != 0 {
		cfg.WebSocketPort = *wsPort
	}
	if *worldDir != "" {
		cfg.WorldDir = *worldDir
	}
	if *sourceDir != "" {
		cfg.SourceDir = *sourceDir
	}
	if *textDir != "" {
		cfg.TextDir = *textDir
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *adminPass != "" {
		cfg.AdminPassword = *adminPass
	}
	if v := os.Getenv("GAIA_TLS"); v != "" {
		cfg.TLS = v == "true"
	}
	if *debug {
		cfg.Debug = true
	}

	db, err := boltstore.Open(cfg.StorePath)
	if err != nil {
		log.Printf("store: open %s: %v", cfg.StorePath, err)
		os.Exit(2)
	}
	defer db.Close()

	cache := world.NewCache(db.World())
	if cfg.FlushIntervalSec > 0 {
		cache.FlushInterval = time.Duration(cfg.FlushIntervalSec) * time.Second
	}
	if cfg.DirtyThreshold > 0 {
		cache.DirtyThreshold = cfg.DirtyThreshold
	}
	accounts := account.NewManager(db.Accounts())

	gm := game.NewGame(cfg, cache, accounts)
	if err := gm.Bootstrap(); err != nil {
		log.Printf("bootstrap: %v", err)
		os.Exit(2)
	}
	if err := gm.SyncConfigObject(); err != nil {
		log.Printf("config object: %v", err)
		os.Exit(2)
	}

	if cfg.WorldDir != "" {
		n, err := gm.LoadWorldDir(cfg.WorldDir)
		if err != nil {
			log.Printf("world files: %v", err)
			os.Exit(1)
		}
		log.Printf("world: loaded %d definitions from %s", n, cfg.WorldDir)
	}
	log.Printf("store: %d objects in %s", db.World().Count(), cfg.StorePath)

	if cfg.TextDir != "" {
		if err := gm.Texts.Load(cfg.TextDir); err != nil {
			log.Printf("text files: %v", err)
			os.Exit(1)
		}
		if err := gm.Texts.Watch(gm.Logf); err != nil {
			log.Printf("text files: %v", err)
		}
	}

	if cfg.ScrollbackPath != "" {
		sb, err := game.OpenScrollback(cfg.ScrollbackPath, gm.Logf)
		if err != nil {
			log.Printf("scrollback: %v", err)
			os.Exit(2)
		}
		gm.Scrollback = sb
		sb.Attach(gm.Bus)
		sb.StartRetention(time.Duration(cfg.ScrollbackRetention) * time.Second)
	}

	if cfg.MetricsAddr != "" {
		gm.Metrics = game.NewMetrics(gm)
	}
	gm.Auth = game.NewAuthService(gm, cfg.JWTSecret, cfg.JWTExpiry)

	cache.StartWriteback()
	gm.StartTicker()

	srv, err := game.NewServer(gm)
	if err != nil {
		log.Printf("server: %v", err)
		os.Exit(1)
	}
	log.Printf("gaia: telnet :%d, websocket :%d", cfg.TelnetPort, cfg.WebSocketPort)
	if err := srv.Run(); err != nil {
		log.Printf("server: %v", err)
		if errors.Is(err, game.ErrBind) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}
