// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/decred/slog"
	flags "github.com/jessevdk/go-flags"

	"github.com/orbitforge/worldmarket/econ"
)

const (
	defaultConfigFilename  = "marketd.conf"
	defaultLogFilename     = "marketd.log"
	defaultCertFilename    = "rpc.cert"
	defaultKeyFilename     = "rpc.key"
	defaultLogLevel        = "info"
	defaultLogDirname      = "logs"
	defaultMarketsFilename = "markets.json"
	defaultMaxLogZips      = 16
	defaultPGHost          = "127.0.0.1:5432"
	defaultPGUser          = "marketd"
	defaultPGDBName        = "marketd"
	defaultWSListen        = "127.0.0.1:17232"
	defaultAdminSrvAddr    = "127.0.0.1:17233"

	defaultSweepInterval = 5 * time.Minute
	defaultExpiryRatio   = 1.0
)

// marketdConf is the parsed and validated daemon configuration.
type marketdConf struct {
	DBName          string
	DBUser          string
	DBPass          string
	DBHost          string
	DBPort          uint16
	MarketsConfPath string
	WSListen        string
	AdminSrvOn      bool
	AdminSrvAddr    string
	AdminSrvPW      []byte
	Cert            string
	Key             string
	SweepInterval   time.Duration
	ExpiryRatio     float64
	LogMaker        *econ.LoggerMaker
}

type flagsData struct {
	// General application behavior
	AppDataDir  string `short:"A" long:"appdata" description:"Path to application home directory"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	MaxLogZips  int    `long:"maxlogzips" description:"The number of zipped log files created by the log rotator to be retained. Setting to 0 will keep all."`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`

	Cert string `long:"cert" description:"Admin server TLS certificate file"`
	Key  string `long:"key" description:"Admin server TLS private key file"`

	WSListen        string        `long:"wslisten" description:"Address on which to serve the notification websocket"`
	MarketsConfPath string        `long:"marketsconfpath" description:"Path to the markets configuration JSON file."`
	SweepInterval   time.Duration `long:"sweepinterval" description:"How often the expiry sweeper runs."`
	ExpiryRatio     float64       `long:"expiryratio" description:"Fraction of an order's duration after which it expires."`

	AdminSrvOn   bool   `long:"adminsrvon" description:"Turn on the admin server."`
	AdminSrvAddr string `long:"adminsrvaddr" description:"Administration HTTPS server address"`
	AdminSrvPW   string `long:"adminsrvpw" description:"Administration server password."`

	PGDBName string `long:"pgdbname" description:"PostgreSQL DB name."`
	PGUser   string `long:"pguser" description:"PostgreSQL DB user."`
	PGPass   string `long:"pgpass" description:"PostgreSQL DB password."`
	PGHost   string `long:"pghost" description:"PostgreSQL server host:port or UNIX socket (e.g. /run/postgresql)."`
}

// defaultAppDataDir returns the daemon's default home directory.
func defaultAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".marketd")
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Do not try to clean the empty string
	if path == "" {
		return ""
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but the variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. The debugLevel takes either a single level applied
// to all subsystems, or a comma-separated list of subsystem=level pairs.
func parseAndSetDebugLevels(debugLevel string) (*econ.LoggerMaker, error) {
	if !strings.Contains(debugLevel, "=") {
		lvl, ok := slog.LevelFromString(debugLevel)
		if !ok {
			return nil, fmt.Errorf("invalid debug level %q", debugLevel)
		}
		lm := econ.NewLoggerMaker(backendLog, lvl)
		setLogLevels(lvl)
		return lm, nil
	}

	lm := econ.NewLoggerMaker(backendLog, slog.LevelInfo)
	for _, pair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(pair, "=") {
			return nil, fmt.Errorf("the debug level %q is invalid "+
				"(expected subsystem=level)", pair)
		}
		fields := strings.Split(pair, "=")
		subsysID, levelStr := fields[0], fields[1]
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return nil, fmt.Errorf("the specified subsystem [%v] is invalid -- "+
				"supported subsystems %v", subsysID, supportedSubsystems())
		}
		lvl, ok := slog.LevelFromString(levelStr)
		if !ok {
			return nil, fmt.Errorf("invalid debug level %q", levelStr)
		}
		lm.Levels[subsysID] = lvl
		setLogLevel(subsysID, lvl)
	}
	return lm, nil
}

// splitHostPort splits a network address of the form "host:port" or a
// UNIX-socket path into its pieces.
func splitHostPort(a string) (host string, port uint16, err error) {
	if strings.HasPrefix(a, "/") {
		// UNIX socket, no port.
		return a, 0, nil
	}
	hostStr, portStr, err := net.SplitHostPort(a)
	if err != nil {
		return "", 0, err
	}
	p, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %v", portStr, err)
	}
	return hostStr, uint16(p), nil
}

// loadConfig initializes and parses the config using a config file and
// command line options.
func loadConfig() (*marketdConf, error) {
	// Default config
	cfg := flagsData{
		AppDataDir:      defaultAppDataDir(),
		MaxLogZips:      defaultMaxLogZips,
		Cert:            defaultCertFilename,
		Key:             defaultKeyFilename,
		DebugLevel:      defaultLogLevel,
		PGDBName:        defaultPGDBName,
		PGUser:          defaultPGUser,
		PGHost:          defaultPGHost,
		WSListen:        defaultWSListen,
		AdminSrvAddr:    defaultAdminSrvAddr,
		MarketsConfPath: defaultMarketsFilename,
		SweepInterval:   defaultSweepInterval,
		ExpiryRatio:     defaultExpiryRatio,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the help
	// message error can be ignored here since they will be caught by the
	// final parse below.
	var preCfg flagsData
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		} else if ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n",
			appName, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Special show command to list supported subsystems and exit.
	if preCfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	if preCfg.AppDataDir != "" {
		cfg.AppDataDir, err = filepath.Abs(cleanAndExpandPath(preCfg.AppDataDir))
		if err != nil {
			return nil, fmt.Errorf("unable to determine working directory: %v", err)
		}
	}
	isDefaultConfigFile := preCfg.ConfigFile == ""
	if isDefaultConfigFile {
		preCfg.ConfigFile = filepath.Join(cfg.AppDataDir, defaultConfigFilename)
	} else if !filepath.IsAbs(preCfg.ConfigFile) {
		preCfg.ConfigFile = filepath.Join(cfg.AppDataDir, preCfg.ConfigFile)
	}

	// Load additional config from file.
	var configFileError error
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
		// Non-default config file must exist.
		if !isDefaultConfigFile {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
		// Missing default config file is fine; run on defaults.
	} else {
		err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintln(os.Stderr, err)
				parser.WriteHelp(os.Stderr)
				return nil, err
			}
			configFileError = err
		}
	}

	// Parse command line options again to ensure they take precedence.
	_, err = parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, err
	}
	if configFileError != nil {
		return nil, configFileError
	}

	// Resolve paths relative to the app data dir.
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.AppDataDir, defaultLogDirname)
	} else {
		cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	}
	if !filepath.IsAbs(cfg.MarketsConfPath) {
		cfg.MarketsConfPath = filepath.Join(cfg.AppDataDir, cfg.MarketsConfPath)
	}
	if !filepath.IsAbs(cfg.Cert) {
		cfg.Cert = filepath.Join(cfg.AppDataDir, cfg.Cert)
	}
	if !filepath.IsAbs(cfg.Key) {
		cfg.Key = filepath.Join(cfg.AppDataDir, cfg.Key)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename), cfg.MaxLogZips)

	// Parse, validate, and set debug log level(s).
	lm, err := parseAndSetDebugLevels(cfg.DebugLevel)
	if err != nil {
		err = fmt.Errorf("failed to set debug levels: %v", err)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, err
	}
	makeSubsystemLoggers(lm)

	dbHost, dbPort, err := splitHostPort(cfg.PGHost)
	if err != nil {
		return nil, fmt.Errorf("invalid pghost %q: %v", cfg.PGHost, err)
	}

	if cfg.ExpiryRatio <= 0 {
		return nil, fmt.Errorf("expiryratio must be positive, got %f", cfg.ExpiryRatio)
	}

	return &marketdConf{
		DBName:          cfg.PGDBName,
		DBUser:          cfg.PGUser,
		DBPass:          cfg.PGPass,
		DBHost:          dbHost,
		DBPort:          dbPort,
		MarketsConfPath: cfg.MarketsConfPath,
		WSListen:        cfg.WSListen,
		AdminSrvOn:      cfg.AdminSrvOn,
		AdminSrvAddr:    cfg.AdminSrvAddr,
		AdminSrvPW:      []byte(cfg.AdminSrvPW),
		Cert:            cfg.Cert,
		Key:             cfg.Key,
		SweepInterval:   cfg.SweepInterval,
		ExpiryRatio:     cfg.ExpiryRatio,
		LogMaker:        lm,
	}, nil
}
