// Package main provides the entry point for the Vitalog companion CLI.
// The CLI owns the OAuth2/PKCE sign-in flow for Vitalog accounts: it signs
// users in through the browser, keeps tokens fresh, reports session state,
// and signs users out again.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vitalog-app/vitalog-cli/internal/buildinfo"
	"github.com/vitalog-app/vitalog-cli/internal/cmd"
	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/logging"
	"github.com/vitalog-app/vitalog-cli/internal/util"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = "config.yaml"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("Vitalog CLI Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var login bool
	var logout bool
	var whoami bool
	var status bool
	var noBrowser bool
	var oauthCallbackPort int
	var configPath string

	flag.BoolVar(&login, "login", false, "Sign in to a Vitalog account using OAuth")
	flag.BoolVar(&logout, "logout", false, "Sign out and clear stored credentials")
	flag.BoolVar(&whoami, "whoami", false, "Show the signed-in account identity")
	flag.BoolVar(&status, "status", false, "Show local session and storage state")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.IntVar(&oauthCallbackPort, "oauth-callback-port", 0, "Override OAuth callback port (defaults to the configured port)")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.Parse()

	// Environment overrides may live next to the binary or the working dir.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Debugf("no .env file loaded: %v", err)
	}

	cfg, err := config.LoadConfigOptional(configPath, configPath == DefaultConfigPath)
	if err != nil {
		fmt.Printf("Failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	util.SetLogLevel(cfg)

	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		fmt.Printf("Failed to resolve auth directory: %v\n", err)
		os.Exit(1)
	}
	if err = logging.ConfigureLogOutput(cfg, filepath.Join(authDir, "logs")); err != nil {
		log.Warnf("failed to configure log output: %v", err)
	}

	switch {
	case login:
		cmd.DoLogin(cfg, &cmd.LoginOptions{
			NoBrowser:    noBrowser,
			CallbackPort: oauthCallbackPort,
		})
	case logout:
		cmd.DoLogout(cfg)
	case whoami:
		cmd.DoWhoami(cfg)
	case status:
		cmd.DoStatus(cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
