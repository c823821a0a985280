// Package cmd implements the CLI subcommand actions: login, logout, whoami
// and status. Each action builds the credential vault, dispatches through the
// shared auth manager, and renders the outcome for the terminal.
package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vitalog-app/vitalog-cli/internal/config"
	"github.com/vitalog-app/vitalog-cli/internal/store"
	"github.com/vitalog-app/vitalog-cli/internal/util"
	sdkAuth "github.com/vitalog-app/vitalog-cli/sdk/auth"
)

// lookupEnv returns the first set environment variable among the given names.
func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

// buildVault assembles the ranked credential vault: secure per-key files
// first, the plain JSON document second, memory last. Roaming backends
// (PostgreSQL, S3-compatible object storage) are appended when configured
// via environment variables. The returned cleanup releases backend handles.
func buildVault(ctx context.Context, cfg *config.Config) (*store.Vault, func(), error) {
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return nil, nil, err
	}

	backends := []store.Backend{
		store.NewSecureFileBackend(filepath.Join(authDir, "credentials")),
		store.NewDocumentBackend(filepath.Join(authDir, "auth_state.json")),
		store.NewMemoryBackend(),
	}
	var closers []func()

	if dsn, ok := lookupEnv("PGSTORE_DSN", "pgstore_dsn"); ok {
		pgCfg := store.PostgresConfig{DSN: dsn}
		if schema, okSchema := lookupEnv("PGSTORE_SCHEMA", "pgstore_schema"); okSchema {
			pgCfg.Schema = schema
		}
		pg, errPg := store.NewPostgresBackend(ctx, pgCfg)
		if errPg != nil {
			log.Warnf("postgres credential backend unavailable: %v", errPg)
		} else {
			backends = append(backends, pg)
			closers = append(closers, func() {
				if errClose := pg.Close(); errClose != nil {
					log.Warnf("failed to close postgres backend: %v", errClose)
				}
			})
		}
	}

	if endpoint, ok := lookupEnv("OBJECTSTORE_ENDPOINT", "objectstore_endpoint"); ok {
		objCfg := store.ObjectConfig{Endpoint: endpoint, UseSSL: true}
		if v, okv := lookupEnv("OBJECTSTORE_ACCESS_KEY", "objectstore_access_key"); okv {
			objCfg.AccessKey = v
		}
		if v, okv := lookupEnv("OBJECTSTORE_SECRET_KEY", "objectstore_secret_key"); okv {
			objCfg.SecretKey = v
		}
		if v, okv := lookupEnv("OBJECTSTORE_BUCKET", "objectstore_bucket"); okv {
			objCfg.Bucket = v
		}
		if v, okv := lookupEnv("OBJECTSTORE_REGION", "objectstore_region"); okv {
			objCfg.Region = v
		}
		if v, okv := lookupEnv("OBJECTSTORE_PREFIX", "objectstore_prefix"); okv {
			objCfg.Prefix = v
		}
		if v, okv := lookupEnv("OBJECTSTORE_INSECURE", "objectstore_insecure"); okv && (v == "1" || strings.EqualFold(v, "true")) {
			objCfg.UseSSL = false
		}
		if v, okv := lookupEnv("OBJECTSTORE_PATH_STYLE", "objectstore_path_style"); okv && (v == "1" || strings.EqualFold(v, "true")) {
			objCfg.PathStyle = true
		}
		obj, errObj := store.NewObjectBackend(ctx, objCfg)
		if errObj != nil {
			log.Warnf("object storage credential backend unavailable: %v", errObj)
		} else {
			backends = append(backends, obj)
		}
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return store.NewVault(backends...), cleanup, nil
}

// newAuthManager builds the shared auth manager over the given vault.
func newAuthManager(vault *store.Vault) *sdkAuth.Manager {
	return sdkAuth.NewManager(sdkAuth.NewAuth0Authenticator(vault))
}
