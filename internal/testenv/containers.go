// containers.go
//
// Hierarchical settings service for jam-build applications
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of settingsdb.
// settingsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// settingsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with settingsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package testenv starts the MariaDB and Redis backends of settingsdb in
// containers, for integration tests and the standalone testcontainers command.
package testenv

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
	"github.com/localnerve/settingsdb/internal/config"
	"github.com/localnerve/settingsdb/internal/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dbAlias    = "mariadb"
	redisAlias = "redis"
	dbPort     = "3306"
	redisPort  = "6379"
)

// Options describes the containers to start. OptionsFromEnv fills it from
// the environment, with defaults for everything but the service image.
type Options struct {
	DBImage      string
	RedisImage   string
	RootPassword string
	Database     string
	AppUser      string
	AppPassword  string

	// ServiceImage, when set and present locally, is started against the backends.
	ServiceImage string
	ServicePort  string
	AuthzURL     string
	AuthzClient  string
	// Debug exposes a delve port on the service container.
	Debug bool
}

// OptionsFromEnv reads Options from the environment.
func OptionsFromEnv() Options {
	return Options{
		DBImage:      getenv("DB_IMAGE", "mariadb:11"),
		RedisImage:   getenv("REDIS_IMAGE", "redis:7-alpine"),
		RootPassword: getenv("DB_ROOT_PASSWORD", "root-secret"),
		Database:     getenv("DB_DATABASE", "settings"),
		AppUser:      getenv("DB_APP_USER", "settings_app"),
		AppPassword:  getenv("DB_APP_PASSWORD", "app-secret"),
		ServiceImage: os.Getenv("SERVICE_IMAGE"),
		ServicePort:  getenv("PORT", "3000"),
		AuthzURL:     os.Getenv("AUTHZ_URL"),
		AuthzClient:  os.Getenv("AUTHZ_CLIENT_ID"),
		Debug:        os.Getenv("DEBUG_CONTAINER") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Environment is a started set of containers.
type Environment struct {
	Network *testcontainers.DockerNetwork
	DB      testcontainers.Container
	Redis   testcontainers.Container
	Service testcontainers.Container

	// Config reaches the backends from the host as the application user.
	Config *config.Config
	// ServiceURL is the host address of the service container, if started.
	ServiceURL string
}

// Start creates the network and containers, initializes the database and
// returns the environment. On error, everything already started is terminated.
func Start(ctx context.Context, opts Options, log *zap.Logger) (*Environment, error) {
	env := &Environment{}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	env.Network = nw

	tcpDBPort, err := nat.NewPort("tcp", dbPort)
	if err != nil {
		return env.abort(ctx, err)
	}
	tcpRedisPort, err := nat.NewPort("tcp", redisPort)
	if err != nil {
		return env.abort(ctx, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := testcontainers.GenericContainer(gctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        opts.DBImage,
				ExposedPorts: []string{string(tcpDBPort)},
				Env: map[string]string{
					"MARIADB_ROOT_PASSWORD": opts.RootPassword,
					"MARIADB_DATABASE":      opts.Database,
				},
				WaitingFor:     wait.ForListeningPort(tcpDBPort).WithStartupTimeout(60 * time.Second),
				Networks:       []string{nw.Name},
				NetworkAliases: map[string][]string{nw.Name: {dbAlias}},
			},
			Started: true,
		})
		env.DB = c
		if err != nil {
			return fmt.Errorf("failed to start MariaDB: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		c, err := testcontainers.GenericContainer(gctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:          opts.RedisImage,
				ExposedPorts:   []string{string(tcpRedisPort)},
				WaitingFor:     wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
				Networks:       []string{nw.Name},
				NetworkAliases: map[string][]string{nw.Name: {redisAlias}},
			},
			Started: true,
		})
		env.Redis = c
		if err != nil {
			return fmt.Errorf("failed to start Redis: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return env.abort(ctx, err)
	}

	dbHost, err := env.DB.Host(ctx)
	if err != nil {
		return env.abort(ctx, err)
	}
	mappedDB, err := env.DB.MappedPort(ctx, tcpDBPort)
	if err != nil {
		return env.abort(ctx, err)
	}
	redisHost, err := env.Redis.Host(ctx)
	if err != nil {
		return env.abort(ctx, err)
	}
	mappedRedis, err := env.Redis.MappedPort(ctx, tcpRedisPort)
	if err != nil {
		return env.abort(ctx, err)
	}

	if err := initDatabase(ctx, opts, dbHost, mappedDB.Port(), log); err != nil {
		return env.abort(ctx, err)
	}
	log.Info("database initialized", zap.String("host", dbHost), zap.String("port", mappedDB.Port()))

	env.Config = &config.Config{
		Port:                 opts.ServicePort,
		LogLevel:             "debug",
		DBType:               "mariadb",
		DBHost:               dbHost,
		DBPort:               mappedDB.Port(),
		DBDatabase:           opts.Database,
		DBAppUser:            opts.AppUser,
		DBAppPassword:        opts.AppPassword,
		DBAppConnectionLimit: 5,
		DBMigrate:            "sql",
		CacheType:            "redis",
		RedisAddr:            fmt.Sprintf("%s:%s", redisHost, mappedRedis.Port()),
		AuthzURL:             opts.AuthzURL,
		AuthzClientID:        opts.AuthzClient,
	}

	if opts.ServiceImage != "" {
		if err := env.startService(ctx, opts, log); err != nil {
			return env.abort(ctx, err)
		}
	}
	return env, nil
}

// initDatabase creates the application user as root, applies the table DDL
// and grants the application user its privileges.
func initDatabase(ctx context.Context, opts Options, host, port string, log *zap.Logger) error {
	dsn := mysql.Config{
		User:                 "root",
		Passwd:               opts.RootPassword,
		Net:                  "tcp",
		Addr:                 host + ":" + port,
		AllowNativePasswords: true,
	}
	root, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to MariaDB for setup: %w", err)
	}
	defer root.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		if err = root.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return fmt.Errorf("MariaDB not ready after 30 seconds: %w", err)
	}

	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", opts.Database),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", opts.AppUser, opts.AppPassword),
	}
	for _, stmt := range stmts {
		if _, err := root.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	rootCfg := &config.Config{
		DBType:               "mariadb",
		DBHost:               host,
		DBPort:               port,
		DBDatabase:           opts.Database,
		DBAppUser:            "root",
		DBAppPassword:        opts.RootPassword,
		DBAppConnectionLimit: 1,
		DBMigrate:            "sql",
	}
	db, err := database.Connect(rootCfg, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db, rootCfg); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := database.GrantAppUser(db, opts.Database, opts.AppUser); err != nil {
		return fmt.Errorf("failed to grant privileges to %s: %w", opts.AppUser, err)
	}
	return nil
}

// startService runs the service image against the backends over the
// container network.
func (e *Environment) startService(ctx context.Context, opts Options, log *zap.Logger) error {
	exists, err := imageExists(ctx, opts.ServiceImage)
	if err != nil {
		return fmt.Errorf("failed to check if image exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("image %s not found, build it first", opts.ServiceImage)
	}

	tcpServicePort, err := nat.NewPort("tcp", opts.ServicePort)
	if err != nil {
		return err
	}
	exposed := []string{string(tcpServicePort)}
	if opts.Debug {
		exposed = append(exposed, "2345/tcp")
	}

	hostConfigModifier := func(hostConfig *container.HostConfig) {
		if opts.Debug {
			hostConfig.PortBindings = nat.PortMap{
				"2345/tcp": []nat.PortBinding{
					{HostIP: "127.0.0.1", HostPort: "2345"}, // Force local 2345
				},
			}
			hostConfig.CapAdd = []string{"SYS_PTRACE"}
			hostConfig.SecurityOpt = []string{"apparmor:unconfined"}
		}
	}

	var waitStrategy wait.Strategy = wait.ForHTTP("/metrics").WithPort(tcpServicePort).WithStartupTimeout(30 * time.Second)
	if opts.Debug {
		waitStrategy = wait.ForLog("API server listening at: [::]:2345").WithStartupTimeout(5 * time.Minute)
	}

	req := testcontainers.ContainerRequest{
		Image:        opts.ServiceImage,
		ExposedPorts: exposed,
		Env: map[string]string{
			"PORT":            opts.ServicePort,
			"DB_TYPE":         "mariadb",
			"DB_HOST":         dbAlias,
			"DB_PORT":         dbPort,
			"DB_DATABASE":     opts.Database,
			"DB_APP_USER":     opts.AppUser,
			"DB_APP_PASSWORD": opts.AppPassword,
			"DB_MIGRATE":      "sql",
			"CACHE_TYPE":      "redis",
			"REDIS_ADDR":      redisAlias + ":" + redisPort,
			"AUTHZ_URL":       opts.AuthzURL,
			"AUTHZ_CLIENT_ID": opts.AuthzClient,
		},
		HostConfigModifier: hostConfigModifier,
		WaitingFor:         waitStrategy,
		Networks:           []string{e.Network.Name},
	}
	if opts.Debug {
		req.Entrypoint = []string{
			"/usr/local/bin/dlv",
			"--listen=:2345",
			"--headless=true",
			"--api-version=2",
			"--accept-multiclient",
			"exec",
			"./settingsdb",
		}
	}

	svc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	e.Service = svc
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", opts.ServiceImage, err)
	}

	host, err := svc.Host(ctx)
	if err != nil {
		return err
	}
	port, err := svc.MappedPort(ctx, tcpServicePort)
	if err != nil {
		return err
	}
	e.ServiceURL = fmt.Sprintf("http://%s:%s", host, port.Port())
	log.Info("service container started", zap.String("url", e.ServiceURL))
	return nil
}

func (e *Environment) abort(ctx context.Context, err error) (*Environment, error) {
	if terr := e.Terminate(ctx); terr != nil {
		err = multierror.Append(err, terr)
	}
	return nil, err
}

// Terminate stops every started container and removes the network.
func (e *Environment) Terminate(ctx context.Context) error {
	var result *multierror.Error
	for _, c := range []testcontainers.Container{e.Service, e.Redis, e.DB} {
		if err := testcontainers.TerminateContainer(c, testcontainers.StopContext(ctx)); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if e.Network != nil {
		if err := e.Network.Remove(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to remove network: %w", err))
		}
	}
	return result.ErrorOrNil()
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}
	return false, nil
}
