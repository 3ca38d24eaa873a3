// main.go
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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/settingsdb/internal/testenv"
	"github.com/localnerve/settingsdb/internal/utils"
	"go.uber.org/zap"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	usage := `
Run the settingsdb testcontainers with the environment variables from the .env file.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	zlog, err := utils.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	env, err := testenv.Start(ctx, testenv.OptionsFromEnv(), zlog)
	if err != nil {
		zlog.Fatal("failed to create test containers", zap.Error(err))
	}

	// Print the host addresses for test processes
	fmt.Printf("DB_HOST=%s\nDB_PORT=%s\nREDIS_ADDR=%s\n", env.Config.DBHost, env.Config.DBPort, env.Config.RedisAddr)
	if env.ServiceURL != "" {
		fmt.Printf("BASE_URL=%s\n", env.ServiceURL)
	}

	<-ctx.Done()
	zlog.Info("received signal, terminating test containers")
	if err := env.Terminate(context.Background()); err != nil {
		zlog.Error("failed to terminate test containers", zap.Error(err))
	}
}
