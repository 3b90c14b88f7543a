/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"jastip-settlement-go/internal/common"
	"jastip-settlement-go/internal/config"
	"jastip-settlement-go/internal/database"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	outFlag := flag.String("out", "exports", "Directory to write <table>.json files into")
	tablesFlag := flag.String("tables", "", "Comma-separated tables to export (default: all)")
	flag.Parse()

	tables := database.ExportTables
	if *tablesFlag != "" {
		tables = nil
		for _, t := range strings.Split(*tablesFlag, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tables = append(tables, t)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	summary, err := common.ExportToDir(ctx, dbService, *outFlag, tables, time.Now())
	if err != nil {
		logger.Error("Export failed", zap.Error(err))
		return 1
	}

	common.PrintHeader("LEDGER EXPORT", common.DefaultWidth)
	for i, d := range summary.Details {
		if d.Error != "" {
			fmt.Printf("%s %-20s %s%s%s\n", common.BoxPrefix(i == len(summary.Details)-1), d.Table, common.ColorRed, d.Error, common.ColorReset)
			continue
		}
		fmt.Printf("%s %-20s %s%6d rows%s  %s\n", common.BoxPrefix(i == len(summary.Details)-1), d.Table, common.ColorGreen, d.Count, common.ColorReset, d.File)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Printf("SUMMARY: %d of %d tables exported to %s\n", summary.SuccessfulExports, summary.TotalTables, *outFlag)

	if summary.FailedExports > 0 {
		return 1
	}
	return 0
}
