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

	"jastip-settlement-go/internal/common"
	"jastip-settlement-go/internal/config"
	"jastip-settlement-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type saldoStats struct {
	totalUsers     int
	usersWithSaldo int
	totalSaldo     decimal.Decimal
}

func printUser(user common.UserInfo, isLast bool) {
	color := common.ColorGray
	if user.Saldo.IsPositive() {
		color = common.ColorGreen
	}
	fmt.Printf("%s %-36s %-24s %s%20s%s\n",
		common.BoxPrefix(isLast),
		user.Id,
		user.Email,
		color, common.FormatRupiah(user.Saldo), common.ColorReset)
}

func printJobErrors(jobErrors []models.JobError) {
	common.PrintHeader("RECENT JOB ERRORS", common.DefaultWidth)
	if len(jobErrors) == 0 {
		fmt.Println("none")
		return
	}
	for i, e := range jobErrors {
		fmt.Printf("%s %s%s%s request=%s tx=%s retryable=%t\n",
			common.BoxPrefix(i == len(jobErrors)-1),
			common.ColorGray, e.Timestamp.Format("2006-01-02 15:04:05"), common.ColorReset,
			e.RequestId, e.TransactionId, e.Retryable)
		fmt.Printf("   %s%s%s\n", common.ColorRed, e.Error, common.ColorReset)
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	idFlag := flag.String("id", "", "Filter by specific user id (optional)")
	errorsFlag := flag.Int("errors", 0, "Also print the N most recent return timeout job errors")
	flag.Parse()

	logger.Info("Starting saldo query")

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

	users, err := common.LookupUsers(ctx, dbService, common.UserFilter{Id: *idFlag, Email: *emailFlag})
	if err != nil {
		logger.Fatal("Failed to look up users", zap.Error(err))
	}

	common.PrintHeader("USER SALDO REPORT", common.DefaultWidth)

	stats := saldoStats{totalSaldo: decimal.Zero}
	for i, user := range users {
		stats.totalUsers++
		if user.Saldo.IsPositive() {
			stats.usersWithSaldo++
			stats.totalSaldo = stats.totalSaldo.Add(user.Saldo)
		}
		printUser(user, i == len(users)-1)
	}

	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Printf("SUMMARY: %d of %d users hold saldo, total %s\n",
		stats.usersWithSaldo, stats.totalUsers, common.FormatRupiah(stats.totalSaldo))

	if *errorsFlag > 0 {
		jobErrors, err := dbService.ListJobErrors(ctx, *errorsFlag)
		if err != nil {
			logger.Fatal("Failed to list job errors", zap.Error(err))
		}
		printJobErrors(jobErrors)
	}

	logger.Info("Saldo query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_saldo", stats.usersWithSaldo))
}
