package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"jastip-settlement-go/internal/common"
	"jastip-settlement-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	jobFlag := flag.String("job", "", "Job to run (default: all registered jobs)")
	listFlag := flag.Bool("list", false, "List registered jobs and exit")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	names := services.Scheduler.Jobs()
	if *listFlag {
		fmt.Println(strings.Join(names, "\n"))
		return 0
	}
	if *jobFlag != "" {
		names = []string{*jobFlag}
	}

	common.PrintHeader("RECONCILIATION RUN", common.DefaultWidth)

	failed := 0
	for _, name := range names {
		summary, err := services.Scheduler.Trigger(ctx, name)
		if err != nil {
			failed++
			fmt.Printf("%s%-28s%s %s\n", common.ColorRed, name, common.ColorReset, err)
			zap.L().Error("Job run failed", zap.String("job", name), zap.Error(err))
			continue
		}
		fmt.Println(common.FormatJobSummary(summary))
	}

	common.PrintSeparator("=", common.DefaultWidth)
	if failed > 0 {
		return 1
	}
	return 0
}
