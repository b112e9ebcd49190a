package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"paperbroker/internal/broker"
	"paperbroker/internal/config"
	"paperbroker/internal/logger"
	"paperbroker/internal/replay"
	"paperbroker/internal/report"
	"paperbroker/internal/storage"
)

func main() {
	configPath := flag.String("config", "broker.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	appLog, err := logger.New(logger.Options{
		Level:    logger.ParseLevel(cfg.LogLevel),
		FilePath: cfg.LogFile,
		Console:  cfg.LogConsole,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer appLog.Close()

	var store storage.Store
	if cfg.StoragePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
			return fmt.Errorf("ensure storage dir: %w", err)
		}
		boltStore, err := storage.NewBoltStore(cfg.StoragePath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer boltStore.Close()
		store = boltStore
	}

	bars, err := replay.LoadBars(cfg.PricesFile)
	if err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	script, err := replay.LoadScript(cfg.OrdersFile)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	appLog.Info("loaded %d bars and %d script rows", len(bars), len(script))

	account := broker.NewAccount(broker.Config{
		InitialCash:    cfg.InitialCash,
		CommissionRate: cfg.CommissionRate,
		TaxRate:        cfg.TaxRate,
		SettleLagDays:  cfg.SettleLagDays,
	})

	runner := replay.NewRunner(account, appLog, store)
	res, err := runner.Run(context.Background(), bars, script)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	appLog.Info("replay done: %d orders, %d fills, %d cancels, %d rejected",
		res.Orders, res.Fills, res.Cancels, res.Rejected)

	summary := report.Summarize(res.Settlements)
	appLog.WithFields(logger.Fields{
		"days":         summary.Days,
		"final_equity": summary.FinalEquity,
		"total_return": summary.TotalReturn,
		"max_drawdown": summary.MaxDrawdown,
	}).Info("run summary")

	workbook := filepath.Join(cfg.ReportDir, "backtest.xlsx")
	if err := report.ExportExcel(workbook, res.Settlements, account.TransactionHistory()); err != nil {
		return fmt.Errorf("export workbook: %w", err)
	}
	equityCSV := filepath.Join(cfg.ReportDir, "equity.csv")
	if err := report.WriteEquityCSV(equityCSV, res.Settlements); err != nil {
		return fmt.Errorf("write equity csv: %w", err)
	}
	appLog.Info("reports written to %s", cfg.ReportDir)
	return nil
}
