package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nemonet1337/zaiGoMRP/internal/config"
	"github.com/nemonet1337/zaiGoMRP/pkg/planning"
	"github.com/nemonet1337/zaiGoMRP/pkg/planning/storage"
)

// report is the JSON document printed after a run
type report struct {
	Summary   *planning.RunSummary     `json:"summary"`
	Shortages []planning.ShortageAlert `json:"shortages"`
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML設定ファイルのパス")
		days       = flag.Int("days", 0, "計画日数（0の場合は設定値）")
		lookahead  = flag.Int("lookahead", 0, "欠品アラートの参照日数（0の場合は設定値）")
		applyROP   = flag.Bool("apply-reorder-points", false, "推奨発注点を製品マスタに反映する")
	)
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	logger, err := cfg.Logging.BuildLogger()
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgreSQLStorage(cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer store.Close()

	engine := planning.NewEngine(store, logger, nil, cfg.Planning.EngineConfig())

	if err := run(ctx, engine, *days, *lookahead, *applyROP, os.Stdout); err != nil {
		logger.Error("バッチ実行に失敗しました", zap.Error(err))
		store.Close()
		os.Exit(1)
	}
}

// run executes one planning run and writes the summary and alerts as JSON
// MRP計算を1回実行し結果をJSONで出力
func run(ctx context.Context, planner planning.Planner, days, lookahead int, applyROP bool, out io.Writer) error {
	summary, err := planner.Calculate(ctx, days)
	if err != nil {
		return fmt.Errorf("MRP計算に失敗しました: %w", err)
	}

	alerts, err := planner.GetShortages(ctx, lookahead)
	if err != nil && !errors.Is(err, planning.ErrNoResults) {
		return fmt.Errorf("欠品アラート作成に失敗しました: %w", err)
	}
	if alerts == nil {
		alerts = []planning.ShortageAlert{}
	}

	if applyROP {
		if _, err := planner.ApplyDynamicReorderPoints(ctx); err != nil {
			return fmt.Errorf("発注点の反映に失敗しました: %w", err)
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report{Summary: summary, Shortages: alerts})
}
