package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lossreview/internal/config"
	"lossreview/internal/eval"
	"lossreview/internal/llm"
	"lossreview/internal/pipeline"
	"lossreview/internal/promptstore"
	"lossreview/internal/quiz"
	"lossreview/internal/review"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "review",
		Short:         "Run the trade loss-review pipeline from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd(), newQuizCmd(), newEvalCmd())
	return root
}

// buildRuntime shares the gateway/prompt wiring across subcommands.
func buildRuntime(ctx context.Context) (*pipeline.Runtime, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}

	var gw llm.Gateway
	if cfg.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, using the offline fake gateway")
		gw = llm.NewFakeGateway()
	} else {
		g, err := llm.NewGeminiGateway(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, nil, err
		}
		gw = g
	}
	gw = llm.Wrap(gw, llm.Retry(3, 500*time.Millisecond), llm.RateLimitFromEnv())

	var prompts promptstore.Store
	if cfg.PromptDir != "" {
		dir, err := promptstore.NewDir(cfg.PromptDir)
		if err != nil {
			return nil, nil, err
		}
		prompts = dir
	} else {
		prompts = promptstore.NewMemory()
	}
	return pipeline.NewRuntime(gw, prompts, log), cfg, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAnalyzeCmd() *cobra.Command {
	var (
		ticker        string
		buyDate       string
		sellDate      string
		decisionBasis string
		holding       bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full loss review for one trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, _, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Gateway.Close()

			in := review.TradeInput{
				Ticker:        ticker,
				BuyDate:       buyDate,
				SellDate:      sellDate,
				DecisionBasis: decisionBasis,
			}
			if holding {
				in.PositionStatus = "holding"
			}
			st := &pipeline.State{
				RequestID: uuid.NewString(),
				Input:     pipeline.PrepareInput(in, time.Now()),
			}
			if err := pipeline.MustAnalysisGraph().Run(ctx, rt, st); err != nil {
				return err
			}
			if st.InputError != nil {
				return fmt.Errorf("%s", st.InputError.Message)
			}
			return printJSON(st)
		},
	}
	cmd.Flags().StringVar(&ticker, "ticker", "", "stock ticker")
	cmd.Flags().StringVar(&buyDate, "buy-date", "", "buy date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&sellDate, "sell-date", "", "sell date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&decisionBasis, "decision-basis", "", "why the position was opened")
	cmd.Flags().BoolVar(&holding, "holding", false, "position is still held; review the paper loss as of today")
	return cmd
}

func newQuizCmd() *cobra.Command {
	var profilePath string
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate the learning-check quiz from a behavioral profile JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, _, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Gateway.Close()

			b, err := os.ReadFile(profilePath)
			if err != nil {
				return err
			}
			var profile review.BehavioralProfile
			if err := json.Unmarshal(b, &profile); err != nil {
				return fmt.Errorf("parse profile: %w", err)
			}
			gen := quiz.NewGenerator(rt.Gateway, rt.Prompts, rt.Log)
			return printJSON(gen.Generate(ctx, profile))
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "path to a behavior_profile JSON file")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func newEvalCmd() *cobra.Command {
	var (
		statePath  string
		configPath string
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Judge a saved run and apply the prompt optimizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, cfg, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Gateway.Close()

			evalCfg, err := config.LoadEvalConfig(configPath)
			if err != nil {
				return err
			}

			b, err := os.ReadFile(statePath)
			if err != nil {
				return err
			}
			var st pipeline.State
			if err := json.Unmarshal(b, &st); err != nil {
				return fmt.Errorf("parse state: %w", err)
			}

			judge := eval.NewJudge(rt.Gateway, rt.Log)
			opt := eval.NewOptimizer(rt.Prompts, eval.NewFileHistory(cfg.PromptHistoryPath), rt.Log)
			opt.TargetScore = evalCfg.TargetScore
			opt.RegressThreshold = evalCfg.RegressThreshold

			results := map[string]any{}
			for _, stage := range evalCfg.Stages {
				var report review.QualityReport
				switch stage {
				case "technical":
					if st.Technical == nil {
						continue
					}
					det := eval.ScoreTechnical(st.RequestID, *st.Technical)
					llmReport := judge.JudgeTechnical(ctx, st.RequestID, *st.Technical)
					report = mergeReports(det, llmReport)
				case "news":
					if st.News == nil {
						continue
					}
					report = judge.JudgeNews(ctx, st.RequestID, *st.News)
				default:
					continue
				}
				action, err := opt.Observe(stage, report)
				if err != nil {
					return err
				}
				results[stage] = map[string]any{"report": report, "action": action}
			}
			return printJSON(results)
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "path to a saved pipeline state JSON file")
	cmd.Flags().StringVar(&configPath, "config", "", "path to an eval config YAML file")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

// mergeReports combines a deterministic and a judged report over the same
// stage output into one metric list with a recomputed summary.
func mergeReports(a, b review.QualityReport) review.QualityReport {
	metrics := append(append([]review.Metric{}, a.Metrics...), b.Metrics...)
	var passed int
	var sum float64
	for _, m := range metrics {
		if m.Passed {
			passed++
		}
		sum += m.Score
	}
	score := 0.0
	if len(metrics) > 0 {
		score = float64(int(sum/float64(len(metrics))+0.5)) / 10
	}
	out := a
	out.Metrics = metrics
	out.Summary = review.QualitySummary{Passed: passed, Total: len(metrics), Score: score}
	if b.Notes != "" {
		out.Notes = b.Notes
	}
	return out
}
