// Command hourlysignal runs the scheduled news-to-social pipeline: fetch
// headlines from keyed news APIs, summarize and quality-check them through
// failover LLM providers, and post the digest on a dynamic schedule.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/imhkr/hourlysignal/internal/ai"
	"github.com/imhkr/hourlysignal/internal/config"
	"github.com/imhkr/hourlysignal/internal/image"
	"github.com/imhkr/hourlysignal/internal/memory"
	"github.com/imhkr/hourlysignal/internal/news"
	"github.com/imhkr/hourlysignal/internal/pipeline"
	"github.com/imhkr/hourlysignal/internal/quality"
	"github.com/imhkr/hourlysignal/internal/rotate"
	"github.com/imhkr/hourlysignal/internal/schedule"
	"github.com/imhkr/hourlysignal/internal/social"
	"github.com/imhkr/hourlysignal/internal/stats"
)

// app bundles the wired components behind the CLI actions.
type app struct {
	poster    *social.Client
	scheduler *schedule.Scheduler
	live      *pipeline.Orchestrator
	dry       *pipeline.Orchestrator
}

func main() {
	once := flag.Bool("once", false, "run a single pipeline cycle and exit")
	dryRun := flag.Bool("dry-run", false, "compose posts but do not publish them")
	verify := flag.Bool("verify", false, "verify social credentials and exit")
	noImages := flag.Bool("no-images", false, "disable image generation")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmsgprefix)

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := buildApp(cfg, *noImages, *dryRun)

	switch {
	case *verify:
		if err := a.verifyCredentials(ctx); err != nil {
			log.Fatalf("[main] credential check failed: %v", err)
		}
	case *once:
		if err := a.runOnce(ctx, *dryRun); err != nil {
			log.Fatalf("[main] cycle failed: %v", err)
		}
	case flag.NFlag() == 0 && stdinIsTerminal():
		a.menu(ctx)
	default:
		a.runScheduler(ctx)
	}
}

func buildApp(cfg config.Config, noImages, dryRun bool) *app {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	statsStore := stats.Open(filepath.Join(cfg.StateDir, "stats.json"))
	memLog := memory.OpenLog(filepath.Join(cfg.StateDir, "memory.json"))

	poster := social.NewClient(social.Credentials{
		APIKey:       cfg.TwitterAPIKey,
		APISecret:    cfg.TwitterAPISecret,
		AccessToken:  cfg.TwitterAccessToken,
		AccessSecret: cfg.TwitterAccessSecret,
	}, httpClient, statsStore)

	primary := ai.NewOpenAIProvider(ai.ProviderConfig{
		Name:        "primary",
		BaseURL:     cfg.PrimaryAIBaseURL,
		APIKey:      cfg.PrimaryAIKey,
		Model:       cfg.PrimaryAIModel,
		MinInterval: config.DefaultPrimaryMinInterval,
	}, nil)
	var secondary ai.Provider
	if cfg.SecondaryAIKey != "" {
		secondary = ai.NewOpenAIProvider(ai.ProviderConfig{
			Name:        "secondary",
			BaseURL:     cfg.SecondaryAIBaseURL,
			APIKey:      cfg.SecondaryAIKey,
			Model:       cfg.SecondaryAIModel,
			MinInterval: config.DefaultSecondaryMinInterval,
		}, nil)
	}
	gateway := ai.NewGateway(primary, secondary)

	var providers []news.Provider
	var resets []schedule.CycleResetter
	if len(cfg.NewsAPIKeys) > 0 {
		pool := rotate.NewPool(cfg.NewsAPIKeys)
		providers = append(providers, news.NewNewsAPIClient(pool, httpClient))
		resets = append(resets, pool)
	}
	if len(cfg.GNewsKeys) > 0 {
		pool := rotate.NewPool(cfg.GNewsKeys)
		providers = append(providers, news.NewGNewsClient(pool, httpClient))
		resets = append(resets, pool)
	}
	aggregator := news.NewAggregator(providers, gateway)

	content := quality.NewEngine(gateway, memLog, quality.DefaultConfig())

	remote := config.NewRemoteFetcher(cfg.RemoteConfigURL, httpClient)
	deps := pipeline.Deps{
		Config:  remote,
		News:    aggregator,
		Content: content,
		AI:      gateway,
		Poster:  poster,
		Counter: statsStore,
	}
	if !noImages && cfg.ImageAIKey != "" {
		deps.Images = image.NewGenerator(image.Config{
			BaseURL: cfg.ImageAIBaseURL,
			APIKey:  cfg.ImageAIKey,
			Model:   cfg.ImageAIModel,
			OutDir:  filepath.Join(cfg.StateDir, "images"),
		}, nil)
	}

	live := pipeline.NewOrchestrator(deps, dryRun)
	return &app{
		poster: poster,
		live:   live,
		dry:    pipeline.NewOrchestrator(deps, true),
		scheduler: schedule.New(
			remote,
			live,
			statsStore,
			news.NewHeadlineSampler(httpClient),
			gateway,
			resets,
		),
	}
}

func (a *app) verifyCredentials(ctx context.Context) error {
	username, err := a.poster.VerifyCredentials(ctx)
	if err != nil {
		return err
	}
	log.Printf("[main] authenticated as @%s", username)
	return nil
}

func (a *app) runOnce(ctx context.Context, dryRun bool) error {
	o := a.live
	if dryRun {
		o = a.dry
	}
	report, err := o.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("[main] cycle done: success=%v ids=%v", report.Success, report.TweetIDs)
	return nil
}

func (a *app) runScheduler(ctx context.Context) {
	if err := a.scheduler.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("[main] scheduler stopped: %v", err)
	}
	log.Printf("[main] shut down")
}

// menu is the interactive entrypoint when the binary is started from a
// terminal with no flags.
func (a *app) menu(ctx context.Context) {
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println()
		fmt.Println("hourlysignal")
		fmt.Println("  1) start recurring scheduler")
		fmt.Println("  2) run one cycle now")
		fmt.Println("  3) dry-run one cycle (compose only)")
		fmt.Println("  4) verify posting credentials")
		fmt.Println("  5) quit")
		fmt.Print("> ")

		if !in.Scan() {
			return
		}
		switch strings.TrimSpace(in.Text()) {
		case "1":
			a.runScheduler(ctx)
			return
		case "2":
			if err := a.runOnce(ctx, false); err != nil {
				log.Printf("[main] cycle failed: %v", err)
			}
		case "3":
			if err := a.runOnce(ctx, true); err != nil {
				log.Printf("[main] cycle failed: %v", err)
			}
		case "4":
			if err := a.verifyCredentials(ctx); err != nil {
				log.Printf("[main] credential check failed: %v", err)
			}
		case "5", "q", "quit", "exit":
			return
		default:
			fmt.Println("unrecognized choice")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
