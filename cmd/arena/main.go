// Command arena is an interactive terminal client for comparing models and
// running debates without the HTTP server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"llmarena/internal/capabilities"
	"llmarena/internal/config"
	llmModels "llmarena/internal/domain/models/llm"
	llmSvc "llmarena/internal/domain/services/llm"
	"llmarena/internal/repository/memory"
	serviceLLM "llmarena/internal/service/llm"
	"llmarena/internal/service/llm/debate"
	"llmarena/internal/service/llm/streaming"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

type CLI struct {
	ctx       context.Context
	registry  *serviceLLM.ProviderRegistry
	debate    *debate.Engine
	streaming *streaming.Service
	scanner   *bufio.Scanner
	maxTurns  int
	logger    *slog.Logger
}

func main() {
	_ = godotenv.Load()

	logger, logFile, err := setupLogger()
	if err != nil {
		fmt.Printf("Failed to setup logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("session started", "log_file", logFile)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	catalog, err := capabilities.NewRegistry()
	if err != nil {
		fmt.Printf("%s❌ Failed to load model catalog: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	registry, err := serviceLLM.SetupProviders(cfg, catalog, nil, logger)
	if err != nil {
		fmt.Printf("%s❌ Failed to setup providers: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}

	engine := debate.NewEngine(memory.NewDebateRepository(), registry, cfg.DebateMaxTurns, logger)
	claims, err := streaming.NewClaimStore(cfg.StreamSessionTTL, logger)
	if err != nil {
		fmt.Printf("%s❌ Failed to open stream store: %v%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	defer claims.Close()

	cli := &CLI{
		ctx:       context.Background(),
		registry:  registry,
		debate:    engine,
		streaming: streaming.NewService(claims, registry, engine, cfg.DebateMaxTurns, nil, logger),
		scanner:   bufio.NewScanner(os.Stdin),
		maxTurns:  cfg.DebateMaxTurns,
		logger:    logger,
	}
	cli.run()
}

// setupLogger writes INFO to stderr and DEBUG to a timestamped file under logs/
func setupLogger() (*slog.Logger, string, error) {
	logsDir := "logs"
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	logFilename := filepath.Join(logsDir, fmt.Sprintf("arena_%s.log", time.Now().Format("2006-01-02_15-04-05")))
	logFile, err := os.Create(logFilename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create log file: %w", err)
	}

	consoleHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	fileHandler := slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return a
		},
	})

	return slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}), logFilename, nil
}

func (cli *CLI) run() {
	fmt.Printf("\n%s╔══════════════════════════════════════╗%s\n", colorCyan, colorReset)
	fmt.Printf("%s║          LLM Arena CLI               ║%s\n", colorCyan, colorReset)
	fmt.Printf("%s╚══════════════════════════════════════╝%s\n", colorCyan, colorReset)
	fmt.Printf("%sProviders: %s%s\n", colorBlue, strings.Join(cli.registry.Providers(), ", "), colorReset)

	for {
		fmt.Println("\n" + strings.Repeat("─", 40))
		fmt.Println("Main Menu:")
		fmt.Println("1. List models")
		fmt.Println("2. Compare models on a prompt")
		fmt.Println("3. Run a debate")
		fmt.Println("4. Provider status")
		fmt.Println("5. Exit")
		fmt.Print("\nSelect option (1-5): ")

		choice := cli.readLine()
		fmt.Println()

		switch choice {
		case "1":
			cli.listModels()
		case "2":
			cli.compareFlow()
		case "3":
			cli.debateFlow()
		case "4":
			cli.providerStatus()
		case "5", "q":
			fmt.Printf("%s✓ Goodbye!%s\n", colorGreen, colorReset)
			return
		default:
			fmt.Printf("%s⚠ Invalid choice. Please enter 1-5.%s\n", colorYellow, colorReset)
		}
	}
}

func (cli *CLI) listModels() {
	for _, m := range cli.registry.GetAllModels() {
		fmt.Printf("  %s%-40s%s %-12s in $%.2f/M  out $%.2f/M\n",
			colorCyan, m.ID, colorReset, m.Provider, m.Pricing.InputPerMillion, m.Pricing.OutputPerMillion)
	}
}

func (cli *CLI) providerStatus() {
	for _, s := range cli.registry.BreakerStatuses() {
		color := colorGreen
		if s.State != "CLOSED" {
			color = colorRed
		}
		fmt.Printf("  %-12s %s%-10s%s failures=%d\n", s.Provider, color, s.State, colorReset, s.FailureCount)
	}
}

func (cli *CLI) compareFlow() {
	fmt.Print("Prompt: ")
	prompt := cli.readLine()
	if prompt == "" {
		fmt.Printf("%s⚠ Prompt cannot be empty%s\n", colorYellow, colorReset)
		return
	}
	fmt.Print("Model ids (comma separated): ")
	var ids []string
	for _, id := range strings.Split(cli.readLine(), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		fmt.Printf("%s⚠ At least one model is required%s\n", colorYellow, colorReset)
		return
	}

	type result struct {
		id   string
		resp *llmModels.ModelResponse
		err  error
	}
	results := make(chan result, len(ids))
	messages := []llmModels.ModelMessage{{Role: llmModels.RoleUser, Content: prompt}}
	for _, id := range ids {
		go func() {
			resp, err := cli.registry.CallModel(cli.ctx, id, messages, nil)
			results <- result{id: id, resp: resp, err: err}
		}()
	}

	fmt.Printf("%s⏳ Waiting for %d models...%s\n", colorBlue, len(ids), colorReset)
	for range ids {
		r := <-results
		fmt.Printf("\n%s=== %s ===%s\n", colorCyan, r.id, colorReset)
		if r.err != nil {
			fmt.Printf("%s❌ %v%s\n", colorRed, r.err, colorReset)
			continue
		}
		fmt.Println(r.resp.Content)
		printUsage(r.resp.ResponseTime, r.resp.TokenUsage, r.resp.Cost)
	}
}

func (cli *CLI) debateFlow() {
	fmt.Print("Topic: ")
	topic := cli.readLine()
	fmt.Print("Affirmative model id: ")
	model1 := cli.readLine()
	fmt.Print("Negative model id: ")
	model2 := cli.readLine()
	fmt.Printf("Adversarial level (1-%d) [2]: ", llmModels.MaxAdversarialLevel)
	level := cli.readInt(2)
	fmt.Printf("Turns (1-%d) [4]: ", cli.maxTurns)
	turns := cli.readInt(4)
	if turns < 1 || turns > cli.maxTurns {
		turns = 4
	}

	session, err := cli.debate.CreateSession(cli.ctx, &llmSvc.CreateDebateRequest{
		Topic:            topic,
		Model1ID:         model1,
		Model2ID:         model2,
		AdversarialLevel: level,
	})
	if err != nil {
		fmt.Printf("%s❌ %v%s\n", colorRed, err, colorReset)
		return
	}
	cli.logger.Info("debate created", "session_id", session.ID)

	for turn := 1; turn <= turns; turn++ {
		speaker, _ := session.SpeakerFor(turn)
		keys, err := cli.streaming.Init(cli.ctx, &llmSvc.StreamInitRequest{
			SessionID:  session.ID,
			ModelID:    speaker,
			TurnNumber: turn,
		})
		if err != nil {
			fmt.Printf("%s❌ turn %d: %v%s\n", colorRed, turn, err, colorReset)
			return
		}
		params, err := cli.streaming.Claim(cli.ctx, keys.TaskID, keys.ModelKey, keys.SessionID)
		if err != nil {
			fmt.Printf("%s❌ turn %d: %v%s\n", colorRed, turn, err, colorReset)
			return
		}

		out := &terminalEmitter{}
		cli.streaming.Run(cli.ctx, params, out)
		if out.failed {
			return
		}
	}

	fmt.Printf("\n%s✓ Debate %s finished%s\n", colorGreen, session.ID, colorReset)
}

// terminalEmitter prints stream events as they arrive
type terminalEmitter struct {
	inReasoning bool
	failed      bool
}

func (t *terminalEmitter) Init(e llmModels.StreamInitEvent) {
	fmt.Printf("\n%s── Turn %d · %s · %s ──%s\n", colorCyan, e.TurnNumber, e.Role, e.ModelID, colorReset)
}

func (t *terminalEmitter) Status(e llmModels.StreamStatusEvent) {
	fmt.Printf("%s[%s] %s%s\n", colorDim, e.Phase, e.Message, colorReset)
}

func (t *terminalEmitter) Chunk(e llmModels.StreamChunkEvent) {
	switch e.Type {
	case llmModels.ChunkReasoning:
		if !t.inReasoning {
			fmt.Print(colorDim)
			t.inReasoning = true
		}
	default:
		if t.inReasoning {
			fmt.Print(colorReset + "\n")
			t.inReasoning = false
		}
	}
	fmt.Print(e.Delta)
}

func (t *terminalEmitter) Error(e llmModels.StreamErrorEvent) {
	t.failed = true
	fmt.Printf("%s\n%s❌ %s: %s%s\n", colorReset, colorRed, e.Code, e.Message, colorReset)
}

func (t *terminalEmitter) Complete(e llmModels.StreamCompleteEvent) {
	fmt.Print(colorReset + "\n")
	printUsage(e.ResponseTime, e.TokenUsage, e.Cost)
}

func printUsage(ms int64, usage *llmModels.TokenUsage, cost *llmModels.Cost) {
	line := fmt.Sprintf("%dms", ms)
	if usage != nil {
		line += fmt.Sprintf(" · %d in / %d out", usage.Input, usage.Output)
	}
	if cost != nil {
		line += fmt.Sprintf(" · $%.5f", cost.Total)
	}
	fmt.Printf("%s%s%s\n", colorDim, line, colorReset)
}

func (cli *CLI) readLine() string {
	if !cli.scanner.Scan() {
		return "q"
	}
	return strings.TrimSpace(cli.scanner.Text())
}

func (cli *CLI) readInt(defaultValue int) int {
	n, err := strconv.Atoi(cli.readLine())
	if err != nil {
		return defaultValue
	}
	return n
}

// multiHandler writes to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
