package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"coursenerd/internal/bridge"
	"coursenerd/internal/config"
	"coursenerd/internal/forum"
	"coursenerd/internal/kb"
	"coursenerd/internal/logging"
	"coursenerd/internal/session"
	"coursenerd/internal/store"
	"coursenerd/internal/tools"
	"coursenerd/internal/tools/course"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Loaded at startup
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "coursenerd",
	Short: "courseNERD - course-support assistant CLI",
	Long: `courseNERD answers course questions from an indexed knowledge base,
drafts forum posts with proper source citations, and fills the Moodle
new-discussion form through a browser bridge. It never presses submit:
the student reviews and posts.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env values feed the config env overrides
		_ = godotenv.Load()

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}

		path := configPath
		if path == "" {
			path = config.DefaultPath(workspace)
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logging.Boot("coursenerd starting (kb=%s, config=%s)", cfg.KB.BaseURL, path)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// queryCmd asks the knowledge base a question.
var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Query the course knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var queryMode string

// ingestCmd inserts text into the knowledge base.
var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Insert a text file (or stdin) into the knowledge base",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIngest,
}

var ingestDescription string

// publishCmd fills the Moodle new-discussion form with a draft.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Fill the forum's new-discussion form with a draft (never submits)",
	RunE:  runPublish,
}

var (
	publishSubject string
	publishMessage string
	publishFile    string
	publishForum   string
)

// statusCmd reports service health.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base health and bridge configuration",
	RunE:  runStatus,
}

// toolsCmd lists the registered tool surface.
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE:  runTools,
}

var toolsMode string

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .coursenerd/config.json)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall command timeout")

	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", "", "retrieval mode (local, global, hybrid, naive, mix, bypass)")

	ingestCmd.Flags().StringVarP(&ingestDescription, "description", "d", "", "description of the ingested document")

	publishCmd.Flags().StringVarP(&publishSubject, "subject", "s", "", "discussion subject line")
	publishCmd.Flags().StringVarP(&publishMessage, "message", "m", "", "post body in Markdown")
	publishCmd.Flags().StringVarP(&publishFile, "file", "f", "", "read the post body from a Markdown file")
	publishCmd.Flags().StringVar(&publishForum, "forum", "", "forum URL (default from config)")

	toolsCmd.Flags().StringVar(&toolsMode, "mode", "", "filter by session mode (qa, forum, report)")

	rootCmd.AddCommand(queryCmd, ingestCmd, publishCmd, statusCmd, toolsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func kbClient() *kb.Client {
	var opts []kb.Option
	if cfg.KB.APIKey != "" {
		opts = append(opts, kb.WithAPIKey(cfg.KB.APIKey))
	}
	return kb.New(cfg.KB.BaseURL, opts...)
}

func bridgeCommand() string {
	if cfg.Bridge.Command != "" {
		return cfg.Bridge.Command
	}
	return bridge.DefaultBridgeCommand
}

func bridgeTransport() bridge.Transport {
	return bridge.NewTransport(cfg.Bridge.Command, cfg.Bridge.Headless)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	mode := queryMode
	if mode == "" {
		mode = cfg.KB.Mode
	}

	question := strings.Join(args, " ")
	result := kbClient().Query(ctx, kb.QueryParams{Query: question, Mode: mode})
	if result.Status != kb.StatusSuccess {
		return fmt.Errorf("query failed (%s): %s", result.Status, result.Detail)
	}

	out := result.Answer
	if len(result.Citations) > 0 {
		var sb strings.Builder
		sb.WriteString(out)
		sb.WriteString("\n\n**Sources:**\n")
		for _, c := range result.Citations {
			sb.WriteString("- " + c.Text() + "\n")
		}
		out = sb.String()
	}

	rendered, err := glamour.Render(out, "auto")
	if err != nil {
		// Plain text when the renderer cannot initialize (no TTY)
		fmt.Println(out)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	var (
		text []byte
		err  error
	)
	if len(args) == 1 {
		text, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if ingestDescription == "" {
			ingestDescription = args[0]
		}
	} else {
		text, err = readStdin()
		if err != nil {
			return err
		}
	}

	resp, err := kbClient().InsertText(ctx, string(text), ingestDescription)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested: %s (track_id=%s)\n", resp.Message, resp.TrackID)
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	message := publishMessage
	if publishFile != "" {
		data, err := os.ReadFile(publishFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", publishFile, err)
		}
		message = string(data)
	}
	if message == "" {
		return fmt.Errorf("provide --message or --file")
	}

	subject := publishSubject
	if subject == "" {
		subject, message = forum.ExtractPost(message)
	}

	ch := bridge.NewChannel(bridgeTransport())
	defer ch.Disconnect()

	diag, err := store.NewDiagnosticsStore(cfg.Store.DatabasePath)
	if err != nil {
		logger.Warn("diagnostics store unavailable", zap.Error(err))
		diag = nil
	} else {
		defer diag.Close()
	}

	opts := []forum.PublisherOption{forum.WithDefaultForumURL(cfg.Forum.URL)}
	if diag != nil {
		opts = append(opts, forum.WithSnapshotSaver(diag))
	}
	pub := forum.NewPublisher(ch, opts...)

	result := pub.PublishDraft(ctx, subject, message, publishForum)

	if diag != nil {
		attempt := store.PublishAttempt{
			Subject:    result.Subject,
			ForumURL:   publishForum,
			Success:    result.Success,
			ErrorKind:  result.ErrorKind,
			Detail:     result.Detail,
			SnapshotID: result.SnapshotRef,
		}
		if attempt.ForumURL == "" {
			attempt.ForumURL = cfg.Forum.URL
		}
		if err := diag.RecordPublishAttempt(ctx, attempt); err != nil {
			logger.Warn("failed to record publish attempt", zap.Error(err))
		}
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if !result.Success {
		return fmt.Errorf("publish failed: %s", result.ErrorKind)
	}
	fmt.Println("Draft is in the form. Review it in the browser and press Post yourself.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client := kbClient()
	fmt.Printf("Knowledge base: %s\n", client.BaseURL())
	if client.HealthCheck(ctx) {
		fmt.Println("  health: ok")
		if ps, err := client.PipelineStatus(ctx); err == nil {
			fmt.Printf("  pipeline busy: %v\n", ps.Busy)
		}
	} else {
		fmt.Println("  health: unreachable")
	}

	fmt.Printf("Bridge command: %s\n", bridgeCommand())
	fmt.Printf("Forum URL: %s\n", cfg.Forum.URL)
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	reg := tools.NewRegistry()
	course.RegisterAll(reg, course.Deps{
		KB:         kbClient(),
		State:      session.NewState(),
		Publisher:  forum.NewPublisher(bridge.NewChannel(bridgeTransport()), forum.WithDefaultForumURL(cfg.Forum.URL)),
		Dispatcher: course.NewQueueDispatcher(),
	})

	var list []*tools.Tool
	if toolsMode != "" {
		list = reg.FilterByMode(toolsMode)
	} else {
		list = reg.All()
	}

	for _, tool := range list {
		fmt.Printf("%-22s %-12s %s\n", tool.Name, tool.Category, tool.Description)
	}
	return nil
}

func readStdin() ([]byte, error) {
	info, err := os.Stdin.Stat()
	if err != nil {
		return nil, err
	}
	if info.Mode()&os.ModeCharDevice != 0 {
		return nil, fmt.Errorf("no input file and nothing piped on stdin")
	}
	return io.ReadAll(os.Stdin)
}
