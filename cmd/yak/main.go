package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yakshave/yak/internal/config"
	"github.com/yakshave/yak/internal/history"
	"github.com/yakshave/yak/internal/storage"
	yaksync "github.com/yakshave/yak/internal/sync"
	"github.com/yakshave/yak/internal/webhook"
	"github.com/yakshave/yak/internal/yak"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	listAll  bool
	noteText string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "yak",
	Short: "Track yaks to shave, replicated through git",
	Long: `yak keeps a directory of small task notes ("yaks") inside a git
repository and replicates them between machines using raw git objects,
without ever touching the repository's checkout or branches.

Items live as directories under .yaks; sync records them on a dedicated
ref and reconciles against a remote peer with item-level precedence.`,
	SilenceUsage: true,
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new yak",
	Long: `Add creates a new yak directory with an empty note. Names may use
slashes to group related yaks, for example "ops/renew-certs".`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List yaks",
	RunE:  runList,
}

var doneCmd = &cobra.Command{
	Use:   "done <name>",
	Short: "Mark a yak as shaved",
	Args:  cobra.ExactArgs(1),
	RunE:  runDone,
}

var undoneCmd = &cobra.Command{
	Use:   "undone <name>",
	Short: "Reopen a yak",
	Args:  cobra.ExactArgs(1),
	RunE:  runUndone,
}

var moveCmd = &cobra.Command{
	Use:   "move <old> <new>",
	Short: "Rename a yak",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a yak",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all shaved yaks",
	RunE:  runPrune,
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a yak's note",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var editCmd = &cobra.Command{
	Use:   "edit <name>",
	Short: "Open a yak's note in $EDITOR",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replicate yaks with the configured remote",
	Long: `Sync snapshots the yaks directory into the object store, reconciles
it against the remote peer's state and materializes the result back to
disk. Unreachable remotes degrade to a local checkpoint instead of
failing the run.`,
	RunE: runSync,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server that syncs on forge push events",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("yak %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/yak/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	addCmd.Flags().StringVarP(&noteText, "note", "m", "", "initial note text")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include shaved yaks")

	rootCmd.AddCommand(addCmd, listCmd, doneCmd, undoneCmd, moveCmd,
		removeCmd, pruneCmd, showCmd, editCmd, syncCmd, serveCmd, versionCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := yak.ValidateName(name); err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.Create(name); err != nil {
		return err
	}
	if noteText != "" {
		if err := store.WriteNote(name, noteText+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	yaks, err := store.List()
	if err != nil {
		return err
	}
	for _, y := range yaks {
		if y.Done && !listAll {
			continue
		}
		marker := " "
		if y.Done {
			marker = "x"
		}
		fmt.Printf("[%s] %s\n", marker, y.Name)
	}
	return nil
}

func runDone(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	return store.MarkDone(args[0], true)
}

func runUndone(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	return store.MarkDone(args[0], false)
}

func runMove(cmd *cobra.Command, args []string) error {
	if err := yak.ValidateName(args[1]); err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	return store.Move(args[0], args[1])
}

func runRemove(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	return store.Delete(args[0])
}

func runPrune(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	pruned, err := store.Prune()
	if err != nil {
		return err
	}
	for _, name := range pruned {
		fmt.Printf("pruned %s\n", name)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	note, err := store.ReadNote(args[0])
	if err != nil {
		return err
	}
	fmt.Print(note)
	if note != "" && !strings.HasSuffix(note, "\n") {
		fmt.Println()
	}
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	// the note file must exist before the editor opens it
	if _, err := store.Get(args[0]); err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	edit := exec.Command(editor, store.NotePath(args[0]))
	edit.Stdin = os.Stdin
	edit.Stdout = os.Stdout
	edit.Stderr = os.Stderr
	return edit.Run()
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	engine, err := newEngine(logger)
	if err != nil {
		return err
	}

	logger.Info("starting sync")
	if err := engine.Run(ctx); err != nil {
		logger.Error("sync failed", "error", err)
		return err
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}
	engine, err := newEngineWith(cfg, logger)
	if err != nil {
		return err
	}

	server, err := webhook.NewServer(cfg, engine, logger)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}

// openStore resolves the yaks directory and returns the item store. The
// directory comes from the config, defaulting to ".yaks" under the
// enclosing repository's root.
func openStore() (*storage.DirStore, error) {
	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, err
	}
	if cfg.Paths.YaksDir != "" {
		return storage.NewDirStore(cfg.Paths.YaksDir), nil
	}
	root, err := repoRoot(cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewDirStore(cfg.YaksDirIn(root)), nil
}

func newEngine(logger *slog.Logger) (*yaksync.Engine, error) {
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, err
	}
	return newEngineWith(cfg, logger)
}

func newEngineWith(cfg *config.Config, logger *slog.Logger) (*yaksync.Engine, error) {
	repoDir := cfg.Paths.RepoDir
	if repoDir == "" {
		var err error
		if repoDir, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	repo, err := history.Open(repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	hist := history.New(repo, cfg.Author.Name, cfg.Author.Email)

	root, err := repoRoot(cfg)
	if err != nil {
		return nil, err
	}
	store := storage.NewDirStore(cfg.YaksDirIn(root))
	return yaksync.NewEngine(store, hist, cfg.RemoteName(), logger), nil
}

// repoRoot locates the worktree root of the repository the yaks live in.
func repoRoot(cfg *config.Config) (string, error) {
	dir := cfg.Paths.RepoDir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	repo, err := history.Open(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("repository has no worktree: %w", err)
	}
	return wt.Filesystem.Root(), nil
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = fmt.Sprintf("%s/.config/yak/config.yaml", home)
	}

	logger.Debug("loading configuration", "path", configPath)
	return config.Load(configPath)
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
