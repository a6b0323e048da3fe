package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/yungbote/recollection-backend/internal/app"
	"github.com/yungbote/recollection-backend/internal/domain/content"
	"github.com/yungbote/recollection-backend/internal/http/middleware"
	"github.com/yungbote/recollection-backend/internal/platform/envutil"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
)

func main() {
	envutil.LoadDotEnv(nil)
	log, err := logger.New(envutil.String("LOG_MODE", "development", nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cmd := &cli.Command{
		Name:  "coursegen",
		Usage: "Generate courses from content files without the server",
		Commands: []*cli.Command{
			generateCommand(log),
			analyzeCommand(log),
			tokenCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error("coursegen failed", "error", err)
		os.Exit(1)
	}
}

func generateCommand(log *logger.Logger) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Build one course from one or more content JSON files",
		ArgsUsage: "<content.json>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the course here instead of stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			contents, err := loadContents(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			cfg, err := app.LoadLLMConfig(log)
			if err != nil {
				return err
			}
			gen, err := app.NewGenerator(log, cfg, nil)
			if err != nil {
				return err
			}
			c, err := gen.Generate(ctx, contents, nil, func(step string, pct int) {
				log.Info("Progress", "step", step, "percent", pct)
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.String("out"), c)
		},
	}
}

func analyzeCommand(log *logger.Logger) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Print the topic analysis of one content JSON file",
		ArgsUsage: "<content.json>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("analyze takes exactly one file")
			}
			contents, err := loadContents(ctx, cmd.Args().Slice())
			if err != nil {
				return err
			}
			cfg, err := app.LoadLLMConfig(log)
			if err != nil {
				return err
			}
			a, err := app.NewAnalyzer(log, cfg)
			if err != nil {
				return err
			}
			ac, err := a.Analyze(ctx, contents[0])
			if err != nil {
				return err
			}
			return writeJSON("", ac)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Sign an access token for local API calls",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Usage: "user id (random when empty)"},
			&cli.DurationFlag{Name: "ttl", Value: time.Hour},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			secret := envutil.String("JWT_SECRET_KEY", "", nil)
			if secret == "" {
				return fmt.Errorf("JWT_SECRET_KEY is not set")
			}
			userID := uuid.New()
			if raw := cmd.String("user"); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				userID = id
			}
			tok, err := middleware.SignToken(secret, userID, cmd.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
}

func loadContents(ctx context.Context, paths []string) ([]*content.Content, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no content files given")
	}
	out := make([]*content.Content, 0, len(paths))
	for _, p := range paths {
		c, err := content.FileLoader{}.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		out = append(out, c)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
