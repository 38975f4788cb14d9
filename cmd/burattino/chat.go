package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"

	"github.com/go-burattino/burattino/pkg/config"
	"github.com/go-burattino/burattino/pkg/display"
	"github.com/go-burattino/burattino/pkg/events"
	"github.com/go-burattino/burattino/pkg/inference/engine"
	"github.com/go-burattino/burattino/pkg/inference/engine/factory"
	"github.com/go-burattino/burattino/pkg/inference/orchestrator"
	"github.com/go-burattino/burattino/pkg/tools"
)

type osFileReader struct{}

func (osFileReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// frontendAskSender answers frontend-environment tool requests by asking the
// human at the terminal, standing in for the desktop frontend.
func frontendAskSender(bridge **tools.FrontendBridge, ui *input.UI) tools.FrontendSenderFunc {
	return func(req tools.FrontendRequest) error {
		answer, err := ui.Ask(
			fmt.Sprintf("tool %s wants to run with parameters %v, result JSON (empty to fail)", req.Name, req.Parameters),
			&input.Options{Default: "", HideOrder: true},
		)
		if err != nil && err != input.ErrEmpty {
			(*bridge).Resolve(req.ID, nil, err.Error())
			return nil
		}
		if strings.TrimSpace(answer) == "" {
			(*bridge).Resolve(req.ID, nil, "rejected at the terminal")
			return nil
		}
		var result any
		if err := json.Unmarshal([]byte(answer), &result); err != nil {
			result = answer
		}
		(*bridge).Resolve(req.ID, result, "")
		return nil
	}
}

func newChatCommand() *cobra.Command {
	var (
		modelName      string
		projectContext string
		agentContext   string
		attachments    []string
		allowedTools   []string
		maxIterations  int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "chat with a configured model, tools included",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if modelName == "" {
				modelName = cfg.DefaultModel
			}
			kind, settings, err := cfg.EngineSettings(modelName)
			if err != nil {
				return err
			}

			ui := &input.UI{Writer: os.Stdout, Reader: os.Stdin}
			if settings.APIKey == "" && isatty.IsTerminal(os.Stdin.Fd()) {
				settings.APIKey, err = ui.Ask(
					fmt.Sprintf("API key for %s", kind),
					&input.Options{Required: true, Mask: true, HideOrder: true},
				)
				if err != nil {
					return errors.Wrap(err, "reading API key")
				}
			}

			eng, err := factory.NewEngine(kind, settings)
			if err != nil {
				return err
			}

			registry := tools.NewRegistry()
			if cfg.ToolsFile != "" {
				registry, err = config.LoadTools(cfg.ToolsFile)
				if err != nil {
					return err
				}
			}

			toolConfig := tools.DefaultConfig()
			if len(allowedTools) > 0 {
				toolConfig = toolConfig.WithAllowedTools(allowedTools)
			}
			if maxIterations > 0 {
				toolConfig = toolConfig.WithMaxIterations(maxIterations)
			}

			var bridge *tools.FrontendBridge
			bridge = tools.NewFrontendBridge(frontendAskSender(&bridge, ui))
			router := tools.NewRouter(registry, toolConfig, tools.NewProcessRunner(cfg.SandboxInterpreter), bridge)

			return runChat(cmd.Context(), chatSession{
				engine:         eng,
				router:         router,
				toolConfig:     toolConfig,
				ui:             ui,
				projectContext: projectContext,
				agentContext:   agentContext,
				attachments:    attachments,
			})
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "model preset to chat with (default from config)")
	cmd.Flags().StringVar(&projectContext, "project-context", "", "project context injected into the system prompt")
	cmd.Flags().StringVar(&agentContext, "agent-context", "", "agent persona injected into the system prompt")
	cmd.Flags().StringArrayVar(&attachments, "attach", nil, "file to attach to the first message (repeatable)")
	cmd.Flags().StringArrayVar(&allowedTools, "allow-tool", nil, "glob pattern of tools the model may call (repeatable)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "cap on stream/tool iterations per turn")

	return cmd
}

type chatSession struct {
	engine         engine.Engine
	router         *tools.Router
	toolConfig     tools.Config
	ui             *input.UI
	projectContext string
	agentContext   string
	attachments    []string
}

func runChat(ctx context.Context, session chatSession) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	eventRouter, err := events.NewEventRouter()
	if err != nil {
		return err
	}
	transcript := display.NewReconstructor(display.NotifierFunc(func(message string) {
		fmt.Fprintf(os.Stderr, "\nturn failed: %s\n", message)
	}))
	eventRouter.AddHandler("cli-printer", "chat", events.StepPrinterFunc("", os.Stdout))
	eventRouter.AddSinkHandler("transcript", "chat", transcript)

	sink := events.NewWatermillSink(eventRouter.Publisher, "chat")
	orch := orchestrator.NewOrchestrator(
		session.engine, session.router, session.toolConfig,
		uuid.New().String(),
		[]events.EventSink{sink},
		orchestrator.WithFileReader(osFileReader{}),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return eventRouter.Run(ctx)
	})
	eg.Go(func() error {
		defer func() {
			if err := eventRouter.Close(); err != nil {
				log.Warn().Err(err).Msg("closing event router")
			}
		}()
		<-eventRouter.Running()
		return repl(ctx, session, orch)
	})
	return eg.Wait()
}

func repl(ctx context.Context, session chatSession, orch *orchestrator.Orchestrator) error {
	firstTurn := true
	for {
		line, err := session.ui.Ask("you", &input.Options{HideOrder: true})
		if err == input.ErrEmpty {
			continue
		}
		if err != nil {
			// EOF or a closed terminal ends the session.
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		req := orchestrator.TurnRequest{UserMessage: line}
		if firstTurn {
			req.ProjectContext = session.projectContext
			req.AgentContext = session.agentContext
			req.AttachedFilePaths = session.attachments
			firstTurn = false
		}

		if _, err := orch.SendTurn(ctx, req); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("turn failed")
		}
	}
}
