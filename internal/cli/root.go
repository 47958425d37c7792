package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/intthread/internal/config"
	"github.com/Paintersrp/intthread/internal/logging"
	"github.com/Paintersrp/intthread/internal/registry"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	env, envErr := config.LoadEnv()
	if envErr != nil {
		env = config.Env{
			File:      config.DefaultManifest,
			LogLevel:  "info",
			LogFormat: logging.FormatText,
			APIAddr:   config.DefaultAPIAddr,
		}
	}

	ctx := &context{env: env}

	root := &cobra.Command{
		Use:   "intthread",
		Short: "Interruptible native thread controller",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			return ctx.initLogger(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&ctx.env.File, "file", "f", env.File, "Path to thread manifest")
	flags.StringVar(&ctx.env.LogLevel, "log-level", env.LogLevel, "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&ctx.env.LogFormat, "log-format", env.LogFormat, "Log format (text or json)")
	flags.StringVar(&ctx.env.Backend, "backend", env.Backend, "Backend for threads that do not name one (default: platform default)")

	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newDemoCmd(ctx))
	root.AddCommand(newServeCmd(ctx))
	root.AddCommand(newWatchCmd(ctx))
	root.AddCommand(newBackendsCmd())
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// context is the state shared by every command of one invocation.
type context struct {
	env config.Env

	logger *logrus.Logger

	mu         sync.RWMutex
	deployment *deployment
}

func (c *context) initLogger(cmd *cobra.Command) error {
	logger, err := logging.New(logging.Config{
		Level:  c.env.LogLevel,
		Format: c.env.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

func (c *context) log(component string) *logrus.Entry {
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return logging.Component(c.logger, component)
}

func (c *context) loadManifest() (*config.Manifest, error) {
	return config.Load(c.env.File)
}

func (c *context) setDeployment(dep *deployment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deployment = dep
}

func (c *context) clearDeployment(dep *deployment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deployment == dep {
		c.deployment = nil
	}
}

func (c *context) currentRegistry() *registry.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.deployment == nil {
		return nil
	}
	return c.deployment.reg
}
