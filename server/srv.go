package server

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrollkeep/scrollkeep/chainquery"
	"github.com/scrollkeep/scrollkeep/config"
	"github.com/scrollkeep/scrollkeep/dao"
	"github.com/scrollkeep/scrollkeep/internal/signal"
	"github.com/scrollkeep/scrollkeep/scroll"
	"github.com/scrollkeep/scrollkeep/scroll/log"
	"github.com/scrollkeep/scrollkeep/scroll/registry"
	"github.com/scrollkeep/scrollkeep/server/handle"
	"github.com/scrollkeep/scrollkeep/tables"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"
)

var srvOptions = &SrvOptions{}

// SrvOptions is a struct that holds the configuration options for the
// gateway server. Flags take effect first, then a config file, when one
// is supplied, overrides them.
type SrvOptions struct {
	configFile string
	promptKey  bool

	Listen      string `yaml:"listen"`
	EnablePProf bool   `yaml:"pprof"`
	Prometheus  bool   `yaml:"prometheus"`
	LogFile     string `yaml:"log_file"`
	Chain       struct {
		Backend     string   `yaml:"backend"`
		ProjectID   string   `yaml:"project_id"`
		Mirrors     []string `yaml:"mirrors"`
		MinInterval string   `yaml:"min_interval"`
		RetryCap    int      `yaml:"retry_cap"`
	} `yaml:"chain"`
	Registry struct {
		Head      string   `yaml:"head"`
		Overrides []string `yaml:"overrides"`
	} `yaml:"registry"`
	Mysql struct {
		Enable   bool   `yaml:"enable"`
		Addr     string `yaml:"addr"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DB       string `yaml:"db"`
	} `yaml:"mysql"`
}

// SrvOption is a function type that modifies SrvOptions, for callers that
// embed the gateway instead of going through the command.
type SrvOption func(*SrvOptions)

// WithListen sets the gateway listen address.
func WithListen(listen string) SrvOption {
	return func(options *SrvOptions) {
		options.Listen = listen
	}
}

// WithBackend selects the ledger query backend.
func WithBackend(backend string) SrvOption {
	return func(options *SrvOptions) {
		options.Chain.Backend = backend
	}
}

// WithProjectID sets the query backend credential.
func WithProjectID(projectID string) SrvOption {
	return func(options *SrvOptions) {
		options.Chain.ProjectID = projectID
	}
}

// WithRegistryHead pins the public registry trust anchor.
func WithRegistryHead(head string) SrvOption {
	return func(options *SrvOptions) {
		options.Registry.Head = head
	}
}

// WithEnablePProf enables the pprof routes.
func WithEnablePProf(enable bool) SrvOption {
	return func(options *SrvOptions) {
		options.EnablePProf = enable
	}
}

var Cmd = &cobra.Command{
	Use:   "server",
	Short: "scroll gateway server",
	Run: func(cmd *cobra.Command, args []string) {
		// Chain access flags are persistent on the root command and land
		// in the shared config package.
		srvOptions.promptKey = config.PromptKey
		srvOptions.Chain.Backend = config.Backend
		srvOptions.Chain.ProjectID = config.ProjectID
		srvOptions.Chain.Mirrors = config.Mirrors
		srvOptions.Chain.MinInterval = config.MinInterval
		srvOptions.Chain.RetryCap = config.RetryCap
		if err := GatewaySrv(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		<-signal.InterruptHandlersDone
	},
}

func init() {
	Cmd.Flags().StringVarP(&srvOptions.configFile, "config", "c", "", "config file path")
	Cmd.Flags().StringVarP(&srvOptions.Listen, "listen", "l", ":8080", "gateway listen address")
	Cmd.Flags().StringVarP(&srvOptions.Registry.Head, "registry_head", "r", "", "registry head pointer (trust anchor)")
	Cmd.Flags().StringSliceVarP(&srvOptions.Registry.Overrides, "registry_override", "", nil, "private registry head pointers overlaid on the public one")
	Cmd.Flags().BoolVarP(&srvOptions.Mysql.Enable, "cache", "", false, "enable the mysql reconstruction cache")
	Cmd.Flags().StringVarP(&srvOptions.Mysql.Addr, "mysql_addr", "d", "127.0.0.1:3306", "cache mysql database addr")
	Cmd.Flags().StringVarP(&srvOptions.Mysql.User, "mysql_user", "", "root", "cache mysql database user")
	Cmd.Flags().StringVarP(&srvOptions.Mysql.Password, "mysql_pass", "", "root", "cache mysql database password")
	Cmd.Flags().StringVarP(&srvOptions.Mysql.DB, "db", "", "scrollkeep", "cache mysql database name")
	Cmd.Flags().BoolVarP(&srvOptions.EnablePProf, "pprof", "", false, "enable pprof")
	Cmd.Flags().BoolVarP(&srvOptions.Prometheus, "prometheus", "", false, "expose prometheus metrics")
	Cmd.Flags().StringVarP(&srvOptions.LogFile, "log_file", "", "", "rotating log file path")
}

// GatewaySrv wires the query client, reconstruction engine, registry
// resolver, and cache together and starts the gateway.
func GatewaySrv(opts ...SrvOption) error {
	if srvOptions.configFile != "" {
		configFile, err := os.Open(srvOptions.configFile)
		if err != nil {
			return err
		}
		defer configFile.Close()
		if err := yaml.NewDecoder(configFile).Decode(srvOptions); err != nil {
			return err
		}
	}
	for _, v := range opts {
		v(srvOptions)
	}
	if srvOptions.Chain.Backend == "" {
		srvOptions.Chain.Backend = chainquery.BackendKoios
	}

	if srvOptions.promptKey && srvOptions.Chain.ProjectID == "" {
		fmt.Fprint(os.Stderr, "project id: ")
		key, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		srvOptions.Chain.ProjectID = string(key)
	}

	if srvOptions.LogFile != "" {
		log.InitLogRotator(filepath.Clean(srvOptions.LogFile))
	}

	cliOpts := []chainquery.Option{
		chainquery.WithBackend(srvOptions.Chain.Backend),
		chainquery.WithProjectID(srvOptions.Chain.ProjectID),
		chainquery.WithMirrors(srvOptions.Chain.Mirrors...),
	}
	if srvOptions.Chain.MinInterval != "" {
		interval, err := time.ParseDuration(srvOptions.Chain.MinInterval)
		if err != nil {
			return fmt.Errorf("chain.min_interval: %w", err)
		}
		cliOpts = append(cliOpts, chainquery.WithMinInterval(interval))
	}
	if srvOptions.Chain.RetryCap > 0 {
		cliOpts = append(cliOpts, chainquery.WithRetryCap(srvOptions.Chain.RetryCap))
	}
	cli, err := chainquery.New(cliOpts...)
	if err != nil {
		return err
	}

	reconstructor, err := scroll.NewReconstructor(scroll.WithQuerier(cli))
	if err != nil {
		return err
	}

	var db *dao.DB
	if srvOptions.Mysql.Enable {
		db, err = dao.NewDB(
			dao.WithAddr(srvOptions.Mysql.Addr),
			dao.WithUser(srvOptions.Mysql.User),
			dao.WithPassword(srvOptions.Mysql.Password),
			dao.WithDBName(srvOptions.Mysql.DB),
			dao.WithAutoMigrateTables(tables.Tables...),
		)
		if err != nil {
			return err
		}
	}

	handleOpts := []handle.Option{
		handle.WithAddr(srvOptions.Listen),
		handle.WithFetcher(reconstructor),
		handle.WithQuerier(cli),
		handle.WithDB(db),
		handle.WithEnablePProf(srvOptions.EnablePProf),
		handle.WithPrometheus(srvOptions.Prometheus),
	}
	if srvOptions.Registry.Head != "" {
		trust, err := registry.ParseTrust(srvOptions.Registry.Head, srvOptions.Registry.Overrides...)
		if err != nil {
			return err
		}
		resolverOpts := []registry.Option{registry.WithFetcher(reconstructor)}
		if db != nil {
			resolverOpts = append(resolverOpts, registry.WithSnapshotCache(db))
		}
		resolver, err := registry.NewResolver(resolverOpts...)
		if err != nil {
			return err
		}
		handleOpts = append(handleOpts, handle.WithResolver(resolver), handle.WithTrust(trust))
	}

	h, err := handle.New(handleOpts...)
	if err != nil {
		return err
	}
	signal.AddInterruptHandler(func() {
		log.Close()
	})
	return h.Run()
}
