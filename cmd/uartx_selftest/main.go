// Command uartx_selftest runs the uartx transfer scenarios against a
// simulated link or real serial devices and prints a report.
//
// Wiring for --rig serial: TX of --tx-device to RX of --rx-device. A single
// device with TX jumpered to RX works as a loopback.
package main

import (
	"os"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"

	"github.com/jangala-dev/uartasync/internal/log"
)

// CLI is the root command.
type CLI struct {
	Config string     `help:"Configuration file (JSON, YAML or TOML)." type:"path" env:"UARTX_CONFIG"`
	Log    log.Config `embed:"" prefix:"log-"`

	Run       RunCmd       `cmd:"" default:"withargs" help:"Run the transfer scenarios."`
	Integrity IntegrityCmd `cmd:"" help:"Stream chained random transfers and verify every byte."`
	List      ListCmd      `cmd:"" help:"List the scenarios."`
}

func main() {
	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configCandidatePaths(userCfg)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("uartx_selftest"),
		kong.Description("Asynchronous UART transfer self-test"),
		kong.UsageOnError(),
		// Flags and env override configuration files.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(yamlLoader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	logger, closeFiles, err := log.New(cli.Log, os.Stderr)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	ctx.Bind(logger)
	ctx.BindTo(os.Stdout, (*output)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "--config=") {
			return a[len("--config="):]
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("UARTX_CONFIG")
}
