package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

const (
	commandName = "jackc"
	errorStatus = 1
)

// Driver compiles source files to sibling output files.
type Driver struct {
	config Config
	logger zerolog.Logger
}

func NewDriver(config Config, logger zerolog.Logger) *Driver {
	return &Driver{config: config, logger: logger}
}

func (d *Driver) compileFile(r io.Reader, w io.Writer) (className string, err error) {
	if d.config.Emit == EmitTokens {
		tokenizer, err := NewTokenizer(r)
		if err != nil {
			return "", err
		}
		return "", writeTokens(w, tokenizer.Tokens())
	}
	return CompileSource(r, w, d.logger)
}

// processFile compiles path and writes the result next to it. The output file
// is only written when compilation succeeds.
func (d *Driver) processFile(path string) (outputPath string, err error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not open file %q for reading: %w", path, err)
	}

	var output bytes.Buffer
	className, err := d.compileFile(bytes.NewReader(source), &output)
	if err != nil {
		return "", err
	}
	if className != "" && className != getClassName(path) {
		d.logger.Warn().Str("file", path).Str("class", className).Msg("class name does not match file name")
	}

	outputPath = getOutputPath(path, d.config.Emit)
	if err := os.WriteFile(outputPath, output.Bytes(), 0644); err != nil {
		return outputPath, fmt.Errorf("could not write output file %q: %w", outputPath, err)
	}
	return outputPath, nil
}

// compileFiles compiles every file, carrying on past failures. The returned
// error combines one error per failed file.
func (d *Driver) compileFiles(files []string) error {
	var errs error
	for _, file := range files {
		d.logger.Debug().Str("file", file).Msg("compiling file")
		outputPath, err := d.processFile(file)
		if err != nil {
			d.logger.Error().Str("file", file).Err(err).Msg("compilation failed")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		d.logger.Info().Str("file", file).Str("output", outputPath).Msg("compiled")
	}
	return errs
}

func (d *Driver) Run(ctx context.Context) error {
	files, err := collectFiles(d.config.Source, d.config.Include)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		d.logger.Warn().Str("source", d.config.Source).Str("include", d.config.Include).Msg("no source files found")
	}

	compileErr := d.compileFiles(files)
	if !d.config.Watch {
		return compileErr
	}
	if compileErr != nil {
		d.logger.Warn().Int("failed", len(multierr.Errors(compileErr))).Msg("watching despite failed files")
	}
	return d.watch(ctx)
}

func reportErrors(w io.Writer, err error) {
	output := termenv.NewOutput(w)
	prefix := output.String("error:").Foreground(termenv.ANSIRed).Bold()
	for _, e := range multierr.Errors(err) {
		fmt.Fprintln(w, prefix, e)
	}
}

func parseConfig(args []string, stderr io.Writer) (Config, error) {
	flags := flag.NewFlagSet(commandName, flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath = flags.String("config", DefaultConfigFile, "YAML configuration file")
		source     = flags.String("d", "", ".jack file to compile or directory containing .jack files")
		include    = flags.String("include", DefaultInclude, "glob selecting source files inside a directory")
		emit       = flags.String("emit", EmitVM, "output to produce: vm or tokens")
		logLevel   = flags.String("log-level", zerolog.InfoLevel.String(), "log level")
		logFormat  = flags.String("log-format", ConsoleLogFormat, "log format: console or json")
		watch      = flags.Bool("watch", false, "recompile changed files until interrupted")
		debounce   = flags.Duration("debounce", DefaultDebounce, "delay before recompiling after a change")
	)
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	explicit := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	config, err := LoadConfig(*configPath, explicit["config"])
	if err != nil {
		return config, err
	}

	// Flags given on the command line win over the config file.
	if explicit["d"] {
		config.Source = *source
	}
	if explicit["include"] {
		config.Include = *include
	}
	if explicit["emit"] {
		config.Emit = *emit
	}
	if explicit["log-level"] {
		config.LogLevel = *logLevel
	}
	if explicit["log-format"] {
		config.LogFormat = *logFormat
	}
	if explicit["watch"] {
		config.Watch = *watch
	}
	if explicit["debounce"] {
		config.Debounce = debounce.String()
	}
	if config.Source == "" && flags.NArg() > 0 {
		config.Source = flags.Arg(0)
	}

	if err := config.Validate(); err != nil {
		flags.Usage()
		return config, err
	}
	return config, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	config, err := parseConfig(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		reportErrors(stderr, err)
		return errorStatus
	}

	logger, err := config.NewLogger(stderr)
	if err != nil {
		reportErrors(stderr, err)
		return errorStatus
	}

	if err := NewDriver(config, logger).Run(ctx); err != nil {
		reportErrors(stderr, err)
		return errorStatus
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(status)
}
