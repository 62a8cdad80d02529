// Command bagextract is the bridge between ROS bags and numeric environments. It prints
// the messages of a topic, or the topics of a bag, in a format those environments can
// load directly.
//
//	bagextract read <bag> <topic> [--min N] [--max N]
//	bagextract topics <bag> [--types]
//	bagextract info <bag>
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lherman-cs/bagextract"
	"github.com/lherman-cs/bagextract/internal/config"
	"github.com/lherman-cs/bagextract/internal/logging"
	"github.com/lherman-cs/bagextract/internal/output"
)

const usage = `usage:
  bagextract read <bag> <topic> [flags]   messages of topic as a list of maps
  bagextract topics <bag> [flags]         topic names, with --types their message types
  bagextract info <bag> [flags]           summary of the bag index

Run "bagextract <command> --help" for the flags of a command.
`

var errUsage = errors.New("invalid usage")

// topicTypes is the output of "topics --types".
type topicTypes struct {
	Topics []string `json:"topics" yaml:"topics"`
	Types  []string `json:"types" yaml:"types"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "bagextract: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(cmd string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("bagextract "+cmd, pflag.ContinueOnError)
	flags.String("config", "", "config file, yaml, json or toml")
	flags.StringP("format", "f", config.FormatJSON, "output format: json, yaml or pretty")
	flags.StringP("output", "o", "", "output file, stdout by default. .gz and .zst files are compressed")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	flags.String("log-file", "", "also log to this file as json")
	return flags
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, args := args[0], args[1:]
	flags := newFlagSet(cmd)

	var nargs int
	switch cmd {
	case "read":
		flags.Int("min", 0, "index of the first message to read")
		flags.Int("max", -1, "index of the last message to read, negative reads to the end")
		nargs = 2
	case "topics":
		flags.Bool("types", false, "include the message type of every topic")
		nargs = 1
	case "info":
		nargs = 1
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.NArg() != nargs {
		return fmt.Errorf("%w: %s expects %d arguments, got %d", errUsage, cmd, nargs, flags.NArg())
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	path := flags.Arg(0)
	logger.Info("extracting", zap.String("command", cmd), zap.String("bag", path))

	var result interface{}
	switch cmd {
	case "read":
		minIdx, maxIdx := cfg.Window()
		result, err = bagextract.ReadBagWindow(path, flags.Arg(1), minIdx, maxIdx)
	case "topics":
		if cfg.Types {
			var tt topicTypes
			tt.Topics, tt.Types, err = bagextract.ExtractTopicNamesTypes(path)
			result = tt
		} else {
			result, err = bagextract.DisplayBagTopics(path)
		}
	case "info":
		result, err = bagextract.Info(path)
	}
	if err != nil {
		return err
	}

	return write(cfg, result)
}

func write(cfg *config.Config, result interface{}) (err error) {
	w, err := output.Create(cfg.Output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()

	return output.Encode(w, cfg.Format, result)
}
