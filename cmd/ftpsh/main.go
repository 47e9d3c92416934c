// Command ftpsh is an interactive FTP client.
//
//	usage: ftpsh [-config file] [-v] [-d] host
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gonzalop/ftpsh"
	"github.com/gonzalop/ftpsh/internal/config"
)

const prompt = "ftp> "

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ftpsh [-config file] [-v] [-d] host")
	flag.PrintDefaults()
}

func main() {
	confFile := flag.String("config", "", "location of configuration file")
	verbose := flag.Bool("v", false, "log protocol traffic to stderr")
	debug := flag.Bool("d", false, "start with debugging (command echo) on")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}
	host := flag.Arg(0)

	conf, err := config.ReadConfig(*confFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftpsh: error while reading configuration: %s\n", err)
		os.Exit(1)
	}
	if *debug {
		conf.Debug = true
	}

	logger := newLogger(conf.LogLevel, *verbose)

	opts, err := conf.Options()
	if err != nil {
		logger.Fatal().Msgf("invalid configuration: %s", err)
	}

	in := bufio.NewReader(os.Stdin)
	bars := newProgress(os.Stderr)
	opts = append(opts,
		ftpsh.WithLogger(logger),
		ftpsh.WithOutput(os.Stdout),
		ftpsh.WithProgress(bars.update),
	)

	s, err := ftpsh.Open(host, newTermPrompter(in, conf.User, conf.Password), opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftp: %s\n", err)
		os.Exit(1)
	}

	code := repl(s, in, bars)
	_ = s.Close()
	os.Exit(code)
}

// newLogger writes human-readable logs to stderr. Without -v only warnings
// and errors are shown, unless the configuration asks for more.
func newLogger(level string, verbose bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(lvl).With().Timestamp().Logger()
}

// repl reads commands until the session closes or input ends, and returns
// the process exit status.
func repl(s *ftpsh.Session, in *bufio.Reader, bars *progress) int {
	for s.IsOpen() {
		fmt.Print(prompt)
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "ftpsh: %s\n", err)
			}
			fmt.Println()
			_, _ = s.Execute("quit")
			return 0
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name, args := fields[0], fields[1:]

		if strings.EqualFold(name, "help") || name == "?" {
			printHelp(os.Stdout, args)
			continue
		}

		_, err = s.Execute(name, args...)
		bars.finish()
		switch {
		case errors.Is(err, ftpsh.ErrUnknownCommand):
			fmt.Println("?Invalid command")
		case err != nil:
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return 0
}
