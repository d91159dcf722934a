package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/maxvaer/apiprobe/internal/config"
	"github.com/maxvaer/apiprobe/internal/logger"
	"github.com/maxvaer/apiprobe/internal/output"
	"github.com/maxvaer/apiprobe/internal/probe"
	"github.com/maxvaer/apiprobe/internal/runner"
	"github.com/maxvaer/apiprobe/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

var opts config.Options

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"base-host", "credential", "credential-param", "candidates", "path", "param", "encodings"}},
	{"MATCHERS", []string{"include-status", "kind", "success-only", "match-body"}},
	{"FILTERS", []string{"exclude-status", "exclude-body"}},
	{"CLASSIFICATION", []string{"snippet-length", "error-marker", "success-code"}},
	{"RATE-LIMIT", []string{"workers", "timeout", "rate"}},
	{"HTTP", []string{"header", "user-agent", "proxy", "follow-redirects", "insecure"}},
	{"OUTPUT", []string{"output", "format", "sort", "snippet-width", "quiet", "no-color", "on-result"}},
	{"CONFIGURATION", []string{"config", "history-file", "log-level", "log-json"}},
}

var rootCmd = &cobra.Command{
	Use:     "apiprobe -u <base-host> -w <candidates> [flags]",
	Short:   "Probe guessed operation names of an undocumented HTTP API",
	Version: version.Version,
	Long: `apiprobe sends one GET request per candidate operation to a base host,
optionally carrying an API credential, and reports for each candidate the
status, body kind and a bounded snippet so the working operations of an
undocumented API surface can be found by trial.`,
	Example: `  apiprobe -u https://apis.data.go.kr/6270000/dbmsapi01 -w functions.txt
  apiprobe -u https://apis.example.org/svc -p getBs02 -p "getPos02?routeId=1"
  apiprobe -u https://apis.example.org/svc -w candidates.yaml -e default,manual
  apiprobe -u https://apis.example.org/svc -w functions.txt -P pageNo=1 -P numOfRows=1
  apiprobe -u https://apis.example.org/svc -w functions.txt --success-only -o found.json --format json
  apiprobe -c apiprobe.yaml --history-file probes.db
  apiprobe history diff --history-file probes.db`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if opts.ConfigFile != "" {
			values, err := config.LoadFile(opts.ConfigFile)
			if err != nil {
				return err
			}
			if err := config.Apply(cmd.Flags(), values); err != nil {
				return err
			}
		}
		if opts.Credential == "" {
			opts.Credential = os.Getenv(config.CredentialEnv)
		}
		if opts.BaseHost == "" {
			_ = cmd.Help()
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("base host required: use -u")
		}
		if !strings.Contains(opts.BaseHost, "://") {
			opts.BaseHost = "https://" + opts.BaseHost
		}
		if opts.CandidatesFile == "" && len(opts.Paths) == 0 {
			return fmt.Errorf("candidates required: use -w or -p")
		}
		if len(opts.IncludeStatus) > 0 && len(opts.ExcludeStatus) > 0 {
			return fmt.Errorf("--include-status and --exclude-status are mutually exclusive")
		}
		if opts.SortBy != "" && !slices.Contains(output.SortKeys, opts.SortBy) {
			return fmt.Errorf("--sort must be one of: %s", strings.Join(output.SortKeys, ", "))
		}
		switch opts.OutputFormat {
		case "text", "json", "csv":
		default:
			return fmt.Errorf("--format must be one of: text, json, csv")
		}
		return parseHeaders(cmd.Flags())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return runner.Run(ctx, &opts, log)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()

	// Target
	f.StringVarP(&opts.BaseHost, "base-host", "u", "", "Base URL the candidate paths are appended to")
	f.StringVarP(&opts.Credential, "credential", "k", "", "API credential (default: $"+config.CredentialEnv+")")
	f.StringVar(&opts.CredentialParam, "credential-param", probe.DefaultCredentialParam, "Query parameter carrying the credential")
	f.StringVarP(&opts.CandidatesFile, "candidates", "w", "", "Candidates file (.txt lines or .yaml list)")
	f.StringArrayVarP(&opts.Paths, "path", "p", nil, "Inline candidate, e.g. \"getBs02?routeId=X manual\" (repeatable)")
	f.StringArrayVarP(&opts.CommonParams, "param", "P", nil, "Parameter added to every candidate, name=value (repeatable)")
	f.StringSliceVarP(&opts.Encodings, "encodings", "e", nil, "Credential encodings to try per candidate: default, manual-unencoded-key")

	// Performance
	f.IntVarP(&opts.Workers, "workers", "t", 1, "Concurrent requests (1 = sequential, in order)")
	f.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "Per-request timeout")
	f.Float64Var(&opts.Rate, "rate", 0, "Maximum requests per second (0 = unlimited)")

	// HTTP
	f.StringArrayVarP(new([]string), "header", "H", nil, "Custom headers (Key: Value)")
	f.StringVar(&opts.UserAgent, "user-agent", "", "Custom User-Agent string")
	f.StringVar(&opts.Proxy, "proxy", "", "HTTP proxy URL")
	f.BoolVar(&opts.FollowRedirects, "follow-redirects", false, "Follow HTTP redirects")
	f.BoolVar(&opts.Insecure, "insecure", false, "Skip TLS certificate verification")

	// Classification
	f.IntVar(&opts.SnippetLength, "snippet-length", probe.DefaultSnippetLength, "Characters of body kept per result")
	f.StringArrayVar(&opts.ErrorMarkers, "error-marker", nil, "Extra body text marking a 200 response as failed (repeatable)")
	f.StringSliceVar(&opts.SuccessCodes, "success-code", nil, "Accepted header resultCode values (default 0000,00)")

	// Filtering
	f.VarP(&intSliceValue{target: &opts.IncludeStatus}, "include-status", "i", "Only show these status codes (0 = transport fault)")
	f.VarP(&intSliceValue{target: &opts.ExcludeStatus}, "exclude-status", "x", "Hide these status codes (0 = transport fault)")
	f.StringSliceVar(&opts.Kinds, "kind", nil, "Only show these body kinds: json, xml, text, unknown")
	f.BoolVarP(&opts.SuccessOnly, "success-only", "s", false, "Only show successful candidates")
	f.StringVar(&opts.MatchBody, "match-body", "", "Only show results whose snippet contains this string")
	f.StringVar(&opts.ExcludeBody, "exclude-body", "", "Hide results whose snippet contains this string")

	// Output
	f.StringVarP(&opts.OutputFile, "output", "o", "", "Output file path")
	f.StringVar(&opts.OutputFormat, "format", "text", "Output format: text, json, csv")
	f.StringVar(&opts.SortBy, "sort", "", "Sort results: index, status, path, kind (buffers until the sweep completes)")
	f.IntVar(&opts.SnippetWidth, "snippet-width", 160, "Characters of snippet shown in text output (0 = all)")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "Minimal output")
	f.BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	f.StringVar(&opts.OnResultCmd, "on-result", "", "Shell command to run for each shown result (receives JSON on stdin)")

	// Configuration
	f.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML file with default flag values")
	rootCmd.PersistentFlags().StringVar(&opts.HistoryFile, "history-file", "", "bbolt file recording every sweep report")
	rootCmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "Diagnostic log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&opts.LogJSON, "log-json", false, "Write diagnostics as JSON lines")

	rootCmd.AddCommand(historyCmd)

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != rootCmd {
			fmt.Fprint(os.Stderr, cmd.UsageString())
			return
		}
		w := os.Stderr
		fmt.Fprintf(w, "%s\n\nUsage:\n  %s\n  apiprobe history [list|show|diff]\n", cmd.Long, cmd.UseLine())
		fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			fmt.Fprintf(w, "\n%s:\n", g.title)
			for _, name := range g.flags {
				f := cmd.Flags().Lookup(name)
				if f == nil {
					f = cmd.PersistentFlags().Lookup(name)
				}
				if f != nil {
					fmt.Fprintln(w, formatFlag(f))
				}
			}
		}
		fmt.Fprintln(w)
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*logger.Logger, error) {
	level, err := logger.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	return logger.New(logger.Config{
		Level:   level,
		Pretty:  !opts.LogJSON,
		NoColor: opts.NoColor || !term.IsTerminal(int(os.Stderr.Fd())),
		Output:  os.Stderr,
	}), nil
}

// parseHeaders turns the repeated -H values into opts.Headers.
func parseHeaders(f *pflag.FlagSet) error {
	headers, _ := f.GetStringArray("header")
	if len(headers) == 0 {
		return nil
	}
	opts.Headers = make(map[string]string, len(headers))
	for _, h := range headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid header format %q, expected 'Key: Value'", h)
		}
		opts.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return nil
}

// intSliceValue implements pflag.Value for comma-separated int slices.
type intSliceValue struct {
	target *[]int
}

func (v *intSliceValue) String() string {
	if v.target == nil || len(*v.target) == 0 {
		return ""
	}
	parts := make([]string, len(*v.target))
	for i, val := range *v.target {
		parts[i] = strconv.Itoa(val)
	}
	return strings.Join(parts, ",")
}

func (v *intSliceValue) Set(s string) error {
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid status code %q: %w", p, err)
		}
		*v.target = append(*v.target, n)
	}
	return nil
}

func (v *intSliceValue) Type() string { return "ints" }

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}
