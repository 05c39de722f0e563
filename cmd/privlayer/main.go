package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/privlayer/privlayer"
)

const secretEnv = "PRIV_LAYER_SECRET"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// .env is optional; explicit environment always wins.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[error] failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch os.Args[1] {
	case "process":
		runProcess(os.Args[2:], logger)
	case "audit":
		runAudit(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: privlayer <process|audit> [flags]")
	fmt.Fprintln(os.Stderr, "  process --input FILE --out DIR --policy FILE [--strict]")
	fmt.Fprintln(os.Stderr, "  audit --out DIR --policy FILE")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[error] "+format+"\n", args...)
	os.Exit(1)
}

func runProcess(args []string, logger *zap.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	input := fs.String("input", "", "input CSV file")
	out := fs.String("out", "", "output directory")
	policy := fs.String("policy", "", "policy document (YAML or JSON)")
	strict := fs.Bool("strict", false, "abort on any validation or transform failure")
	fs.Parse(args)

	if *input == "" || *out == "" || *policy == "" {
		fs.Usage()
		os.Exit(2)
	}

	secret := os.Getenv(secretEnv)
	if secret == "" {
		secret = "dev-secret-change-me"
		logger.Warn("using default development secret; set " + secretEnv + " in production")
	}

	result, err := privlayer.Process(*input, *out, *policy, *strict, []byte(secret), logger)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Masked output: %s\n", result.OutputCSV)
	if result.QuarantinePath != "" {
		fmt.Printf("Quarantine: %s (%d rows)\n", result.QuarantinePath, result.Record.QuarantinedRows)
	}
	fmt.Printf("Governance record: %s\n", result.GovernancePath)
	if n := len(result.Warnings); n > 0 {
		fmt.Printf("Warnings: %d (see log output)\n", n)
	}
}

func runAudit(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	out := fs.String("out", "out", "output directory of the run to audit")
	policy := fs.String("policy", "", "policy document the run was processed with")
	fs.Parse(args)

	if *policy == "" {
		fs.Usage()
		os.Exit(2)
	}

	result, err := privlayer.Audit(*out, *policy)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Println("=== Audit Results ===")
	fmt.Printf("Rows: %d\n", result.Rows)
	fmt.Printf("Policy: %s v%s\n", result.Record.Policy, result.Record.PolicyVersion)
	fmt.Printf("Actions logged: %d\n", result.Record.Totals.Actions)
	fmt.Printf("Quarantined rows: %d (path: %s)\n", result.Record.QuarantinedRows, result.Record.QuarantinePath)

	if len(result.Findings) == 0 {
		fmt.Println("PII scan: no findings")
	} else {
		fmt.Println("Findings:")
		for _, f := range result.Findings {
			fmt.Printf("  - %s\n", f)
		}
	}

	if result.Pass {
		fmt.Println("\nOVERALL: PASS")
		return
	}
	fmt.Println("\nOVERALL: FAIL")
	os.Exit(1)
}
