package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldapline/ldapline"
)

var version = "0.1.0"

var (
	flagURL       string
	flagBindDN    string
	flagPassword  string
	flagMechanism string
	flagStartTLS  bool
	flagCACert    string
	flagPageSize  int
	flagSort      []string
	flagTimeout   time.Duration
	flagVerbose   bool
)

// envOr returns the value of the environment variable when the flag kept
// its default, so LDAPLINE_URL and friends work without flags.
func envOr(flagValue, defaultValue, envName string) string {
	if flagValue != defaultValue {
		return flagValue
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return flagValue
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ldapline",
	Short: "ldapline - LDAP client operations from the command line",
	Long:  "Query and modify LDAP directories: search with paging and sorting, add, modify, delete, and identity checks",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagURL, "url", "u", "ldap://localhost:389", "server URL, may carry base/attrs/scope/filter defaults")
	pf.StringVarP(&flagBindDN, "bind-dn", "D", "", "bind DN for simple binds")
	pf.StringVarP(&flagPassword, "password", "w", "", "bind password")
	pf.StringVar(&flagMechanism, "mechanism", "SIMPLE", "bind mechanism: SIMPLE, EXTERNAL or GSSAPI")
	pf.BoolVar(&flagStartTLS, "starttls", false, "upgrade a plain connection with StartTLS")
	pf.StringVar(&flagCACert, "ca-cert", "", "PEM CA bundle for TLS verification")
	pf.IntVar(&flagPageSize, "page-size", 0, "paged-results page size, 0 disables paging")
	pf.StringSliceVar(&flagSort, "sort", nil, "server-side sort keys, attribute name with optional leading - for reverse")
	pf.DurationVar(&flagTimeout, "timeout", 30*time.Second, "dial timeout")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log session events to stderr")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(modifyCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(versionCmd)
}

func connect() (*ldapline.Conn, error) {
	cfg := ldapline.Config{
		URL:         envOr(flagURL, "ldap://localhost:389", "LDAPLINE_URL"),
		BindDN:      envOr(flagBindDN, "", "LDAPLINE_BIND_DN"),
		Password:    envOr(flagPassword, "", "LDAPLINE_PASSWORD"),
		Mechanism:   ldapline.Mechanism(strings.ToUpper(flagMechanism)),
		StartTLS:    flagStartTLS,
		CACertFile:  flagCACert,
		PageSize:    flagPageSize,
		DialTimeout: flagTimeout,
	}
	if cfg.Mechanism == ldapline.MechGSSAPI {
		cfg.AuthcID = cfg.BindDN
		cfg.BindDN = ""
	}
	for _, key := range flagSort {
		sk := ldapline.SortKey{Attribute: key}
		if strings.HasPrefix(key, "-") {
			sk.Attribute = key[1:]
			sk.Reverse = true
		}
		cfg.SortKeys = append(cfg.SortKeys, sk)
	}
	if flagVerbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return ldapline.Connect(cfg)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("ldapline", version)
	},
}
